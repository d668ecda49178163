package gesture

import (
	"time"

	"github.com/dooshek/skyswitcher/internal/keyboard"
)

// Gesture is a recognised double-tap.
type Gesture int

const (
	None Gesture = iota
	// FixLastWord re-types the word just typed in the other layout.
	FixLastWord
	// FixSelection transliterates the selected text.
	FixSelection
)

func (g Gesture) String() string {
	switch g {
	case FixLastWord:
		return "last_word"
	case FixSelection:
		return "selection"
	default:
		return "none"
	}
}

// DefaultWindow is the longest gap between two taps that still counts as a
// double-tap.
const DefaultWindow = 500 * time.Millisecond

// Config selects the keys and timing of the double-tap.
type Config struct {
	Trigger   keyboard.KeyCode
	Secondary keyboard.KeyCode
	Window    time.Duration
}

// DefaultConfig taps right shift, with right ctrl selecting FixSelection.
func DefaultConfig() Config {
	return Config{
		Trigger:   keyboard.KeyRightShift,
		Secondary: keyboard.KeyRightCtrl,
		Window:    DefaultWindow,
	}
}

// Phase is the classifier state.
type Phase int

const (
	Idle Phase = iota
	Armed
)

// State is everything the classifier remembers between events.
type State struct {
	Phase         Phase
	ArmedAt       time.Time
	Taps          int
	SecondaryHeld bool
}

// Step advances state by one event. It is a pure function: all timing comes
// from event timestamps.
func Step(cfg Config, state State, ev keyboard.KeyEvent) (State, Gesture) {
	if ev.Code == cfg.Secondary && cfg.Secondary != cfg.Trigger {
		state.SecondaryHeld = ev.Action != keyboard.Up
		return state, None
	}
	if ev.Code != cfg.Trigger || ev.Action != keyboard.Down {
		return state, None
	}

	if state.Phase == Armed && ev.Time.Sub(state.ArmedAt) <= cfg.Window {
		g := FixLastWord
		if state.SecondaryHeld {
			g = FixSelection
		}
		state.Phase = Idle
		state.Taps = 0
		state.ArmedAt = time.Time{}
		return state, g
	}

	state.Phase = Armed
	state.ArmedAt = ev.Time
	state.Taps = 1
	return state, None
}

// Classifier owns a State and feeds it events in order.
type Classifier struct {
	cfg   Config
	state State
}

// NewClassifier returns an idle classifier.
func NewClassifier(cfg Config) *Classifier {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Classifier{cfg: cfg}
}

// Feed processes one event and reports whether it completed a gesture.
func (c *Classifier) Feed(ev keyboard.KeyEvent) (Gesture, bool) {
	var g Gesture
	c.state, g = Step(c.cfg, c.state, ev)
	return g, g != None
}

// State returns a copy of the current state.
func (c *Classifier) State() State {
	return c.state
}

// Config returns the active configuration.
func (c *Classifier) Config() Config {
	return c.cfg
}

// SetConfig swaps the configuration and disarms. The held state of the
// secondary key is kept when the key itself is unchanged.
func (c *Classifier) SetConfig(cfg Config) {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	held := c.state.SecondaryHeld && cfg.Secondary == c.cfg.Secondary
	c.cfg = cfg
	c.state = State{SecondaryHeld: held}
}
