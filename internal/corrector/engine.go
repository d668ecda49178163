package corrector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dooshek/skyswitcher/internal/buffer"
	"github.com/dooshek/skyswitcher/internal/gesture"
	"github.com/dooshek/skyswitcher/internal/keyboard"
	"github.com/dooshek/skyswitcher/internal/layout"
	"github.com/dooshek/skyswitcher/internal/logger"
	"github.com/dooshek/skyswitcher/internal/windowdetect"
)

var (
	// ErrClipboardTimeout means the selection never reached the clipboard,
	// usually because nothing was selected.
	ErrClipboardTimeout = errors.New("timed out waiting for the selection to be copied")
	// ErrInputClosed is returned by Run when the event stream ends.
	ErrInputClosed = errors.New("input event stream closed")
	// ErrUnknownLayout is returned by SetLayout for a name outside the pair.
	ErrUnknownLayout = errors.New("unknown layout")
)

// Output is what the engine types with.
type Output interface {
	PressAndRelease(code keyboard.KeyCode) error
	Chord(codes ...keyboard.KeyCode) error
	TypeRune(r rune) error
	ReleaseModifiers() error
}

// Clipboard is the desktop clipboard.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Observer is told about every correction attempt that got as far as
// touching the focused window.
type Observer interface {
	CorrectionApplied(mode gesture.Gesture, before, after string)
	CorrectionFailed(mode gesture.Gesture, err error)
}

// WindowDetector reports the focused window.
type WindowDetector interface {
	GetFocusedWindow() (*windowdetect.WindowInfo, error)
}

// Options configure the engine. They can be replaced while running.
type Options struct {
	Layouts *layout.Pair
	Gesture gesture.Config
	Buffer  buffer.Config
	// LayoutSwitch is the chord that toggles the desktop layout.
	LayoutSwitch []keyboard.KeyCode
	// Initial is the layout assumed active at startup.
	Initial layout.Side

	ClipboardTimeout time.Duration
	ClipboardPoll    time.Duration
	// PasteSettle is the pause between writing the clipboard and pasting.
	PasteSettle time.Duration
	// ExcludedApps are window classes in which gestures are ignored.
	ExcludedApps []string
}

// DefaultOptions returns the defaults for everything but Layouts.
func DefaultOptions() Options {
	return Options{
		Gesture:          gesture.DefaultConfig(),
		Buffer:           buffer.Config{Limit: buffer.DefaultLimit},
		LayoutSwitch:     []keyboard.KeyCode{keyboard.KeyLeftMeta, keyboard.KeySpace},
		Initial:          layout.Primary,
		ClipboardTimeout: 500 * time.Millisecond,
		ClipboardPoll:    20 * time.Millisecond,
		PasteSettle:      50 * time.Millisecond,
	}
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Enabled     bool
	Corrections uint64
	Failures    uint64
	Layout      string
}

// Engine turns gestures into corrections. Run owns all mutable state except
// the atomics, which control surfaces may read or flip concurrently.
type Engine struct {
	opts       Options
	out        Output
	clip       Clipboard
	windows    WindowDetector
	classifier *gesture.Classifier
	buf        *buffer.Buffer
	chord      *gesture.ChordTracker

	pending         gesture.Gesture
	pendingStrokes  []keyboard.Stroke
	triggerReleased bool

	obsMu     sync.RWMutex
	observers []Observer

	enabled     atomic.Bool
	active      atomic.Int32
	names       atomic.Pointer[[2]string]
	corrections atomic.Uint64
	failures    atomic.Uint64

	sleep func(time.Duration)
}

// New builds an enabled engine. opts.Layouts is required.
func New(out Output, clip Clipboard, opts Options) (*Engine, error) {
	if opts.Layouts == nil {
		return nil, fmt.Errorf("corrector: no layout pair configured")
	}
	e := &Engine{
		opts:       opts,
		out:        out,
		clip:       clip,
		classifier: gesture.NewClassifier(opts.Gesture),
		buf:        buffer.New(opts.Buffer),
		chord:      gesture.NewChordTracker(opts.LayoutSwitch),
		sleep:      time.Sleep,
	}
	e.enabled.Store(true)
	e.active.Store(int32(opts.Initial))
	e.storeNames(opts.Layouts)
	return e, nil
}

// SetWindowDetector enables ExcludedApps. Call it before Run.
func (e *Engine) SetWindowDetector(d WindowDetector) {
	e.windows = d
}

// AddObserver registers o for correction results.
func (e *Engine) AddObserver(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// SetEnabled turns corrections on or off. Input is still tracked while
// disabled.
func (e *Engine) SetEnabled(enabled bool) {
	if e.enabled.Swap(enabled) != enabled {
		logger.Infof("Corrections %s", onOff(enabled))
	}
}

// Enabled reports whether gestures trigger corrections.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// Toggle flips the enabled flag and returns the new value.
func (e *Engine) Toggle() bool {
	for {
		old := e.enabled.Load()
		if e.enabled.CompareAndSwap(old, !old) {
			logger.Infof("Corrections %s", onOff(!old))
			return !old
		}
	}
}

// Active returns the layout the engine believes is selected.
func (e *Engine) Active() layout.Side {
	return layout.Side(e.active.Load())
}

// SetActive corrects the engine's belief about the desktop layout. A wrong
// belief makes every last-word fix retype the word unchanged, and nothing in
// the key stream reveals it.
func (e *Engine) SetActive(side layout.Side) {
	if layout.Side(e.active.Swap(int32(side))) != side {
		logger.Infof("Now assuming %s layout", e.activeLayoutName())
	}
}

// SetLayout is SetActive by layout name, or by "primary"/"secondary".
func (e *Engine) SetLayout(name string) error {
	names := e.names.Load()
	for _, side := range []layout.Side{layout.Primary, layout.Secondary} {
		if strings.EqualFold(strings.TrimSpace(name), names[side]) {
			e.SetActive(side)
			return nil
		}
	}
	side, err := layout.ParseSide(name)
	if err != nil || strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %q is neither %s, %s, primary nor secondary",
			ErrUnknownLayout, name, names[layout.Primary], names[layout.Secondary])
	}
	e.SetActive(side)
	return nil
}

// Stats returns the counters and the presumed active layout.
func (e *Engine) Stats() Stats {
	return Stats{
		Enabled:     e.enabled.Load(),
		Corrections: e.corrections.Load(),
		Failures:    e.failures.Load(),
		Layout:      e.activeLayoutName(),
	}
}

// Run processes events until ctx is cancelled or events is closed.
// Corrections run inside the loop, so events that arrive meanwhile queue up
// behind them. Options received on updates are applied between events.
func (e *Engine) Run(ctx context.Context, events <-chan keyboard.KeyEvent, updates <-chan Options) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case opts, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			e.Apply(opts)
		case ev, ok := <-events:
			if !ok {
				return ErrInputClosed
			}
			e.Handle(ev)
		}
	}
}

// Apply replaces the options and drops any half-recognised gesture. The
// presumed active layout is kept.
func (e *Engine) Apply(opts Options) {
	if opts.Layouts == nil {
		opts.Layouts = e.opts.Layouts
	}
	e.opts = opts
	e.storeNames(opts.Layouts)
	e.classifier.SetConfig(opts.Gesture)
	e.buf.SetConfig(opts.Buffer)
	e.chord.SetChord(opts.LayoutSwitch)
	e.clearPending()
	logger.Debugf("Engine options applied: trigger=%s secondary=%s window=%s layouts=%s/%s",
		opts.Gesture.Trigger, opts.Gesture.Secondary, opts.Gesture.Window,
		opts.Layouts.Layout(layout.Primary).Name(), opts.Layouts.Layout(layout.Secondary).Name())
}

// Handle processes one event.
func (e *Engine) Handle(ev keyboard.KeyEvent) {
	if e.chord.Feed(ev) {
		e.flipActive()
		logger.Debugf("Layout switch pressed, now assuming %s", e.activeLayoutName())
	}
	e.buf.Feed(ev)

	if g, fired := e.classifier.Feed(ev); fired {
		strokes := e.buf.Take()
		if !e.enabled.Load() {
			logger.Debugf("Ignoring %s gesture while disabled", g)
			return
		}
		logger.Debugf("Gesture %s recognised with %d buffered keys", g, len(strokes))
		e.pending = g
		e.pendingStrokes = strokes
		return
	}

	if e.pending == gesture.None {
		return
	}
	switch {
	case ev.Action == keyboard.Up && (ev.Code == e.opts.Gesture.Trigger || ev.Code == e.opts.Gesture.Secondary):
		if ev.Code == e.opts.Gesture.Trigger {
			e.triggerReleased = true
		}
		// A held secondary key would turn the layout chord into a different
		// shortcut, so a selection fix waits for both keys to come up.
		if !e.triggerReleased || (e.pending == gesture.FixSelection && e.classifier.State().SecondaryHeld) {
			return
		}
		g, strokes := e.pending, e.pendingStrokes
		e.clearPending()
		e.execute(g, strokes)
	case ev.Action == keyboard.Down && !keyboard.IsModifier(ev.Code):
		logger.Debugf("Gesture %s abandoned: %s pressed before release", e.pending, ev.Code)
		e.clearPending()
	}
}

func (e *Engine) execute(g gesture.Gesture, strokes []keyboard.Stroke) {
	var (
		before, after string
		err           error
	)
	switch g {
	case gesture.FixLastWord:
		if len(strokes) == 0 {
			logger.Debug("Nothing to correct")
			return
		}
	case gesture.FixSelection:
	default:
		return
	}
	if e.focusedExcluded(g) {
		return
	}

	switch g {
	case gesture.FixLastWord:
		before, after, err = e.FixLastWord(strokes)
	case gesture.FixSelection:
		before, after, err = e.FixSelection()
	default:
		return
	}

	switch {
	case errors.Is(err, ErrClipboardTimeout):
		logger.Infof("Selection fix skipped: %v", err)
	case err != nil:
		e.failures.Add(1)
		logger.Errorf("Correction (%s) failed", err, g)
		e.notify(func(o Observer) { o.CorrectionFailed(g, err) })
	case before == after:
		logger.Debugf("Correction (%s) changed nothing", g)
	default:
		e.corrections.Add(1)
		logger.Infof("Corrected %q -> %q", before, after)
		e.notify(func(o Observer) { o.CorrectionApplied(g, before, after) })
	}
}

func (e *Engine) focusedExcluded(g gesture.Gesture) bool {
	if e.windows == nil || len(e.opts.ExcludedApps) == 0 {
		return false
	}
	w, err := e.windows.GetFocusedWindow()
	if err != nil {
		logger.Debugf("Could not detect focused window: %v", err)
		return false
	}
	if w.Matches(e.opts.ExcludedApps) {
		logger.Infof("Correction (%s) skipped in excluded app %s", g, w.AppName)
		return true
	}
	return false
}

func (e *Engine) clearPending() {
	e.pending = gesture.None
	e.pendingStrokes = nil
	e.triggerReleased = false
}

func (e *Engine) flipActive() {
	for {
		old := e.active.Load()
		if e.active.CompareAndSwap(old, int32(layout.Side(old).Other())) {
			return
		}
	}
}

func (e *Engine) activeLayoutName() string {
	return e.names.Load()[e.Active()]
}

func (e *Engine) storeNames(p *layout.Pair) {
	e.names.Store(&[2]string{p.Layout(layout.Primary).Name(), p.Layout(layout.Secondary).Name()})
}

func (e *Engine) notify(fn func(Observer)) {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	for _, o := range e.observers {
		fn(o)
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
