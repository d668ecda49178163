package injector

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dooshek/skyswitcher/internal/keyboard"
	"github.com/dooshek/skyswitcher/internal/logger"
)

// ErrInjectionFailed wraps every failed write to the virtual keyboard.
var ErrInjectionFailed = errors.New("key injection failed")

const (
	EventTypeSyn uint16 = 0x00
	EventTypeKey uint16 = 0x01

	SynReportCode uint16 = 0
)

// Event is a raw input event written to the virtual device.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Device is a writable input device.
type Device interface {
	WriteEvents(events ...Event) error
	Close() error
}

// RuneTyper produces a character in the focused window regardless of the
// active layout.
type RuneTyper interface {
	TypeRune(r rune) error
}

// Options are the injection delays.
type Options struct {
	// KeyDelay separates the press and release of a single key.
	KeyDelay time.Duration
	// ChordDelay separates successive presses inside a chord.
	ChordDelay time.Duration
}

// DefaultOptions match what desktop environments reliably pick up.
func DefaultOptions() Options {
	return Options{
		KeyDelay:   8 * time.Millisecond,
		ChordDelay: 12 * time.Millisecond,
	}
}

var modifierCodes = []keyboard.KeyCode{
	keyboard.KeyLeftShift, keyboard.KeyRightShift,
	keyboard.KeyLeftCtrl, keyboard.KeyRightCtrl,
	keyboard.KeyLeftAlt, keyboard.KeyRightAlt,
	keyboard.KeyLeftMeta, keyboard.KeyRightMeta,
}

// Injector emits key presses through a Device.
type Injector struct {
	mu    sync.Mutex
	dev   Device
	opts  Options
	typer RuneTyper
	sleep func(time.Duration)
}

// New wraps dev. Until SetTyper is called TypeRune fails.
func New(dev Device, opts Options) *Injector {
	return &Injector{
		dev:   dev,
		opts:  opts,
		sleep: time.Sleep,
	}
}

// SetTyper selects how characters are produced.
func (i *Injector) SetTyper(t RuneTyper) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.typer = t
}

// SetOptions replaces the delays.
func (i *Injector) SetOptions(opts Options) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.opts = opts
}

// PressAndRelease taps a single key.
func (i *Injector) PressAndRelease(code keyboard.KeyCode) error {
	i.mu.Lock()
	opts := i.opts
	i.mu.Unlock()

	if err := i.key(code, 1); err != nil {
		return err
	}
	i.sleep(opts.KeyDelay)
	return i.key(code, 0)
}

// Chord presses codes in order and releases them in reverse, so modifiers
// listed first wrap the rest.
func (i *Injector) Chord(codes ...keyboard.KeyCode) error {
	if len(codes) == 0 {
		return nil
	}
	i.mu.Lock()
	opts := i.opts
	i.mu.Unlock()

	for n, code := range codes {
		if err := i.key(code, 1); err != nil {
			i.release(codes[:n])
			return err
		}
		i.sleep(opts.ChordDelay)
	}
	i.sleep(opts.KeyDelay)
	for n := len(codes) - 1; n >= 0; n-- {
		if err := i.key(codes[n], 0); err != nil {
			return err
		}
		if n > 0 {
			i.sleep(opts.ChordDelay)
		}
	}
	return nil
}

// TypeRune produces r with the configured RuneTyper.
func (i *Injector) TypeRune(r rune) error {
	i.mu.Lock()
	typer := i.typer
	i.mu.Unlock()

	if typer == nil {
		return fmt.Errorf("%w: no character typer configured", ErrInjectionFailed)
	}
	if err := typer.TypeRune(r); err != nil {
		if errors.Is(err, ErrInjectionFailed) {
			return err
		}
		return fmt.Errorf("%w: type %q: %v", ErrInjectionFailed, r, err)
	}
	return nil
}

// ReleaseModifiers sends a release for every modifier so that keys the user
// is still holding, or that a previous failed injection left down, do not
// combine with what we type next.
func (i *Injector) ReleaseModifiers() error {
	events := make([]Event, 0, len(modifierCodes)+1)
	for _, code := range modifierCodes {
		events = append(events, Event{Type: EventTypeKey, Code: uint16(code), Value: 0})
	}
	events = append(events, Event{Type: EventTypeSyn, Code: SynReportCode, Value: 0})
	return i.write(events...)
}

// Close closes the device.
func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dev == nil {
		return nil
	}
	err := i.dev.Close()
	i.dev = nil
	return err
}

func (i *Injector) key(code keyboard.KeyCode, value int32) error {
	return i.write(
		Event{Type: EventTypeKey, Code: uint16(code), Value: value},
		Event{Type: EventTypeSyn, Code: SynReportCode, Value: 0},
	)
}

func (i *Injector) release(codes []keyboard.KeyCode) {
	for n := len(codes) - 1; n >= 0; n-- {
		if err := i.key(codes[n], 0); err != nil {
			logger.Debugf("Release of %s after failed chord: %v", codes[n], err)
		}
	}
}

func (i *Injector) write(events ...Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dev == nil {
		return fmt.Errorf("%w: device closed", ErrInjectionFailed)
	}
	if err := i.dev.WriteEvents(events...); err != nil {
		return fmt.Errorf("%w: %v", ErrInjectionFailed, err)
	}
	return nil
}
