package buffer

import "github.com/dooshek/skyswitcher/internal/keyboard"

// DefaultLimit is the default number of strokes kept.
const DefaultLimit = 50

// Config tunes the buffer.
type Config struct {
	// Limit caps the word length; the oldest strokes are dropped past it.
	Limit int
	// BackspacePops makes Backspace remove the last stroke instead of
	// clearing the buffer.
	BackspacePops bool
}

// Buffer holds the keys of the word being typed, most recent last. It is
// owned by a single goroutine.
type Buffer struct {
	cfg     Config
	strokes []keyboard.Stroke

	leftShift, rightShift bool
	ctrl, alt, meta       map[keyboard.KeyCode]bool
	caps                  bool
}

// New returns an empty buffer.
func New(cfg Config) *Buffer {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Buffer{
		cfg:  cfg,
		ctrl: make(map[keyboard.KeyCode]bool),
		alt:  make(map[keyboard.KeyCode]bool),
		meta: make(map[keyboard.KeyCode]bool),
	}
}

// SetConfig applies new tunables, trimming the buffer if the limit shrank.
func (b *Buffer) SetConfig(cfg Config) {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	b.cfg = cfg
	b.trim()
}

// Feed mirrors one key event into the buffer.
func (b *Buffer) Feed(ev keyboard.KeyEvent) {
	if keyboard.IsModifier(ev.Code) {
		b.trackModifier(ev)
		return
	}
	if ev.Action == keyboard.Up {
		return
	}

	switch {
	case b.shortcutHeld():
		b.Reset()
	case keyboard.IsPrintable(ev.Code):
		b.strokes = append(b.strokes, keyboard.Stroke{
			Code:  ev.Code,
			Shift: b.leftShift || b.rightShift,
			Caps:  b.caps,
		})
		b.trim()
	case ev.Code == keyboard.KeyBackspace && b.cfg.BackspacePops:
		if n := len(b.strokes); n > 0 {
			b.strokes = b.strokes[:n-1]
		}
	case keyboard.IsBoundary(ev.Code):
		b.Reset()
	}
}

// Take returns the buffered strokes and clears the buffer.
func (b *Buffer) Take() []keyboard.Stroke {
	out := b.strokes
	b.strokes = nil
	return out
}

// Strokes returns a copy of the buffered strokes.
func (b *Buffer) Strokes() []keyboard.Stroke {
	return append([]keyboard.Stroke(nil), b.strokes...)
}

// Len returns the number of buffered strokes.
func (b *Buffer) Len() int {
	return len(b.strokes)
}

// Reset clears the strokes. Modifier state is kept.
func (b *Buffer) Reset() {
	b.strokes = nil
}

func (b *Buffer) trackModifier(ev keyboard.KeyEvent) {
	down := ev.Action != keyboard.Up
	switch ev.Code {
	case keyboard.KeyLeftShift:
		b.leftShift = down
	case keyboard.KeyRightShift:
		b.rightShift = down
	case keyboard.KeyLeftCtrl, keyboard.KeyRightCtrl:
		setHeld(b.ctrl, ev.Code, down)
	case keyboard.KeyLeftAlt, keyboard.KeyRightAlt:
		setHeld(b.alt, ev.Code, down)
	case keyboard.KeyLeftMeta, keyboard.KeyRightMeta:
		setHeld(b.meta, ev.Code, down)
	case keyboard.KeyCapsLock:
		if ev.Action == keyboard.Down {
			b.caps = !b.caps
		}
	}
}

func (b *Buffer) shortcutHeld() bool {
	return len(b.ctrl) > 0 || len(b.alt) > 0 || len(b.meta) > 0
}

func (b *Buffer) trim() {
	if over := len(b.strokes) - b.cfg.Limit; over > 0 {
		b.strokes = append([]keyboard.Stroke(nil), b.strokes[over:]...)
	}
}

func setHeld(m map[keyboard.KeyCode]bool, code keyboard.KeyCode, down bool) {
	if down {
		m[code] = true
		return
	}
	delete(m, code)
}
