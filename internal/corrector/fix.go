package corrector

import (
	"fmt"
	"strings"

	"github.com/dooshek/skyswitcher/internal/keyboard"
	"github.com/dooshek/skyswitcher/internal/layout"
	"github.com/dooshek/skyswitcher/internal/logger"
)

// FixLastWord erases the word made of strokes and types it again as if the
// other layout had been active, then switches the desktop layout. It returns
// the word as it was typed and as it was re-typed. A failure leaves whatever
// was already erased or typed in place.
func (e *Engine) FixLastWord(strokes []keyboard.Stroke) (string, string, error) {
	from := e.Active()
	to := from.Other()
	pair := e.opts.Layouts
	before := decode(pair, strokes, from)
	after := decode(pair, strokes, to)

	if err := e.out.ReleaseModifiers(); err != nil {
		return before, after, err
	}

	restore := e.backupClipboard()
	defer restore()

	for range strokes {
		if err := e.out.PressAndRelease(keyboard.KeyBackspace); err != nil {
			return before, after, fmt.Errorf("erase word: %w", err)
		}
	}

	for _, s := range strokes {
		if err := e.typeStroke(s, to); err != nil {
			return before, after, fmt.Errorf("retype word: %w", err)
		}
	}

	if err := e.switchLayout(); err != nil {
		return before, after, err
	}
	return before, after, nil
}

// FixSelection copies the selected text, transliterates it in whichever
// direction its characters suggest and pastes the result over the selection.
// When nothing gets copied in time the clipboard is restored and
// ErrClipboardTimeout is returned. When the text has nothing to translate the
// clipboard is restored and nothing is pasted.
func (e *Engine) FixSelection() (string, string, error) {
	if e.clip == nil {
		return "", "", fmt.Errorf("fix selection: no clipboard available")
	}
	if err := e.out.ReleaseModifiers(); err != nil {
		return "", "", err
	}

	backup, err := e.clip.ReadText()
	if err != nil {
		logger.Debugf("Clipboard backup failed: %v", err)
	}
	restore := func() {
		if err := e.clip.WriteText(backup); err != nil {
			logger.Warnf("Could not restore clipboard: %v", err)
		}
	}

	cleared := e.clip.WriteText("") == nil
	if err := e.out.Chord(keyboard.KeyLeftCtrl, keyboard.KeyC); err != nil {
		restore()
		return "", "", fmt.Errorf("copy selection: %w", err)
	}

	text, ok := e.waitForCopy(backup, cleared)
	if !ok {
		restore()
		return "", "", ErrClipboardTimeout
	}

	from := e.opts.Layouts.Detect(text)
	result := e.opts.Layouts.Translate(text, from)
	if result == text {
		restore()
		return text, result, nil
	}
	logger.Debugf("Selection detected as %s, translating %d characters", from, len([]rune(text)))

	if err := e.clip.WriteText(result); err != nil {
		restore()
		return text, result, fmt.Errorf("write translation: %w", err)
	}
	e.sleep(e.opts.PasteSettle)
	if err := e.out.Chord(keyboard.KeyLeftCtrl, keyboard.KeyV); err != nil {
		return text, result, fmt.Errorf("paste translation: %w", err)
	}
	if err := e.switchLayout(); err != nil {
		return text, result, err
	}
	return text, result, nil
}

// waitForCopy polls the clipboard until the copied selection shows up.
func (e *Engine) waitForCopy(backup string, cleared bool) (string, bool) {
	poll := e.opts.ClipboardPoll
	if poll <= 0 {
		poll = DefaultOptions().ClipboardPoll
	}
	for waited := poll; waited <= e.opts.ClipboardTimeout; waited += poll {
		e.sleep(poll)
		text, err := e.clip.ReadText()
		if err != nil || text == "" {
			continue
		}
		if cleared || text != backup {
			return text, true
		}
	}
	return "", false
}

func (e *Engine) typeStroke(s keyboard.Stroke, side layout.Side) error {
	if r, ok := e.opts.Layouts.Decode(s, side); ok {
		return e.out.TypeRune(r)
	}
	// Keys outside the table produce the same thing under both layouts.
	if s.Shift {
		return e.out.Chord(keyboard.KeyLeftShift, s.Code)
	}
	return e.out.PressAndRelease(s.Code)
}

func (e *Engine) switchLayout() error {
	if len(e.opts.LayoutSwitch) == 0 {
		return nil
	}
	if err := e.out.Chord(e.opts.LayoutSwitch...); err != nil {
		return fmt.Errorf("switch layout: %w", err)
	}
	e.flipActive()
	return nil
}

// backupClipboard saves the clipboard and returns a func that puts it back.
func (e *Engine) backupClipboard() func() {
	if e.clip == nil {
		return func() {}
	}
	saved, err := e.clip.ReadText()
	if err != nil {
		logger.Debugf("Clipboard backup failed: %v", err)
		return func() {}
	}
	return func() {
		if err := e.clip.WriteText(saved); err != nil {
			logger.Warnf("Could not restore clipboard: %v", err)
		}
	}
}

func decode(pair *layout.Pair, strokes []keyboard.Stroke, side layout.Side) string {
	var b strings.Builder
	for _, s := range strokes {
		if r, ok := pair.Decode(s, side); ok {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}
