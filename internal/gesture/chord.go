package gesture

import "github.com/dooshek/skyswitcher/internal/keyboard"

// ChordTracker spots the user pressing a key chord, such as the layout switch
// shortcut, on the physical keyboard.
type ChordTracker struct {
	chord []keyboard.KeyCode
	held  map[keyboard.KeyCode]bool
}

// NewChordTracker tracks chord. An empty chord never matches.
func NewChordTracker(chord []keyboard.KeyCode) *ChordTracker {
	return &ChordTracker{
		chord: append([]keyboard.KeyCode(nil), chord...),
		held:  make(map[keyboard.KeyCode]bool),
	}
}

// Feed returns true on the press that completes the chord: every key of the
// chord is held and ev is the Down of its last key.
func (t *ChordTracker) Feed(ev keyboard.KeyEvent) bool {
	switch ev.Action {
	case keyboard.Up:
		delete(t.held, ev.Code)
		return false
	case keyboard.Repeat:
		return false
	}

	t.held[ev.Code] = true
	if len(t.chord) == 0 || ev.Code != t.chord[len(t.chord)-1] {
		return false
	}
	for _, code := range t.chord {
		if !t.held[code] {
			return false
		}
	}
	return true
}

// SetChord replaces the tracked chord.
func (t *ChordTracker) SetChord(chord []keyboard.KeyCode) {
	t.chord = append([]keyboard.KeyCode(nil), chord...)
}
