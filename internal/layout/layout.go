package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/dooshek/skyswitcher/internal/keyboard"
)

// ErrUnknownLayout is returned by Builtin for names with no table.
var ErrUnknownLayout = errors.New("unknown layout")

// Layout maps physical keys to the characters they produce, at the normal and
// shifted level, and back.
type Layout struct {
	name    string
	normal  map[keyboard.KeyCode]rune
	shifted map[keyboard.KeyCode]rune
	keys    map[rune]keyboard.Stroke
}

// FromRows builds a layout from two strings aligned with
// keyboard.CharacterKeys. Every character must appear once across both rows
// so that reverse lookups are unambiguous.
func FromRows(name, normal, shifted string) (*Layout, error) {
	n, s := []rune(normal), []rune(shifted)
	if len(n) != len(keyboard.CharacterKeys) {
		return nil, fmt.Errorf("layout %s: normal row has %d characters, want %d", name, len(n), len(keyboard.CharacterKeys))
	}
	if len(s) != len(keyboard.CharacterKeys) {
		return nil, fmt.Errorf("layout %s: shifted row has %d characters, want %d", name, len(s), len(keyboard.CharacterKeys))
	}

	l := &Layout{
		name:    name,
		normal:  make(map[keyboard.KeyCode]rune, len(n)),
		shifted: make(map[keyboard.KeyCode]rune, len(s)),
		keys:    make(map[rune]keyboard.Stroke, len(n)+len(s)),
	}
	for i, code := range keyboard.CharacterKeys {
		l.normal[code] = n[i]
		l.shifted[code] = s[i]
		for _, entry := range []struct {
			r     rune
			shift bool
		}{{n[i], false}, {s[i], true}} {
			if prev, dup := l.keys[entry.r]; dup {
				return nil, fmt.Errorf("layout %s: %q is on both %s and %s", name, entry.r, prev.Code, code)
			}
			l.keys[entry.r] = keyboard.Stroke{Code: code, Shift: entry.shift}
		}
	}
	return l, nil
}

// Name returns the layout name.
func (l *Layout) Name() string {
	return l.name
}

// Char returns the character stroke produces under this layout. Caps lock
// swaps the level of letter keys only. ok is false for keys outside the
// table.
func (l *Layout) Char(stroke keyboard.Stroke) (rune, bool) {
	base, ok := l.normal[stroke.Code]
	if !ok {
		return 0, false
	}
	shift := stroke.Shift
	if stroke.Caps && unicode.IsLetter(base) {
		shift = !shift
	}
	if shift {
		return l.shifted[stroke.Code], true
	}
	return base, true
}

// Position returns the key and shift level that type r.
func (l *Layout) Position(r rune) (keyboard.Stroke, bool) {
	stroke, ok := l.keys[r]
	return stroke, ok
}

// Contains reports whether r can be typed with this layout.
func (l *Layout) Contains(r rune) bool {
	_, ok := l.keys[r]
	return ok
}

var builtinRows = map[string][2]string{
	"us": {
		"`1234567890-=qwertyuiop[]\\asdfghjkl;'zxcvbnm,./",
		"~!@#$%^&*()_+QWERTYUIOP{}|ASDFGHJKL:\"ZXCVBNM<>?",
	},
	"ua": {
		"'1234567890-=йцукенгшщзхїґфівапролджєячсмитьбю.",
		"₴!\"№;%:?*()_+ЙЦУКЕНГШЩЗХЇҐФІВАПРОЛДЖЄЯЧСМИТЬБЮ,",
	},
	"ru": {
		"ё1234567890-=йцукенгшщзхъ\\фывапролджэячсмитьбю.",
		"Ё!\"№;%:?*()_+ЙЦУКЕНГШЩЗХЪ/ФЫВАПРОЛДЖЭЯЧСМИТЬБЮ,",
	},
}

// Builtin returns one of the bundled layouts: us, ua or ru.
func Builtin(name string) (*Layout, error) {
	rows, ok := builtinRows[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownLayout, name, strings.Join(BuiltinNames(), ", "))
	}
	return FromRows(strings.ToLower(name), rows[0], rows[1])
}

// BuiltinNames lists the bundled layouts in alphabetical order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinRows))
	for name := range builtinRows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
