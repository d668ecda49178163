package layout

import (
	"fmt"
	"strings"

	"github.com/dooshek/skyswitcher/internal/keyboard"
)

// Side selects one layout of a Pair.
type Side int

const (
	Primary Side = iota
	Secondary
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Primary {
		return Secondary
	}
	return Primary
}

func (s Side) String() string {
	if s == Secondary {
		return "secondary"
	}
	return "primary"
}

// ParseSide accepts "primary" or "secondary".
func ParseSide(value string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "primary":
		return Primary, nil
	case "secondary":
		return Secondary, nil
	default:
		return Primary, fmt.Errorf("invalid layout side %q: use primary or secondary", value)
	}
}

// Pair is the two layouts a user switches between. It is immutable and safe
// for concurrent use.
type Pair struct {
	layouts [2]*Layout
}

// NewPair pairs two layouts.
func NewPair(primary, secondary *Layout) *Pair {
	return &Pair{layouts: [2]*Layout{primary, secondary}}
}

// Layout returns the layout on side.
func (p *Pair) Layout(side Side) *Layout {
	return p.layouts[side]
}

// Decode returns the character stroke produces when side is active.
func (p *Pair) Decode(stroke keyboard.Stroke, side Side) (rune, bool) {
	return p.layouts[side].Char(stroke)
}

// TranslateRune returns the character typed by the same key and shift level
// under the other layout. ok is false when from has no key for r.
func (p *Pair) TranslateRune(r rune, from Side) (rune, bool) {
	pos, ok := p.layouts[from].Position(r)
	if !ok {
		return r, false
	}
	return p.layouts[from.Other()].Char(pos)
}

// Translate maps every character of text from one layout to the other.
// Characters from has no key for are kept as they are.
func (p *Pair) Translate(text string, from Side) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if t, ok := p.TranslateRune(r, from); ok {
			b.WriteRune(t)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Detect guesses which layout text was typed in by counting characters only
// one of the two layouts can produce. Ties go to Primary.
func (p *Pair) Detect(text string) Side {
	primary, secondary := 0, 0
	for _, r := range text {
		inPrimary := p.layouts[Primary].Contains(r)
		inSecondary := p.layouts[Secondary].Contains(r)
		switch {
		case inPrimary && !inSecondary:
			primary++
		case inSecondary && !inPrimary:
			secondary++
		}
	}
	if secondary > primary {
		return Secondary
	}
	return Primary
}
