package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// KeyCode is a Linux input key code. It names a physical key position,
// not the character the key produces under the active layout.
type KeyCode uint16

// Modifier key codes
const (
	KeyLeftShift  = KeyCode(evdev.KEY_LEFTSHIFT)
	KeyRightShift = KeyCode(evdev.KEY_RIGHTSHIFT)
	KeyLeftCtrl   = KeyCode(evdev.KEY_LEFTCTRL)
	KeyRightCtrl  = KeyCode(evdev.KEY_RIGHTCTRL)
	KeyLeftAlt    = KeyCode(evdev.KEY_LEFTALT)
	KeyRightAlt   = KeyCode(evdev.KEY_RIGHTALT)
	KeyLeftMeta   = KeyCode(evdev.KEY_LEFTMETA)
	KeyRightMeta  = KeyCode(evdev.KEY_RIGHTMETA)
	KeyCapsLock   = KeyCode(evdev.KEY_CAPSLOCK)
)

// Editing and navigation key codes
const (
	KeyEsc       = KeyCode(evdev.KEY_ESC)
	KeySpace     = KeyCode(evdev.KEY_SPACE)
	KeyEnter     = KeyCode(evdev.KEY_ENTER)
	KeyTab       = KeyCode(evdev.KEY_TAB)
	KeyBackspace = KeyCode(evdev.KEY_BACKSPACE)
	KeyDelete    = KeyCode(evdev.KEY_DELETE)
	KeyHome      = KeyCode(evdev.KEY_HOME)
	KeyEnd       = KeyCode(evdev.KEY_END)
	KeyLeft      = KeyCode(evdev.KEY_LEFT)
	KeyRight     = KeyCode(evdev.KEY_RIGHT)
	KeyUp        = KeyCode(evdev.KEY_UP)
	KeyDown      = KeyCode(evdev.KEY_DOWN)
	KeyPageUp    = KeyCode(evdev.KEY_PAGEUP)
	KeyPageDown  = KeyCode(evdev.KEY_PAGEDOWN)
	KeyInsert    = KeyCode(evdev.KEY_INSERT)
)

// Character key codes referenced directly by the engine
const (
	KeyA     = KeyCode(evdev.KEY_A)
	KeyC     = KeyCode(evdev.KEY_C)
	KeyV     = KeyCode(evdev.KEY_V)
	KeyZ     = KeyCode(evdev.KEY_Z)
	Key102nd = KeyCode(evdev.KEY_102ND)
)

// CharacterKeys lists the keys of the main alphanumeric block in row order:
// number row, top letter row, home row, bottom row. Layout tables are
// written against this order.
var CharacterKeys = []KeyCode{
	KeyCode(evdev.KEY_GRAVE),
	KeyCode(evdev.KEY_1), KeyCode(evdev.KEY_2), KeyCode(evdev.KEY_3), KeyCode(evdev.KEY_4), KeyCode(evdev.KEY_5),
	KeyCode(evdev.KEY_6), KeyCode(evdev.KEY_7), KeyCode(evdev.KEY_8), KeyCode(evdev.KEY_9), KeyCode(evdev.KEY_0),
	KeyCode(evdev.KEY_MINUS), KeyCode(evdev.KEY_EQUAL),

	KeyCode(evdev.KEY_Q), KeyCode(evdev.KEY_W), KeyCode(evdev.KEY_E), KeyCode(evdev.KEY_R), KeyCode(evdev.KEY_T),
	KeyCode(evdev.KEY_Y), KeyCode(evdev.KEY_U), KeyCode(evdev.KEY_I), KeyCode(evdev.KEY_O), KeyCode(evdev.KEY_P),
	KeyCode(evdev.KEY_LEFTBRACE), KeyCode(evdev.KEY_RIGHTBRACE), KeyCode(evdev.KEY_BACKSLASH),

	KeyCode(evdev.KEY_A), KeyCode(evdev.KEY_S), KeyCode(evdev.KEY_D), KeyCode(evdev.KEY_F), KeyCode(evdev.KEY_G),
	KeyCode(evdev.KEY_H), KeyCode(evdev.KEY_J), KeyCode(evdev.KEY_K), KeyCode(evdev.KEY_L),
	KeyCode(evdev.KEY_SEMICOLON), KeyCode(evdev.KEY_APOSTROPHE),

	KeyCode(evdev.KEY_Z), KeyCode(evdev.KEY_X), KeyCode(evdev.KEY_C), KeyCode(evdev.KEY_V), KeyCode(evdev.KEY_B),
	KeyCode(evdev.KEY_N), KeyCode(evdev.KEY_M),
	KeyCode(evdev.KEY_COMMA), KeyCode(evdev.KEY_DOT), KeyCode(evdev.KEY_SLASH),
}

var (
	modifierKeys = map[KeyCode]struct{}{
		KeyLeftShift: {}, KeyRightShift: {},
		KeyLeftCtrl: {}, KeyRightCtrl: {},
		KeyLeftAlt: {}, KeyRightAlt: {},
		KeyLeftMeta: {}, KeyRightMeta: {},
		KeyCapsLock: {},
	}

	printableKeys = func() map[KeyCode]struct{} {
		keys := make(map[KeyCode]struct{}, len(CharacterKeys)+1)
		for _, code := range CharacterKeys {
			keys[code] = struct{}{}
		}
		// ISO extra key between left shift and Z
		keys[Key102nd] = struct{}{}
		return keys
	}()
)

// IsModifier reports whether code is a shift, ctrl, alt, meta or caps lock key.
func IsModifier(code KeyCode) bool {
	_, ok := modifierKeys[code]
	return ok
}

// IsPrintable reports whether code produces a character when pressed
// without ctrl, alt or meta.
func IsPrintable(code KeyCode) bool {
	_, ok := printableKeys[code]
	return ok
}

// IsBoundary reports whether a press of code ends the word being typed.
// Whitespace, editing, navigation and every other non-printable key count;
// modifiers never do.
func IsBoundary(code KeyCode) bool {
	return !IsModifier(code) && !IsPrintable(code)
}

// InjectableKeys returns every key a synthetic keyboard needs to advertise
// to replay corrections, plus any extra keys (for example a layout chord).
func InjectableKeys(extra ...KeyCode) []KeyCode {
	seen := make(map[KeyCode]struct{})
	var keys []KeyCode
	add := func(code KeyCode) {
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		keys = append(keys, code)
	}
	for code := range modifierKeys {
		add(code)
	}
	for _, code := range CharacterKeys {
		add(code)
	}
	for _, code := range []KeyCode{Key102nd, KeyBackspace, KeySpace, KeyEnter, KeyTab, KeyInsert} {
		add(code)
	}
	for _, code := range extra {
		add(code)
	}
	return keys
}

// ParseKeyCode accepts names like KEY_RIGHTSHIFT, rightshift or a numeric code.
func ParseKeyCode(value string) (KeyCode, error) {
	raw := strings.ToUpper(strings.TrimSpace(value))
	if raw == "" {
		return 0, fmt.Errorf("key name is empty")
	}
	if !strings.HasPrefix(raw, "KEY_") {
		if code, ok := evdev.KEYFromString["KEY_"+raw]; ok {
			return KeyCode(code), nil
		}
	}
	if code, ok := evdev.KEYFromString[raw]; ok {
		return KeyCode(code), nil
	}

	parsed, err := strconv.ParseInt(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown key %q: use names like KEY_RIGHTSHIFT or a numeric code", value)
	}
	if parsed <= 0 || parsed > 0xFFFF {
		return 0, fmt.Errorf("key code out of range: %d", parsed)
	}
	return KeyCode(parsed), nil
}

// ParseKeyCodes parses a chord such as ["KEY_LEFTMETA", "KEY_SPACE"].
func ParseKeyCodes(values []string) ([]KeyCode, error) {
	codes := make([]KeyCode, 0, len(values))
	for _, value := range values {
		code, err := ParseKeyCode(value)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (c KeyCode) String() string {
	if name := evdev.CodeName(evdev.EV_KEY, evdev.EvCode(c)); name != "" {
		return name
	}
	return strconv.Itoa(int(c))
}

// FormatChord renders codes as KEY_LEFTMETA+KEY_SPACE.
func FormatChord(codes []KeyCode) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = code.String()
	}
	return strings.Join(parts, "+")
}
