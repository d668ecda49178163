package injector

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dooshek/skyswitcher/internal/keyboard"
)

// Typer names accepted in configuration.
const (
	TyperAuto      = "auto"
	TyperClipboard = "clipboard"
	TyperX11       = "x11"
)

// TextWriter is the part of a clipboard ClipboardTyper needs.
type TextWriter interface {
	WriteText(text string) error
}

// ClipboardTyper types a character by placing it on the clipboard and
// pasting it, which works under every layout and on Wayland.
type ClipboardTyper struct {
	clipboard TextWriter
	inj       *Injector
	settle    time.Duration
}

// NewClipboardTyper pastes through inj after writing to clipboard.
func NewClipboardTyper(inj *Injector, clipboard TextWriter, settle time.Duration) *ClipboardTyper {
	return &ClipboardTyper{clipboard: clipboard, inj: inj, settle: settle}
}

func (c *ClipboardTyper) TypeRune(r rune) error {
	if err := c.clipboard.WriteText(string(r)); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	c.inj.sleep(c.settle)
	if err := c.inj.Chord(keyboard.KeyLeftCtrl, keyboard.KeyV); err != nil {
		return err
	}
	c.inj.sleep(c.settle)
	return nil
}

// IsX11Session checks if the current session is running X11.
func IsX11Session() bool {
	return strings.EqualFold(os.Getenv("XDG_SESSION_TYPE"), "x11")
}

// ResolveTyper maps a configured typer name to the concrete one to use.
func ResolveTyper(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", TyperAuto:
		if IsX11Session() {
			return TyperX11, nil
		}
		return TyperClipboard, nil
	case TyperClipboard:
		return TyperClipboard, nil
	case TyperX11:
		return TyperX11, nil
	default:
		return "", fmt.Errorf("unknown typer %q: use auto, clipboard or x11", name)
	}
}
