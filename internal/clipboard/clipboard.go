package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/dooshek/skyswitcher/internal/logger"
)

// ErrUnsupported is returned when no clipboard utility (wl-clipboard, xclip
// or xsel) is installed.
var ErrUnsupported = errors.New("no clipboard utility found: install wl-clipboard, xclip or xsel")

// System is the desktop clipboard.
type System struct{}

// New checks that a clipboard utility is available.
func New() (*System, error) {
	if clipboard.Unsupported {
		return nil, ErrUnsupported
	}
	return &System{}, nil
}

// ReadText returns the clipboard text. An empty clipboard is not an error.
func (s *System) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		// wl-paste and xclip exit non-zero when nothing has been copied yet.
		logger.Debugf("clipboard: read: %v", err)
		return "", nil
	}
	return text, nil
}

// WriteText replaces the clipboard contents.
func (s *System) WriteText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	return nil
}
