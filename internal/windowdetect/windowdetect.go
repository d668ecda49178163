package windowdetect

import (
	"errors"
	"strings"
)

// ErrUnavailable means the focused window cannot be queried in this session.
var ErrUnavailable = errors.New("window detection unavailable")

// WindowInfo contains information about the focused window
type WindowInfo struct {
	Title   string
	AppName string
}

// Matches reports whether the window's application is one of apps. The
// comparison ignores case and surrounding spaces.
func (w *WindowInfo) Matches(apps []string) bool {
	if w == nil {
		return false
	}
	name := strings.TrimSpace(w.AppName)
	for _, app := range apps {
		if strings.EqualFold(name, strings.TrimSpace(app)) {
			return true
		}
	}
	return false
}

// Detector defines the interface for window detection
type Detector interface {
	GetFocusedWindow() (*WindowInfo, error)
}

type baseDetector struct {
	platform platformDetector
}

type platformDetector interface {
	getFocusedWindow() (*WindowInfo, error)
}

// New creates a detector for the current session. Only X11 sessions with
// xdotool installed are supported.
func New() (Detector, error) {
	platform, err := newXdotoolDetector()
	if err != nil {
		return nil, err
	}
	return &baseDetector{platform: platform}, nil
}

func (d *baseDetector) GetFocusedWindow() (*WindowInfo, error) {
	return d.platform.getFocusedWindow()
}
