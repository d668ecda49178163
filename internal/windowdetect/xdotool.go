package windowdetect

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type xdotoolDetector struct {
	run func(args ...string) (string, error)
}

func newXdotoolDetector() (platformDetector, error) {
	if !strings.EqualFold(os.Getenv("XDG_SESSION_TYPE"), "x11") {
		return nil, fmt.Errorf("%w: not an X11 session", ErrUnavailable)
	}
	if err := checkXdotool(); err != nil {
		return nil, err
	}
	return &xdotoolDetector{run: runXdotool}, nil
}

// checkXdotool checks if xdotool is installed
func checkXdotool() error {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return fmt.Errorf("%w: xdotool is not installed. Install it using:\n"+
			"Fedora: sudo dnf install xdotool\n"+
			"Ubuntu/Debian: sudo apt-get install xdotool\n"+
			"Arch Linux: sudo pacman -S xdotool", ErrUnavailable)
	}
	return nil
}

func runXdotool(args ...string) (string, error) {
	out, err := exec.Command("xdotool", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (d *xdotoolDetector) getFocusedWindow() (*WindowInfo, error) {
	windowID, err := d.run("getactivewindow")
	if err != nil {
		return nil, fmt.Errorf("get active window: %w", err)
	}

	windowName, err := d.run("getwindowname", windowID)
	if err != nil {
		return nil, fmt.Errorf("get window name: %w", err)
	}

	// The class name is the application, e.g. "Gnome-terminal"
	windowClass, err := d.run("getwindowclassname", windowID)
	if err != nil {
		return nil, fmt.Errorf("get window class: %w", err)
	}

	return &WindowInfo{Title: windowName, AppName: windowClass}, nil
}
