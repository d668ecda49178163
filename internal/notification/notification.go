package notification

import (
	"fmt"

	"github.com/dooshek/skyswitcher/internal/gesture"
	"github.com/dooshek/skyswitcher/internal/logger"
)

const appName = "SkySwitcher"

// Notifier defines the interface for system notifications
type Notifier interface {
	NotifyStarted(layouts string) error
	NotifyCorrectionFailed(mode gesture.Gesture, err error) error
	Notify(title, message string) error
	Close() error
}

// SilentNotifier is a no-op implementation used when notifications are off
type SilentNotifier struct{}

func NewSilent() Notifier {
	return &SilentNotifier{}
}

func (s *SilentNotifier) NotifyStarted(string) error                          { return nil }
func (s *SilentNotifier) NotifyCorrectionFailed(gesture.Gesture, error) error { return nil }
func (s *SilentNotifier) Notify(title, message string) error                  { return nil }
func (s *SilentNotifier) Close() error                                        { return nil }

type baseNotifier struct {
	platform platformNotifier
}

type platformNotifier interface {
	send(title, message string) error
	close() error
}

// New creates the desktop notifier
func New() Notifier {
	logger.Debug("Initializing notification system")
	return &baseNotifier{platform: newLinuxNotifier()}
}

func (n *baseNotifier) NotifyStarted(layouts string) error {
	return n.Notify(appName, fmt.Sprintf("Running (%s). Double-tap right Shift to fix the last word.", layouts))
}

func (n *baseNotifier) NotifyCorrectionFailed(mode gesture.Gesture, err error) error {
	what := "the last word"
	if mode == gesture.FixSelection {
		what = "the selection"
	}
	return n.Notify(appName, fmt.Sprintf("Could not fix %s: %v", what, err))
}

func (n *baseNotifier) Notify(title, message string) error {
	return n.platform.send(title, message)
}

func (n *baseNotifier) Close() error {
	return n.platform.close()
}

// CorrectionObserver reports failed corrections as desktop notifications.
type CorrectionObserver struct {
	Notifier Notifier
}

func (o CorrectionObserver) CorrectionApplied(gesture.Gesture, string, string) {}

func (o CorrectionObserver) CorrectionFailed(mode gesture.Gesture, err error) {
	if nerr := o.Notifier.NotifyCorrectionFailed(mode, err); nerr != nil {
		logger.Debugf("Failed to send notification: %v", nerr)
	}
}
