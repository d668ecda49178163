package keyboard

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MarinX/keylogger"
	"github.com/dooshek/skyswitcher/internal/logger"
	"golang.org/x/sys/unix"
)

// ErrDeviceUnavailable is returned when no input device can be opened. It
// points at a setup problem (missing device, missing group membership) and
// is not retried.
var ErrDeviceUnavailable = errors.New("input device unavailable")

const permissionHint = "add yourself to the input group (sudo usermod -aG input $USER), " +
	"log out and back in, then run skyswitcher again"

// Source reads key events from one or more keyboards and merges them into a
// single stream in arrival order.
type Source struct {
	keyboards []*keylogger.KeyLogger
	paths     []string
	events    chan KeyEvent
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open opens devicePath, or every auto-discovered keyboard when devicePath
// is empty.
func Open(devicePath string) (*Source, error) {
	paths := []string{devicePath}
	if devicePath == "" {
		found, err := DiscoverKeyboards()
		if err != nil {
			return nil, err
		}
		paths = found
	}

	s := newSource()

	var lastErr error
	for _, path := range paths {
		kbd, err := openKeyboard(path)
		if err != nil {
			if devicePath != "" {
				return nil, err
			}
			logger.Warnf("Skipping %s: %v", path, err)
			lastErr = err
			continue
		}
		s.keyboards = append(s.keyboards, kbd)
		s.paths = append(s.paths, path)
	}

	if len(s.keyboards) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: no keyboard could be opened", ErrDeviceUnavailable)
	}

	inputs := make([]chan keylogger.InputEvent, len(s.keyboards))
	for i, kbd := range s.keyboards {
		inputs[i] = kbd.Read()
	}
	s.start(inputs)

	logger.Infof("Listening on %s", strings.Join(s.paths, ", "))
	return s, nil
}

func newSource() *Source {
	return &Source{
		events: make(chan KeyEvent, 64),
		done:   make(chan struct{}),
	}
}

// start forwards inputs[i], read from s.paths[i], into the merged stream.
func (s *Source) start(inputs []chan keylogger.InputEvent) {
	for i, in := range inputs {
		s.wg.Add(1)
		go s.forward(s.paths[i], in)
	}
	go func() {
		s.wg.Wait()
		close(s.events)
	}()
}

// Events returns the merged stream. It is closed once every device stream
// has ended, either because of Close or because the devices went away.
func (s *Source) Events() <-chan KeyEvent {
	return s.events
}

// Paths returns the device paths being read.
func (s *Source) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Close releases every device handle. It is safe to call more than once.
func (s *Source) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		close(s.done)
		for i, kbd := range s.keyboards {
			if err := kbd.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.paths[i], err))
			}
		}
		logger.Debugf("Closed %d input device(s)", len(s.keyboards))
	})
	return errors.Join(errs...)
}

func (s *Source) forward(path string, in chan keylogger.InputEvent) {
	defer s.wg.Done()

	for e := range in {
		if e.Type != keylogger.EvKey {
			continue
		}
		ev := KeyEvent{
			Code:   KeyCode(e.Code),
			Action: Action(e.Value),
			Time:   timevalToTime(e.Time),
			Device: path,
		}
		if e.Time.Sec == 0 && e.Time.Usec == 0 {
			ev.Time = time.Now()
		}

		// Keep draining after Close so the keylogger reader is never left
		// blocked on its unbuffered channel.
		select {
		case <-s.done:
			continue
		default:
		}
		select {
		case s.events <- ev:
		case <-s.done:
		}
	}
	logger.Debugf("Input stream from %s ended", path)
}

func openKeyboard(path string) (*keylogger.KeyLogger, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist; use --list to see available devices", ErrDeviceUnavailable, path)
		}
		if isPermissionError(err) {
			return nil, fmt.Errorf("%w: cannot access %s: %s", ErrDeviceUnavailable, path, permissionHint)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}

	kbd, err := keylogger.New(path)
	if err != nil {
		if isPermissionError(err) {
			return nil, fmt.Errorf("%w: cannot open %s: %s", ErrDeviceUnavailable, path, permissionHint)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrDeviceUnavailable, path, err)
	}
	return kbd, nil
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) ||
		strings.Contains(strings.ToLower(err.Error()), "permission denied")
}
