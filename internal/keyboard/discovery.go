package keyboard

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/MarinX/keylogger"
	"github.com/dooshek/skyswitcher/internal/logger"
	evdev "github.com/holoplot/go-evdev"
)

// VirtualDeviceName is the name of the uinput keyboard used for injection.
// Discovery skips it so corrections are never read back as user input.
const VirtualDeviceName = "skyswitcher-virtual"

// DeviceInfo describes an input device for --list.
type DeviceInfo struct {
	Path      string
	Name      string
	IsVirtual bool
	Keyboard  bool
}

var ignoredNameKeywords = []string{
	"mouse", "webcam", "audio", "video", "consumer", "control", "headset",
	"receiver", "solaar", "hotkeys", "button", "switch", "hda", "dock",
}

var virtualNameKeywords = []string{"virtual", "uinput", "ydotool", VirtualDeviceName}

// Keys a device must expose to count as a real keyboard.
var requiredKeys = []KeyCode{KeySpace, KeyEnter, KeyA, KeyZ}

// ListDevices returns every readable input device, sorted by path.
func ListDevices() ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	devices := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		dev, err := evdev.OpenWithFlags(p.Path, os.O_RDONLY)
		if err != nil {
			logger.Debugf("Cannot open %s: %v", p.Path, err)
			continue
		}

		name := p.Name
		if actual, err := dev.Name(); err == nil && actual != "" {
			name = actual
		}
		virtual := isVirtual(dev, name)
		devices = append(devices, DeviceInfo{
			Path:      p.Path,
			Name:      name,
			IsVirtual: virtual,
			Keyboard:  !virtual && LooksLikeKeyboard(name, capableKeys(dev)),
		})
		_ = dev.Close()
	}
	return devices, nil
}

// DiscoverKeyboards returns the paths of every physical keyboard. When the
// evdev scan finds nothing it falls back to keylogger's own heuristic.
func DiscoverKeyboards() ([]string, error) {
	devices, err := ListDevices()
	if err != nil {
		logger.Warnf("Device scan failed, falling back: %v", err)
	}

	var paths []string
	for _, d := range devices {
		if d.Keyboard {
			logger.Debugf("Found keyboard %s (%s)", d.Path, d.Name)
			paths = append(paths, d.Path)
		}
	}
	if len(paths) > 0 {
		return paths, nil
	}

	paths = keylogger.FindAllKeyboardDevices()
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no keyboard found; use --list and --device, or %s",
			ErrDeviceUnavailable, permissionHint)
	}
	logger.Debugf("Fallback discovery found %d keyboard(s)", len(paths))
	return paths, nil
}

// LooksLikeKeyboard applies the name filter and the required-key check.
func LooksLikeKeyboard(name string, keys map[KeyCode]struct{}) bool {
	lower := strings.ToLower(name)
	for _, keyword := range ignoredNameKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}
	for _, keyword := range virtualNameKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}
	for _, code := range requiredKeys {
		if _, ok := keys[code]; !ok {
			return false
		}
	}
	return true
}

func capableKeys(dev *evdev.InputDevice) map[KeyCode]struct{} {
	codes := dev.CapableEvents(evdev.EV_KEY)
	keys := make(map[KeyCode]struct{}, len(codes))
	for _, c := range codes {
		keys[KeyCode(c)] = struct{}{}
	}
	return keys
}

func isVirtual(dev *evdev.InputDevice, name string) bool {
	id, err := dev.InputID()
	if err == nil && id.BusType == uint16(evdev.BUS_VIRTUAL) {
		return true
	}
	lower := strings.ToLower(name)
	for _, keyword := range virtualNameKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
