package injector

import (
	"fmt"
	"time"

	"github.com/dooshek/skyswitcher/internal/keyboard"
	"github.com/dooshek/skyswitcher/internal/logger"
	evdev "github.com/holoplot/go-evdev"
)

// uinputSettle gives the compositor time to pick up a new device before
// the first event is written to it.
const uinputSettle = 300 * time.Millisecond

type uinputDevice struct {
	dev *evdev.InputDevice
}

// OpenUinput creates the virtual keyboard used for corrections. keys are
// advertised in addition to the ones keyboard.InjectableKeys lists.
func OpenUinput(keys ...keyboard.KeyCode) (Device, error) {
	codes := keyboard.InjectableKeys(keys...)
	caps := make([]evdev.EvCode, 0, len(codes))
	for _, code := range codes {
		caps = append(caps, evdev.EvCode(code))
	}

	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}
	dev, err := evdev.CreateDevice(keyboard.VirtualDeviceName, id, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: caps,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create virtual keyboard: %v (is /dev/uinput writable?)", keyboard.ErrDeviceUnavailable, err)
	}

	logger.Debugf("Created virtual keyboard %s with %d keys", keyboard.VirtualDeviceName, len(caps))
	time.Sleep(uinputSettle)
	return &uinputDevice{dev: dev}, nil
}

func (u *uinputDevice) WriteEvents(events ...Event) error {
	for _, event := range events {
		ev := evdev.InputEvent{
			Type:  evdev.EvType(event.Type),
			Code:  evdev.EvCode(event.Code),
			Value: event.Value,
		}
		if err := u.dev.WriteOne(&ev); err != nil {
			return err
		}
	}
	return nil
}

func (u *uinputDevice) Close() error {
	if u.dev == nil {
		return nil
	}
	err := u.dev.Close()
	u.dev = nil
	return err
}
