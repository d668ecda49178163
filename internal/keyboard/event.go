package keyboard

import (
	"fmt"
	"syscall"
	"time"
)

// Action is the kernel EV_KEY value: release, press or auto-repeat.
type Action int32

const (
	Up     Action = 0
	Down   Action = 1
	Repeat Action = 2
)

func (a Action) String() string {
	switch a {
	case Up:
		return "up"
	case Down:
		return "down"
	case Repeat:
		return "repeat"
	default:
		return fmt.Sprintf("action(%d)", int32(a))
	}
}

// KeyEvent is a single key transition read from a physical keyboard.
type KeyEvent struct {
	Code   KeyCode
	Action Action
	Time   time.Time
	Device string
}

func (e KeyEvent) String() string {
	return fmt.Sprintf("%s %s", e.Code, e.Action)
}

// Stroke is a typed key in layout-agnostic form: which key went down and
// which shift level was active. Decoding it to a character is up to a layout.
type Stroke struct {
	Code  KeyCode
	Shift bool
	Caps  bool
}

func timevalToTime(tv syscall.Timeval) time.Time {
	return time.Unix(int64(tv.Sec), int64(tv.Usec)*int64(time.Microsecond))
}
