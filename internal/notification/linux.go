package notification

import (
	"os/exec"
	"sync"

	"github.com/dooshek/skyswitcher/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = "/org/freedesktop/Notifications"
	notifyMethod         = notificationsService + ".Notify"

	expireTimeoutMs = int32(4000)
)

type linuxNotifier struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func newLinuxNotifier() platformNotifier {
	n := &linuxNotifier{}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Debugf("No session bus for notifications, using notify-send: %v", err)
		return n
	}
	n.conn = conn
	return n
}

func (n *linuxNotifier) send(title, message string) error {
	logger.Debugf("Sending notification: %s - %s", title, message)

	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()

	if conn != nil {
		obj := conn.Object(notificationsService, dbus.ObjectPath(notificationsPath))
		call := obj.Call(notifyMethod, dbus.FlagNoReplyExpected,
			appName, uint32(0), "input-keyboard", title, message,
			[]string{}, map[string]dbus.Variant{}, expireTimeoutMs)
		if call.Err == nil {
			return nil
		}
		logger.Debugf("D-Bus notification failed, using notify-send: %v", call.Err)
	}

	go func() {
		if err := exec.Command("notify-send", "-a", appName, title, message).Run(); err != nil {
			logger.Debugf("Failed to send notification: %v", err)
		}
	}()
	return nil
}

func (n *linuxNotifier) close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
