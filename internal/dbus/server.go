package dbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dooshek/skyswitcher/internal/corrector"
	"github.com/dooshek/skyswitcher/internal/gesture"
	"github.com/dooshek/skyswitcher/internal/logger"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	dbusServiceName = "com.dooshek.skyswitcher"
	dbusObjectPath  = "/com/dooshek/skyswitcher/Switcher"
	dbusInterface   = "com.dooshek.skyswitcher.Switcher"
)

// ErrNameTaken is returned when another skyswitcher owns the bus name.
var ErrNameTaken = errors.New("D-Bus name already taken")

// Controller is the part of the engine exposed over D-Bus.
type Controller interface {
	SetEnabled(enabled bool)
	Toggle() bool
	Stats() corrector.Stats
	SetLayout(name string) error
}

// StatsSource provides lifetime statistics as JSON.
type StatsSource interface {
	GetStatsJSON() (string, error)
	Reset() error
}

// Server exposes status and on/off control on the session bus and emits a
// signal for every correction.
type Server struct {
	conn    *dbus.Conn
	control Controller
	history StatsSource
	mu      sync.Mutex
}

// NewServer creates a server for control. history may be nil. Call Start to
// connect.
func NewServer(control Controller, history StatsSource) *Server {
	return &Server{control: control, history: history}
}

// Start starts the D-Bus server
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	if err := s.register(conn); err != nil {
		_ = conn.Close()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	logger.Infof("D-Bus service started: %s", dbusServiceName)
	return nil
}

func (s *Server) register(conn *dbus.Conn) error {
	reply, err := conn.RequestName(dbusServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return ErrNameTaken
	}

	if err := conn.Export(s, dbusObjectPath, dbusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: dbusObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: dbusInterface,
				Methods: []introspect.Method{
					{
						Name: "GetStatus",
						Args: []introspect.Arg{
							{Name: "enabled", Type: "b", Direction: "out"},
							{Name: "corrections", Type: "u", Direction: "out"},
							{Name: "failures", Type: "u", Direction: "out"},
							{Name: "layout", Type: "s", Direction: "out"},
						},
					},
					{
						Name: "GetStatistics",
						Args: []introspect.Arg{
							{Name: "json", Type: "s", Direction: "out"},
						},
					},
					{
						Name: "ResetStatistics",
					},
					{
						Name: "SetLayout",
						Args: []introspect.Arg{
							{Name: "layout", Type: "s", Direction: "in"},
						},
					},
					{
						Name: "SetEnabled",
						Args: []introspect.Arg{
							{Name: "enabled", Type: "b", Direction: "in"},
						},
					},
					{
						Name: "Toggle",
						Args: []introspect.Arg{
							{Name: "enabled", Type: "b", Direction: "out"},
						},
					},
				},
				Signals: []introspect.Signal{
					{
						Name: "CorrectionApplied",
						Args: []introspect.Arg{
							{Name: "mode", Type: "s"},
							{Name: "before", Type: "s"},
							{Name: "after", Type: "s"},
						},
					},
					{
						Name: "CorrectionFailed",
						Args: []introspect.Arg{
							{Name: "mode", Type: "s"},
							{Name: "error", Type: "s"},
						},
					},
				},
			},
		},
	}

	if err := conn.Export(introspect.NewIntrospectable(node), dbusObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}
	return nil
}

// Stop stops the D-Bus server
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	_ = s.conn.Close()
	s.conn = nil
	logger.Infof("D-Bus service stopped")
}

// GetStatus returns the enabled flag, counters and assumed layout (D-Bus method)
func (s *Server) GetStatus() (bool, uint32, uint32, string, *dbus.Error) {
	st := s.control.Stats()
	return st.Enabled, clampUint32(st.Corrections), clampUint32(st.Failures), st.Layout, nil
}

// GetStatistics returns lifetime statistics as JSON (D-Bus method)
func (s *Server) GetStatistics() (string, *dbus.Error) {
	if s.history == nil {
		return "{}", nil
	}
	out, err := s.history.GetStatsJSON()
	if err != nil {
		logger.Error("D-Bus: Failed to get statistics", err)
		return "", dbus.MakeFailedError(err)
	}
	return out, nil
}

// ResetStatistics clears lifetime statistics (D-Bus method)
func (s *Server) ResetStatistics() *dbus.Error {
	logger.Debugf("D-Bus: ResetStatistics called")
	if s.history == nil {
		return nil
	}
	if err := s.history.Reset(); err != nil {
		logger.Error("D-Bus: Failed to reset statistics", err)
		return dbus.MakeFailedError(err)
	}
	return nil
}

// SetLayout tells the engine which layout the desktop is on, by layout name
// or by "primary"/"secondary" (D-Bus method)
func (s *Server) SetLayout(name string) *dbus.Error {
	logger.Debugf("D-Bus: SetLayout(%s) called", name)
	if err := s.control.SetLayout(name); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// SetEnabled turns corrections on or off (D-Bus method)
func (s *Server) SetEnabled(enabled bool) *dbus.Error {
	logger.Debugf("D-Bus: SetEnabled(%t) called", enabled)
	s.control.SetEnabled(enabled)
	return nil
}

// Toggle flips corrections on or off (D-Bus method)
func (s *Server) Toggle() (bool, *dbus.Error) {
	logger.Debugf("D-Bus: Toggle called")
	return s.control.Toggle(), nil
}

// CorrectionApplied emits the CorrectionApplied signal.
func (s *Server) CorrectionApplied(mode gesture.Gesture, before, after string) {
	s.emitSignal("CorrectionApplied", mode.String(), before, after)
}

// CorrectionFailed emits the CorrectionFailed signal.
func (s *Server) CorrectionFailed(mode gesture.Gesture, err error) {
	s.emitSignal("CorrectionFailed", mode.String(), err.Error())
}

// emitSignal emits a D-Bus signal
func (s *Server) emitSignal(name string, args ...interface{}) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		logger.Debugf("D-Bus: Cannot emit signal %s - no connection", name)
		return
	}

	signalPath := dbus.ObjectPath(dbusObjectPath)
	signalName := dbusInterface + "." + name

	if err := conn.Emit(signalPath, signalName, args...); err != nil {
		logger.Errorf("D-Bus: Failed to emit signal %s", err, name)
	} else {
		logger.Debugf("D-Bus: Emitted signal: %s", name)
	}
}

func clampUint32(v uint64) uint32 {
	if v > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(v)
}
