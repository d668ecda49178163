package dbus

import (
	"errors"
	"testing"

	"github.com/dooshek/skyswitcher/internal/corrector"
	"github.com/dooshek/skyswitcher/internal/gesture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	enabled bool
	stats   corrector.Stats
	layout  string
}

func (f *fakeController) SetLayout(name string) error {
	if name != "us" && name != "ua" {
		return corrector.ErrUnknownLayout
	}
	f.layout = name
	return nil
}

func (f *fakeController) SetEnabled(enabled bool) { f.enabled = enabled }

func (f *fakeController) Toggle() bool {
	f.enabled = !f.enabled
	return f.enabled
}

func (f *fakeController) Stats() corrector.Stats {
	s := f.stats
	s.Enabled = f.enabled
	return s
}

func TestMethodsDelegateToController(t *testing.T) {
	ctl := &fakeController{enabled: true, stats: corrector.Stats{Corrections: 3, Failures: 1, Layout: "ua"}}
	s := NewServer(ctl, nil)

	enabled, corrections, failures, layout, derr := s.GetStatus()
	assert.Nil(t, derr)
	assert.True(t, enabled)
	assert.Equal(t, uint32(3), corrections)
	assert.Equal(t, uint32(1), failures)
	assert.Equal(t, "ua", layout)

	assert.Nil(t, s.SetEnabled(false))
	assert.False(t, ctl.enabled)

	on, derr := s.Toggle()
	assert.Nil(t, derr)
	assert.True(t, on)
}

func TestSignalsWithoutConnectionAreDropped(t *testing.T) {
	s := NewServer(&fakeController{}, nil)
	s.CorrectionApplied(gesture.FixLastWord, "ghbdsn", "привіт")
	s.CorrectionFailed(gesture.FixSelection, errors.New("boom"))
	s.Stop()
}

type fakeHistory struct {
	json   string
	err    error
	resets int
}

func (f *fakeHistory) GetStatsJSON() (string, error) { return f.json, f.err }

func (f *fakeHistory) Reset() error {
	f.resets++
	return f.err
}

func TestGetStatistics(t *testing.T) {
	s := NewServer(&fakeController{}, &fakeHistory{json: `{"modes":{}}`})
	out, derr := s.GetStatistics()
	assert.Nil(t, derr)
	assert.Equal(t, `{"modes":{}}`, out)

	s = NewServer(&fakeController{}, &fakeHistory{err: errors.New("disk full")})
	_, derr = s.GetStatistics()
	assert.NotNil(t, derr)

	s = NewServer(&fakeController{}, nil)
	out, derr = s.GetStatistics()
	assert.Nil(t, derr)
	assert.Equal(t, "{}", out)
}

func TestResetStatistics(t *testing.T) {
	history := &fakeHistory{}
	s := NewServer(&fakeController{}, history)
	assert.Nil(t, s.ResetStatistics())
	assert.Equal(t, 1, history.resets)

	history.err = errors.New("read-only file system")
	assert.NotNil(t, s.ResetStatistics())

	assert.Nil(t, NewServer(&fakeController{}, nil).ResetStatistics())
}

func TestSetLayout(t *testing.T) {
	ctl := &fakeController{}
	s := NewServer(ctl, nil)

	assert.Nil(t, s.SetLayout("ua"))
	assert.Equal(t, "ua", ctl.layout)

	derr := s.SetLayout("de")
	require.NotNil(t, derr)
	assert.Contains(t, derr.Error(), "unknown layout")
	assert.Equal(t, "ua", ctl.layout)
}

func TestClampUint32(t *testing.T) {
	assert.Equal(t, uint32(7), clampUint32(7))
	assert.Equal(t, uint32(0xFFFFFFFF), clampUint32(1<<40))
}
