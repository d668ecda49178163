package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dooshek/skyswitcher/internal/gesture"
	"github.com/dooshek/skyswitcher/internal/logger"
)

const statsFileName = "stats.json"

// ModeStats holds statistics for one correction mode
type ModeStats struct {
	Corrections int       `json:"corrections"`
	Failures    int       `json:"failures"`
	Characters  int       `json:"characters"`
	LastAt      time.Time `json:"last_at,omitempty"`
}

// Stats holds all correction statistics, keyed by mode name
type Stats struct {
	Modes map[string]*ModeStats `json:"modes"`
}

// StatsManager keeps lifetime correction statistics on disk. It is an
// engine observer.
type StatsManager struct {
	stats    Stats
	filePath string
	now      func() time.Time
	mu       sync.Mutex
}

// NewStatsManager creates a manager backed by stats.json in configDir and
// loads existing data
func NewStatsManager(configDir string) *StatsManager {
	sm := &StatsManager{
		filePath: filepath.Join(configDir, statsFileName),
		stats:    Stats{Modes: make(map[string]*ModeStats)},
		now:      time.Now,
	}

	if err := sm.load(); err != nil {
		logger.Debugf("Could not load stats (will start fresh): %v", err)
	}
	return sm
}

// CorrectionApplied counts a successful correction and persists immediately
func (sm *StatsManager) CorrectionApplied(mode gesture.Gesture, before, after string) {
	sm.record(mode, func(m *ModeStats) {
		m.Corrections++
		m.Characters += utf8.RuneCountInString(after)
	})
}

// CorrectionFailed counts a failed correction and persists immediately
func (sm *StatsManager) CorrectionFailed(mode gesture.Gesture, err error) {
	sm.record(mode, func(m *ModeStats) { m.Failures++ })
}

func (sm *StatsManager) record(mode gesture.Gesture, update func(*ModeStats)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.stats.Modes == nil {
		sm.stats.Modes = make(map[string]*ModeStats)
	}
	m, ok := sm.stats.Modes[mode.String()]
	if !ok {
		m = &ModeStats{}
		sm.stats.Modes[mode.String()] = m
	}
	update(m)
	m.LastAt = sm.now()

	if err := sm.save(); err != nil {
		logger.Error("Failed to save stats after correction", err)
	}
}

// GetStats returns a deep copy of current statistics
func (sm *StatsManager) GetStats() Stats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	statsCopy := Stats{Modes: make(map[string]*ModeStats, len(sm.stats.Modes))}
	for mode, m := range sm.stats.Modes {
		c := *m
		statsCopy.Modes[mode] = &c
	}
	return statsCopy
}

// GetStatsJSON returns statistics as a JSON string (for D-Bus)
func (sm *StatsManager) GetStatsJSON() (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := json.Marshal(sm.stats)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats to JSON: %w", err)
	}
	return string(data), nil
}

// Reset clears all statistics and persists empty state
func (sm *StatsManager) Reset() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats = Stats{Modes: make(map[string]*ModeStats)}
	if err := sm.save(); err != nil {
		return fmt.Errorf("failed to save reset stats: %w", err)
	}
	return nil
}

func (sm *StatsManager) load() error {
	data, err := os.ReadFile(sm.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debugf("Stats file not found, starting fresh: %s", sm.filePath)
			return nil
		}
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	if err := json.Unmarshal(data, &sm.stats); err != nil {
		return fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	if sm.stats.Modes == nil {
		sm.stats.Modes = make(map[string]*ModeStats)
	}

	logger.Debugf("Loaded stats from %s", sm.filePath)
	return nil
}

// save writes to a temp file and renames it over the old one
func (sm *StatsManager) save() error {
	if err := os.MkdirAll(filepath.Dir(sm.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	data, err := json.MarshalIndent(sm.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tempFile := sm.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp stats file: %w", err)
	}
	if err := os.Rename(tempFile, sm.filePath); err != nil {
		return fmt.Errorf("failed to rename temp stats file: %w", err)
	}
	return nil
}
