package types

import "strings"

// Defaults used when a field is missing from the config file.
const (
	DefaultTriggerKey        = "KEY_RIGHTSHIFT"
	DefaultSelectionModifier = "KEY_RIGHTCTRL"
	DefaultDoubleTapWindow   = "500ms"
	DefaultPrimaryLayout     = "us"
	DefaultSecondaryLayout   = "ua"
	DefaultInitialLayout     = "primary"
	DefaultTyper             = "auto"
	DefaultBufferLimit       = 50
)

// DefaultLayoutSwitch is the chord that toggles between the two layouts.
var DefaultLayoutSwitch = []string{"KEY_LEFTMETA", "KEY_SPACE"}

// CustomLayout is a user-defined layout. Both rows follow the physical key
// order of the number row, the three letter rows and their punctuation keys.
type CustomLayout struct {
	Normal  string `yaml:"normal" toml:"normal"`
	Shifted string `yaml:"shifted" toml:"shifted"`
}

type LayoutsConfig struct {
	Primary   string                  `yaml:"primary" toml:"primary"`
	Secondary string                  `yaml:"secondary" toml:"secondary"`
	Initial   string                  `yaml:"initial" toml:"initial"` // "primary" or "secondary"
	Custom    map[string]CustomLayout `yaml:"custom" toml:"custom"`
}

// ClipboardConfig tunes the selection round-trip. Durations use Go syntax,
// e.g. "500ms".
type ClipboardConfig struct {
	Timeout      string `yaml:"timeout" toml:"timeout"`
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"`
	Settle       string `yaml:"settle" toml:"settle"`
}

type InjectorConfig struct {
	KeyDelay   string `yaml:"key_delay" toml:"key_delay"`
	ChordDelay string `yaml:"chord_delay" toml:"chord_delay"`
	Settle     string `yaml:"settle" toml:"settle"` // pause around each pasted character
	Typer      string `yaml:"typer" toml:"typer"`   // "auto", "clipboard" or "x11"
}

type BufferConfig struct {
	Limit         int  `yaml:"limit" toml:"limit"`
	BackspacePops bool `yaml:"backspace_pops" toml:"backspace_pops"`
}

type Config struct {
	TriggerKey        string          `yaml:"trigger_key" toml:"trigger_key"`
	SelectionModifier string          `yaml:"selection_modifier" toml:"selection_modifier"`
	DoubleTapWindow   string          `yaml:"double_tap_window" toml:"double_tap_window"`
	LayoutSwitch      []string        `yaml:"layout_switch" toml:"layout_switch"`
	Layouts           LayoutsConfig   `yaml:"layouts" toml:"layouts"`
	Clipboard         ClipboardConfig `yaml:"clipboard" toml:"clipboard"`
	Injector          InjectorConfig  `yaml:"injector" toml:"injector"`
	Buffer            BufferConfig    `yaml:"buffer" toml:"buffer"`
	Device            string          `yaml:"device" toml:"device"`
	Notifications     *bool           `yaml:"notifications" toml:"notifications"`
	DBus              *bool           `yaml:"dbus" toml:"dbus"`
	ExcludedApps      []string        `yaml:"excluded_apps" toml:"excluded_apps"` // X11 window classes
}

func (c *Config) GetTriggerKey() string {
	return orDefault(c.TriggerKey, DefaultTriggerKey)
}

func (c *Config) GetSelectionModifier() string {
	return orDefault(c.SelectionModifier, DefaultSelectionModifier)
}

func (c *Config) GetDoubleTapWindow() string {
	return orDefault(c.DoubleTapWindow, DefaultDoubleTapWindow)
}

func (c *Config) GetLayoutSwitch() []string {
	if len(c.LayoutSwitch) == 0 {
		return append([]string(nil), DefaultLayoutSwitch...)
	}
	return c.LayoutSwitch
}

// GetLayoutsConfig returns layout configuration with defaults
func (c *Config) GetLayoutsConfig() LayoutsConfig {
	config := c.Layouts
	config.Primary = orDefault(config.Primary, DefaultPrimaryLayout)
	config.Secondary = orDefault(config.Secondary, DefaultSecondaryLayout)
	config.Initial = orDefault(config.Initial, DefaultInitialLayout)
	return config
}

// GetClipboardConfig returns clipboard configuration with defaults
func (c *Config) GetClipboardConfig() ClipboardConfig {
	config := c.Clipboard
	config.Timeout = orDefault(config.Timeout, "500ms")
	config.PollInterval = orDefault(config.PollInterval, "20ms")
	config.Settle = orDefault(config.Settle, "50ms")
	return config
}

// GetInjectorConfig returns injector configuration with defaults
func (c *Config) GetInjectorConfig() InjectorConfig {
	config := c.Injector
	config.KeyDelay = orDefault(config.KeyDelay, "8ms")
	config.ChordDelay = orDefault(config.ChordDelay, "12ms")
	config.Settle = orDefault(config.Settle, "40ms")
	config.Typer = orDefault(config.Typer, DefaultTyper)
	return config
}

func (c *Config) GetBufferConfig() BufferConfig {
	config := c.Buffer
	if config.Limit == 0 {
		config.Limit = DefaultBufferLimit
	}
	return config
}

// NotificationsEnabled defaults to true.
func (c *Config) NotificationsEnabled() bool {
	return c.Notifications == nil || *c.Notifications
}

// DBusEnabled defaults to true.
func (c *Config) DBusEnabled() bool {
	return c.DBus == nil || *c.DBus
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
