package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dooshek/skyswitcher/internal/buffer"
	"github.com/dooshek/skyswitcher/internal/corrector"
	"github.com/dooshek/skyswitcher/internal/fileops"
	"github.com/dooshek/skyswitcher/internal/gesture"
	"github.com/dooshek/skyswitcher/internal/injector"
	"github.com/dooshek/skyswitcher/internal/keyboard"
	"github.com/dooshek/skyswitcher/internal/layout"
	"github.com/dooshek/skyswitcher/internal/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Settings is a validated configuration, ready to hand to the components.
type Settings struct {
	Engine        corrector.Options
	Injector      injector.Options
	Typer         string
	TyperSettle   time.Duration
	Device        string
	Notifications bool
	DBus          bool
}

// DefaultPath returns the config file in the user's config directory.
func DefaultPath() (string, error) {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return "", fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return fileOps.ConfigPath(), nil
}

// LoadConfig reads path as TOML or YAML depending on its extension. A missing
// file yields an empty config, which resolves to the defaults.
func LoadConfig(path string) (*types.Config, error) {
	fileOps := fileops.NewFileOps(filepath.Dir(path))
	data, err := fileOps.LoadConfig(path)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) {
			return &types.Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config types.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("%w: decode TOML %s: %v", ErrInvalidConfig, path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: decode YAML %s: %v", ErrInvalidConfig, path, err)
		}
	}
	return &config, nil
}

// Load reads and resolves path in one step.
func Load(path string) (*Settings, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Resolve(cfg)
}

// Resolve applies defaults and validates cfg.
func Resolve(cfg *types.Config) (*Settings, error) {
	var errs []error
	invalid := func(format string, v ...interface{}) {
		errs = append(errs, fmt.Errorf(format, v...))
	}
	duration := func(field, value string) time.Duration {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			invalid("%s: %q is not a duration (use e.g. 500ms)", field, value)
			return 0
		}
		if d < 0 {
			invalid("%s: must not be negative", field)
		}
		return d
	}

	opts := corrector.DefaultOptions()

	trigger, err := keyboard.ParseKeyCode(cfg.GetTriggerKey())
	if err != nil {
		invalid("trigger_key: %v", err)
	}
	secondary, err := keyboard.ParseKeyCode(cfg.GetSelectionModifier())
	if err != nil {
		invalid("selection_modifier: %v", err)
	}
	if err == nil && trigger == secondary {
		invalid("selection_modifier: must differ from trigger_key")
	}
	window := duration("double_tap_window", cfg.GetDoubleTapWindow())
	if window == 0 {
		invalid("double_tap_window: must be positive")
	}
	opts.Gesture = gesture.Config{Trigger: trigger, Secondary: secondary, Window: window}

	chord, err := keyboard.ParseKeyCodes(cfg.GetLayoutSwitch())
	if err != nil {
		invalid("layout_switch: %v", err)
	}
	opts.LayoutSwitch = chord

	layouts := cfg.GetLayoutsConfig()
	primary, err := resolveLayout(layouts.Primary, layouts.Custom)
	if err != nil {
		invalid("layouts.primary: %v", err)
	}
	secondaryLayout, err := resolveLayout(layouts.Secondary, layouts.Custom)
	if err != nil {
		invalid("layouts.secondary: %v", err)
	}
	if primary != nil && secondaryLayout != nil {
		if primary.Name() == secondaryLayout.Name() {
			invalid("layouts: primary and secondary are both %q", primary.Name())
		}
		opts.Layouts = layout.NewPair(primary, secondaryLayout)
	}
	opts.Initial, err = layout.ParseSide(layouts.Initial)
	if err != nil {
		invalid("layouts.initial: %v", err)
	}

	clip := cfg.GetClipboardConfig()
	opts.ClipboardTimeout = duration("clipboard.timeout", clip.Timeout)
	opts.ClipboardPoll = duration("clipboard.poll_interval", clip.PollInterval)
	opts.PasteSettle = duration("clipboard.settle", clip.Settle)
	if opts.ClipboardPoll == 0 {
		invalid("clipboard.poll_interval: must be positive")
	}

	buf := cfg.GetBufferConfig()
	if buf.Limit < 0 {
		invalid("buffer.limit: must be positive")
	}
	opts.Buffer = buffer.Config{Limit: buf.Limit, BackspacePops: buf.BackspacePops}

	for _, app := range cfg.ExcludedApps {
		if app = strings.TrimSpace(app); app != "" {
			opts.ExcludedApps = append(opts.ExcludedApps, app)
		}
	}

	inj := cfg.GetInjectorConfig()
	typer, err := injector.ResolveTyper(inj.Typer)
	if err != nil {
		invalid("injector.typer: %v", err)
	}

	settings := &Settings{
		Engine: opts,
		Injector: injector.Options{
			KeyDelay:   duration("injector.key_delay", inj.KeyDelay),
			ChordDelay: duration("injector.chord_delay", inj.ChordDelay),
		},
		Typer:         typer,
		TyperSettle:   duration("injector.settle", inj.Settle),
		Device:        strings.TrimSpace(cfg.Device),
		Notifications: cfg.NotificationsEnabled(),
		DBus:          cfg.DBusEnabled(),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return settings, nil
}

func resolveLayout(name string, custom map[string]types.CustomLayout) (*layout.Layout, error) {
	if c, ok := custom[name]; ok {
		return layout.FromRows(name, c.Normal, c.Shifted)
	}
	return layout.Builtin(name)
}
