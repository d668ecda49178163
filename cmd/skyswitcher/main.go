package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dooshek/skyswitcher/internal/clipboard"
	"github.com/dooshek/skyswitcher/internal/config"
	"github.com/dooshek/skyswitcher/internal/corrector"
	"github.com/dooshek/skyswitcher/internal/dbus"
	"github.com/dooshek/skyswitcher/internal/fileops"
	"github.com/dooshek/skyswitcher/internal/injector"
	"github.com/dooshek/skyswitcher/internal/injector/x11"
	"github.com/dooshek/skyswitcher/internal/keyboard"
	"github.com/dooshek/skyswitcher/internal/layout"
	"github.com/dooshek/skyswitcher/internal/logger"
	"github.com/dooshek/skyswitcher/internal/notification"
	"github.com/dooshek/skyswitcher/internal/stats"
	"github.com/dooshek/skyswitcher/internal/windowdetect"
	"github.com/fatih/color"
)

const (
	exitOK    = 0
	exitSetup = 1
)

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	listDevices := flag.Bool("list", false, "List input devices and exit")
	devicePath := flag.String("device", "", "Read from this input device instead of auto-detecting keyboards")
	verbose := flag.Bool("verbose", false, "Shortcut for --log-level debug")
	logLevel := flag.String("log-level", "info", "Set log level (debug|info|warn|error)")
	logFilename := flag.String("log-filename", "", "Log to file instead of stdout")
	configPath := flag.String("config", "", "Config file (default ~/.config/skyswitcher/skyswitcher.yaml)")
	flag.Parse()

	// Set up logging level and output
	if *verbose {
		*logLevel = "debug"
	}
	logger.SetLevel(*logLevel)
	if *logFilename != "" {
		if err := logger.SetOutputFile(*logFilename); err != nil {
			fmt.Printf("Error setting log file: %v\n", err)
			return exitSetup
		}
		defer logger.CloseLogFile()
	}

	if *listDevices {
		if err := printDevices(); err != nil {
			logger.Error("Failed to list input devices", err)
			return exitSetup
		}
		return exitOK
	}

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			logger.Error("Failed to locate config directory", err)
			return exitSetup
		}
	}
	settings, err := config.Load(path)
	if err != nil {
		logger.Error("Error loading config", err)
		return exitSetup
	}
	if *devicePath != "" {
		settings.Device = *devicePath
	}

	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		logger.Error("Failed to initialize file operations", err)
		return exitSetup
	}
	if err := fileOps.EnsureDirectories(); err != nil {
		logger.Error("Failed to create necessary directories", err)
		return exitSetup
	}
	if err := fileOps.CheckPID(); err != nil {
		logger.Error("Another instance of SkySwitcher is already running", err)
		return exitSetup
	}
	if err := fileOps.SavePID(); err != nil {
		logger.Error("Failed to save PID file", err)
		return exitSetup
	}
	defer fileOps.HandleExit()

	source, err := keyboard.Open(settings.Device)
	if err != nil {
		logger.Error("Cannot read the keyboard", err)
		return exitSetup
	}
	defer source.Close()

	dev, err := injector.OpenUinput(settings.Engine.LayoutSwitch...)
	if err != nil {
		logger.Error("Cannot create the virtual keyboard", err)
		return exitSetup
	}
	inj := injector.New(dev, settings.Injector)
	defer inj.Close()

	var clip corrector.Clipboard
	sysClip, err := clipboard.New()
	if err != nil {
		logger.Warnf("Clipboard unavailable, selection fixes are disabled: %v", err)
	} else {
		clip = sysClip
	}

	typer, err := selectTyper(settings.Typer, inj, sysClip, settings.TyperSettle)
	if err != nil {
		logger.Error("No way to type corrected characters", err)
		return exitSetup
	}
	inj.SetTyper(typer)

	engine, err := corrector.New(inj, clip, settings.Engine)
	if err != nil {
		logger.Error("Failed to start the correction engine", err)
		return exitSetup
	}
	if detector, err := windowdetect.New(); err != nil {
		if len(settings.Engine.ExcludedApps) > 0 {
			logger.Warnf("excluded_apps has no effect: %v", err)
		}
	} else {
		engine.SetWindowDetector(detector)
	}

	notifier := notification.NewSilent()
	if settings.Notifications {
		notifier = notification.New()
	}
	defer notifier.Close()
	engine.AddObserver(notification.CorrectionObserver{Notifier: notifier})

	history := stats.NewStatsManager(fileOps.GetConfigDir())
	engine.AddObserver(history)

	if settings.DBus {
		server := dbus.NewServer(engine, history)
		if err := server.Start(); err != nil {
			logger.Warnf("D-Bus control unavailable: %v", err)
		} else {
			engine.AddObserver(server)
			defer server.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates := make(chan corrector.Options, 1)
	if watcher, err := config.Watch(ctx, path); err != nil {
		logger.Warnf("Config changes will not be picked up: %v", err)
	} else {
		defer watcher.Close()
		go forwardReloads(ctx, watcher, inj, sysClip, updates)
	}

	pair := settings.Engine.Layouts
	layouts := pair.Layout(layout.Primary).Name() + "/" + pair.Layout(layout.Secondary).Name()
	printBanner(settings, layouts, source.Paths())
	if err := notifier.NotifyStarted(layouts); err != nil {
		logger.Warn("Could not send notification")
	}

	err = engine.Run(ctx, source.Events(), updates)
	if errors.Is(err, corrector.ErrInputClosed) {
		logger.Error("Keyboard disconnected", err)
		return exitSetup
	}
	logger.Info("Shutting down")
	return exitOK
}

// forwardReloads applies injector settings directly and hands engine options
// to the event loop.
func forwardReloads(ctx context.Context, w *config.Watcher, inj *injector.Injector, clip *clipboard.System, out chan<- corrector.Options) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-w.Updates():
			inj.SetOptions(s.Injector)
			if typer, err := selectTyper(s.Typer, inj, clip, s.TyperSettle); err != nil {
				logger.Warnf("Keeping previous typer: %v", err)
			} else {
				inj.SetTyper(typer)
			}

			select {
			case <-out:
			default:
			}
			out <- s.Engine
		}
	}
}

func selectTyper(name string, inj *injector.Injector, clip *clipboard.System, settle time.Duration) (injector.RuneTyper, error) {
	switch name {
	case injector.TyperX11:
		logger.Debug("Typing corrected characters through X11")
		return x11.Typer{}, nil
	default:
		if clip == nil {
			if injector.IsX11Session() {
				logger.Info("No clipboard tool found, typing through X11")
				return x11.Typer{}, nil
			}
			return nil, clipboard.ErrUnsupported
		}
		logger.Debug("Typing corrected characters through the clipboard")
		return injector.NewClipboardTyper(inj, clip, settle), nil
	}
}

func printBanner(settings *config.Settings, layouts string, devices []string) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	gc := settings.Engine.Gesture
	bold.Println("SkySwitcher is running")
	fmt.Printf("  Layouts:        %s\n", cyan.Sprint(layouts))
	fmt.Printf("  Fix last word:  double-tap %s\n", green.Sprint(gc.Trigger))
	fmt.Printf("  Fix selection:  hold %s and double-tap %s\n", green.Sprint(gc.Secondary), green.Sprint(gc.Trigger))
	fmt.Printf("  Layout switch:  %s\n", cyan.Sprint(keyboard.FormatChord(settings.Engine.LayoutSwitch)))
	fmt.Printf("  Devices:        %v\n", devices)
}

func printDevices() error {
	devices, err := keyboard.ListDevices()
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	faint := color.New(color.Faint)

	bold.Printf("%-22s %-10s %s\n", "PATH", "TYPE", "NAME")
	for _, d := range devices {
		kind := "other"
		switch {
		case d.IsVirtual:
			kind = "virtual"
		case d.Keyboard:
			kind = "keyboard"
		}
		line := fmt.Sprintf("%-22s %-10s %s", d.Path, kind, d.Name)
		if d.Keyboard {
			green.Println(line)
		} else {
			faint.Println(line)
		}
	}
	if len(devices) == 0 {
		fmt.Println("No readable input devices. Are you in the input group?")
	}
	return nil
}
