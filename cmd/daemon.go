package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/awake/host/internal/battery"
	"github.com/awake/host/internal/clock"
	"github.com/awake/host/internal/config"
	"github.com/awake/host/internal/hotkey"
	"github.com/awake/host/internal/ipc"
	"github.com/awake/host/internal/keepawake"
	"github.com/awake/host/internal/notify"
	"github.com/awake/host/internal/schedule"
	"github.com/awake/host/internal/server"
	"github.com/awake/host/internal/trigger"
)

// shutdownTimeout bounds releasing the grant on exit.
const shutdownTimeout = 5 * time.Second

// daemonDeps are the OS-facing pieces of the daemon.
type daemonDeps struct {
	Adapter keepawake.Adapter
	Power   keepawake.PowerProvider
	Sink    notify.Sink
	Clock   clock.Clock

	// Watchers can be switched off where OS scanning is unwanted.
	ProcessWatcher  bool
	HardwareWatcher bool
}

// Testability seam.
var newDaemonDeps = func(logger logrus.FieldLogger) daemonDeps {
	return daemonDeps{
		Adapter:         keepawake.NewDefaultAdapter(),
		Power:           keepawake.NewDefaultPowerProvider(),
		Sink:            notify.Default(logger),
		Clock:           clock.Real(),
		ProcessWatcher:  true,
		HardwareWatcher: true,
	}
}

// daemon wires the coordinator to its automation sources, the notifier
// and the control socket.
type daemon struct {
	log   *logrus.Logger
	store *config.Store

	coord    *keepawake.Coordinator
	notifier *notify.Notifier
	schedule *schedule.Poller
	guard    *battery.Poller
	apps     *trigger.ProcessWatcher
	hardware *trigger.HardwareWatcher
	hotkey   *hotkey.Listener
	control  *server.Server
	socket   *ipc.SocketServer
}

func newDaemon(store *config.Store, logger *logrus.Logger, deps daemonDeps) *daemon {
	snap := store.Current()
	d := &daemon{log: logger, store: store}

	d.notifier = notify.New(deps.Sink, func() notify.Toggles {
		s := store.Current()
		return notify.Toggles{TimerEnd: s.NotifyOnTimerEnd, BatteryStop: s.NotifyOnBatteryStop}
	}, notify.Options{Clock: deps.Clock, Logger: logger})

	d.coord = keepawake.NewCoordinator(deps.Adapter, keepawake.Options{
		Clock:    deps.Clock,
		Notifier: d.notifier,
		Logger:   logger,
	})

	d.schedule = schedule.NewPoller(d.coord, func() schedule.Settings {
		return store.Current().ScheduleSettings()
	}, schedule.PollerOptions{Interval: snap.SchedulePoll, Clock: deps.Clock, Logger: logger})

	d.guard = battery.NewPoller(d.coord, deps.Power, func() battery.GuardConfig {
		return store.Current().GuardConfig()
	}, battery.PollerOptions{Interval: snap.BatteryPoll, Clock: deps.Clock, Logger: logger})

	if deps.ProcessWatcher {
		apps := trigger.NewAppDispatcher(d.coord, func() trigger.Settings {
			return store.Current().AppSettings()
		}, logger)
		d.apps = trigger.NewProcessWatcher(apps, trigger.WatcherOptions{
			Interval: snap.ProcessPoll, Clock: deps.Clock, Logger: logger,
		})
	}
	if deps.HardwareWatcher {
		hw := trigger.NewHardwareDispatcher(d.coord, func() trigger.Settings {
			return store.Current().HardwareSettings()
		}, logger)
		d.hardware = trigger.NewHardwareWatcher(deps.Power, hw, trigger.WatcherOptions{
			Interval: snap.HardwarePoll, Clock: deps.Clock, Logger: logger,
		})
	}

	d.hotkey = hotkey.NewListener(d.coord, func() hotkey.Settings {
		s := store.Current()
		return hotkey.Settings{Enabled: s.KeyboardShortcutEnabled, DefaultDuration: s.DefaultDuration, Policy: s.Policy}
	}, hotkey.DefaultDebounce, logger)

	d.control = server.New(d.coord, server.Options{
		Settings: func() server.Settings {
			s := store.Current()
			return server.Settings{
				DefaultDuration: s.DefaultDuration,
				Policy:          s.Policy,
				Battery:         s.Battery,
				Features: ipc.Features{
					Schedules:        s.SchedulesEnabled,
					AppTriggers:      s.AppTriggersEnabled,
					HardwareTriggers: s.HardwareTriggersEnabled,
					KeyboardShortcut: s.KeyboardShortcutEnabled,
				},
			}
		},
		Battery: d.guard.LastReading,
		Toggler: d.hotkey,
		Clock:   deps.Clock,
		Logger:  logger,
		Version: Version,
	})
	d.socket = ipc.NewSocketServer(snap.Socket, d.control, logger)

	store.OnReload(func(s *config.Snapshot) {
		logger.SetLevel(s.LogLevel)
	})
	return d
}

// start opens the control socket and starts every poller. The socket
// comes first so a second daemon fails before touching the OS.
func (d *daemon) start() error {
	if err := d.socket.Start(); err != nil {
		return err
	}
	d.guard.Start()
	d.schedule.Start()
	if d.apps != nil {
		d.apps.Start()
	}
	if d.hardware != nil {
		d.hardware.Start()
	}
	d.log.WithField("version", Version).Info("daemon: started")
	return nil
}

// stop tears down in reverse order and releases any held grant.
func (d *daemon) stop(ctx context.Context) error {
	if d.hardware != nil {
		d.hardware.Stop()
	}
	if d.apps != nil {
		d.apps.Stop()
	}
	d.schedule.Stop()
	d.guard.Stop()

	var errs []error
	if err := d.coord.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.socket.Stop(); err != nil {
		errs = append(errs, err)
	}
	d.notifier.Close()
	d.log.Info("daemon: stopped")
	return errors.Join(errs...)
}

// run handles reload and shortcut signals until ctx is done.
func (d *daemon) run(ctx context.Context, reload, presses <-chan os.Signal) {
	go d.store.WatchSignals(ctx, reload)
	go d.hotkey.Run(ctx, presses)
	<-ctx.Done()
}

// daemonFlags are the CLI overrides for the daemon.
type daemonFlags struct {
	Config            string
	Socket            string
	LogLevel          string
	LogFormat         string
	AllowDisplaySleep bool
	DefaultDuration   string
}

// overrides applies explicitly set flags on top of the file config.
func (f daemonFlags) overrides(fs *pflag.FlagSet) func(*config.Config) {
	return func(c *config.Config) {
		if fs.Changed("socket") {
			c.Socket = f.Socket
		}
		if fs.Changed("log-level") {
			c.LogLevel = f.LogLevel
		}
		if fs.Changed("log-format") {
			c.LogFormat = f.LogFormat
		}
		if fs.Changed("allow-display-sleep") {
			c.AllowDisplaySleep = f.AllowDisplaySleep
		}
		if fs.Changed("default-duration") {
			c.DefaultDuration = f.DefaultDuration
		}
	}
}

func runDaemon(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("daemon", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var flags daemonFlags
	fs.StringVar(&flags.Config, "config", "", "Path to config file (default: ~/.awake/config.toml)")
	fs.StringVar(&flags.Socket, "socket", "", "Control socket path (default: ~/.awake/awake.sock)")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")
	fs.StringVar(&flags.LogFormat, "log-format", "", "Log format: text or json (default: text)")
	fs.BoolVar(&flags.AllowDisplaySleep, "allow-display-sleep", false, "Keep only the system awake and let the display sleep")
	fs.StringVar(&flags.DefaultDuration, "default-duration", "", "Session length for the shortcut and 'awake on' (e.g. 45m; empty = indefinite)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: awake daemon [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	bootstrap := newLogger(logrus.InfoLevel, "text", stderr)
	store, err := config.NewStore(flags.Config, flags.overrides(fs), bootstrap)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	snap := store.Current()
	logger := newLogger(snap.LogLevel, snap.LogFormat, stderr)

	d := newDaemon(store, logger, newDaemonDeps(logger))
	if err := d.start(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "awake daemon listening on %s. Press Ctrl+C to stop.\n", snap.Socket)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	presses := make(chan os.Signal, 1)
	if hotkey.Notify(presses) {
		defer signal.Stop(presses)
	}

	d.run(ctx, reload, presses)
	fmt.Fprintln(stdout, "\nStopping...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := d.stop(stopCtx); err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}
	return 0
}
