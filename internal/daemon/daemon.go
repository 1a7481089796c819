package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/retrotoast/internal/adapter/input"
	"github.com/jmylchreest/retrotoast/internal/adapter/output"
	"github.com/jmylchreest/retrotoast/internal/audio"
	"github.com/jmylchreest/retrotoast/internal/config"
	"github.com/jmylchreest/retrotoast/internal/dbus"
	"github.com/jmylchreest/retrotoast/internal/display"
	"github.com/jmylchreest/retrotoast/internal/icon"
	"github.com/jmylchreest/retrotoast/internal/model"
	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/theme"
)

// ErrUnknownToast is reported for close requests naming no live toast.
var ErrUnknownToast = errors.New("unknown toast")

// Options selects the daemon's inputs and outputs.
type Options struct {
	// ConfigPath overrides config.Path() for the watcher.
	ConfigPath  string
	WatchConfig bool

	// Stdin, when set, is read as JSON lines of requests.
	Stdin io.Reader
	// Commands are handled before any input is read.
	Commands []input.Command
	// DBus claims org.freedesktop.Notifications on the session bus.
	DBus bool

	// Output receives lifecycle events; nil discards them.
	Output io.Writer
	Format output.FormatType

	Version   string
	ThemesDir string

	// ExitWhenIdle stops the daemon once all input is consumed and the
	// last toast has closed. It has no effect while serving D-Bus.
	ExitWhenIdle bool
}

type shownToast struct {
	ref   string
	title string
	at    time.Time
}

// Daemon wires notification sources to a display manager running on a
// platform adapter. Apart from Run and Post-ed work, its state is only
// touched on the adapter's loop goroutine.
type Daemon struct {
	adapter platform.Adapter
	opts    Options
	logger  *slog.Logger

	cfg      *config.Config
	iconSize atomic.Int64

	manager   *display.Manager
	audio     *audio.Manager
	themes    *theme.Loader
	watcher   *ConfigWatcher
	notifier  *InternalNotifier
	server    *dbus.NotificationServer
	ids       *IDMap
	formatter output.Formatter

	shown map[model.ID]shownToast

	ctx       context.Context
	stopLoop  context.CancelFunc
	inputs    sync.WaitGroup
	inputDone bool
	stopping  bool

	now func() time.Time
}

// New creates a daemon. The adapter's event handler is claimed by the
// display manager.
func New(adapter platform.Adapter, cfg *config.Config, opts Options, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	d := &Daemon{
		adapter:   adapter,
		opts:      opts,
		logger:    logger,
		cfg:       cfg,
		manager:   display.NewManager(adapter, cfg, logger),
		audio:     audio.NewManager(cfg, logger),
		notifier:  NewInternalNotifier(logger),
		ids:       NewIDMap(),
		formatter: output.NewFormatter(opts.Format),
		shown:     make(map[model.ID]shownToast),
		now:       time.Now,
	}
	if opts.ThemesDir != "" {
		d.themes = theme.NewLoaderWithDir(opts.ThemesDir, logger)
	} else {
		d.themes = theme.NewLoader(logger)
	}
	d.iconSize.Store(int64(cfg.Display.IconSize))

	d.manager.SetCloseCallback(d.onClose)
	d.manager.SetDegradedCallback(d.onDegraded)
	d.notifier.SetNotifyHandler(func(n model.Notification) {
		d.show(n, "")
	})
	return d
}

// Manager returns the display manager. Use it only from the loop goroutine.
func (d *Daemon) Manager() *display.Manager {
	return d.manager
}

// Run starts every source and runs the adapter loop until ctx is cancelled,
// the host quits, or the daemon goes idle with ExitWhenIdle set.
func (d *Daemon) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	d.ctx = loopCtx
	d.stopLoop = stopLoop

	if err := d.start(loopCtx); err != nil {
		d.stop()
		return err
	}

	// Toasts are torn down on the loop before it exits.
	go func() {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down", "reason", context.Cause(ctx))
			if !d.adapter.Post(d.shutdown) {
				stopLoop()
			}
		case <-loopCtx.Done():
		}
	}()

	d.logger.Info("retrotoast ready",
		"version", d.opts.Version,
		"dbus", d.server != nil,
		"stdin", d.opts.Stdin != nil,
	)

	err := d.adapter.Run(loopCtx)
	stopLoop()
	d.manager.CloseAll()
	d.stop()

	if err != nil {
		return fmt.Errorf("platform loop failed: %w", err)
	}
	return nil
}

func (d *Daemon) start(ctx context.Context) error {
	d.loadTheme()
	d.themes.SetChangeCallback(func(p theme.Palette) {
		d.adapter.Post(func() {
			d.manager.SetPalette(p)
			d.notifier.NotifyThemeReloaded(d.themes.CurrentTheme())
		})
	})

	d.audio.Start(ctx)
	d.manager.SetSoundPlayer(d.audio)

	if d.opts.WatchConfig {
		if err := d.startConfigWatcher(ctx); err != nil {
			d.logger.Warn("config hot-reload disabled", "error", err)
		}
	}

	if d.opts.DBus {
		if err := d.startDBus(); err != nil {
			return err
		}
	}

	// Windows can only be created once the loop is up on some hosts.
	commands := make([]input.Command, len(d.opts.Commands))
	for i, cmd := range d.opts.Commands {
		commands[i] = d.resolve(cmd)
	}
	d.adapter.Post(func() {
		for _, cmd := range commands {
			d.handleCommand(cmd)
		}
		if d.opts.Stdin == nil {
			d.inputDone = true
			d.maybeExit()
		}
	})

	if d.opts.Stdin == nil {
		return nil
	}

	src := input.NewStdinAdapterWithReader(d.opts.Stdin)
	d.inputs.Add(1)
	go func() {
		defer d.inputs.Done()
		err := src.Run(ctx, func(cmd input.Command) {
			cmd = d.resolve(cmd)
			d.adapter.Post(func() { d.handleCommand(cmd) })
		}, func(err error) {
			d.adapter.Post(func() { d.reportError("", err) })
		})
		if err != nil {
			d.logger.Warn("input stopped", "source", src.Name(), "error", err)
		}
		d.adapter.Post(func() {
			d.inputDone = true
			d.maybeExit()
		})
	}()
	return nil
}

func (d *Daemon) startConfigWatcher(ctx context.Context) error {
	w, err := NewConfigWatcher(d.opts.ConfigPath, d.logger)
	if err != nil {
		return err
	}
	w.SetReloadCallback(func(cfg *config.Config) {
		d.adapter.Post(func() { d.applyConfig(cfg) })
	})
	w.SetErrorCallback(func(err error) {
		d.adapter.Post(func() { d.notifier.NotifyConfigError(err) })
	})
	if err := w.Start(ctx, d.cfg); err != nil {
		return err
	}
	d.watcher = w
	return nil
}

func (d *Daemon) startDBus() error {
	s := d.newServer()
	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus server: %w", err)
	}
	d.server = s
	return nil
}

func (d *Daemon) newServer() *dbus.NotificationServer {
	s := dbus.NewNotificationServer(d.logger)
	info := dbus.DefaultServerInfo()
	if d.opts.Version != "" {
		info.Version = d.opts.Version
	}
	s.SetServerInfo(info)
	s.SetNotifyHandler(d.onDBusNotify)
	s.SetCloseHandler(func(dbusID uint32) {
		d.adapter.Post(func() { d.closeDBus(dbusID) })
	})
	return s
}

// stop releases everything start acquired. The loop has exited.
func (d *Daemon) stop() {
	d.themes.StopHotReload()
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.server != nil {
		if err := d.server.Stop(); err != nil {
			d.logger.Warn("error stopping D-Bus server", "error", err)
		}
	}
	d.inputs.Wait()
	d.audio.Stop()
	d.logger.Debug("daemon stopped")
}

// shutdown closes every toast and ends the loop. It runs on the loop.
func (d *Daemon) shutdown() {
	if d.stopping {
		return
	}
	d.stopping = true
	d.manager.CloseAll()
	d.stopLoop()
}

func (d *Daemon) maybeExit() {
	if !d.opts.ExitWhenIdle || d.stopping || d.server != nil {
		return
	}
	if d.inputDone && d.manager.ActiveCount() == 0 {
		d.logger.Debug("idle, exiting")
		d.shutdown()
	}
}

// resolve loads a command's icon file. It runs on the reading goroutine.
func (d *Daemon) resolve(cmd input.Command) input.Command {
	if cmd.Op != input.OpNotify || cmd.IconPath == "" {
		return cmd
	}
	ic, err := icon.Load(config.ExpandPath(cmd.IconPath), int(d.iconSize.Load()))
	if err != nil {
		d.logger.Warn("failed to load icon", "path", cmd.IconPath, "error", err)
		return cmd
	}
	cmd.Notification.Icon = ic
	return cmd
}

func (d *Daemon) handleCommand(cmd input.Command) {
	switch cmd.Op {
	case input.OpNotify:
		d.show(cmd.Notification, cmd.Ref)
	case input.OpClose:
		if !d.manager.Retire(cmd.ID) {
			d.reportError(cmd.Ref, fmt.Errorf("%w: %s", ErrUnknownToast, cmd.ID))
		}
	case input.OpCloseAll:
		for _, id := range d.manager.Stack() {
			d.manager.Retire(id)
		}
	}
}

// show submits n and reports the outcome. It runs on the loop.
func (d *Daemon) show(n model.Notification, ref string) (model.ID, error) {
	id, err := d.manager.Submit(n)
	if err != nil {
		d.logger.Warn("failed to show toast", "title", n.Title, "error", err)
		d.emit(output.Event{Kind: output.KindError, Ref: ref, Title: n.Title, Error: err.Error()})
		d.maybeExit()
		return "", err
	}

	now := d.now()
	d.shown[id] = shownToast{ref: ref, title: n.Title, at: now}
	d.emit(output.Event{Kind: output.KindShown, ID: id, Ref: ref, Title: n.Title, Time: now})
	return id, nil
}

func (d *Daemon) onClose(id model.ID, reason model.CloseReason) {
	s := d.shown[id]
	delete(d.shown, id)
	d.emit(output.Event{
		Kind:   output.KindClosed,
		ID:     id,
		Ref:    s.ref,
		Title:  s.title,
		Reason: reason.String(),
		Shown:  s.at,
	})

	if dbusID, ok := d.ids.DBusID(id); ok {
		d.ids.RemoveByToastID(id)
		if err := d.server.Closed(dbusID, reason); err != nil {
			d.logger.Warn("failed to report closed notification", "dbus_id", dbusID, "error", err)
		}
	}

	d.maybeExit()
}

func (d *Daemon) onDegraded(id model.ID, err error) {
	d.emit(output.Event{Kind: output.KindError, ID: id, Ref: d.shown[id].ref, Error: err.Error()})
}

func (d *Daemon) reportError(ref string, err error) {
	d.logger.Warn("request failed", "ref", ref, "error", err)
	d.emit(output.Event{Kind: output.KindError, Ref: ref, Error: err.Error()})
}

func (d *Daemon) emit(e output.Event) {
	if d.opts.Output == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = d.now()
	}
	if err := d.formatter.Format(d.opts.Output, e); err != nil {
		d.logger.Warn("failed to write event", "event", e.Kind, "error", err)
	}
}

// onDBusNotify runs on the D-Bus dispatch goroutine.
func (d *Daemon) onDBusNotify(n *dbus.DBusNotification, dbusID uint32) {
	notification, err := n.ToNotification(int(d.iconSize.Load()))
	if err != nil {
		d.logger.Warn("notification icon unusable", "dbus_id", dbusID, "app", n.AppName, "error", err)
	}
	d.adapter.Post(func() { d.showDBus(dbusID, notification) })
}

func (d *Daemon) showDBus(dbusID uint32, n model.Notification) {
	// The replaced toast goes quietly; its id lives on in the new one.
	if old, ok := d.ids.ToastID(dbusID); ok {
		d.ids.RemoveByDBusID(dbusID)
		d.manager.Retire(old)
	}

	id, err := d.show(n, "")
	if err != nil {
		d.server.MarkClosed(dbusID)
		if err := d.server.EmitNotificationClosed(dbusID, dbus.CloseReasonUndefined); err != nil {
			d.logger.Warn("failed to report refused notification", "dbus_id", dbusID, "error", err)
		}
		return
	}
	d.ids.Register(dbusID, id)
}

func (d *Daemon) closeDBus(dbusID uint32) {
	if id, ok := d.ids.ToastID(dbusID); ok {
		d.manager.Retire(id)
	}
}

// loadTheme applies the configured theme and colour scheme and restarts
// hot-reload for it.
func (d *Daemon) loadTheme() {
	if err := d.themes.LoadTheme(d.cfg.Theme.Name); err != nil {
		d.logger.Warn("failed to load theme, using default", "theme", d.cfg.Theme.Name, "error", err)
		d.notifier.NotifyThemeError(err)
	}
	d.themes.SetColorScheme(d.cfg.Theme.ColorScheme, platform.PrefersDark(d.adapter))
	d.manager.SetPalette(d.themes.Palette())
	d.themes.StartHotReload(d.ctx)
}

// applyConfig applies a reloaded configuration on the loop.
func (d *Daemon) applyConfig(cfg *config.Config) {
	old := d.cfg
	d.cfg = cfg
	d.iconSize.Store(int64(cfg.Display.IconSize))

	d.manager.UpdateConfig(cfg)
	d.audio.UpdateConfig(cfg)
	if old.Theme != cfg.Theme {
		d.loadTheme()
	}

	d.notifier.NotifyConfigReloaded()
}
