package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/range-monitor/internal/analog"
	"github.com/sweeney/range-monitor/internal/capture"
	"github.com/sweeney/range-monitor/internal/config"
	"github.com/sweeney/range-monitor/internal/display"
	"github.com/sweeney/range-monitor/internal/gpio"
	"github.com/sweeney/range-monitor/internal/logic"
	"github.com/sweeney/range-monitor/internal/metrics"
	"github.com/sweeney/range-monitor/internal/monitor"
	"github.com/sweeney/range-monitor/internal/mqtt"
	"github.com/sweeney/range-monitor/internal/remote"
	"github.com/sweeney/range-monitor/internal/sim"
	"github.com/sweeney/range-monitor/internal/status"
	"github.com/sweeney/range-monitor/internal/store"
	"github.com/sweeney/range-monitor/internal/web"
)

// loadProfile returns the board profile named by -profile, or the defaults.
func loadProfile(o options) (config.Config, error) {
	if o.profile == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(o.profile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load profile: %w", err)
	}
	return cfg, nil
}

// storePath resolves -store against the profile. An empty result means an
// in-memory store.
func storePath(o options, cfg config.Config) string {
	switch o.store {
	case "memory":
		return ""
	case "":
		if o.board == "sim" {
			return ""
		}
		return cfg.Store.Path
	}
	return o.store
}

func openStore(o options, cfg config.Config) (*store.Badger, error) {
	s, err := store.OpenBadger(storePath(o, cfg))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// setupLogging installs the default logger. The returned closer releases
// the log file, if any.
func setupLogging(o options, w io.Writer) (func() error, error) {
	closer := func() error { return nil }
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f.Close
	}
	log, err := newLogger(w, o.logLevel, o.logPlain)
	if err != nil {
		closer()
		return nil, err
	}
	slog.SetDefault(log)
	return closer, nil
}

func execState(o options, stdout io.Writer) error {
	closeLog, err := setupLogging(o, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := loadProfile(o)
	if err != nil {
		return err
	}
	bs, err := openStore(o, cfg)
	if err != nil {
		return err
	}
	defer bs.Close()

	var light analog.Sensor
	if cfg.Light.IIOPath != "" {
		light = analog.NewIIO(cfg.Light.IIOPath, cfg.Light.Bits)
	}
	return printState(stdout, bs, light)
}

// printState writes the saved unit and, if light is non-nil, one light
// sample.
func printState(w io.Writer, bs store.ByteStore, light analog.Sensor) error {
	b, err := bs.Load(store.AddrUnit)
	if err != nil {
		return fmt.Errorf("read unit: %w", err)
	}
	fmt.Fprintf(w, "Unit: %s (cell 0x%02x)\n", logic.UnitFromStored(b), b)
	if light == nil {
		return nil
	}
	raw, err := light.Read()
	if err != nil {
		return fmt.Errorf("read light: %w", err)
	}
	fmt.Fprintf(w, "Luminosity: %d (LED level %d)\n", raw, logic.AmbientLevel(raw))
	return nil
}

func execResetUnit(o options, stdout io.Writer) error {
	closeLog, err := setupLogging(o, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := loadProfile(o)
	if err != nil {
		return err
	}
	bs, err := openStore(o, cfg)
	if err != nil {
		return err
	}
	if err := resetUnit(stdout, bs); err != nil {
		bs.Close()
		return err
	}
	return bs.Close()
}

func resetUnit(w io.Writer, bs store.ByteStore) error {
	if err := bs.Store(store.AddrUnit, logic.UnitCM.Stored()); err != nil {
		return fmt.Errorf("write unit: %w", err)
	}
	fmt.Fprintf(w, "Unit: %s\n", logic.UnitCM)
	return nil
}

// peripherals is what a board flavour provides to the loop.
type peripherals struct {
	board  gpio.Board
	light  analog.Sensor
	dimmer analog.Dimmer
	rig    *sim.Rig // nil unless simulated
	close  func() error
}

func openPeripherals(o options, cfg config.Config, keymap remote.Keymap, echo *capture.Echo, latch *capture.Latch, nec *remote.NEC) (*peripherals, error) {
	switch o.board {
	case "sim":
		rig := sim.New(echo, latch, nec, keymap, time.Now)
		return &peripherals{
			board:  rig.Board,
			light:  rig.Light,
			dimmer: rig.Dimmer,
			rig:    rig,
			close:  rig.Board.Close,
		}, nil
	case "real":
	default:
		return nil, fmt.Errorf("unknown board %q (want real or sim)", o.board)
	}

	board, err := gpio.NewRealBoard(cfg.GPIOPins(), gpio.Handlers{
		Echo:   echo.Edge,
		Button: func(at time.Duration) { latch.Edge(at) },
		IR:     nec.Edge,
	})
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	p := &peripherals{board: board, close: board.Close}

	p.light = analog.Constant(analog.Max)
	if cfg.Light.IIOPath != "" {
		p.light = analog.NewIIO(cfg.Light.IIOPath, cfg.Light.Bits)
	}

	p.dimmer = analog.NoDimmer{}
	if cfg.Light.PWMPin != "" {
		pwm, err := analog.OpenPWM(cfg.Light.PWMPin, physic.Frequency(cfg.Light.PWMFrequency)*physic.Hertz)
		if err != nil {
			board.Close()
			return nil, fmt.Errorf("init pwm: %w", err)
		}
		p.dimmer = pwm
		p.close = func() error { return errors.Join(pwm.Close(), board.Close()) }
	}
	return p, nil
}

// openDisplay resolves -display. The terminal is returned separately so the
// caller can read keys from it.
func openDisplay(o options, cfg config.Config) (display.Presenter, *display.Terminal, error) {
	kind := o.display
	if kind == "auto" {
		kind = "lcd"
		if o.board == "sim" {
			kind = "terminal"
		}
	}
	switch kind {
	case "lcd":
		lcd, err := display.OpenLCD(cfg.Display.I2CBus, uint8(cfg.Display.Address))
		if err != nil {
			return nil, nil, fmt.Errorf("open lcd: %w", err)
		}
		return lcd, nil, nil
	case "terminal":
		term, err := display.OpenTerminal()
		if err != nil {
			return nil, nil, fmt.Errorf("open terminal: %w", err)
		}
		return term, term, nil
	case "none":
		return display.Discard{}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown display %q (want lcd, terminal, none or auto)", o.display)
}

func execRun(o options) error {
	logTo := io.Writer(os.Stderr)
	if (o.display == "terminal" || (o.display == "auto" && o.board == "sim")) && o.logFile == "" {
		// The terminal display owns the screen.
		logTo = io.Discard
	}
	closeLog, err := setupLogging(o, logTo)
	if err != nil {
		return err
	}
	defer closeLog()
	return run(o)
}

func run(o options) error {
	cfg, err := loadProfile(o)
	if err != nil {
		return err
	}
	keymap, err := cfg.Keymap()
	if err != nil {
		return err
	}
	bootID := uuid.NewString()

	bs, err := openStore(o, cfg)
	if err != nil {
		return err
	}
	defer bs.Close()

	echo := &capture.Echo{}
	latch := capture.NewLatch(cfg.Indicators.ButtonDebounce)
	nec := remote.NewNEC()

	periph, err := openPeripherals(o, cfg, keymap, echo, latch, nec)
	if err != nil {
		return err
	}
	defer periph.close()

	presenter, term, err := openDisplay(o, cfg)
	if err != nil {
		return err
	}

	stats := metrics.New()
	start := time.Now()
	loop, err := monitor.New(monitor.Parts{
		Board:   periph.board,
		Echo:    echo,
		Latch:   latch,
		Remote:  remote.NewAdapter(nec, keymap, cfg.Remote.PollInterval, start),
		Light:   periph.light,
		Dimmer:  periph.dimmer,
		Display: presenter,
		Store:   bs,
		Stats:   stats,
	}, monitor.Settings{
		Range:            cfg.RangeConfig(),
		RangingInterval:  cfg.Ranging.Interval,
		LightInterval:    cfg.Light.Interval,
		LockBlink:        cfg.Indicators.LockBlink,
		LockZoneCm:       cfg.Ranging.LockZoneCm,
		WarningCm:        cfg.Ranging.WarningCm,
		ErrorLogInterval: 10 * time.Second,
	}, start)
	if err != nil {
		presenter.Close()
		return fmt.Errorf("init monitor: %w", err)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(start, bootID, status.Config{
		Board:       o.board,
		TickMs:      cfg.Loop.Tick.Milliseconds(),
		RangingMs:   cfg.Ranging.Interval.Milliseconds(),
		PollMs:      cfg.Remote.PollInterval.Milliseconds(),
		DebounceMs:  cfg.Indicators.ButtonDebounce.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		LockZoneCm:  cfg.Ranging.LockZoneCm,
		WarningCm:   cfg.Ranging.WarningCm,
		Broker:      o.broker,
		HTTPPort:    o.httpAddr,
	})
	tracker.Update(loop.State())

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.NopPublisher{}
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(o.broker, "range-monitor-"+bootID, tracker.SetMQTTConnected)
		if err != nil {
			slog.Warn("mqtt disabled", slog.String("broker", o.broker), slog.Any("error", err))
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}); err != nil {
		slog.Warn("failed to publish startup event", slog.Any("error", err))
	}

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, stats.Handler())
		ln, err := net.Listen("tcp", o.httpAddr)
		if err != nil {
			loop.Shutdown()
			return fmt.Errorf("http listen: %w", err)
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", slog.Any("error", err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		slog.Info("http status server listening", slog.String("addr", ln.Addr().String()))
	}

	quit := make(chan struct{})
	if term != nil {
		go term.Keys(keyHandler(periph.rig, quit))
		if periph.rig != nil {
			go showRigStatus(term, periph.rig, quit)
		}
	}

	slog.Info("started",
		slog.String("board", o.board),
		slog.String("boot_id", bootID),
		slog.Duration("tick", cfg.Loop.Tick),
		slog.String("unit", loop.Unit().String()),
		slog.String("broker", o.broker),
		slog.Duration("heartbeat", o.heartbeat))

	ticker := time.NewTicker(cfg.Loop.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(loop, publisher, publisher, tracker, o.heartbeat, time.Now, ticker.C, sigCh, quit)
}

// keyHandler feeds terminal keys to the rig, if any, and closes quit when the
// user asks to leave. Without a rig only the quit keys do anything.
func keyHandler(rig *sim.Rig, quit chan struct{}) func(*tcell.EventKey) bool {
	return func(ev *tcell.EventKey) bool {
		more := true
		if rig != nil {
			more = rig.HandleKey(ev)
		} else {
			switch {
			case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC:
				more = false
			case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
				more = false
			}
		}
		if !more {
			close(quit)
		}
		return more
	}
}

func showRigStatus(term *display.Terminal, rig *sim.Rig, quit <-chan struct{}) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			term.SetStatus(rig.Status())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func runLoop(loop *monitor.Loop, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, quit <-chan struct{}) error {
	startTime := now()
	hb := logic.NewTimer(heartbeat, startTime)

	shutdown := func(reason string) error {
		if err := loop.Shutdown(); err != nil {
			slog.Warn("shutdown outputs", slog.Any("error", err))
		}
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     mqtt.EventShutdown,
			Reason:    reason,
			Retained:  true,
		}
		if tracker != nil {
			tracker.Update(loop.State())
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, mqtt.EventShutdown, reason)
		}
		if err := publisher.PublishSystem(event); err != nil {
			slog.Warn("failed to publish shutdown event", slog.Any("error", err))
		} else {
			slog.Info("published shutdown event", slog.String("reason", reason))
		}
		return nil
	}

	for {
		select {
		case s := <-sig:
			slog.Info("shutting down", slog.String("signal", s.String()))
			return shutdown(signalName(s))

		case <-quit:
			slog.Info("shutting down", slog.String("signal", "quit key"))
			return shutdown("QUIT")

		case <-tick:
			t := now()
			for _, event := range loop.Iterate(t) {
				if err := publisher.Publish(event); err != nil {
					slog.Warn("publish error", slog.Any("error", err))
				}
			}

			if tracker == nil {
				continue
			}
			tracker.Update(loop.State())
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if heartbeat <= 0 || !hb.Due(t) {
				continue
			}
			hb.Rearm(t)
			snap := tracker.Snapshot()
			c := snap.Counts
			slog.Info("heartbeat",
				slog.Duration("uptime", t.Sub(startTime)),
				slog.String("mode", snap.Mode.String()),
				slog.Int("mode_changes", c.ModeChanges),
				slog.Int("locks", c.Locks))
			if err := publisher.PublishSystem(mqtt.SystemEvent{
				Timestamp:  t,
				Event:      mqtt.EventHeartbeat,
				RawPayload: status.FormatStatusEvent(snap, mqtt.EventHeartbeat, ""),
			}); err != nil {
				slog.Warn("heartbeat publish error", slog.Any("error", err))
			}
		}
	}
}
