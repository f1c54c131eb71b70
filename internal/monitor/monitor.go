// Package monitor runs one cooperative iteration of the range monitor: it
// drains the input cells, drives the mode machine and writes the outputs in a
// fixed order. It owns no goroutines and never sleeps; the caller ticks it.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/range-monitor/internal/analog"
	"github.com/sweeney/range-monitor/internal/capture"
	"github.com/sweeney/range-monitor/internal/display"
	"github.com/sweeney/range-monitor/internal/gpio"
	"github.com/sweeney/range-monitor/internal/logic"
	"github.com/sweeney/range-monitor/internal/metrics"
	"github.com/sweeney/range-monitor/internal/remote"
	"github.com/sweeney/range-monitor/internal/status"
	"github.com/sweeney/range-monitor/internal/store"
)

// Parts are the collaborators a Loop drives. Stats and Logger may be nil.
type Parts struct {
	Board   gpio.Board
	Echo    *capture.Echo
	Latch   *capture.Latch
	Remote  *remote.Adapter
	Light   analog.Sensor
	Dimmer  analog.Dimmer
	Display display.Presenter
	Store   store.ByteStore
	Stats   *metrics.Stats
	Logger  *slog.Logger
}

// Settings are the timing and threshold parameters of the loop.
type Settings struct {
	Range           logic.RangeConfig
	RangingInterval time.Duration
	LightInterval   time.Duration
	LockBlink       time.Duration
	LockZoneCm      float64
	WarningCm       float64
	// ErrorLogInterval limits how often a failing peripheral is logged.
	ErrorLogInterval time.Duration
}

// DefaultSettings mirrors the board defaults.
func DefaultSettings() Settings {
	return Settings{
		Range:            logic.DefaultRangeConfig(),
		RangingInterval:  100 * time.Millisecond,
		LightInterval:    100 * time.Millisecond,
		LockBlink:        logic.LockBlink,
		LockZoneCm:       5,
		WarningCm:        30,
		ErrorLogInterval: 10 * time.Second,
	}
}

// Loop is the main control loop state. It is not safe for concurrent use.
type Loop struct {
	p   Parts
	s   Settings
	log *slog.Logger

	machine *logic.Machine
	ranger  *logic.Ranger
	ind     *logic.Indicators
	ranging logic.Cadence
	light   logic.Cadence

	lightRaw  int
	ambient   uint8
	activity  bool
	alert     bool
	shown     display.Lines
	presented bool
	counts    logic.EventCounts

	errLog map[string]*logic.Timer
}

// LoadUnit reads the persisted unit. An erased or unknown cell gives CM.
func LoadUnit(bs store.ByteStore) (logic.Unit, error) {
	b, err := bs.Load(store.AddrUnit)
	if err != nil {
		return logic.UnitCM, fmt.Errorf("read unit: %w", err)
	}
	return logic.UnitFromStored(b), nil
}

// New restores the unit from the store and returns a loop in DISTANCE mode
// with all timers armed at start.
func New(p Parts, s Settings, start time.Time) (*Loop, error) {
	unit, err := LoadUnit(p.Store)
	if err != nil {
		return nil, err
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	ranger := logic.NewRanger(s.Range)
	l := &Loop{
		p:       p,
		s:       s,
		log:     log,
		machine: logic.NewMachine(unit),
		ranger:  ranger,
		ind:     logic.NewIndicators(ranger.Reading().Interval, s.LockBlink, start),
		ranging: logic.NewCadence(s.RangingInterval, start),
		light:   logic.NewCadence(s.LightInterval, start),
		errLog:  make(map[string]*logic.Timer),
	}
	p.Stats.Mode(l.machine.Mode())
	log.Info("monitor ready", slog.String("mode", l.machine.Mode().String()), slog.String("unit", unit.String()))
	return l, nil
}

// Mode returns the active mode.
func (l *Loop) Mode() logic.Mode { return l.machine.Mode() }

// Unit returns the active unit.
func (l *Loop) Unit() logic.Unit { return l.machine.Unit() }

// Counts returns the events seen so far.
func (l *Loop) Counts() logic.EventCounts { return l.counts }

// Iterate runs one pass of the loop at now and returns the mode and unit
// changes it made, in order.
//
// The order is fixed: remote poll, button latch, machine, ranging and
// proximity guard (DISTANCE only), blinkers, ambient light, display.
func (l *Loop) Iterate(now time.Time) []logic.Event {
	var events []logic.Event
	l.p.Stats.Iteration()

	cmd := l.p.Remote.Poll(now)
	l.p.Stats.Command(cmd)

	pressed := l.p.Latch.Take()
	if pressed {
		l.p.Stats.ButtonPress()
	}

	t := l.machine.Apply(cmd, pressed)
	if t.Persist {
		l.persist(t.Unit, now)
	}
	events = l.record(events, t, now)

	if l.machine.Mode() == logic.ModeDistance {
		l.rangeStep(now)
		events = l.record(events, l.machine.Guard(l.ranger, l.s.LockZoneCm), now)
	}

	for _, w := range l.ind.Tick(l.machine.Mode(), now) {
		l.writeLED(w, now)
	}

	if l.light.Due(now) {
		l.light.Advance(now)
		l.lightStep(now)
	}

	l.present(now)
	l.p.Stats.Mode(l.machine.Mode())
	return events
}

// rangeStep fires the trigger on the ranging cadence and consumes whatever
// echo pair is ready. With no pair the previous reading stays in effect.
func (l *Loop) rangeStep(now time.Time) {
	if !l.ranging.Due(now) {
		return
	}
	l.ranging.Advance(now)

	if err := l.p.Board.Trigger(); err != nil {
		l.fault("trigger", err, now)
	}

	sample, ok := l.p.Echo.Take()
	if !ok {
		l.p.Stats.EchoMissing()
		return
	}

	before := l.ranger.Clamps()
	r := l.ranger.Consume(sample.Duration())
	after := l.ranger.Clamps()
	l.p.Stats.Echo(r, after.Low > before.Low, after.High > before.High)
	l.ind.SetActivityInterval(r.Interval)
	l.log.Debug("echo",
		slog.Duration("echo", r.Echo),
		slog.Float64("cm", r.Centimeters),
		slog.Duration("blink", r.Interval))
}

func (l *Loop) lightStep(now time.Time) {
	raw, err := l.p.Light.Read()
	if err != nil {
		l.fault("light_read", err, now)
		return
	}
	l.lightRaw = raw
	l.ambient = logic.AmbientLevel(raw)
	l.p.Stats.Light(raw, l.ambient)
	if err := l.p.Dimmer.SetLevel(l.ambient); err != nil {
		l.fault("dimmer", err, now)
	}
}

func (l *Loop) writeLED(w logic.LEDWrite, now time.Time) {
	if err := l.p.Board.SetLED(w.LED, w.On); err != nil {
		l.fault("led_"+w.LED.String(), err, now)
		return
	}
	l.writeState(w)
}

// persist writes the unit cell. A failure leaves the in-memory unit as is;
// the next persisting transition writes again.
func (l *Loop) persist(u logic.Unit, now time.Time) {
	if err := l.p.Store.Store(store.AddrUnit, u.Stored()); err != nil {
		l.fault("store_write", err, now)
		return
	}
	l.p.Stats.StoreWrite()
	l.log.Info("unit saved", slog.String("unit", u.String()))
}

// record turns a transition into events and accounts for them.
func (l *Loop) record(events []logic.Event, t logic.Transition, now time.Time) []logic.Event {
	var cm float64
	if l.ranger.Valid() {
		cm = l.ranger.Reading().Centimeters
	}
	base := logic.Event{Timestamp: now, Unit: t.Unit, DistanceCm: cm, Cause: t.Cause}

	var out []logic.Event
	if t.Changed() {
		e := base
		e.Type, e.From, e.To = logic.EventModeChanged, t.From, t.To
		l.log.Info("mode changed",
			slog.String("from", t.From.String()),
			slog.String("to", t.To.String()),
			slog.String("cause", t.Cause))
		out = append(out, e)
	}
	if t.UnitChanged {
		e := base
		e.Type, e.From, e.To = logic.EventUnitChanged, t.To, t.To
		l.log.Info("unit changed", slog.String("unit", t.Unit.String()), slog.String("cause", t.Cause))
		out = append(out, e)
	}
	for _, e := range out {
		l.counts.Add(e)
		l.p.Stats.Event(e)
	}
	return append(events, out...)
}

func (l *Loop) frame() display.Frame {
	return display.Frame{
		Mode:      l.machine.Mode(),
		Unit:      l.machine.Unit(),
		Reading:   l.ranger.Reading(),
		Valid:     l.ranger.Valid(),
		Light:     l.lightRaw,
		WarningCm: l.s.WarningCm,
	}
}

// present sends the active screen to the display when it differs from what
// the display last accepted.
func (l *Loop) present(now time.Time) {
	lines := display.Render(l.frame())
	if l.presented && lines == l.shown {
		return
	}
	if err := l.p.Display.Present(lines); err != nil {
		l.fault("display", err, now)
		return
	}
	l.shown = lines
	l.presented = true
}

// fault counts a peripheral error and logs it at most once per
// ErrorLogInterval for each op.
func (l *Loop) fault(op string, err error, now time.Time) {
	l.p.Stats.HardwareError(op)
	t, ok := l.errLog[op]
	if !ok {
		timer := logic.NewTimer(l.s.ErrorLogInterval, now.Add(-l.s.ErrorLogInterval))
		t = &timer
		l.errLog[op] = t
	}
	if !t.Due(now) {
		return
	}
	t.Rearm(now)
	l.log.Warn("hardware error", slog.String("op", op), slog.Any("error", err))
}

// State reports the loop state for the status tracker.
func (l *Loop) State() status.State {
	return status.State{
		Mode:     l.machine.Mode(),
		Unit:     l.machine.Unit(),
		Reading:  l.ranger.Reading(),
		Valid:    l.ranger.Valid(),
		Light:    l.lightRaw,
		Ambient:  l.ambient,
		Activity: l.activity,
		Alert:    l.alert,
		Display:  l.shown,
		Counts:   l.counts,
	}
}

// Shutdown turns the LEDs and the dimmer off and closes the display.
func (l *Loop) Shutdown() error {
	var errs []error
	for _, w := range l.ind.Off() {
		if err := l.p.Board.SetLED(w.LED, w.On); err != nil {
			errs = append(errs, fmt.Errorf("led %s: %w", w.LED, err))
			continue
		}
		l.writeState(w)
	}
	if err := l.p.Dimmer.SetLevel(0); err != nil {
		errs = append(errs, fmt.Errorf("dimmer: %w", err))
	}
	if err := l.p.Display.Close(); err != nil {
		errs = append(errs, fmt.Errorf("display: %w", err))
	}
	return errors.Join(errs...)
}

func (l *Loop) writeState(w logic.LEDWrite) {
	switch w.LED {
	case logic.LEDActivity:
		l.activity = w.On
	case logic.LEDAlert:
		l.alert = w.On
	}
}
