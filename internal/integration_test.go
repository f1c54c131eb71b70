package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sweeney/range-monitor/internal/capture"
	"github.com/sweeney/range-monitor/internal/display"
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

const tick = 10 * time.Millisecond

// bench wires the simulated rig to a monitor loop, a status tracker and a
// fake publisher, the same way the daemon does.
type bench struct {
	now     time.Time
	rig     *sim.Rig
	loop    *monitor.Loop
	display *display.Fake
	store   *store.Memory
	tracker *status.Tracker
	pub     *mqtt.FakePublisher
}

func newBench(t *testing.T) *bench {
	t.Helper()
	b := &bench{
		now:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		display: &display.Fake{},
		store:   store.NewMemory(),
		pub:     mqtt.NewFakePublisher(),
	}
	echo := &capture.Echo{}
	latch := capture.NewLatch(100 * time.Millisecond)
	nec := remote.NewNEC()
	keys := remote.DefaultKeymap()
	b.rig = sim.New(echo, latch, nec, keys, func() time.Time { return b.now })

	loop, err := monitor.New(monitor.Parts{
		Board:   b.rig.Board,
		Echo:    echo,
		Latch:   latch,
		Remote:  remote.NewAdapter(nec, keys, 20*time.Millisecond, b.now),
		Light:   b.rig.Light,
		Dimmer:  b.rig.Dimmer,
		Display: b.display,
		Store:   b.store,
		Stats:   metrics.New(),
	}, monitor.DefaultSettings(), b.now)
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}
	b.loop = loop
	b.tracker = status.NewTracker(b.now, "boot-int", status.Config{Board: "sim", LockZoneCm: 5, WarningCm: 30})
	return b
}

// run ticks the loop for d, publishing events as the daemon does.
func (b *bench) run(t *testing.T, d time.Duration) {
	t.Helper()
	for end := b.now.Add(d); b.now.Before(end); {
		b.now = b.now.Add(tick)
		for _, e := range b.loop.Iterate(b.now) {
			if err := b.pub.Publish(e); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
		b.tracker.Update(b.loop.State())
	}
}

func (b *bench) send(t *testing.T, cmd logic.Command) {
	t.Helper()
	if err := b.rig.Send(cmd); err != nil {
		t.Fatalf("send %s: %v", cmd, err)
	}
	b.run(t, 50*time.Millisecond)
}

func (b *bench) screen(t *testing.T) display.Lines {
	t.Helper()
	l, ok := b.display.Last()
	if !ok {
		t.Fatal("nothing presented")
	}
	return l
}

func (b *bench) cell(t *testing.T) byte {
	t.Helper()
	v, err := b.store.Load(store.AddrUnit)
	if err != nil {
		t.Fatalf("read unit cell: %v", err)
	}
	return v
}

func wantScreen(t *testing.T, got display.Lines, top, bottom string) {
	t.Helper()
	want := display.Lines{display.Pad(top), display.Pad(bottom)}
	if got != want {
		t.Errorf("screen: got %q, want %q", got, want)
	}
}

// TestIntegrationSession walks a whole session: ranging, a unit toggle, a
// proximity lock and button unlock, a settings reset and the luminosity
// screen, checking the published events and the durable cell along the way.
func TestIntegrationSession(t *testing.T) {
	b := newBench(t)

	b.rig.SetDistance(100)
	b.run(t, 200*time.Millisecond)
	wantScreen(t, b.screen(t), "Dist: 100.00 cm", "No obstacle.")

	b.rig.SetDistance(20)
	b.run(t, 100*time.Millisecond)
	wantScreen(t, b.screen(t), "Dist:  20.00 cm", "!! Warning !!")

	b.send(t, logic.CommandToggleUnit)
	if b.loop.Unit() != logic.UnitIN {
		t.Fatalf("unit: got %v, want in", b.loop.Unit())
	}
	if got := b.cell(t); got != logic.StoredIN {
		t.Errorf("cell after toggle: got %d, want %d", got, logic.StoredIN)
	}
	wantScreen(t, b.screen(t), "Dist:   7.87 in", "!! Warning !!")

	b.rig.SetDistance(3)
	b.run(t, 100*time.Millisecond)
	if b.loop.Mode() != logic.ModeLock {
		t.Fatalf("mode: got %v, want LOCK", b.loop.Mode())
	}
	wantScreen(t, b.screen(t), "!!! Obstacle !!!", "Press to unlock.")

	// Only PLAY or the button leave LOCK.
	b.send(t, logic.CommandUp)
	if b.loop.Mode() != logic.ModeLock {
		t.Errorf("UP left LOCK: mode %v", b.loop.Mode())
	}

	// Ranging is paused while locked, so the unlock iteration must be on a
	// fresh ranging slot or the stale close reading relocks at once.
	b.rig.SetDistance(60)
	b.run(t, 100*time.Millisecond)
	if !b.rig.Press() {
		t.Fatal("press rejected")
	}
	b.run(t, 200*time.Millisecond)
	if b.loop.Mode() != logic.ModeDistance {
		t.Fatalf("mode after button: got %v, want DISTANCE", b.loop.Mode())
	}

	b.send(t, logic.CommandStop)
	wantScreen(t, b.screen(t), "Press on OFF to", "reset settings.")
	b.send(t, logic.CommandOff)
	if b.loop.Mode() != logic.ModeDistance || b.loop.Unit() != logic.UnitCM {
		t.Fatalf("after reset: got %v/%v, want DISTANCE/cm", b.loop.Mode(), b.loop.Unit())
	}
	if got := b.cell(t); got != logic.StoredCM {
		t.Errorf("cell after reset: got %d, want %d", got, logic.StoredCM)
	}

	b.send(t, logic.CommandUp)
	wantScreen(t, b.screen(t), "Luminosity: 511", "")

	// The proximity guard only runs in DISTANCE.
	b.rig.SetDistance(2)
	b.run(t, 300*time.Millisecond)
	if b.loop.Mode() != logic.ModeLuminosity {
		t.Errorf("mode: got %v, want LUMINOSITY", b.loop.Mode())
	}

	want := []struct {
		typ      logic.EventType
		from, to logic.Mode
		cause    string
	}{
		{logic.EventUnitChanged, logic.ModeDistance, logic.ModeDistance, "TOGGLE_UNIT"},
		{logic.EventModeChanged, logic.ModeDistance, logic.ModeLock, logic.CauseProximity},
		{logic.EventModeChanged, logic.ModeLock, logic.ModeDistance, logic.CauseButton},
		{logic.EventModeChanged, logic.ModeDistance, logic.ModeReset, "STOP"},
		{logic.EventModeChanged, logic.ModeReset, logic.ModeDistance, "OFF"},
		{logic.EventUnitChanged, logic.ModeDistance, logic.ModeDistance, "OFF"},
		{logic.EventModeChanged, logic.ModeDistance, logic.ModeLuminosity, "UP"},
	}
	if len(b.pub.Events) != len(want) {
		for i, e := range b.pub.Events {
			t.Logf("event %d: %s %s->%s (%s)", i, e.Type, e.From, e.To, e.Cause)
		}
		t.Fatalf("events: got %d, want %d", len(b.pub.Events), len(want))
	}
	for i, w := range want {
		e := b.pub.Events[i]
		if e.Type != w.typ || e.From != w.from || e.To != w.to || e.Cause != w.cause {
			t.Errorf("event %d: got %s %s->%s (%s), want %s %s->%s (%s)",
				i, e.Type, e.From, e.To, e.Cause, w.typ, w.from, w.to, w.cause)
		}
	}

	c := b.loop.Counts()
	if c.Locks != 1 || c.Unlocks != 1 || c.UnitChanges != 2 || c.ModeChanges != 5 {
		t.Errorf("counts: got %+v", c)
	}
}

func TestIntegrationUnitSurvivesRestart(t *testing.T) {
	b := newBench(t)
	b.run(t, 100*time.Millisecond)
	b.send(t, logic.CommandToggleUnit)

	// A second loop over the same store comes up in inches.
	loop, err := monitor.New(monitor.Parts{
		Board:   b.rig.Board,
		Echo:    &capture.Echo{},
		Latch:   capture.NewLatch(100 * time.Millisecond),
		Remote:  remote.NewAdapter(&remote.Queue{}, remote.DefaultKeymap(), 20*time.Millisecond, b.now),
		Light:   b.rig.Light,
		Dimmer:  b.rig.Dimmer,
		Display: &display.Fake{},
		Store:   b.store,
	}, monitor.DefaultSettings(), b.now)
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}
	if loop.Unit() != logic.UnitIN {
		t.Errorf("restored unit: got %v, want in", loop.Unit())
	}
}

func TestIntegrationStatusEndpoint(t *testing.T) {
	b := newBench(t)
	b.rig.SetDistance(3)
	b.run(t, 150*time.Millisecond)

	srv := httptest.NewServer(web.New(":0", b.tracker, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var got status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	s := got.Status
	if s.Mode != "LOCK" {
		t.Errorf("mode: got %q, want LOCK", s.Mode)
	}
	if !s.Distance.Valid || s.Distance.Centimeters != 3 {
		t.Errorf("distance: got %+v, want 3cm", s.Distance)
	}
	if s.Counts.Locks != 1 {
		t.Errorf("locks: got %d, want 1", s.Counts.Locks)
	}
	if s.Display[0] != display.Pad("!!! Obstacle !!!") {
		t.Errorf("display: got %q", s.Display[0])
	}
	if s.BootID != "boot-int" {
		t.Errorf("boot id: got %q", s.BootID)
	}
}

func TestIntegrationShutdownPayload(t *testing.T) {
	b := newBench(t)
	b.run(t, 200*time.Millisecond)

	if err := b.loop.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	b.tracker.Update(b.loop.State())
	snap := b.tracker.Snapshot()
	raw := status.FormatStatusEvent(snap, mqtt.EventShutdown, "SIGTERM")
	if err := b.pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventShutdown,
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: raw,
	}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	var payload status.StatusJSON
	if err := json.Unmarshal(b.pub.SystemPayloads[0], &payload); err != nil {
		t.Fatalf("payload is not status JSON: %v", err)
	}
	if payload.Status.Event != "SHUTDOWN" || payload.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", payload.Status.Event, payload.Status.Reason)
	}
	if payload.Status.LEDs.Activity || payload.Status.LEDs.Alert {
		t.Errorf("LEDs still on after shutdown: %+v", payload.Status.LEDs)
	}
	if !b.display.Closed() {
		t.Error("display not closed")
	}
}
