// Package sim drives the monitor's input cells from a simulated scene so the
// daemon can run on a workstation: a movable obstacle in front of the
// ultrasonic sensor, an adjustable ambient light level, an NEC remote and a
// push button, all operated from the keyboard.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/sweeney/range-monitor/internal/analog"
	"github.com/sweeney/range-monitor/internal/capture"
	"github.com/sweeney/range-monitor/internal/gpio"
	"github.com/sweeney/range-monitor/internal/logic"
	"github.com/sweeney/range-monitor/internal/remote"
)

// Scene limits.
const (
	// NoEchoWidth is what an HC-SR04 reports when nothing reflects.
	NoEchoWidth = 38 * time.Millisecond
	// MaxDistanceCm is the farthest obstacle the rig places.
	MaxDistanceCm = 500.0

	DistanceStep = 1.0
	DistanceJump = 25.0
	LightStep    = 64
)

// Rig is the simulated hardware. The loop sees it through the same cells
// and interfaces as the real board.
type Rig struct {
	Board  *gpio.FakeBoard
	Light  *analog.FakeSensor
	Dimmer *analog.FakeDimmer

	echo  *capture.Echo
	latch *capture.Latch
	nec   *remote.NEC
	keys  remote.Keymap

	mu         sync.Mutex
	distanceCm float64
	base       time.Time
	now        func() time.Time
}

// New builds a rig that writes into echo, latch and nec. Edge timestamps are
// taken from now relative to the moment New is called.
func New(echo *capture.Echo, latch *capture.Latch, nec *remote.NEC, keys remote.Keymap, now func() time.Time) *Rig {
	r := &Rig{
		Board:      gpio.NewFakeBoard(),
		Light:      analog.NewFakeSensor(analog.Max / 2),
		Dimmer:     &analog.FakeDimmer{},
		echo:       echo,
		latch:      latch,
		nec:        nec,
		keys:       keys,
		distanceCm: 100,
		base:       now(),
		now:        now,
	}
	r.Board.OnTrigger = r.reflect
	return r
}

// mono returns the rig's monotonic edge clock.
func (r *Rig) mono() time.Duration {
	return r.now().Sub(r.base)
}

// EchoWidth is the echo pulse the sensor produces for an obstacle at cm.
func EchoWidth(cm float64) time.Duration {
	if cm <= 0 || cm >= MaxDistanceCm {
		return NoEchoWidth
	}
	us := 2 * cm / logic.SoundCmPerMicrosecond
	return time.Duration(us * float64(time.Microsecond))
}

// reflect answers a trigger pulse with an echo for the current obstacle.
func (r *Rig) reflect() {
	r.mu.Lock()
	cm := r.distanceCm
	r.mu.Unlock()

	at := r.mono()
	r.echo.Edge(true, at)
	r.echo.Edge(false, at+EchoWidth(cm))
}

// Distance returns the obstacle distance.
func (r *Rig) Distance() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.distanceCm
}

// SetDistance places the obstacle at cm, clamped to the scene.
func (r *Rig) SetDistance(cm float64) {
	r.mu.Lock()
	r.distanceCm = min(max(cm, 0), MaxDistanceCm)
	r.mu.Unlock()
}

// Move shifts the obstacle by delta cm.
func (r *Rig) Move(delta float64) {
	r.SetDistance(r.Distance() + delta)
}

// Press sends one button edge through the debounce latch.
func (r *Rig) Press() bool {
	return r.latch.Edge(r.mono())
}

// Send transmits cmd from the remote as a full NEC frame.
func (r *Rig) Send(cmd logic.Command) error {
	code, ok := r.code(cmd)
	if !ok {
		return fmt.Errorf("no remote key for %s", cmd)
	}
	r.SendCode(code)
	return nil
}

// SendCode transmits a raw command byte.
func (r *Rig) SendCode(code uint8) {
	for _, p := range (remote.Frame{Command: code}).Pulses() {
		r.nec.HandlePulse(p)
	}
}

func (r *Rig) code(cmd logic.Command) (uint8, bool) {
	for code, c := range r.keys.Codes {
		if c == cmd {
			return code, true
		}
	}
	return 0, false
}

// AdjustLight changes the ambient sample by delta.
func (r *Rig) AdjustLight(delta int) {
	r.Light.Set(r.Light.Value() + delta)
}

// keyCommands maps printable keys to remote buttons.
var keyCommands = map[rune]logic.Command{
	'0': logic.CommandOff,
	's': logic.CommandStop,
	'p': logic.CommandPlay,
	'u': logic.CommandUp,
	'd': logic.CommandDown,
	't': logic.CommandToggleUnit,
}

// HandleKey applies one key press to the scene. It returns false when the
// user asked to quit.
func (r *Rig) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		r.Move(DistanceStep)
	case tcell.KeyDown:
		r.Move(-DistanceStep)
	case tcell.KeyPgUp:
		r.Move(DistanceJump)
	case tcell.KeyPgDn:
		r.Move(-DistanceJump)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case ' ':
			r.Press()
		case '[':
			r.AdjustLight(-LightStep)
		case ']':
			r.AdjustLight(LightStep)
		default:
			if cmd, ok := keyCommands[ev.Rune()]; ok {
				r.Send(cmd)
			}
		}
	}
	return true
}

// Status is a one-line summary of the scene for the terminal.
func (r *Rig) Status() string {
	r.mu.Lock()
	cm := r.distanceCm
	r.mu.Unlock()
	return fmt.Sprintf("obj %5.1fcm light %4d pwm %3d act %s alert %s | arrows move, 0 s p u d t remote, space button, [ ] light, q quit",
		cm, r.Light.Value(), r.Dimmer.Level(), lamp(r.Board.LED(logic.LEDActivity)), lamp(r.Board.LED(logic.LEDAlert)))
}

func lamp(on bool) string {
	if on {
		return "*"
	}
	return "."
}
