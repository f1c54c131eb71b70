package logic

import (
	"time"

	"github.com/sweeney/range-monitor/internal/mathx"
)

// LED identifies one indicator output.
type LED int

const (
	LEDActivity LED = iota // yellow, blinks with distance
	LEDAlert               // red, blinks with the activity LED while locked
)

func (l LED) String() string {
	if l == LEDAlert {
		return "alert"
	}
	return "activity"
}

// LEDWrite is one output the caller must perform.
type LEDWrite struct {
	LED LED
	On  bool
}

// Ambient light scaling.
const (
	AnalogMax = 1023
	DimmerMax = 255
)

// LockBlink is the alert blink period while locked.
const LockBlink = 500 * time.Millisecond

// AmbientLevel maps a raw light sample onto a dimmer level. Darker rooms
// (lower samples) give a brighter LED.
func AmbientLevel(raw int) uint8 {
	return uint8(mathx.RemapInt(raw, 0, AnalogMax, DimmerMax, 0))
}

// Indicators schedules the two blinkers. The activity blinker only runs in
// DISTANCE and the alert blinker only in LOCK; in other modes the LEDs keep
// whatever state they were last given.
type Indicators struct {
	activity   Timer
	alert      Timer
	activityOn bool
	alertOn    bool
}

// NewIndicators returns both blinkers armed at start with the LEDs off.
func NewIndicators(activityInterval, lockInterval time.Duration, start time.Time) *Indicators {
	return &Indicators{
		activity: NewTimer(activityInterval, start),
		alert:    NewTimer(lockInterval, start),
	}
}

// SetActivityInterval changes the activity blink period. It takes effect
// on the next Tick without rearming.
func (in *Indicators) SetActivityInterval(d time.Duration) {
	in.activity.Interval = d
}

// ActivityInterval returns the current activity blink period.
func (in *Indicators) ActivityInterval() time.Duration {
	return in.activity.Interval
}

// Tick returns the LED writes due at now for mode.
func (in *Indicators) Tick(mode Mode, now time.Time) []LEDWrite {
	switch mode {
	case ModeDistance:
		if !in.activity.Due(now) {
			return nil
		}
		in.activity.Rearm(now)
		in.activityOn = !in.activityOn
		in.alertOn = false
		return []LEDWrite{
			{LED: LEDActivity, On: in.activityOn},
			{LED: LEDAlert, On: false},
		}
	case ModeLock:
		if !in.alert.Due(now) {
			return nil
		}
		in.alert.Rearm(now)
		in.alertOn = !in.alertOn
		in.activityOn = false
		return []LEDWrite{
			{LED: LEDActivity, On: in.alertOn},
			{LED: LEDAlert, On: in.alertOn},
		}
	}
	return nil
}

// Off resets both blinkers and returns the writes that turn the LEDs off.
func (in *Indicators) Off() []LEDWrite {
	in.activityOn, in.alertOn = false, false
	return []LEDWrite{
		{LED: LEDActivity, On: false},
		{LED: LEDAlert, On: false},
	}
}
