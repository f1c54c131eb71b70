package logic

import (
	"time"

	"github.com/sweeney/range-monitor/internal/mathx"
)

// Physical constants of the HC-SR04 conversion.
const (
	SoundCmPerMicrosecond = 0.0343
	InchesPerCentimeter   = 0.393701
)

// RangeConfig holds the ranging pipeline limits.
type RangeConfig struct {
	EchoMin  time.Duration // shortest plausible echo (~2 cm)
	EchoMax  time.Duration // sensor timeout, also used for torn pairs
	MinCm    float64       // rated range, low end
	MaxCm    float64       // rated range, high end
	BlinkMin time.Duration // blink interval at MinCm
	BlinkMax time.Duration // blink interval at MaxCm
}

// DefaultRangeConfig returns the HC-SR04 limits.
func DefaultRangeConfig() RangeConfig {
	return RangeConfig{
		EchoMin:  116 * time.Microsecond,
		EchoMax:  25000 * time.Microsecond,
		MinCm:    2,
		MaxCm:    400,
		BlinkMin: 10 * time.Millisecond,
		BlinkMax: 2000 * time.Millisecond,
	}
}

// ClampEcho limits d to [lo, hi]. A non-positive duration comes from a pair
// whose end precedes its begin and is treated as hi.
func ClampEcho(d, lo, hi time.Duration) time.Duration {
	if d <= 0 {
		return hi
	}
	return mathx.Clamp(d, lo, hi)
}

// EchoToCentimeters converts a round-trip echo time to a one-way distance.
func EchoToCentimeters(d time.Duration) float64 {
	us := float64(d) / float64(time.Microsecond)
	return us / 2 * SoundCmPerMicrosecond
}

// CentimetersToInches converts cm to inches.
func CentimetersToInches(cm float64) float64 {
	return cm * InchesPerCentimeter
}

// BlinkInterval maps a distance onto the blink range: closer is faster.
// Distances outside the rated range are clamped first.
func (c RangeConfig) BlinkInterval(cm float64) time.Duration {
	ms := mathx.Remap(cm, c.MinCm, c.MaxCm, durMs(c.BlinkMin), durMs(c.BlinkMax))
	return time.Duration(ms * float64(time.Millisecond))
}

func durMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Reading is one processed echo.
type Reading struct {
	Echo        time.Duration // after clamping
	Centimeters float64
	Inches      float64
	Interval    time.Duration // activity blink interval for this distance
}

// In returns the distance expressed in u.
func (r Reading) In(u Unit) float64 {
	if u == UnitIN {
		return r.Inches
	}
	return r.Centimeters
}

// ClampCounts counts echoes that hit either bound.
type ClampCounts struct {
	Low  int
	High int
}

// Ranger turns raw echo durations into readings and keeps the last one.
type Ranger struct {
	cfg     RangeConfig
	reading Reading
	valid   bool
	clamps  ClampCounts
}

// NewRanger returns a Ranger with no reading. Until the first reading the
// blink interval is the slowest one.
func NewRanger(cfg RangeConfig) *Ranger {
	return &Ranger{
		cfg:     cfg,
		reading: Reading{Interval: cfg.BlinkMax},
	}
}

// Config returns the limits the ranger was built with.
func (r *Ranger) Config() RangeConfig { return r.cfg }

// Consume processes one raw echo duration and makes it the current reading.
func (r *Ranger) Consume(echo time.Duration) Reading {
	d := ClampEcho(echo, r.cfg.EchoMin, r.cfg.EchoMax)
	switch {
	case echo < r.cfg.EchoMin && echo > 0:
		r.clamps.Low++
	case echo > r.cfg.EchoMax || echo <= 0:
		r.clamps.High++
	}
	cm := EchoToCentimeters(d)
	r.reading = Reading{
		Echo:        d,
		Centimeters: cm,
		Inches:      CentimetersToInches(cm),
		Interval:    r.cfg.BlinkInterval(cm),
	}
	r.valid = true
	return r.reading
}

// Valid reports whether any reading has been taken.
func (r *Ranger) Valid() bool { return r.valid }

// Reading returns the last reading. It is the zero Reading (with the slowest
// interval) until Valid.
func (r *Ranger) Reading() Reading { return r.reading }

// Clamps returns how many echoes were clamped so far.
func (r *Ranger) Clamps() ClampCounts { return r.clamps }
