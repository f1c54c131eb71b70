// Package display renders monitor state onto a 16x2 character display.
package display

import (
	"fmt"
	"math"
	"strings"

	"github.com/sweeney/range-monitor/internal/logic"
)

// Geometry of the character display.
const (
	Columns = 16
	Rows    = 2
)

// Lines is one full screen, already padded to Columns.
type Lines [Rows]string

// Presenter shows rendered lines on some output.
type Presenter interface {
	Present(Lines) error
	Close() error
}

// Frame is the state needed to draw one screen.
type Frame struct {
	Mode      logic.Mode
	Unit      logic.Unit
	Reading   logic.Reading
	Valid     bool    // Reading holds a real measurement
	Light     int     // last raw ambient sample
	WarningCm float64 // distance below which the warning line is shown
}

// Render returns the two lines for f.
func Render(f Frame) Lines {
	switch f.Mode {
	case logic.ModeDistance:
		if !f.Valid {
			return lines("Dist: --", "Measuring...")
		}
		// Pad on the value as printed so 99.999 lines up as 100.00.
		v := math.Round(f.Reading.In(f.Unit)*100) / 100
		second := "No obstacle."
		if f.Reading.Centimeters < f.WarningCm {
			second = "!! Warning !!"
		}
		return lines(fmt.Sprintf("Dist: %s%.2f %s", lead(v), v, f.Unit), second)
	case logic.ModeLuminosity:
		return lines(fmt.Sprintf("Luminosity: %d", f.Light), "")
	case logic.ModeReset:
		return lines("Press on OFF to", "reset settings.")
	case logic.ModeLock:
		return lines("!!! Obstacle !!!", "Press to unlock.")
	}
	return lines("", "")
}

// lead right-aligns values up to three integer digits.
func lead(v float64) string {
	switch {
	case v < 10:
		return "  "
	case v < 100:
		return " "
	}
	return ""
}

func lines(a, b string) Lines {
	return Lines{Pad(a), Pad(b)}
}

// Pad truncates or space-fills s to exactly Columns characters.
func Pad(s string) string {
	if len(s) >= Columns {
		return s[:Columns]
	}
	return s + strings.Repeat(" ", Columns-len(s))
}

// Discard is a Presenter that shows nothing.
type Discard struct{}

func (Discard) Present(Lines) error { return nil }
func (Discard) Close() error        { return nil }
