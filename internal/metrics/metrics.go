// Package metrics exposes loop and hardware counters for Prometheus.
//
// All methods are safe on a nil *Stats so callers can run without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/range-monitor/internal/logic"
)

const namespace = "range_monitor"

// Stats owns a private registry and the monitor's collectors.
type Stats struct {
	Registry *prometheus.Registry

	iterations     prometheus.Counter
	commands       *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	unitChanges    prometheus.Counter
	echoes         prometheus.Counter
	echoClamps     *prometheus.CounterVec
	echoMissing    prometheus.Counter
	buttonPresses  prometheus.Counter
	storeWrites    prometheus.Counter
	hardwareErrors *prometheus.CounterVec

	mode       prometheus.Gauge
	distance   prometheus.Gauge
	luminosity prometheus.Gauge
	ambient    prometheus.Gauge
}

// New returns Stats registered on a fresh registry together with the Go and
// process collectors.
func New() *Stats {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Stats{
		Registry: reg,
		iterations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Main loop iterations.",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Remote commands decoded, by command.",
		}, []string{"command"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_transitions_total",
			Help:      "Mode changes, by source and target mode.",
		}, []string{"from", "to"}),
		unitChanges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_changes_total",
			Help:      "Display unit changes.",
		}),
		echoes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "echo_samples_total",
			Help:      "Echo pulses consumed by the ranging pipeline.",
		}),
		echoClamps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "echo_clamped_total",
			Help:      "Echo pulses outside the plausible range, by bound.",
		}, []string{"bound"}),
		echoMissing: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "echo_missing_total",
			Help:      "Ranging slots that found no completed echo.",
		}),
		buttonPresses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "button_presses_total",
			Help:      "Debounced button presses taken by the loop.",
		}),
		storeWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Durable unit writes attempted.",
		}),
		hardwareErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hardware_errors_total",
			Help:      "Peripheral I/O errors, by operation.",
		}, []string{"op"}),
		mode: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "Active mode (0 DISTANCE, 1 LUMINOSITY, 2 RESET, 3 LOCK).",
		}),
		distance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distance_centimeters",
			Help:      "Last measured distance.",
		}),
		luminosity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "luminosity_raw",
			Help:      "Last raw ambient light sample (0-1023).",
		}),
		ambient: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ambient_led_level",
			Help:      "Last dimmer level written (0-255).",
		}),
	}
}

// Handler serves the registry.
func (s *Stats) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

func (s *Stats) Iteration() {
	if s == nil {
		return
	}
	s.iterations.Inc()
}

// Command counts a decoded command. CommandNone is not counted.
func (s *Stats) Command(cmd logic.Command) {
	if s == nil || cmd == logic.CommandNone {
		return
	}
	s.commands.WithLabelValues(cmd.String()).Inc()
}

// Event records a mode or unit change.
func (s *Stats) Event(e logic.Event) {
	if s == nil {
		return
	}
	switch e.Type {
	case logic.EventModeChanged:
		s.transitions.WithLabelValues(e.From.String(), e.To.String()).Inc()
		s.mode.Set(float64(e.To))
	case logic.EventUnitChanged:
		s.unitChanges.Inc()
	}
}

// Mode sets the mode gauge.
func (s *Stats) Mode(m logic.Mode) {
	if s == nil {
		return
	}
	s.mode.Set(float64(m))
}

// Echo records a consumed echo. low and high report which bound, if any,
// clamped it.
func (s *Stats) Echo(r logic.Reading, low, high bool) {
	if s == nil {
		return
	}
	s.echoes.Inc()
	s.distance.Set(r.Centimeters)
	if low {
		s.echoClamps.WithLabelValues("low").Inc()
	}
	if high {
		s.echoClamps.WithLabelValues("high").Inc()
	}
}

// EchoMissing counts a ranging slot without an echo.
func (s *Stats) EchoMissing() {
	if s == nil {
		return
	}
	s.echoMissing.Inc()
}

func (s *Stats) ButtonPress() {
	if s == nil {
		return
	}
	s.buttonPresses.Inc()
}

func (s *Stats) StoreWrite() {
	if s == nil {
		return
	}
	s.storeWrites.Inc()
}

// Light records an ambient sample and the dimmer level derived from it.
func (s *Stats) Light(raw int, level uint8) {
	if s == nil {
		return
	}
	s.luminosity.Set(float64(raw))
	s.ambient.Set(float64(level))
}

// HardwareError counts a failed peripheral operation.
func (s *Stats) HardwareError(op string) {
	if s == nil {
		return
	}
	s.hardwareErrors.WithLabelValues(op).Inc()
}
