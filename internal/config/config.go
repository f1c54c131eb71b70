// Package config loads the board profile: pin assignments, remote keymap and
// the timing and range constants of the control loop.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/range-monitor/internal/gpio"
	"github.com/sweeney/range-monitor/internal/logic"
	"github.com/sweeney/range-monitor/internal/remote"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid profile")

// Config is a board profile.
type Config struct {
	Loop       Loop       `toml:"loop"`
	Pins       Pins       `toml:"pins"`
	Remote     Remote     `toml:"remote"`
	Ranging    Ranging    `toml:"ranging"`
	Indicators Indicators `toml:"indicators"`
	Light      Light      `toml:"light"`
	Display    Display    `toml:"display"`
	Store      Store      `toml:"store"`
}

type Loop struct {
	Tick time.Duration `toml:"tick"`
}

type Pins struct {
	Chip     string `toml:"chip"`
	Trigger  int    `toml:"trigger"`
	Echo     int    `toml:"echo"`
	Button   int    `toml:"button"`
	IR       int    `toml:"ir"`
	Activity int    `toml:"activity"`
	Alert    int    `toml:"alert"`
}

// Remote configures the IR adapter. Keys maps command names (OFF, STOP,
// PLAY, UP, DOWN, TOGGLE_UNIT) to remote command bytes.
type Remote struct {
	PollInterval  time.Duration  `toml:"poll_interval"`
	AcceptRepeats bool           `toml:"accept_repeats"`
	Keys          map[string]int `toml:"keys"`
}

type Ranging struct {
	Interval   time.Duration `toml:"interval"`
	EchoMin    time.Duration `toml:"echo_min"`
	EchoMax    time.Duration `toml:"echo_max"`
	MinCm      float64       `toml:"min_cm"`
	MaxCm      float64       `toml:"max_cm"`
	BlinkMin   time.Duration `toml:"blink_min"`
	BlinkMax   time.Duration `toml:"blink_max"`
	LockZoneCm float64       `toml:"lock_zone_cm"`
	WarningCm  float64       `toml:"warning_cm"`
}

type Indicators struct {
	LockBlink      time.Duration `toml:"lock_blink"`
	ButtonDebounce time.Duration `toml:"button_debounce"`
}

// Light configures the ambient sensor and the dimmed LED. An empty IIOPath
// or PWMPin disables that side.
type Light struct {
	Interval     time.Duration `toml:"interval"`
	IIOPath      string        `toml:"iio_path"`
	Bits         int           `toml:"bits"`
	PWMPin       string        `toml:"pwm_pin"`
	PWMFrequency int           `toml:"pwm_frequency_hz"`
}

type Display struct {
	I2CBus  string `toml:"i2c_bus"`
	Address int    `toml:"address"`
}

type Store struct {
	Path string `toml:"path"`
}

// Default returns the reference board profile.
func Default() Config {
	p := gpio.DefaultPins()
	r := logic.DefaultRangeConfig()

	km := remote.DefaultKeymap()
	keys := make(map[string]int)
	for code, cmd := range km.Codes {
		keys[cmd.String()] = int(code)
	}

	return Config{
		Loop: Loop{Tick: 2 * time.Millisecond},
		Pins: Pins{
			Chip:     p.Chip,
			Trigger:  p.Trigger,
			Echo:     p.Echo,
			Button:   p.Button,
			IR:       p.IR,
			Activity: p.Activity,
			Alert:    p.Alert,
		},
		Remote: Remote{
			PollInterval:  20 * time.Millisecond,
			AcceptRepeats: km.AcceptRepeats,
			Keys:          keys,
		},
		Ranging: Ranging{
			Interval:   100 * time.Millisecond,
			EchoMin:    r.EchoMin,
			EchoMax:    r.EchoMax,
			MinCm:      r.MinCm,
			MaxCm:      r.MaxCm,
			BlinkMin:   r.BlinkMin,
			BlinkMax:   r.BlinkMax,
			LockZoneCm: 5,
			WarningCm:  30,
		},
		Indicators: Indicators{
			LockBlink:      logic.LockBlink,
			ButtonDebounce: 100 * time.Millisecond,
		},
		Light: Light{
			Interval:     100 * time.Millisecond,
			IIOPath:      "/sys/bus/iio/devices/iio:device0/in_voltage0_raw",
			Bits:         10,
			PWMPin:       "GPIO18",
			PWMFrequency: 1000,
		},
		Display: Display{
			Address: 0x27,
		},
		Store: Store{
			Path: "/var/lib/range-monitor",
		},
	}
}

// Load reads a profile from path on top of Default and validates it.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg, keys := base()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode profile %s: %w", path, err)
	}
	return finish(cfg, keys, md)
}

// Parse is Load for an in-memory document.
func Parse(doc string) (Config, error) {
	cfg, keys := base()
	md, err := toml.Decode(doc, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode profile: %w", err)
	}
	return finish(cfg, keys, md)
}

// base returns Default with the remote keys split off, so a profile's
// [remote.keys] can be merged by command name regardless of case.
func base() (Config, map[string]int) {
	cfg := Default()
	keys := cfg.Remote.Keys
	cfg.Remote.Keys = nil
	return cfg, keys
}

func finish(cfg Config, defaults map[string]int, md toml.MetaData) (Config, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}
	keys, err := mergeKeys(defaults, cfg.Remote.Keys)
	if err != nil {
		return cfg, err
	}
	cfg.Remote.Keys = keys
	return cfg, cfg.Validate()
}

// mergeKeys overlays profile key bindings on the defaults. Command names are
// case-insensitive; naming one command twice in different case is an error.
func mergeKeys(defaults, profile map[string]int) (map[string]int, error) {
	out := make(map[string]int, len(defaults))
	for name, code := range defaults {
		out[strings.ToUpper(name)] = code
	}
	spelled := make(map[string]string, len(profile))
	for name, code := range profile {
		upper := strings.ToUpper(name)
		if prev, dup := spelled[upper]; dup {
			return nil, fmt.Errorf("%w: remote.keys: %q and %q name the same command", ErrInvalid, prev, name)
		}
		spelled[upper] = name
		out[upper] = code
	}
	return out, nil
}

// Validate checks ranges, intervals, pins and keymap.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	for name, d := range map[string]time.Duration{
		"loop.tick":                  c.Loop.Tick,
		"remote.poll_interval":       c.Remote.PollInterval,
		"ranging.interval":           c.Ranging.Interval,
		"indicators.lock_blink":      c.Indicators.LockBlink,
		"indicators.button_debounce": c.Indicators.ButtonDebounce,
		"light.interval":             c.Light.Interval,
	} {
		if d <= 0 {
			bad("%s must be positive, got %v", name, d)
		}
	}

	r := c.Ranging
	if r.EchoMin <= 0 || r.EchoMin >= r.EchoMax {
		bad("ranging echo range [%v, %v] is empty or inverted", r.EchoMin, r.EchoMax)
	}
	if r.MinCm < 0 || r.MinCm >= r.MaxCm {
		bad("ranging distance range [%v, %v] is empty or inverted", r.MinCm, r.MaxCm)
	}
	if r.BlinkMin <= 0 || r.BlinkMin > r.BlinkMax {
		bad("ranging blink range [%v, %v] is inverted", r.BlinkMin, r.BlinkMax)
	}
	if r.LockZoneCm < 0 || r.WarningCm < 0 {
		bad("ranging zones must not be negative")
	}

	seen := make(map[int]string)
	offsets := c.GPIOPins().Offsets()
	roles := make([]string, 0, len(offsets))
	for role := range offsets {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		off := offsets[role]
		if off < 0 {
			bad("pins.%s must not be negative", role)
			continue
		}
		if other, ok := seen[off]; ok {
			bad("pins.%s and pins.%s share offset %d", other, role, off)
		}
		seen[off] = role
	}

	if _, err := c.Keymap(); err != nil {
		errs = append(errs, err)
	}
	if c.Light.Bits < 0 || c.Light.Bits > 24 {
		bad("light.bits %d out of range", c.Light.Bits)
	}
	if c.Display.Address < 0 || c.Display.Address > 0x7f {
		bad("display.address 0x%x is not a 7-bit address", c.Display.Address)
	}
	return errors.Join(errs...)
}

// GPIOPins returns the pin assignment.
func (c Config) GPIOPins() gpio.Pins {
	return gpio.Pins{
		Chip:     c.Pins.Chip,
		Trigger:  c.Pins.Trigger,
		Echo:     c.Pins.Echo,
		Button:   c.Pins.Button,
		IR:       c.Pins.IR,
		Activity: c.Pins.Activity,
		Alert:    c.Pins.Alert,
	}
}

// Keymap builds the remote keymap.
func (c Config) Keymap() (remote.Keymap, error) {
	k := remote.Keymap{
		Codes:         make(map[uint8]logic.Command),
		AcceptRepeats: c.Remote.AcceptRepeats,
	}
	for name, code := range c.Remote.Keys {
		cmd, ok := logic.ParseCommand(strings.ToUpper(name))
		if !ok || cmd == logic.CommandNone {
			return remote.Keymap{}, fmt.Errorf("%w: remote.keys: unknown command %q", ErrInvalid, name)
		}
		if code < 0 || code > 0xff {
			return remote.Keymap{}, fmt.Errorf("%w: remote.keys.%s: code %d is not a byte", ErrInvalid, name, code)
		}
		if prev, dup := k.Codes[uint8(code)]; dup {
			return remote.Keymap{}, fmt.Errorf("%w: remote.keys: code %d bound to %s and %s", ErrInvalid, code, prev, cmd)
		}
		k.Codes[uint8(code)] = cmd
	}
	return k, nil
}

// RangeConfig returns the ranging limits.
func (c Config) RangeConfig() logic.RangeConfig {
	return logic.RangeConfig{
		EchoMin:  c.Ranging.EchoMin,
		EchoMax:  c.Ranging.EchoMax,
		MinCm:    c.Ranging.MinCm,
		MaxCm:    c.Ranging.MaxCm,
		BlinkMin: c.Ranging.BlinkMin,
		BlinkMax: c.Ranging.BlinkMax,
	}
}
