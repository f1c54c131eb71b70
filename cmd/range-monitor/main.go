// Command range-monitor runs the proximity monitor: an ultrasonic range sensor,
// a light sensor, an IR remote and a push button driving a 16x2 display and
// indicator LEDs. Status is optionally served over HTTP and published to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

// envPrefix is prepended to flag names when read from the environment,
// e.g. RANGE_MONITOR_BROKER.
const envPrefix = "RANGE_MONITOR"

// options holds every flag. Common flags are registered on each command so
// they may appear before or after the subcommand name.
type options struct {
	profile  string
	store    string
	logLevel string
	logPlain bool
	logFile  string

	board     string
	display   string
	httpAddr  string
	broker    string
	heartbeat time.Duration
}

func main() {
	if err := buildCLI(os.Stdout).ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func registerCommon(fs *flag.FlagSet, o *options) {
	fs.StringVar(&o.profile, "profile", "", "board profile TOML file (empty for built-in defaults)")
	fs.StringVar(&o.store, "store", "", `settings store directory ("memory" for volatile; empty for the profile path)`)
	fs.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&o.logPlain, "log-plain", false, "disable coloured log output")
	fs.StringVar(&o.logFile, "log-file", "", "write logs to this file instead of stderr")
}

func buildCLI(stdout io.Writer) *ffcli.Command {
	var o options

	runFlagSet := flag.NewFlagSet("range-monitor run", flag.ExitOnError)
	registerCommon(runFlagSet, &o)
	runFlagSet.StringVar(&o.board, "board", "real", "peripherals: real (GPIO character device) or sim (keyboard-driven simulation)")
	runFlagSet.StringVar(&o.display, "display", "auto", "display: lcd, terminal, none or auto (lcd for real, terminal for sim)")
	runFlagSet.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	runFlagSet.StringVar(&o.broker, "broker", "", "MQTT broker address, e.g. tcp://192.168.1.200:1883 (empty to disable)")
	runFlagSet.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")

	runCmd := &ffcli.Command{
		Name:       "run",
		ShortUsage: "range-monitor run [flags]",
		ShortHelp:  "Run the monitor (default)",
		FlagSet:    runFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, _ []string) error {
			return execRun(o)
		},
	}

	stateFlagSet := flag.NewFlagSet("range-monitor state", flag.ExitOnError)
	registerCommon(stateFlagSet, &o)
	stateCmd := &ffcli.Command{
		Name:       "state",
		ShortUsage: "range-monitor state [flags]",
		ShortHelp:  "Print the saved unit and one light reading, then exit",
		FlagSet:    stateFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(_ context.Context, _ []string) error {
			return execState(o, stdout)
		},
	}

	resetFlagSet := flag.NewFlagSet("range-monitor reset-unit", flag.ExitOnError)
	registerCommon(resetFlagSet, &o)
	resetCmd := &ffcli.Command{
		Name:       "reset-unit",
		ShortUsage: "range-monitor reset-unit [flags]",
		ShortHelp:  "Reset the saved unit to centimetres",
		FlagSet:    resetFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(_ context.Context, _ []string) error {
			return execResetUnit(o, stdout)
		},
	}

	rootFlagSet := flag.NewFlagSet("range-monitor", flag.ExitOnError)
	registerCommon(rootFlagSet, &o)
	return &ffcli.Command{
		Name:        "range-monitor",
		ShortUsage:  "range-monitor [flags] <subcommand>",
		ShortHelp:   "Ultrasonic proximity monitor",
		LongHelp:    "Simulation keys (run -board sim):\n  Up/Down, PgUp/PgDn  move the obstacle\n  0 s p u d t         remote OFF STOP PLAY UP DOWN TOGGLE_UNIT\n  space               push button\n  [ ]                 ambient light down/up\n  q, Esc              quit",
		FlagSet:     rootFlagSet,
		Options:     []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Subcommands: []*ffcli.Command{runCmd, stateCmd, resetCmd},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unknown subcommand %q", args[0])
			}
			return execRun(o)
		},
	}
}

// newLogger builds the tint handler for level. plain disables colour.
func newLogger(w io.Writer, level string, plain bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.DateTime,
		NoColor:    plain,
	})), nil
}
