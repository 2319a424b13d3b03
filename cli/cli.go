package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/ocpdiag/ocpdiag/config"
)

const AppName = "ocpdiag"

type App struct {
	logger zerolog.Logger
	cli    *cli.App

	cfg     *config.Config
	version string
	args    []string

	stdin  io.Reader
	stdout io.Writer

	// stdinIsTerminal reports whether stdin is attached to a terminal.
	stdinIsTerminal func() bool
	now             func() time.Time
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger:          logger,
		version:         "dev",
		stdin:           os.Stdin,
		stdout:          os.Stdout,
		stdinIsTerminal: stdinIsTerminal,
		now:             time.Now,
	}
	app.cli = &cli.App{
		Name:  AppName,
		Usage: "Run OCP diagnostics and inspect their results",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				EnvVars: []string{"OCPDIAG_CONFIG"},
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			cfg, err := config.Load(ctx.String("config"))
			if err != nil {
				return err
			}
			app.cfg = cfg
			return nil
		},
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "run",
		Usage: "Run a diagnostic and record its results",
		Subcommands: []*cli.Command{
			{
				Name:   "simple",
				Usage:  "Run the example diagnostic that emits every kind of artifact",
				Action: app.runSimple,
				Flags:  runFlags(),
			},
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "view",
		Usage:     "Print the artifacts of a results file or a previous run",
		ArgsUsage: "[FILE|ID|INDEX] [-- pprof args]",
		Action:    app.view,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "kind",
				Usage: "Only print artifacts of this kind (repeatable)",
			},
			&cli.StringFlag{
				Name:  "step",
				Usage: "Only print artifacts of this test step ID",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Print artifact counts by kind instead of the artifacts",
			},
			&cli.BoolFlag{
				Name:  "profile",
				Usage: "Open the CPU profile of the run with go tool pprof",
			},
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Show at most this many runs (0 shows all)",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Only show runs of this diagnostic",
			},
		},
	})

	return app
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "results-file",
			Usage: "Binary record file (defaults to the history entry of the run)",
		},
		&cli.BoolFlag{
			Name:  "copy-results-to-stdout",
			Usage: "Mirror every artifact as a JSON line on stdout",
			Value: true,
		},
		&cli.StringFlag{
			Name:  "machine-under-test",
			Usage: "Node the diagnostic inspects (\"local\" or an SSH destination)",
		},
		&cli.StringSliceFlag{
			Name:  "nodes-under-test",
			Usage: "Additional nodes taking part in the run",
		},
		&cli.StringFlag{
			Name:  "params",
			Usage: "JSON parameters file (stdin is read when it is not a terminal)",
		},
		&cli.BoolFlag{
			Name:  "strict-registration",
			Usage: "Abort on diagnoses and series that reference unregistered hardware",
		},
		&cli.BoolFlag{
			Name:  "limit-violations-as-logs",
			Usage: "Report out of range measurements as warnings instead of errors",
		},
		&cli.StringFlag{
			Name:  "cpu-profile",
			Usage: "Record a CPU profile of the diagnostic to this file and attach it to the results",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write Prometheus metrics of the run in textfile format",
		},
	}
}

// applyRunFlags overrides cfg with the flags given on the command line.
func applyRunFlags(ctx *cli.Context, cfg *config.Config) {
	if ctx.IsSet("results-file") {
		cfg.ResultsFilepath = ctx.String("results-file")
	}
	if ctx.IsSet("copy-results-to-stdout") {
		cfg.CopyResultsToStdout = ctx.Bool("copy-results-to-stdout")
	}
	if ctx.IsSet("machine-under-test") {
		cfg.MachineUnderTest = ctx.String("machine-under-test")
	}
	if ctx.IsSet("nodes-under-test") {
		cfg.NodesUnderTest = ctx.StringSlice("nodes-under-test")
	}
	if ctx.IsSet("strict-registration") {
		cfg.StrictRegistration = ctx.Bool("strict-registration")
	}
	if ctx.IsSet("limit-violations-as-logs") {
		cfg.LimitViolationsAsLogs = ctx.Bool("limit-violations-as-logs")
	}
	if ctx.IsSet("metrics-file") {
		cfg.MetricsFile = ctx.String("metrics-file")
	}
}

func (a *App) Run(args []string) error {
	a.args = args
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.version = version
	a.cli.Version = version
	if len(commit) >= 8 && commit != "none" {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
