package cli

// This file contains the run command, which executes a diagnostic and
// records it in the history.

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/ocpdiag/ocpdiag/config"
	"github.com/ocpdiag/ocpdiag/examples/simple"
	"github.com/ocpdiag/ocpdiag/history"
	"github.com/ocpdiag/ocpdiag/metrics"
	"github.com/ocpdiag/ocpdiag/model"
	"github.com/ocpdiag/ocpdiag/recordio"
	"github.com/ocpdiag/ocpdiag/remote"
	"github.com/ocpdiag/ocpdiag/results"
)

const resultsFileName = "results.rio"

func (a *App) runSimple(ctx *cli.Context) error {
	cfg := *a.cfg
	applyRunFlags(ctx, &cfg)

	fromStdin := shouldReadStdin(cfg.AlwaysReadStdin, a.stdinIsTerminal(), os.Getenv("TERM"))
	params, err := readParams(ctx.String("params"), a.stdin, fromStdin)
	if err != nil {
		return err
	}

	target, sys, err := a.detectTarget(&cfg)
	if err != nil {
		return err
	}

	h := &model.History{
		Name:      simple.Name,
		Version:   a.version,
		Timestamp: a.now(),
		Args:      a.args,
		Target:    target,
	}
	dir, err := history.NewEntryDir(cfg.HistoryDir, h)
	if err != nil {
		return err
	}
	if cfg.ResultsFilepath == "" {
		cfg.ResultsFilepath = filepath.Join(dir, resultsFileName)
	}

	m := metrics.New()
	opts, err := cfg.ResultsOptions(a.logger, m, a.stdout)
	if err != nil {
		return err
	}
	opts = append(opts, results.WithVersion(a.version))

	var prof *cpuProfile
	if path := ctx.String("cpu-profile"); path != "" {
		prof, err = startCPUProfile(path)
		if err != nil {
			return err
		}
	}

	api := results.NewAPI(opts...)
	run, err := api.InitializeTestRun(simple.Name)
	if err != nil {
		if prof != nil {
			_ = prof.Stop()
		}
		return err
	}

	a.logger.Info().Str("id", history.ShortID(h.ID)).Str("machine", target.Machine).Msg("Starting diagnostic")

	for _, node := range cfg.NodesUnderTest {
		run.AddTag("node:" + node)
	}

	var result *multierror.Error
	if err := simple.Run(api, run, simple.Config{
		Hostname: sys.Hostname,
		Platform: sys.platform(),
		Params:   params,
	}); err != nil {
		result = multierror.Append(result, err)
	}

	if prof != nil {
		if err := a.attachProfile(api, run, prof, h); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to attach CPU profile")
		}
	}

	run.End()
	if err := run.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close results: %w", err))
	}

	h.Duration = a.now().Sub(h.Timestamp)
	h.Status = run.Status()
	h.Result = run.Result()
	if err := a.recordHistory(h, dir, &cfg, m, prof); err != nil {
		result = multierror.Append(result, err)
	}

	a.logger.Info().
		Str("status", string(h.Status)).
		Str("result", string(h.Result)).
		Dur("duration", h.Duration).
		Str("history", dir).
		Msg("Diagnostic finished")

	return result.ErrorOrNil()
}

// targetSystem describes the machine under test.
type targetSystem struct {
	remote.System
}

func (s targetSystem) platform() []string {
	info := []string{fmt.Sprintf("%s/%s", s.OS, s.Arch)}
	if s.Kernel != "" {
		info = append(info, "kernel "+s.Kernel)
	}
	return info
}

// detectTarget identifies the machine under test, connecting to it when it
// is remote.
func (a *App) detectTarget(cfg *config.Config) (*model.Target, targetSystem, error) {
	if !cfg.Remote() {
		hostname, err := os.Hostname()
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to get hostname")
		}
		sys := targetSystem{remote.System{Hostname: hostname, OS: runtime.GOOS, Arch: runtime.GOARCH}}
		return &model.Target{Machine: config.LocalMachine, OS: sys.OS, Arch: sys.Arch}, sys, nil
	}

	client, err := remote.New(a.logger, cfg.MachineUnderTest, cfg.SSHOptions()...)
	if err != nil {
		return nil, targetSystem{}, fmt.Errorf("failed to connect to %s: %w", cfg.MachineUnderTest, err)
	}
	defer client.Close()

	sys, err := client.DetectSystem()
	if err != nil {
		return nil, targetSystem{}, err
	}
	a.logger.Debug().Str("host", sys.Hostname).Str("os", sys.OS).Str("arch", sys.Arch).Msg("Detected machine under test")
	return &model.Target{Machine: cfg.MachineUnderTest, OS: sys.OS, Arch: sys.Arch}, targetSystem{sys}, nil
}

// attachProfile stops the CPU profile and reports it as a file of its own
// test step.
func (a *App) attachProfile(api *results.API, run *results.TestRun, prof *cpuProfile, h *model.History) error {
	if err := prof.Stop(); err != nil {
		return err
	}
	samples, err := annotateProfile(prof.path,
		fmt.Sprintf("ocpdiag run %s", h.ID),
		fmt.Sprintf("diagnostic %s %s", h.Name, h.Version),
	)
	if err != nil {
		return err
	}

	step, err := api.BeginTestStep(run, ProfileStep)
	if err != nil {
		return err
	}
	step.AddFile(profileFile(prof.path, samples))
	step.End()

	a.logger.Info().Msgf("View profile with: go tool pprof %s", prof.path)
	return nil
}

// recordHistory stores the outputs of the run next to its history entry.
func (a *App) recordHistory(h *model.History, dir string, cfg *config.Config, m *metrics.Metrics, prof *cpuProfile) error {
	var result *multierror.Error

	artifacts, err := recordio.ReadAll(cfg.ResultsFilepath)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to read back results: %w", err))
	}
	h.Counts = history.CountKinds(artifacts)
	if err := history.AddOutput(h, dir, model.OutputTypeResults, absPath(cfg.ResultsFilepath)); err != nil {
		result = multierror.Append(result, err)
	}

	if prof != nil {
		if err := history.AddOutput(h, dir, model.OutputTypePprofProfile, absPath(prof.path)); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			result = multierror.Append(result, err)
		} else if err := history.AddOutput(h, dir, model.OutputTypeMetrics, absPath(cfg.MetricsFile)); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := history.Write(dir, h); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
