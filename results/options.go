package results

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocpdiag/ocpdiag/metrics"
)

// Option configures a TestRun.
type Option func(*runConfig)

type runConfig struct {
	logger                zerolog.Logger
	writer                *ArtifactWriter
	sink                  ResultSink
	files                 FileHandler
	registry              *RunRegistry
	metrics               *metrics.Metrics
	version               string
	strictRegistration    bool
	limitViolationsAsLogs bool
	fatalHook             func(msg string)
	now                   func() time.Time
}

func defaultRunConfig() runConfig {
	return runConfig{
		logger:   zerolog.Nop(),
		registry: DefaultRegistry,
		now:      time.Now,
	}
}

// WithLogger sets the logger for conditions that cannot be reported as
// artifacts.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithWriter sets the writer the run and its steps emit through. The run
// takes ownership and closes it on Close. Without it artifacts are
// mirrored to stdout only.
func WithWriter(w *ArtifactWriter) Option {
	return func(c *runConfig) {
		c.writer = w
	}
}

// WithResultSink replaces the result calculator.
func WithResultSink(s ResultSink) Option {
	return func(c *runConfig) {
		c.sink = s
	}
}

// WithFileHandler replaces the handler used by TestStep.AddFile.
func WithFileHandler(f FileHandler) Option {
	return func(c *runConfig) {
		c.files = f
	}
}

// WithRegistry enforces the single active run rule against r instead of
// DefaultRegistry. A nil registry disables enforcement.
func WithRegistry(r *RunRegistry) Option {
	return func(c *runConfig) {
		c.registry = r
	}
}

// WithMetrics records run outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *runConfig) {
		c.metrics = m
	}
}

// WithVersion sets the diagnostic version reported in the run start.
func WithVersion(version string) Option {
	return func(c *runConfig) {
		c.version = version
	}
}

// WithStrictRegistration makes diagnoses and measurement series that
// reference unregistered hardware panic instead of reporting an error.
func WithStrictRegistration(strict bool) Option {
	return func(c *runConfig) {
		c.strictRegistration = strict
	}
}

// WithLimitViolationsAsLogs reports out of range and invalid measurement
// values as warning logs instead of errors.
func WithLimitViolationsAsLogs(asLogs bool) Option {
	return func(c *runConfig) {
		c.limitViolationsAsLogs = asLogs
	}
}

// WithFatalHook replaces the function LogFatal calls after writing and
// flushing the log. The default exits the process.
func WithFatalHook(hook func(msg string)) Option {
	return func(c *runConfig) {
		c.fatalHook = hook
	}
}

// WithNow overrides the clock used for DUT timestamps and durations.
func WithNow(now func() time.Time) Option {
	return func(c *runConfig) {
		c.now = now
	}
}

func (c *runConfig) finish() {
	if c.writer == nil {
		c.writer = NewArtifactWriter(nil, WithJSONMirror(os.Stdout), WithWriterLogger(c.logger))
	}
	if c.sink == nil {
		c.sink = NewCalculator()
	}
	if c.files == nil {
		c.files = NewDefaultFileHandler(c.logger)
	}
	if c.fatalHook == nil {
		logger := c.logger
		c.fatalHook = func(msg string) {
			logger.WithLevel(zerolog.FatalLevel).Msg(msg)
			os.Exit(1)
		}
	}
}
