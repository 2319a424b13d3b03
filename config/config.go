// Package config loads the settings of the ocpdiag command.
//
// Settings are resolved in order, later sources winning:
//  1. built-in defaults;
//  2. a YAML file, if one is given;
//  3. OCPDIAG_* environment variables, including those loaded from .env.
//
// Command line flags are applied on top by the cli package.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ocpdiag/ocpdiag/metrics"
	"github.com/ocpdiag/ocpdiag/recordio"
	"github.com/ocpdiag/ocpdiag/remote"
	"github.com/ocpdiag/ocpdiag/results"
)

// LocalMachine is the machine under test when the diagnostic runs on the
// DUT itself.
const LocalMachine = "local"

// SSHConfig configures connections to remote nodes.
type SSHConfig struct {
	IdentityFile   string        `yaml:"identity_file"`
	KnownHostsFile string        `yaml:"known_hosts_file"`
	ProxyCommand   string        `yaml:"proxy_command"`
	ExtraOptions   []string      `yaml:"extra_options"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Config holds the resolved settings.
type Config struct {
	// Binary record file; empty disables the durable sink
	ResultsFilepath string `yaml:"results_filepath"`
	// Mirror every artifact as a JSON line on stdout
	CopyResultsToStdout bool     `yaml:"copy_results_to_stdout"`
	MachineUnderTest    string   `yaml:"machine_under_test"`
	NodesUnderTest      []string `yaml:"nodes_under_test"`
	// Panic on unregistered hardware in diagnoses and series
	StrictRegistration    bool   `yaml:"strict_registration"`
	LimitViolationsAsLogs bool   `yaml:"limit_violations_as_logs"`
	HistoryDir            string `yaml:"history_dir"`
	MetricsFile           string `yaml:"metrics_file"`
	// Read parameters from stdin even when it is a terminal
	AlwaysReadStdin bool      `yaml:"always_read_stdin"`
	SSH             SSHConfig `yaml:"ssh"`
}

var envPaths = []string{
	".env",
	"../.env",
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		CopyResultsToStdout: true,
		MachineUnderTest:    LocalMachine,
		HistoryDir:          defaultHistoryDir(),
	}
}

// Load resolves the configuration. path names an optional YAML file; a
// missing .env file is not an error.
func Load(path string) (*Config, error) {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("OCPDIAG_RESULTS_FILEPATH"); ok {
		c.ResultsFilepath = v
	}
	if v, ok := os.LookupEnv("OCPDIAG_MACHINE_UNDER_TEST"); ok && v != "" {
		c.MachineUnderTest = v
	}
	if v, ok := os.LookupEnv("OCPDIAG_NODES_UNDER_TEST"); ok {
		c.NodesUnderTest = splitList(v)
	}
	if v, ok := os.LookupEnv("OCPDIAG_HISTORY_DIR"); ok && v != "" {
		c.HistoryDir = v
	}
	if v, ok := os.LookupEnv("OCPDIAG_METRICS_FILE"); ok {
		c.MetricsFile = v
	}
	if v, ok := os.LookupEnv("OCPDIAG_SSH_IDENTITY_FILE"); ok {
		c.SSH.IdentityFile = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"OCPDIAG_COPY_RESULTS_TO_STDOUT", &c.CopyResultsToStdout},
		{"OCPDIAG_STRICT_REGISTRATION", &c.StrictRegistration},
		{"OCPDIAG_LIMIT_VIOLATIONS_AS_LOGS", &c.LimitViolationsAsLogs},
	}
	for _, b := range bools {
		v, ok := os.LookupEnv(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	// Any non-empty value forces reading stdin.
	if v := os.Getenv("OCPDIAG_STDIN"); v != "" {
		c.AlwaysReadStdin = true
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultHistoryDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "ocpdiag")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "ocpdiag")
	}
	return filepath.Join(os.TempDir(), "ocpdiag")
}

// Remote reports whether the machine under test is reached over SSH.
func (c *Config) Remote() bool {
	return c.MachineUnderTest != "" && c.MachineUnderTest != LocalMachine
}

// SSHOptions converts the SSH settings into client options.
func (c *Config) SSHOptions() []remote.Option {
	var opts []remote.Option
	if c.SSH.IdentityFile != "" {
		opts = append(opts, remote.WithIdentityFile(c.SSH.IdentityFile))
	}
	if c.SSH.KnownHostsFile != "" {
		opts = append(opts, remote.WithKnownHostsFile(c.SSH.KnownHostsFile))
	}
	if c.SSH.ProxyCommand != "" {
		opts = append(opts, remote.WithProxyCommand(c.SSH.ProxyCommand))
	}
	if len(c.SSH.ExtraOptions) > 0 {
		opts = append(opts, remote.WithExtraOptions(c.SSH.ExtraOptions...))
	}
	if c.SSH.Timeout > 0 {
		opts = append(opts, remote.WithTimeout(c.SSH.Timeout))
	}
	return opts
}

// ResultsOptions builds the run options for the configured outputs. The
// record file, if any, is created here and closed when the run is
// closed. stdout receives the JSON mirror.
func (c *Config) ResultsOptions(logger zerolog.Logger, m *metrics.Metrics, stdout io.Writer) ([]results.Option, error) {
	var sink results.RecordSink
	if c.ResultsFilepath != "" {
		w, err := recordio.Create(c.ResultsFilepath)
		if err != nil {
			return nil, err
		}
		sink = w
	}

	writerOpts := []results.WriterOption{
		results.WithWriterLogger(logger),
		results.WithWriterMetrics(m),
	}
	if c.CopyResultsToStdout && stdout != nil {
		writerOpts = append(writerOpts, results.WithJSONMirror(stdout))
	}

	return []results.Option{
		results.WithLogger(logger),
		results.WithWriter(results.NewArtifactWriter(sink, writerOpts...)),
		results.WithMetrics(m),
		results.WithStrictRegistration(c.StrictRegistration),
		results.WithLimitViolationsAsLogs(c.LimitViolationsAsLogs),
		results.WithFileHandler(results.NewDefaultFileHandler(logger, results.WithSSHOptions(c.SSHOptions()...))),
	}, nil
}
