package remote

// This file contains the SSH client used to reach nodes under test. It
// drives the system ssh and scp binaries and multiplexes connections over
// a per-host control socket.

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// execCommand is replaced in tests.
var execCommand = exec.CommandContext

const defaultTimeout = 2 * time.Minute

// Client manages an SSH connection to a specific node.
type Client struct {
	logger         zerolog.Logger
	host           string
	controlPath    string
	identityFile   string
	knownHostsFile string
	proxyCommand   string
	extraOptions   []string
	timeout        time.Duration
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithIdentityFile sets the identity file (private key) to use for authentication.
func WithIdentityFile(path string) Option {
	return func(c *Client) {
		c.identityFile = path
	}
}

// WithKnownHostsFile sets the known hosts file to use for host verification.
func WithKnownHostsFile(path string) Option {
	return func(c *Client) {
		c.knownHostsFile = path
	}
}

// WithProxyCommand sets a proxy command for the SSH connection.
func WithProxyCommand(command string) Option {
	return func(c *Client) {
		c.proxyCommand = command
	}
}

// WithExtraOptions adds extra SSH options to the connection.
func WithExtraOptions(options ...string) Option {
	return func(c *Client) {
		c.extraOptions = append(c.extraOptions, options...)
	}
}

// WithTimeout bounds every command run over the connection.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a new client and establishes a multiplexed connection to host.
func New(logger zerolog.Logger, host string, opts ...Option) (*Client, error) {
	c := &Client{
		logger:  logger,
		host:    host,
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	controlPath, err := c.setupMultiplexing()
	if err != nil {
		return nil, fmt.Errorf("failed to setup SSH multiplexing: %w", err)
	}
	c.controlPath = controlPath

	return c, nil
}

// Close closes the master connection and removes the control socket.
func (c *Client) Close() error {
	c.logger.Debug().Str("controlPath", c.controlPath).Msg("Cleaning up SSH multiplexing")

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	args := []string{
		"-o", fmt.Sprintf("ControlPath=%s", c.controlPath),
		"-O", "exit",
		c.host,
	}
	_ = execCommand(ctx, "ssh", args...).Run() // master may already be gone

	if err := os.Remove(c.controlPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove control socket: %w", err)
	}
	return nil
}

// RunCommand executes a command on the node and returns its stdout.
func (c *Client) RunCommand(command string) (string, error) {
	out, err := c.run(command)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Client) run(command string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	args := c.buildSSHArgs()
	args = append(args, c.host, command)

	cmd := execCommand(ctx, "ssh", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug().
		Str("host", c.host).
		Str("command", command).
		Msg("Running remote command")

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("command failed: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// CopyFromRemote copies a file from the node to localPath using scp.
func (c *Client) CopyFromRemote(remotePath, localPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	args := c.buildSSHArgs()
	args = append(args, fmt.Sprintf("%s:%s", c.host, shellescape.Quote(remotePath)), localPath)
	cmd := execCommand(ctx, "scp", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug().
		Str("command", cmd.String()).
		Msg("Executing scp")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to copy %s from %s: %w (stderr: %s)", remotePath, c.host, err, stderr.String())
	}
	return nil
}

// buildSSHArgs constructs the SSH arguments with all configured options.
func (c *Client) buildSSHArgs() []string {
	args := []string{}

	if c.controlPath != "" {
		args = append(args,
			"-o", fmt.Sprintf("ControlPath=%s", c.controlPath),
			"-o", "ControlMaster=no",
		)
	}

	return append(args, c.authArgs()...)
}

func (c *Client) authArgs() []string {
	var args []string
	if c.identityFile != "" {
		args = append(args, "-i", c.identityFile)
	}
	if c.knownHostsFile != "" {
		args = append(args, "-o", fmt.Sprintf("UserKnownHostsFile=%s", c.knownHostsFile))
	}
	if c.proxyCommand != "" {
		args = append(args, "-o", fmt.Sprintf("ProxyCommand=%s", c.proxyCommand))
	}
	for _, opt := range c.extraOptions {
		args = append(args, "-o", opt)
	}
	return args
}

// System describes the operating system of a node.
type System struct {
	Hostname string
	OS       string
	Arch     string
	Kernel   string
}

// DetectSystem detects the hostname, OS, kernel and architecture of the node.
func (c *Client) DetectSystem() (System, error) {
	out, err := c.RunCommand("uname -n -s -r -m")
	if err != nil {
		return System{}, fmt.Errorf("failed to detect system: %w", err)
	}
	return parseUname(out)
}

// parseUname parses the output of `uname -n -s -r -m`.
func parseUname(out string) (System, error) {
	fields := strings.Fields(out)
	if len(fields) != 4 {
		return System{}, fmt.Errorf("unexpected uname output %q", strings.TrimSpace(out))
	}

	sys := System{
		OS:       strings.ToLower(fields[0]),
		Hostname: fields[1],
		Kernel:   fields[2],
	}

	// Normalize architecture to Go's GOARCH format
	switch arch := fields[3]; arch {
	case "x86_64", "amd64":
		sys.Arch = "amd64"
	case "aarch64", "arm64":
		sys.Arch = "arm64"
	case "i386", "i686":
		sys.Arch = "386"
	case "armv7l":
		sys.Arch = "arm"
	default:
		sys.Arch = arch
	}

	return sys, nil
}

// Host returns the node this client is connected to.
func (c *Client) Host() string {
	return c.host
}

// ControlPath returns the SSH control socket path.
func (c *Client) ControlPath() string {
	return c.controlPath
}

// setupMultiplexing establishes an SSH master connection for multiplexing.
func (c *Client) setupMultiplexing() (string, error) {
	controlDir := controlSocketDir()

	if err := os.MkdirAll(controlDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create control directory: %w", err)
	}

	// Unix domain sockets have a path length limit (typically 104-108 chars)
	hash := sha256.Sum256([]byte(c.host))
	hostHash := hex.EncodeToString(hash[:])[:12]
	controlPath := filepath.Join(controlDir, fmt.Sprintf("ssh-%s", hostHash))

	c.logger.Debug().
		Str("host", c.host).
		Str("controlPath", controlPath).
		Int("pathLength", len(controlPath)).
		Msg("Setting up SSH multiplexing")

	args := []string{
		"-o", "ControlMaster=auto",
		"-o", fmt.Sprintf("ControlPath=%s", controlPath),
		"-o", "ControlPersist=30s",
		"-o", "ConnectTimeout=10",
		"-o", "ServerAliveInterval=15",
		"-o", "ServerAliveCountMax=3",
	}
	args = append(args, c.authArgs()...)
	args = append(args,
		"-f", // Run in background
		"-N", // Don't execute a remote command
		c.host,
	)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	cmd := execCommand(ctx, "ssh", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to establish SSH master connection: %w (stderr: %s)", err, stderr.String())
	}

	c.logger.Debug().Str("host", c.host).Msg("SSH master connection established")
	return controlPath, nil
}

// controlSocketDir returns the directory to use for SSH control sockets.
func controlSocketDir() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "ocpdiag")
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home := os.Getenv("HOME"); home != "" {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		return filepath.Join(configHome, "ocpdiag")
	}

	return filepath.Join(os.TempDir(), "ocpdiag")
}
