package results

// This file contains the file copy collaborator used to bring remote and
// out-of-tree files into the working directory before they are reported.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ocpdiag/ocpdiag/model"
	"github.com/ocpdiag/ocpdiag/remote"
)

// Connection is an open connection to a remote node.
type Connection interface {
	// CopyFromRemote copies remotePath on the node to localPath.
	CopyFromRemote(remotePath, localPath string) error
	Close() error
}

// FileHandler copies files referenced by File artifacts.
type FileHandler interface {
	// GetConnInterface connects to the node at address.
	GetConnInterface(address string) (Connection, error)
	// CopyRemoteFile copies f from its node into the working directory and
	// rewrites its output path and upload name.
	CopyRemoteFile(f *model.File) error
	// CopyLocalFile copies f into destDir and rewrites its output path.
	CopyLocalFile(f *model.File, destDir string) error
}

// FileHandlerOption configures a DefaultFileHandler.
type FileHandlerOption func(*DefaultFileHandler)

// WithDialer replaces the function used to connect to nodes.
func WithDialer(dial func(address string) (Connection, error)) FileHandlerOption {
	return func(h *DefaultFileHandler) {
		h.dial = dial
	}
}

// WithSSHOptions passes opts to every SSH connection.
func WithSSHOptions(opts ...remote.Option) FileHandlerOption {
	return func(h *DefaultFileHandler) {
		h.sshOpts = append(h.sshOpts, opts...)
	}
}

// WithLocalDir sets the directory remote files are copied into. It
// defaults to the working directory.
func WithLocalDir(dir string) FileHandlerOption {
	return func(h *DefaultFileHandler) {
		h.localDir = dir
	}
}

// DefaultFileHandler reaches nodes over SSH.
type DefaultFileHandler struct {
	logger   zerolog.Logger
	dial     func(address string) (Connection, error)
	sshOpts  []remote.Option
	localDir string
}

func NewDefaultFileHandler(logger zerolog.Logger, opts ...FileHandlerOption) *DefaultFileHandler {
	h := &DefaultFileHandler{logger: logger}
	h.dial = func(address string) (Connection, error) {
		return remote.New(h.logger, address, h.sshOpts...)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *DefaultFileHandler) GetConnInterface(address string) (Connection, error) {
	conn, err := h.dial(address)
	if err != nil {
		return nil, fmt.Errorf("could not establish connection to remote node %s for file transfer: %w", address, err)
	}
	return conn, nil
}

// CopyRemoteFile names the local copy after the node and the remote path,
// e.g. /tmp/data/output on node1 becomes node1._tmp_data_output.
func (h *DefaultFileHandler) CopyRemoteFile(f *model.File) error {
	conn, err := h.GetConnInterface(f.NodeAddress)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			h.logger.Debug().Err(err).Str("node", f.NodeAddress).Msg("Failed to close connection")
		}
	}()

	localName := strings.ReplaceAll(f.NodeAddress+"."+f.OutputPath, "/", "_")
	localPath := localName
	if h.localDir != "" {
		localPath = filepath.Join(h.localDir, localName)
	}
	if err := conn.CopyFromRemote(f.OutputPath, localPath); err != nil {
		return fmt.Errorf("failed to copy remote file on node %s with file path %s: %w", f.NodeAddress, f.OutputPath, err)
	}

	h.logger.Debug().
		Str("node", f.NodeAddress).
		Str("remote", f.OutputPath).
		Str("local", localPath).
		Msg("Copied remote file")

	if f.UploadAsName == "" {
		f.UploadAsName = localName
	}
	f.OutputPath = localPath
	return nil
}

// CopyLocalFile copies f to <destDir><basename>_copy, overwriting it.
func (h *DefaultFileHandler) CopyLocalFile(f *model.File, destDir string) error {
	src := f.OutputPath
	dst := destDir + filepath.Base(src) + "_copy"
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy file %s: %w", src, err)
	}
	f.OutputPath = dst
	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	// Copy file permissions
	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}

// needsLocalCopy reports whether a local path may lie outside of cwd.
func needsLocalCopy(path, cwd string) bool {
	if strings.HasPrefix(path, "../") {
		return true
	}
	if !filepath.IsAbs(path) {
		return false
	}
	rel, err := filepath.Rel(cwd, path)
	return err != nil || rel == ".." || strings.HasPrefix(rel, "../")
}
