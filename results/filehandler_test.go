package results

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ocpdiag/ocpdiag/model"
)

type fakeConn struct {
	files  map[string]string
	closed bool
}

func (c *fakeConn) CopyFromRemote(remotePath, localPath string) error {
	data, ok := c.files[remotePath]
	if !ok {
		return errors.New("no such file")
	}
	return os.WriteFile(localPath, []byte(data), 0644)
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestCopyRemoteFile(t *testing.T) {
	dir := t.TempDir()
	conn := &fakeConn{files: map[string]string{"/tmp/data/output": "payload"}}
	var dialed []string
	h := NewDefaultFileHandler(zerolog.Nop(),
		WithLocalDir(dir),
		WithDialer(func(address string) (Connection, error) {
			dialed = append(dialed, address)
			return conn, nil
		}),
	)

	f := &model.File{NodeAddress: "node1", OutputPath: "/tmp/data/output"}
	require.NoError(t, h.CopyRemoteFile(f))

	require.Equal(t, []string{"node1"}, dialed)
	require.True(t, conn.closed)
	require.Equal(t, "node1._tmp_data_output", f.UploadAsName)
	require.Equal(t, filepath.Join(dir, "node1._tmp_data_output"), f.OutputPath)
	data, err := os.ReadFile(f.OutputPath)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	t.Run("keeps upload name", func(t *testing.T) {
		f := &model.File{NodeAddress: "node1", OutputPath: "/tmp/data/output", UploadAsName: "result.bin"}
		require.NoError(t, h.CopyRemoteFile(f))
		require.Equal(t, "result.bin", f.UploadAsName)
	})

	t.Run("missing file", func(t *testing.T) {
		f := &model.File{NodeAddress: "node1", OutputPath: "/nope"}
		err := h.CopyRemoteFile(f)
		require.Error(t, err)
		require.Contains(t, err.Error(), "node1")
		require.Equal(t, "/nope", f.OutputPath)
		_, err = os.Stat(filepath.Join(dir, "node1._nope"))
		require.True(t, os.IsNotExist(err))
	})
}

func TestGetConnInterfaceError(t *testing.T) {
	dialErr := errors.New("host unreachable")
	h := NewDefaultFileHandler(zerolog.Nop(), WithDialer(func(string) (Connection, error) {
		return nil, dialErr
	}))

	_, err := h.GetConnInterface("node9")
	require.ErrorIs(t, err, dialErr)
	require.ErrorIs(t, h.CopyRemoteFile(&model.File{NodeAddress: "node9", OutputPath: "/x"}), dialErr)
}

func TestCopyLocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, os.WriteFile(src, []byte("trace"), 0600))
	dest := t.TempDir() + string(filepath.Separator)

	h := NewDefaultFileHandler(zerolog.Nop())
	f := &model.File{OutputPath: src}
	require.NoError(t, h.CopyLocalFile(f, dest))

	require.Equal(t, dest+"trace.log_copy", f.OutputPath)
	data, err := os.ReadFile(f.OutputPath)
	require.NoError(t, err)
	require.Equal(t, "trace", string(data))

	info, err := os.Stat(f.OutputPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.Error(t, h.CopyLocalFile(&model.File{OutputPath: filepath.Join(t.TempDir(), "missing")}, dest))
}

func TestNeedsLocalCopy(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "out.txt", want: false},
		{path: "sub/out.txt", want: false},
		{path: "../out.txt", want: true},
		{path: "/work/out.txt", want: false},
		{path: "/work/sub/out.txt", want: false},
		{path: "/tmp/out.txt", want: true},
		{path: "/workspace/out.txt", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, needsLocalCopy(tt.path, "/work"))
		})
	}
}
