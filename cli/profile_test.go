package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"
)

func TestCPUProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.pprof")

	p, err := startCPUProfile(path)
	require.NoError(t, err)
	sum := 0
	for i := 0; i < 1000000; i++ {
		sum += i % 7
	}
	require.NotZero(t, sum)
	require.NoError(t, p.Stop())

	samples, err := annotateProfile(path, "ocpdiag run abc", "diagnostic simple")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	prof, err := profile.Parse(f)
	require.NoError(t, err)
	require.Equal(t, []string{"ocpdiag run abc", "diagnostic simple"}, prof.Comments)
	require.Equal(t, samples, len(prof.Sample))

	file := profileFile(path, samples)
	require.Equal(t, "cpu.pprof", file.UploadAsName)
	require.Equal(t, path, file.OutputPath)
}

func TestAnnotateProfileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := annotateProfile(filepath.Join(dir, "missing.pprof"))
	require.Error(t, err)

	garbage := filepath.Join(dir, "garbage.pprof")
	require.NoError(t, os.WriteFile(garbage, []byte("not a profile"), 0644))
	_, err = annotateProfile(garbage)
	require.ErrorContains(t, err, "failed to parse")
}
