package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ocpdiag/ocpdiag/model"
)

func record(t *testing.T, root, name string, ts time.Time) (string, *model.History) {
	t.Helper()
	h := &model.History{Name: name, Timestamp: ts, Status: model.TestStatusComplete, Result: model.TestResultPass}
	dir, err := NewEntryDir(root, h)
	require.NoError(t, err)
	require.NoError(t, Write(dir, h))
	return dir, h
}

func TestRecordAndLoad(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	oldDir, old := record(t, root, "memtest", base)
	_, recent := record(t, root, "cputest", base.Add(time.Hour))

	_, err := uuid.Parse(old.ID)
	require.NoError(t, err)
	require.Equal(t, "20240301-100000-"+ShortID(old.ID), filepath.Base(oldDir))

	// A broken entry is skipped.
	broken := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(broken, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, FileName), []byte("{"), 0644))

	entries, err := LoadEntries(zerolog.Nop(), root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, recent.ID, entries[0].History.ID)
	require.Equal(t, old.ID, entries[1].History.ID)
	require.Equal(t, oldDir, entries[1].FullPath)
}

func TestLoadEntriesMissingRoot(t *testing.T) {
	entries, err := LoadEntries(zerolog.Nop(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestOutputs(t *testing.T) {
	root := t.TempDir()
	h := &model.History{Name: "d", Timestamp: time.Now()}
	dir, err := NewEntryDir(root, h)
	require.NoError(t, err)

	inside := filepath.Join(dir, "results.rio")
	require.NoError(t, os.WriteFile(inside, []byte("12345"), 0644))
	outside := filepath.Join(t.TempDir(), "cpu.pprof")
	require.NoError(t, os.WriteFile(outside, []byte("ab"), 0644))

	require.NoError(t, AddOutput(h, dir, model.OutputTypeResults, inside))
	require.NoError(t, AddOutput(h, dir, model.OutputTypePprofProfile, outside))
	require.Error(t, AddOutput(h, dir, model.OutputTypeMetrics, filepath.Join(dir, "missing")))
	require.Equal(t, []model.Output{
		{Type: model.OutputTypeResults, Size: 5, File: "results.rio"},
		{Type: model.OutputTypePprofProfile, Size: 2, File: outside},
	}, h.Outputs)

	e := Entry{History: *h, FullPath: dir}
	p, ok := e.OutputPath(model.OutputTypeResults)
	require.True(t, ok)
	require.Equal(t, inside, p)
	p, ok = e.OutputPath(model.OutputTypePprofProfile)
	require.True(t, ok)
	require.Equal(t, outside, p)
	_, ok = e.OutputPath(model.OutputTypeMetrics)
	require.False(t, ok)
}

func TestFind(t *testing.T) {
	entries := []Entry{
		{History: model.History{ID: "abc123"}},
		{History: model.History{ID: "abd456"}},
	}

	e, err := Find(entries, "abc")
	require.NoError(t, err)
	require.Equal(t, "abc123", e.History.ID)

	_, err = Find(entries, "ab")
	require.ErrorContains(t, err, "ambiguous")
	_, err = Find(entries, "zz")
	require.Error(t, err)
}

func TestCountKinds(t *testing.T) {
	counts := CountKinds([]*model.Artifact{
		{TestRunArtifact: &model.TestRunArtifact{Tag: &model.Tag{Tag: "a"}}},
		{TestRunArtifact: &model.TestRunArtifact{Tag: &model.Tag{Tag: "b"}}},
		{TestStepArtifact: &model.TestStepArtifact{Log: &model.Log{}}},
	})
	require.Equal(t, map[model.ArtifactKind]int{
		model.ArtifactKindTag:     2,
		model.ArtifactKindStepLog: 1,
	}, counts)
}
