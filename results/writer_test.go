package results

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ocpdiag/ocpdiag/metrics"
	"github.com/ocpdiag/ocpdiag/model"
	"github.com/ocpdiag/ocpdiag/results/resultstest"
)

var _ RecordSink = (*resultstest.MemorySink)(nil)

func logArtifact(text string) *model.Artifact {
	return &model.Artifact{TestRunArtifact: &model.TestRunArtifact{
		Log: &model.Log{Severity: model.LogSeverityInfo, Text: text},
	}}
}

func TestWriterSequenceNumbers(t *testing.T) {
	sink := resultstest.NewMemorySink()
	w := NewArtifactWriter(sink)
	shared := []*ArtifactWriter{w, w.Share(), w.Share(), w.Share()}

	const perWriter = 100
	var g errgroup.Group
	for _, sw := range shared {
		g.Go(func() error {
			for i := 0; i < perWriter; i++ {
				sw.Write(logArtifact("hello"))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got := sink.Artifacts()
	require.Len(t, got, perWriter*len(shared))
	for i, a := range got {
		require.Equal(t, i, a.SequenceNumber)
	}
}

func TestWriterTimestamps(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sink := resultstest.NewMemorySink()
	w := NewArtifactWriter(sink, WithClock(func() time.Time { return now }))

	w.Write(logArtifact("hello"))
	got := sink.Artifacts()
	require.Len(t, got, 1)
	require.True(t, now.Equal(got[0].Timestamp))
}

func TestWriterJSONMirror(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "plain", text: "hello", want: `"text":"hello"`},
		{name: "newline", text: "a\nb", want: `"text":"a\\nb"`},
		{name: "escaped newline", text: `a\nb`, want: `"text":"a\\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewArtifactWriter(nil, WithJSONMirror(&buf))
			w.Write(logArtifact(tt.text))

			out := buf.String()
			require.True(t, strings.HasSuffix(out, "\n"))
			require.Equal(t, 1, strings.Count(out, "\n"))
			require.Contains(t, out, tt.want)
		})
	}
}

func TestWriterMirrorIsJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewArtifactWriter(nil, WithJSONMirror(&buf))
	w.Write(logArtifact("one"))
	w.Write(logArtifact("two"))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		var a model.Artifact
		require.NoError(t, json.Unmarshal([]byte(line), &a))
		require.Equal(t, i, a.SequenceNumber)
		require.Equal(t, model.ArtifactKindRunLog, a.Kind())
	}
}

func TestWriterDiscards(t *testing.T) {
	t.Run("zero value", func(t *testing.T) {
		var w ArtifactWriter
		w.Write(logArtifact("dropped"))
		w.RegisterHwID("1")
		require.False(t, w.IsHwRegistered("1"))
		require.NoError(t, w.Flush())
		require.NoError(t, w.Close())
	})

	t.Run("no sink", func(t *testing.T) {
		w := NewArtifactWriter(nil)
		w.Write(logArtifact("dropped"))
		require.NoError(t, w.Flush())
		require.NoError(t, w.Close())
	})

	t.Run("closed", func(t *testing.T) {
		sink := resultstest.NewMemorySink()
		w := NewArtifactWriter(sink)
		w.Write(logArtifact("kept"))
		require.NoError(t, w.Close())
		w.Write(logArtifact("dropped"))
		require.NoError(t, w.Close())

		require.Len(t, sink.Artifacts(), 1)
		require.True(t, sink.Closed())
	})
}

func TestWriterShareClose(t *testing.T) {
	sink := resultstest.NewMemorySink()
	w := NewArtifactWriter(sink)
	shared := w.Share()

	require.NoError(t, w.Close())
	require.False(t, sink.Closed())

	shared.Write(logArtifact("still open"))
	require.NoError(t, shared.Close())
	require.True(t, sink.Closed())
	require.Equal(t, 1, sink.Flushes())

	got := sink.Artifacts()
	require.Len(t, got, 1)
	require.Equal(t, 0, got[0].SequenceNumber)

	// Sharing a released writer yields a discarding writer.
	late := w.Share()
	late.Write(logArtifact("dropped"))
	require.Len(t, sink.Artifacts(), 1)
}

func TestWriterRegistration(t *testing.T) {
	w := NewArtifactWriter(nil)
	shared := w.Share()

	w.RegisterHwID("7")
	w.RegisterHwID("7")
	w.RegisterSwID("3")
	w.RegisterHwID(InvalidRecordID)
	w.RegisterSwID(InvalidRecordID)

	require.True(t, shared.IsHwRegistered("7"))
	require.False(t, shared.IsSwRegistered("7"))
	require.True(t, shared.IsSwRegistered("3"))
	require.False(t, w.IsHwRegistered(InvalidRecordID))
	require.False(t, w.IsSwRegistered(InvalidRecordID))
	require.False(t, w.IsHwRegistered("8"))
}

func TestWriterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	sink := resultstest.NewMemorySink()
	w := NewArtifactWriter(sink, WithWriterMetrics(m))

	w.Write(logArtifact("one"))
	w.Write(logArtifact("two"))
	sink.FailWrites = true
	w.Write(logArtifact("three"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.ArtifactsTotal.WithLabelValues(string(model.ArtifactKindRunLog))))
	require.Equal(t, 1.0, testutil.ToFloat64(m.WriteErrorsTotal))
	require.Len(t, sink.Artifacts(), 2)
}

func TestWriterFailedWriteKeepsSequence(t *testing.T) {
	sink := resultstest.NewMemorySink()
	var mirror bytes.Buffer
	w := NewArtifactWriter(sink, WithJSONMirror(&mirror))

	w.Write(logArtifact("a"))
	sink.FailWrites = true
	w.Write(logArtifact("b"))
	sink.FailWrites = false
	w.Write(logArtifact("c"))

	got := sink.Artifacts()
	require.Len(t, got, 2)
	require.Equal(t, 0, got[0].SequenceNumber)
	require.Equal(t, 1, got[1].SequenceNumber)
	require.Equal(t, "c", got[1].TestRunArtifact.Log.Text)

	lines := strings.Split(strings.TrimSpace(mirror.String()), "\n")
	require.Len(t, lines, 2)
	var last model.Artifact
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	require.Equal(t, 1, last.SequenceNumber)
	require.Equal(t, "c", last.TestRunArtifact.Log.Text)
}
