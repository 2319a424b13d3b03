package results

// This file contains the ArtifactWriter, the single funnel every artifact
// of a run passes through.

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/ocpdiag/ocpdiag/metrics"
	"github.com/ocpdiag/ocpdiag/model"
)

// RecordSink is the durable, append-only destination of artifacts.
type RecordSink interface {
	WriteArtifact(*model.Artifact) (int, error)
	Flush() error
	Close() error
}

// WriterOption configures an ArtifactWriter.
type WriterOption func(*writerProxy)

// WithJSONMirror mirrors every artifact as one line of JSON to w.
func WithJSONMirror(w io.Writer) WriterOption {
	return func(p *writerProxy) {
		p.mirror = w
	}
}

// WithWriterLogger sets the logger used to report write failures.
func WithWriterLogger(logger zerolog.Logger) WriterOption {
	return func(p *writerProxy) {
		p.logger = logger
	}
}

// WithWriterMetrics records write statistics in m.
func WithWriterMetrics(m *metrics.Metrics) WriterOption {
	return func(p *writerProxy) {
		p.metrics = m
	}
}

// WithClock overrides the clock used to timestamp artifacts.
func WithClock(now func() time.Time) WriterOption {
	return func(p *writerProxy) {
		p.now = now
	}
}

// writerProxy is shared by all writers handed out by Share. It owns the
// sequence counter, both output streams and the registered IDs.
type writerProxy struct {
	mu      sync.Mutex
	seq     int
	sink    RecordSink
	mirror  io.Writer
	refs    int
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	regMu sync.RWMutex
	hw    map[string]struct{}
	sw    map[string]struct{}
}

// ArtifactWriter stamps artifacts with a timestamp and sequence number and
// writes them to a RecordSink and an optional JSON mirror. The zero value
// discards everything.
type ArtifactWriter struct {
	proxy atomic.Pointer[writerProxy]
}

// NewArtifactWriter returns a writer for sink. A nil sink is allowed; the
// writer then only feeds the JSON mirror, if any.
func NewArtifactWriter(sink RecordSink, opts ...WriterOption) *ArtifactWriter {
	p := &writerProxy{
		sink:   sink,
		refs:   1,
		logger: zerolog.Nop(),
		now:    time.Now,
		hw:     make(map[string]struct{}),
		sw:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	w := &ArtifactWriter{}
	w.proxy.Store(p)
	return w
}

// Share returns a new writer bound to the same streams, sequence counter
// and registrations. Each shared writer must be closed on its own; the
// sink is closed with the last one.
func (w *ArtifactWriter) Share() *ArtifactWriter {
	s := &ArtifactWriter{}
	p := w.proxy.Load()
	if p == nil {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		return s
	}
	p.refs++
	s.proxy.Store(p)
	return s
}

// Write stamps the artifact and writes it. Writes through a closed writer
// are dropped.
func (w *ArtifactWriter) Write(a *model.Artifact) {
	p := w.proxy.Load()
	if p == nil {
		return
	}
	p.write(a)
}

func (p *writerProxy) write(a *model.Artifact) {
	ts := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		return
	}

	// The sequence number is only consumed once the record is durable, so
	// a failed write leaves no gap in the record file or the mirror.
	a.Timestamp = ts
	a.SequenceNumber = p.seq

	var line string
	if p.mirror != nil {
		var err error
		line, err = mirrorLine(a)
		if err != nil {
			p.logger.Error().Err(err).Int("sequence", a.SequenceNumber).Msg("Failed to serialize artifact")
			p.metrics.ObserveWriteError()
			return
		}
	}

	n := 0
	var latency time.Duration
	if p.sink != nil {
		start := time.Now()
		var err error
		n, err = p.sink.WriteArtifact(a)
		if err != nil {
			p.logger.Error().Err(err).
				Int("sequence", a.SequenceNumber).
				Str("kind", string(a.Kind())).
				Msg("Failed to write artifact record")
			p.metrics.ObserveWriteError()
			return
		}
		latency = time.Since(start)
	}
	p.seq++

	if p.mirror != nil {
		if _, err := io.WriteString(p.mirror, line); err != nil {
			p.logger.Error().Err(err).Msg("Failed to write artifact to JSON mirror")
		}
	}
	p.metrics.ObserveWrite(a, n, latency)
}

// mirrorLine encodes a as a single JSON line. Newline escapes are doubled
// so consumers see a literal \n instead of a line break.
func mirrorLine(a *model.Artifact) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode artifact: %w", err)
	}
	s := strings.ReplaceAll(string(data), `\\n`, `\n`)
	s = strings.ReplaceAll(s, `\n`, `\\n`)
	return s + "\n", nil
}

// Flush persists buffered records of the durable sink.
func (w *ArtifactWriter) Flush() error {
	p := w.proxy.Load()
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil || p.refs == 0 {
		return nil
	}
	return p.sink.Flush()
}

// Close releases this writer. Later writes through it are no-ops. The
// sink is flushed and closed when the last shared writer is closed.
func (w *ArtifactWriter) Close() error {
	p := w.proxy.Swap(nil)
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refs--
	if p.refs > 0 || p.sink == nil {
		return nil
	}

	var result *multierror.Error
	if err := p.sink.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.sink.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// RegisterHwID marks a hardware info ID as known. The invalid ID is
// ignored.
func (w *ArtifactWriter) RegisterHwID(id string) {
	w.register(id, func(p *writerProxy) map[string]struct{} { return p.hw })
}

// RegisterSwID marks a software info ID as known. The invalid ID is
// ignored.
func (w *ArtifactWriter) RegisterSwID(id string) {
	w.register(id, func(p *writerProxy) map[string]struct{} { return p.sw })
}

func (w *ArtifactWriter) register(id string, set func(*writerProxy) map[string]struct{}) {
	p := w.proxy.Load()
	if p == nil || id == InvalidRecordID {
		return
	}
	p.regMu.Lock()
	defer p.regMu.Unlock()
	set(p)[id] = struct{}{}
}

func (w *ArtifactWriter) IsHwRegistered(id string) bool {
	return w.registered(id, func(p *writerProxy) map[string]struct{} { return p.hw })
}

func (w *ArtifactWriter) IsSwRegistered(id string) bool {
	return w.registered(id, func(p *writerProxy) map[string]struct{} { return p.sw })
}

func (w *ArtifactWriter) registered(id string, set func(*writerProxy) map[string]struct{}) bool {
	p := w.proxy.Load()
	if p == nil {
		return false
	}
	p.regMu.RLock()
	defer p.regMu.RUnlock()
	_, ok := set(p)[id]
	return ok
}
