// Package resultstest provides helpers for testing code that emits results.
package resultstest

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/ocpdiag/ocpdiag/model"
)

// MemorySink is a RecordSink that keeps deep copies of every artifact in
// memory.
type MemorySink struct {
	mu        sync.Mutex
	artifacts []*model.Artifact
	flushes   int
	closed    bool

	// FailWrites makes every write fail.
	FailWrites bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) WriteArtifact(a *model.Artifact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("sink is closed")
	}
	if s.FailWrites {
		return 0, errors.New("write failed")
	}
	// JSON round trip so later mutation by the caller is not observed.
	data, err := json.Marshal(a)
	if err != nil {
		return 0, err
	}
	var cp model.Artifact
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, err
	}
	s.artifacts = append(s.artifacts, &cp)
	return len(data), nil
}

func (s *MemorySink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Artifacts returns the artifacts written so far, in write order.
func (s *MemorySink) Artifacts() []*model.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Artifact(nil), s.artifacts...)
}

// ByKind returns the artifacts of the given kind, in write order.
func (s *MemorySink) ByKind(kind model.ArtifactKind) []*model.Artifact {
	var out []*model.Artifact
	for _, a := range s.Artifacts() {
		if a.Kind() == kind {
			out = append(out, a)
		}
	}
	return out
}

// Kinds returns the kind of every artifact, in write order.
func (s *MemorySink) Kinds() []model.ArtifactKind {
	var out []model.ArtifactKind
	for _, a := range s.Artifacts() {
		out = append(out, a.Kind())
	}
	return out
}

func (s *MemorySink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
