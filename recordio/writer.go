package recordio

// This file contains the append-only record file writer. A record file is
// a header record followed by one length-delimited google.protobuf.Struct
// per artifact.

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ocpdiag/ocpdiag/model"
)

const (
	// Format is stored in the header record of every record file.
	Format = "ocpdiag-results"
	// Version of the record layout.
	Version = 1
)

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("record writer is closed")

// Writer appends records to an underlying stream. It is safe for
// concurrent use.
type Writer struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	closer io.Closer
	closed bool
}

// NewWriter writes the header record to w and returns a Writer appending
// to it. If w implements io.Closer it is closed by Close.
func NewWriter(w io.Writer) (*Writer, error) {
	rw := &Writer{buf: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		rw.closer = c
	}

	header, err := structpb.NewStruct(map[string]interface{}{
		"format":  Format,
		"version": Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build header record: %w", err)
	}
	if _, err := rw.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header record: %w", err)
	}
	return rw, nil
}

// Create creates or truncates the file at path and returns a Writer for it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create record file: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Write appends one length-delimited message and returns the number of
// bytes written.
func (w *Writer) Write(m proto.Message) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	return protodelim.MarshalTo(w.buf, m)
}

// WriteArtifact encodes the artifact as a google.protobuf.Struct and
// appends it.
func (w *Writer) WriteArtifact(a *model.Artifact) (int, error) {
	s, err := ArtifactToStruct(a)
	if err != nil {
		return 0, err
	}
	return w.Write(s)
}

// Flush writes buffered records to the underlying stream, syncing it when
// it is a file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}
	if f, ok := w.closer.(*os.File); ok {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("failed to sync record file: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the writer. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var result *multierror.Error
	if err := w.buf.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to flush records: %w", err))
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close record stream: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// ArtifactToStruct converts an artifact to its structured record form.
func ArtifactToStruct(a *model.Artifact) (*structpb.Struct, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to convert artifact to struct: %w", err)
	}
	return s, nil
}

// StructToArtifact is the inverse of ArtifactToStruct.
func StructToArtifact(s *structpb.Struct) (*model.Artifact, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to convert struct to json: %w", err)
	}
	a := &model.Artifact{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return a, nil
}
