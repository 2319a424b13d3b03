package recordio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ocpdiag/ocpdiag/model"
)

// Reader iterates the artifacts of a record file in written order.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
}

// NewReader reads and validates the header record of r.
func NewReader(r io.Reader) (*Reader, error) {
	rr := &Reader{r: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		rr.closer = c
	}

	header := &structpb.Struct{}
	if err := protodelim.UnmarshalFrom(rr.r, header); err != nil {
		return nil, fmt.Errorf("failed to read header record: %w", err)
	}
	fields := header.GetFields()
	if got := fields["format"].GetStringValue(); got != Format {
		return nil, fmt.Errorf("unexpected record format %q", got)
	}
	if got := int(fields["version"].GetNumberValue()); got != Version {
		return nil, fmt.Errorf("unsupported record version %d", got)
	}
	return rr, nil
}

// Open opens a record file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Next returns the next artifact, or io.EOF after the last one.
func (r *Reader) Next() (*model.Artifact, error) {
	s := &structpb.Struct{}
	if err := protodelim.UnmarshalFrom(r.r, s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return StructToArtifact(s)
}

// ForEach calls fn for every remaining artifact. It stops at the first
// error returned by fn.
func (r *Reader) ForEach(fn func(*model.Artifact) error) error {
	for {
		a, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
	}
}

// Close closes the underlying stream if it is closable.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadAll returns every artifact in the record file at path.
func ReadAll(path string) ([]*model.Artifact, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var artifacts []*model.Artifact
	err = r.ForEach(func(a *model.Artifact) error {
		artifacts = append(artifacts, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}
