package cli

// This file contains the detection and parsing of diagnostic parameters.

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// shouldReadStdin reports whether parameters are expected on stdin. Dumb
// terminals, such as editor shells, look like pipes but never send input.
func shouldReadStdin(force, terminal bool, term string) bool {
	return force || (!terminal && term != "dumb")
}

// readParams returns the parameters of the run. A parameters file takes
// precedence over stdin. No input yields nil parameters.
func readParams(path string, stdin io.Reader, fromStdin bool) (*structpb.Struct, error) {
	var data []byte
	switch {
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}
		data = b
	case fromStdin && stdin != nil:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read params from stdin: %w", err)
		}
		data = b
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	params := &structpb.Struct{}
	if err := protojson.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("failed to parse params: %w", err)
	}
	return params, nil
}
