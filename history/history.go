package history

// This file contains shared history utilities for recording and loading
// diagnostic runs.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocpdiag/ocpdiag/model"
)

// FileName is the name of the metadata file in every history entry.
const FileName = "history.json"

type Entry struct {
	History  model.History
	FullPath string
}

// ShortID returns the first 8 characters of an entry ID.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NewEntryDir assigns an ID to h if it has none and creates the entry
// directory <root>/<timestamp>-<short id>.
func NewEntryDir(root string, h *model.History) (string, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	name := fmt.Sprintf("%s-%s", h.Timestamp.Format("20060102-150405"), ShortID(h.ID))
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create history directory: %w", err)
	}
	return dir, nil
}

// AddOutput records a file produced by the run. Paths inside dir are
// stored relative to it.
func AddOutput(h *model.History, dir string, typ model.OutputType, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s output: %w", typ, err)
	}
	file := path
	if rel, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		file = rel
	}
	h.Outputs = append(h.Outputs, model.Output{Type: typ, Size: uint64(info.Size()), File: file})
	return nil
}

// Write stores h as the metadata of the entry in dir.
func Write(dir string, h *model.History) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// CountKinds counts artifacts by kind.
func CountKinds(artifacts []*model.Artifact) map[model.ArtifactKind]int {
	counts := make(map[model.ArtifactKind]int)
	for _, a := range artifacts {
		counts[a.Kind()]++
	}
	return counts
}

// LoadEntries loads all history entries below root. A missing root yields
// no entries.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			historyPath := filepath.Join(path, FileName)
			if _, err := os.Stat(historyPath); err == nil {
				history, err := parseHistoryJSON(historyPath)
				if err != nil {
					logger.Warn().Err(err).Str("path", historyPath).Msg("Failed to parse history.json")
					return nil
				}

				entries = append(entries, Entry{
					History:  history,
					FullPath: path,
				})
			}
		}

		return nil
	})

	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to walk history directory: %w", err)
	}

	// Newest first
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].History.Timestamp.After(entries[j].History.Timestamp)
	})
	return entries, nil
}

// Find returns the entry whose ID starts with prefix.
func Find(entries []Entry, prefix string) (Entry, error) {
	var matches []Entry
	for _, e := range entries {
		if strings.HasPrefix(e.History.ID, prefix) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return Entry{}, fmt.Errorf("no history entry with ID %s", prefix)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, fmt.Errorf("ID %s is ambiguous: %d entries match", prefix, len(matches))
	}
}

// OutputPath returns the absolute path of the first output of type typ.
func (e Entry) OutputPath(typ model.OutputType) (string, bool) {
	for _, o := range e.History.Outputs {
		if o.Type != typ {
			continue
		}
		if filepath.IsAbs(o.File) {
			return o.File, true
		}
		return filepath.Join(e.FullPath, o.File), true
	}
	return "", false
}

// parseHistoryJSON parses a history.json file.
func parseHistoryJSON(historyPath string) (model.History, error) {
	data, err := os.ReadFile(historyPath)
	if err != nil {
		return model.History{}, err
	}

	var history model.History
	if err := json.Unmarshal(data, &history); err != nil {
		return model.History{}, err
	}

	return history, nil
}
