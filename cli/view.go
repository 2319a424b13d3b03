package cli

// This file contains the view command for displaying results from a record
// file or from history.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ocpdiag/ocpdiag/history"
	"github.com/ocpdiag/ocpdiag/model"
	"github.com/ocpdiag/ocpdiag/recordio"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func parseViewArgs(in []string) (idArg string, pprofArgs []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are pprof args
	if in[0] == "--" {
		return "0", in[1:]
	}

	// A negative index is "-" followed by only digits (e.g. "-1"), anything
	// else starting with "-" is a pprof flag (e.g. "-top").
	if len(in[0]) > 1 && in[0][0] == '-' {
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			return "0", in
		}
	}

	return in[0], removeFirstDashDash(in[1:])
}

// selectEntry resolves arg against entries sorted newest first. arg is
// either an index counting back from the latest run (0, -1, ...) or an ID
// prefix.
func selectEntry(entries []history.Entry, arg string) (history.Entry, error) {
	if len(entries) == 0 {
		return history.Entry{}, fmt.Errorf("no history entries found")
	}

	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return history.Entry{}, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return history.Entry{}, fmt.Errorf("index %s out of range (only %d history entries)", arg, len(entries))
		}
		return entries[index], nil
	}

	return history.Find(entries, strings.ToLower(arg))
}

// artifactFilter selects artifacts by kind and test step.
type artifactFilter struct {
	kinds  map[model.ArtifactKind]bool
	stepID string
}

func newArtifactFilter(kinds []string, stepID string) (artifactFilter, error) {
	f := artifactFilter{stepID: stepID}
	for _, k := range kinds {
		kind := model.ArtifactKind(k)
		if !isKnownKind(kind) {
			return f, fmt.Errorf("unknown artifact kind %q", k)
		}
		if f.kinds == nil {
			f.kinds = make(map[model.ArtifactKind]bool)
		}
		f.kinds[kind] = true
	}
	return f, nil
}

func isKnownKind(kind model.ArtifactKind) bool {
	for _, k := range model.ArtifactKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (f artifactFilter) match(a *model.Artifact) bool {
	if f.kinds != nil && !f.kinds[a.Kind()] {
		return false
	}
	if f.stepID != "" {
		id, ok := a.StepID()
		if !ok || id != f.stepID {
			return false
		}
	}
	return true
}

func (a *App) view(ctx *cli.Context) error {
	arg, pprofArgs := parseViewArgs(ctx.Args().Slice())

	filter, err := newArtifactFilter(ctx.StringSlice("kind"), ctx.String("step"))
	if err != nil {
		return err
	}

	// An existing file is read directly.
	if _, err := os.Stat(arg); err == nil && !ctx.Bool("profile") {
		return a.displayResults(arg, filter, ctx.Bool("summary"))
	}

	entries, err := history.LoadEntries(a.logger, a.cfg.HistoryDir)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	entry, err := selectEntry(entries, arg)
	if err != nil {
		return err
	}

	if ctx.Bool("profile") {
		path, ok := entry.OutputPath(model.OutputTypePprofProfile)
		if !ok {
			return fmt.Errorf("run %s has no CPU profile", history.ShortID(entry.History.ID))
		}
		return a.displayProfile(entry.FullPath, path, pprofArgs)
	}

	path, ok := entry.OutputPath(model.OutputTypeResults)
	if !ok {
		return fmt.Errorf("run %s has no results file", history.ShortID(entry.History.ID))
	}
	return a.displayResults(path, filter, ctx.Bool("summary"))
}

// displayResults prints the matching artifacts of the record file at path
// as JSON lines, or their counts by kind.
func (a *App) displayResults(path string, filter artifactFilter, summary bool) error {
	r, err := recordio.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var matched []*model.Artifact
	err = r.ForEach(func(art *model.Artifact) error {
		if !filter.match(art) {
			return nil
		}
		if summary {
			matched = append(matched, art)
			return nil
		}
		return writeJSONLine(a.stdout, art)
	})
	if err != nil {
		return err
	}

	if summary {
		printSummary(a.stdout, history.CountKinds(matched))
	}
	return nil
}

func writeJSONLine(w io.Writer, art *model.Artifact) error {
	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %d: %w", art.SequenceNumber, err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func printSummary(w io.Writer, counts map[model.ArtifactKind]int) {
	total := 0
	for _, kind := range model.ArtifactKinds {
		if n := counts[kind]; n > 0 {
			fmt.Fprintf(w, "%-26s %d\n", kind, n)
			total += n
		}
	}
	fmt.Fprintf(w, "%-26s %d\n", "total", total)
}

func (a *App) displayProfile(runDir, profilePath string, pprofArgs []string) error {
	if info, err := os.Stat(profilePath); err == nil {
		fmt.Fprintf(a.stdout, "Profile: %s (%.1f KB)\n", profilePath, float64(info.Size())/1024)
	}

	// Build pprof command with any additional args
	args := []string{"tool", "pprof"}
	args = append(args, pprofArgs...)
	args = append(args, profilePath)

	cmd := exec.Command("go", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = runDir

	return cmd.Run()
}
