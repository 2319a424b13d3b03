package cli

// This file contains the list command for displaying previous runs.

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ocpdiag/ocpdiag/history"
	"github.com/ocpdiag/ocpdiag/model"
)

func (a *App) list(ctx *cli.Context) error {
	filterName := ctx.String("name")
	limit := ctx.Int("limit")

	historyEntries, err := history.LoadEntries(a.logger, a.cfg.HistoryDir)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var filteredEntries []history.Entry
	for _, entry := range historyEntries {
		if filterName == "" || entry.History.Name == filterName {
			filteredEntries = append(filteredEntries, entry)
		}
	}

	out := a.stdout
	if len(filteredEntries) == 0 {
		if filterName != "" {
			fmt.Fprintf(out, "No history entries found for diagnostic: %s\n", filterName)
		} else {
			fmt.Fprintln(out, "No history entries found")
		}
		return nil
	}

	displayRuns := filteredEntries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Fprintf(out, "\n=== History (%d total) ===\n\n", len(filteredEntries))
	for _, entry := range displayRuns {
		printEntry(out, entry)
	}

	fmt.Fprintln(out, "\nView results: ocpdiag view <ID>")
	fmt.Fprintln(out, "View profile: ocpdiag view --profile <ID>")
	return nil
}

// statusMarker is ✓ for complete passing runs and ✗ otherwise.
func statusMarker(h model.History) string {
	if h.Status == model.TestStatusComplete && h.Result == model.TestResultPass {
		return "✓"
	}
	return "✗"
}

func printEntry(out io.Writer, entry history.Entry) {
	h := entry.History
	timestamp := h.Timestamp.Format("2006-01-02 15:04:05")
	duration := h.Duration.Round(time.Millisecond)

	fmt.Fprintf(out, "%s  %s  [%s]  %s  %s/%s  id=%s\n",
		statusMarker(h), timestamp, duration, h.Name, h.Status, h.Result, history.ShortID(h.ID))
	if len(h.Args) > 1 {
		fmt.Fprintf(out, "   Args: %s\n", strings.Join(h.Args[1:], " "))
	}
	if h.Target != nil {
		fmt.Fprintf(out, "   Machine: %s", h.Target.Machine)
		if h.Target.OS != "" && h.Target.Arch != "" {
			fmt.Fprintf(out, " (%s/%s)", h.Target.OS, h.Target.Arch)
		}
		fmt.Fprintln(out)
	}
	if n := h.Counts[model.ArtifactKindDiagnosis]; n > 0 {
		fmt.Fprintf(out, "   Diagnoses: %d", n)
		if errs := h.Counts[model.ArtifactKindStepError] + h.Counts[model.ArtifactKindRunError]; errs > 0 {
			fmt.Fprintf(out, ", errors: %d", errs)
		}
		fmt.Fprintln(out)
	}
	for _, o := range h.Outputs {
		fmt.Fprintf(out, "   %s: %s (%.1f KB)\n", o.Type, o.File, float64(o.Size)/1024)
	}
	fmt.Fprintf(out, "   %s\n\n", entry.FullPath)
}
