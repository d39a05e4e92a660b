package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pfrederiksen/poitiers-events/internal/aggregator"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// Summary describes one run for the console.
type Summary struct {
	GeneratedAt string                    `json:"generated_at"`
	Output      string                    `json:"output"`
	Collected   int                       `json:"collected"`
	Written     int                       `json:"written"`
	New         int                       `json:"new,omitempty"`
	RunID       string                    `json:"run_id,omitempty"`
	Duration    time.Duration             `json:"duration_ns"`
	Sources     []aggregator.SourceReport `json:"sources"`
}

func newSummary(result *aggregator.Result, output string) *Summary {
	return &Summary{
		GeneratedAt: result.Document.GeneratedAt,
		Output:      output,
		Collected:   result.Collected,
		Written:     len(result.Document.Events),
		Duration:    result.FinishedAt.Sub(result.StartedAt),
		Sources:     result.Reports,
	}
}

// Failed returns the number of sources that failed.
func (s *Summary) Failed() int {
	n := 0
	for _, rep := range s.Sources {
		if rep.Failed() {
			n++
		}
	}
	return n
}

// newTable returns a table writer rendering to w.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// WriteOutput writes the summary in the specified format
func WriteOutput(w io.Writer, summary *Summary, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatText:
		return writeText(w, summary, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs any value as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

// writeText outputs the summary as a table followed by totals
func writeText(w io.Writer, summary *Summary, verbose bool) error {
	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Venue", "Events", "Duration", "Status"})
	for _, rep := range summary.Sources {
		status := "ok"
		if rep.Failed() {
			status = "FAILED"
			if verbose {
				status += ": " + rep.Error
			}
		}
		t.AppendRow(table.Row{rep.Source, rep.Venue, rep.Events, rep.Duration.Round(time.Millisecond), status})
	}
	t.AppendFooter(table.Row{"Total", "", summary.Collected, summary.Duration.Round(time.Millisecond), fmt.Sprintf("%d failed", summary.Failed())})
	t.Render()

	fmt.Fprintf(w, "\nWrote %d events to %s (%d collected before dedup)\n", summary.Written, summary.Output, summary.Collected)
	if summary.New > 0 {
		fmt.Fprintf(w, "New since previous feed: %d\n", summary.New)
	}
	if verbose && summary.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", summary.RunID)
	}
	return nil
}
