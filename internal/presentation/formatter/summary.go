package formatter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/mdfranz/saruca/internal/data/aggregator"
	"github.com/mdfranz/saruca/internal/util"
)

const fallbackWidth = 100

// SummaryFormatter renders an aggregate report as a plain-text summary.
type SummaryFormatter struct {
	width int
}

// NewSummaryFormatter creates a formatter sized to the current terminal,
// falling back to a fixed width when stdout is not a terminal.
func NewSummaryFormatter() *SummaryFormatter {
	width := fallbackWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}
	return &SummaryFormatter{width: width}
}

// Format writes the report. The report's keys/shape come from the
// aggregator and are stable regardless of how they are rendered here.
func (f *SummaryFormatter) Format(w io.Writer, r *aggregator.Report) {
	if r.Activity.StartMs > 0 {
		start := time.UnixMilli(r.Activity.StartMs).UTC()
		end := time.UnixMilli(r.Activity.EndMs).UTC()
		fmt.Fprintf(w, "\nActivity Range: %s to %s (%s)\n",
			start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"),
			util.FormatDuration(end.Sub(start)))
	}

	f.section(w, "Token Usage")
	fmt.Fprintf(w, "  Input: %s\n", util.FormatNumber(r.Totals.InputTokens))
	fmt.Fprintf(w, "  Output: %s\n", util.FormatNumber(r.Totals.OutputTokens))
	if r.Totals.CacheCreation > 0 {
		fmt.Fprintf(w, "  Cache creation: %s\n", util.FormatNumber(r.Totals.CacheCreation))
	}
	if r.Totals.CacheRead > 0 {
		fmt.Fprintf(w, "  Cache read: %s\n", util.FormatNumber(r.Totals.CacheRead))
	}
	fmt.Fprintf(w, "  Total: %s\n", util.FormatNumber(r.Totals.TotalTokens))

	if len(r.Models) > 0 {
		f.section(w, "Models Used")
		for _, m := range r.Models {
			fmt.Fprintf(w, "  %s: %s messages\n", m.Model, util.FormatNumber(m.Messages))
		}
	}

	if len(r.Tools) > 0 {
		f.section(w, "Top Tools")
		for _, t := range r.Tools {
			fmt.Fprintf(w, "  %s: %s calls (success %d, error %d, cancelled %d)\n",
				t.Name, util.FormatNumber(t.Calls), t.Success, t.Error, t.Cancelled)
		}
	}

	if len(r.SessionsByMessage) > 0 {
		f.section(w, "Top Sessions")
		for _, s := range r.SessionsByMessage {
			label := s.FirstLine
			if label == "" {
				label = "No user prompts found"
			}
			fmt.Fprintf(w, "  %s | %4d msgs | %s tokens | %s\n",
				shortId(s.SessionId), s.MessageCount,
				util.FormatNumber(s.TotalTokens), util.Truncate(label, f.width-60))
		}
	}

	if len(r.Projects) > 0 {
		f.section(w, "Recent Projects")
		for _, p := range r.Projects {
			desc := p.Description
			if desc == "" {
				desc = "No user prompts found"
			}
			date := "N/A"
			if p.LastActivityMs > 0 {
				date = time.UnixMilli(p.LastActivityMs).UTC().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "  %s | %s... : %4d msgs | %s\n",
				date, shortId(p.ProjectHash), p.MessageCount, util.Truncate(desc, f.width-50))
		}
	}

	if len(r.ThoughtSubjects) > 0 {
		f.section(w, "Thought Subjects")
		for _, s := range r.ThoughtSubjects {
			fmt.Fprintf(w, "  %s: %d\n", s.Subject, s.Count)
		}
	}

	f.section(w, "Row Counts")
	fmt.Fprintf(w, "  messages=%d logs=%d tool_calls=%d thoughts=%d tool_outputs=%d security_events=%d\n",
		r.Totals.MessageCount, r.Totals.LogCount, r.Totals.ToolCallCount,
		r.Totals.ThoughtCount, r.Totals.ToolOutputCount, r.Totals.SecurityEventCount)
	fmt.Fprintf(w, "  sessions=%d projects=%d\n", r.Totals.SessionCount, r.Totals.ProjectCount)
}

func (f *SummaryFormatter) section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n--- %s ---\n", title)
}

func shortId(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// RenderFailures reports skip/drop accounting so silent data loss never
// goes unnoticed by the caller.
func RenderFailures(w io.Writer, scanSkipped, filesFailed, recordsSkipped, recordsDropped int, failures []string) {
	if scanSkipped == 0 && filesFailed == 0 && recordsSkipped == 0 && recordsDropped == 0 {
		return
	}
	fmt.Fprintf(w, "\n--- Skipped / Dropped ---\n")
	fmt.Fprintf(w, "  unreadable paths: %d\n", scanSkipped)
	fmt.Fprintf(w, "  failed files: %d\n", filesFailed)
	fmt.Fprintf(w, "  skipped records: %d\n", recordsSkipped)
	fmt.Fprintf(w, "  dropped records: %d\n", recordsDropped)
	for _, f := range failures {
		fmt.Fprintf(w, "    %s\n", strings.TrimSpace(f))
	}
}
