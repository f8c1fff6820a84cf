// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/report-composer/internal/compose"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/submission"
	"github.com/jonathan/report-composer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 8
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(line))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad truncates or right-pads line to the inner box width, counting runes.
func pad(line string) string {
	width := boxWidth - 4
	n := utf8.RuneCountInString(line)
	if n > width {
		return string([]rune(line)[:width-3]) + "..."
	}
	return line + strings.Repeat(" ", width-n)
}

// PrintCandidate outputs the editing state of every enrolled service.
func (p *Printer) PrintCandidate(candidate *types.Candidate, entries []results.ServiceEntry) {
	if candidate == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Candidate: %s\n", candidate.FullName))
	if candidate.Email != "" {
		sb.WriteString(fmt.Sprintf("Email:     %s\n", candidate.Email))
	}
	sb.WriteString("\n")

	count := min(len(entries), maxItemsToShow)
	for i := 0; i < count; i++ {
		e := entries[i]
		marker := " "
		if e.IncludeInSummary {
			marker = "✓"
		}
		name := e.Service.DisplayName
		if name == "" {
			name = e.Service.ID.String()
		}
		sb.WriteString(fmt.Sprintf("[%s] %s (%s)", marker, name, e.Status))
		if e.SelectedFile != nil {
			sb.WriteString(fmt.Sprintf(" new: %s", e.SelectedFile.Name))
		}
		sb.WriteString("\n")
	}
	if len(entries) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more services\n", len(entries)-maxItemsToShow))
	}

	p.printBox("CANDIDATE RESULTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDocument outputs the page layout of a composed report and any skipped artifacts.
func (p *Printer) PrintDocument(doc *compose.Document) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pages: %d\n", doc.PageCount))
	for _, page := range doc.Pages {
		sb.WriteString(fmt.Sprintf("  • %s (%s p.%d)\n", page.Label, page.Kind, page.Page))
	}

	if len(doc.Skipped) > 0 {
		sb.WriteString("\nSkipped:\n")
		for _, skip := range doc.Skipped {
			sb.WriteString(fmt.Sprintf("⚠ %s\n", skip.Label))
			reason := skip.Reason
			if skip.Err != nil {
				reason += ": " + skip.Err.Error()
			}
			sb.WriteString(fmt.Sprintf("  %s\n", reason))
		}
	}

	p.printBox("COMBINED REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintOutcome outputs the per-service result of a submission attempt.
func (p *Printer) PrintOutcome(outcome *submission.Outcome) {
	if outcome == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("State: %s\n\n", outcome.State))

	for _, svc := range outcome.Services {
		sb.WriteString(fmt.Sprintf("%s %s\n", statusIcon(svc.Status), svc.ServiceName))
		if svc.Error != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", svc.Error))
		}
	}

	if outcome.SummaryFileName != "" {
		verb := "not uploaded"
		if outcome.SummaryUploaded {
			verb = "uploaded"
		}
		sb.WriteString(fmt.Sprintf("\nReport %s: %s\n", verb, outcome.SummaryFileName))
	}

	if len(outcome.PendingCandidates) > 0 {
		ids := make([]string, len(outcome.PendingCandidates))
		for i, id := range outcome.PendingCandidates {
			ids[i] = id.String()
		}
		sb.WriteString(fmt.Sprintf("\nCandidates still pending: %s\n", strings.Join(ids, ", ")))
	}

	p.printBox("SUBMISSION", strings.TrimSuffix(sb.String(), "\n"))
}

func statusIcon(s submission.ServiceStatus) string {
	switch s {
	case submission.ServiceUploaded:
		return "✓"
	case submission.ServiceFailed:
		return "✗"
	case submission.ServiceSkipped:
		return "-"
	default:
		return "·"
	}
}
