package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/report-composer/internal/compose"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/submission"
	"github.com/jonathan/report-composer/internal/types"
)

func TestPrintCandidate(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	candidate := &types.Candidate{ID: "c1", FullName: "Jane Roe", Email: "jane@example.com"}
	entries := []results.ServiceEntry{
		{
			Service: types.ServiceRef{ID: "s1", DisplayName: "Criminal"},
			Entry: results.Entry{
				Status:           types.StatusPass,
				IncludeInSummary: true,
				SelectedFile:     &results.Blob{Name: "scan.pdf"},
			},
		},
		{Service: types.ServiceRef{ID: "s2"}, Entry: results.Entry{Status: types.StatusFail}},
	}

	p.PrintCandidate(candidate, entries)
	output := buf.String()

	assert.Contains(t, output, "CANDIDATE RESULTS")
	assert.Contains(t, output, "Jane Roe")
	assert.Contains(t, output, "[✓] Criminal (Pass) new: scan.pdf")
	assert.Contains(t, output, "[ ] s2 (Fail)")
}

func TestPrintCandidate_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCandidate(nil, nil)
	assert.Empty(t, buf.String())
}

func TestPrintDocument(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	doc := &compose.Document{
		PageCount: 2,
		Pages: []compose.PageSource{
			{Label: "cover", Kind: compose.PageCover, Page: 1},
			{Label: "Education", Kind: compose.PageImage, Page: 1},
		},
		Skipped: []compose.Skipped{
			{Label: "Employment", Reason: compose.ReasonFetchFailed, Err: errors.New("timeout")},
		},
	}

	p.PrintDocument(doc)
	output := buf.String()

	assert.Contains(t, output, "COMBINED REPORT")
	assert.Contains(t, output, "Pages: 2")
	assert.Contains(t, output, "Education (image p.1)")
	assert.Contains(t, output, "⚠ Employment")
	assert.Contains(t, output, "fetch failed: timeout")
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	outcome := &submission.Outcome{
		State: submission.StateError,
		Services: []submission.ServiceReport{
			{ServiceID: "s1", ServiceName: "Criminal", Status: submission.ServiceUploaded},
			{ServiceID: "s2", ServiceName: "Education", Status: submission.ServiceFailed, Error: "upstream rejected"},
			{ServiceID: "s3", ServiceName: "Employment", Status: submission.ServiceNotAttempted},
		},
		SummaryFileName:   "Summary_Jane Roe.pdf",
		PendingCandidates: []types.ID{"c2"},
	}

	p.PrintOutcome(outcome)
	output := buf.String()

	assert.Contains(t, output, "State: error")
	assert.Contains(t, output, "✓ Criminal")
	assert.Contains(t, output, "✗ Education")
	assert.Contains(t, output, "upstream rejected")
	assert.Contains(t, output, "· Employment")
	assert.Contains(t, output, "Report not uploaded: Summary_Jane Roe.pdf")
	assert.Contains(t, output, "Candidates still pending: c2")
}

func TestPrintBox_Truncation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("é", 100))

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.Equal(t, boxWidth, len([]rune(line)), "line %q", line)
	}
	assert.Contains(t, buf.String(), "...")
}
