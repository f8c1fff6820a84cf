package compose

import (
	"github.com/jonathan/report-composer/internal/artifact"
)

// Skip reasons.
const (
	ReasonUnresolved  = "no result file"
	ReasonFetchFailed = "fetch failed"
	ReasonUnsupported = "unsupported media type"
	ReasonUnparsable  = "unparsable document"
)

// Outcome is the result of converting one item: either Ok or Skipped.
type Outcome interface {
	ItemLabel() string
}

// Ok is an item converted into a PDF fragment.
type Ok struct {
	Label     string
	MediaType string
	Origin    artifact.Origin
	Pages     int
	fragment  []byte
}

// ItemLabel implements Outcome.
func (o Ok) ItemLabel() string { return o.Label }

// Skipped is an item left out of the report.
type Skipped struct {
	Label  string
	Reason string
	Err    error
}

// ItemLabel implements Outcome.
func (s Skipped) ItemLabel() string { return s.Label }

func (s Skipped) String() string {
	if s.Err != nil {
		return s.Label + ": " + s.Reason + ": " + s.Err.Error()
	}
	return s.Label + ": " + s.Reason
}

// PageKind tells what produced a page of the report.
type PageKind string

const (
	PageCover PageKind = "cover"
	PagePDF   PageKind = "pdf"
	PageImage PageKind = "image"
)

// PageSource describes one page of the composed report.
type PageSource struct {
	Label string   `json:"label"`
	Kind  PageKind `json:"kind"`
	Page  int      `json:"page"`
}

// Document is a composed report.
type Document struct {
	Data      []byte
	PageCount int
	Pages     []PageSource
	Skipped   []Skipped
}

// SkippedLabels returns the labels of the skipped items in input order.
func (d *Document) SkippedLabels() []string {
	labels := make([]string, 0, len(d.Skipped))
	for _, s := range d.Skipped {
		labels = append(labels, s.Label)
	}
	return labels
}
