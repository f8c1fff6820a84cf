// Package pipeline provides the high-level orchestration of report composition and
// result submission for one candidate.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/report-composer/internal/artifact"
	"github.com/jonathan/report-composer/internal/compose"
	"github.com/jonathan/report-composer/internal/logging"
	"github.com/jonathan/report-composer/internal/rendering"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/submission"
	"github.com/jonathan/report-composer/internal/types"
)

// Step names reported in progress events.
const (
	StepCover          = "cover"
	StepCompose        = "compose"
	StepUploadServices = "upload_services"
	StepUploadSummary  = "upload_summary"
	StepComplete       = "complete"
	StepFailed         = "failed"
)

// Progress categories.
const (
	CategoryCompose    = "compose"
	CategorySubmission = "submission"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Percent  int    `json:"percent"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Backend is the order backend as seen by the pipeline.
type Backend interface {
	submission.Backend
	artifact.Fetcher
}

// Options configures an Engine.
type Options struct {
	Cover        rendering.Options
	SummaryLabel string
	Concurrency  int
	Now          func() time.Time
	Logger       *zap.Logger
	Recorder     Recorder
}

// Engine composes and submits candidate reports.
type Engine struct {
	backend  Backend
	composer *compose.Composer
	opts     Options
	logger   *zap.Logger
}

// New creates an engine backed by b.
func New(b Backend, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := logging.OrNop(opts.Logger)
	return &Engine{
		backend:  b,
		composer: compose.New(b, logger),
		opts:     opts,
		logger:   logger,
	}
}

// Session is the editing state of one candidate on one order.
type Session struct {
	Order   *types.Order
	Tracker *results.Tracker
	Catalog types.ServiceCatalog
}

func (s Session) check() (*types.Candidate, error) {
	if s.Order == nil || s.Tracker == nil || s.Tracker.Candidate() == nil {
		return nil, &submission.ValidationError{Message: "no candidate selected"}
	}
	if !s.Order.Processing() {
		return nil, &submission.GatingError{OrderID: s.Order.ID, OrderStatus: s.Order.OrderStatus}
	}
	return s.Tracker.Candidate(), nil
}

// Report is a composed combined report.
type Report struct {
	Document *compose.Document
	CoverPNG []byte
	Services []rendering.ServiceOutcome
}

// emitProgress calls the progress callback if configured
func emitProgress(cb ProgressCallback, step, category, message string, percent int, content any) {
	if cb != nil {
		cb(ProgressEvent{
			Step:     step,
			Category: category,
			Message:  message,
			Percent:  percent,
			Content:  content,
		})
	}
}

// Compose renders the cover and merges the artifacts of every service marked for
// the summary, in enrollment order.
func (e *Engine) Compose(ctx context.Context, s Session, onProgress ProgressCallback) (*Report, error) {
	candidate, err := s.check()
	if err != nil {
		return nil, err
	}

	cover := CoverData(s.Order, candidate, s.Tracker.Entries(), s.Catalog, e.opts.Now())
	png, err := rendering.RenderCoverPNG(cover, e.opts.Cover)
	if err != nil {
		return nil, err
	}
	emitProgress(onProgress, StepCover, CategoryCompose,
		fmt.Sprintf("Rendered cover with %d services", len(cover.Services)), 0, nil)

	doc, err := e.composer.Compose(ctx, png, Items(s.Tracker, s.Catalog))
	if err != nil {
		return nil, err
	}
	emitProgress(onProgress, StepCompose, CategoryCompose,
		fmt.Sprintf("Composed %d pages, %d skipped", doc.PageCount, len(doc.Skipped)), 0, doc.SkippedLabels())

	e.logger.Info("Report composed",
		zap.String("candidate", candidate.ID.String()),
		zap.Int("pages", doc.PageCount),
		zap.Strings("skipped", doc.SkippedLabels()))

	return &Report{Document: doc, CoverPNG: png, Services: cover.Services}, nil
}

// CoverData collects the cover content of a candidate. Only services marked for
// the summary are listed.
func CoverData(order *types.Order, candidate *types.Candidate, entries []results.ServiceEntry, catalog types.ServiceCatalog, now time.Time) rendering.CoverData {
	company := candidate.CompanyName
	if company == "" {
		company = order.CompanyName
	}

	data := rendering.CoverData{
		CandidateName:  candidate.FullName,
		CandidateEmail: candidate.Email,
		CompanyName:    company,
		TrackingNumber: order.TrackingNumber,
		IssuedAt:       now,
	}
	for _, e := range entries {
		if !e.IncludeInSummary {
			continue
		}
		data.Services = append(data.Services, rendering.ServiceOutcome{
			Label:  candidate.ServiceName(e.Service.ID, catalog),
			Status: e.Status,
		})
	}
	return data
}

// Items resolves the artifact of every service marked for the summary. Services
// without an artifact are kept with a nil Artifact so the composer reports them.
func Items(tracker *results.Tracker, catalog types.ServiceCatalog) []compose.Item {
	candidate := tracker.Candidate()
	state := tracker.State()

	var items []compose.Item
	for _, e := range tracker.Entries() {
		if !e.IncludeInSummary {
			continue
		}
		item := compose.Item{Label: candidate.ServiceName(e.Service.ID, catalog)}
		if a, ok := artifact.Resolve(e.Service.ID, state, candidate.ServiceResults); ok {
			item.Artifact = &a
		}
		items = append(items, item)
	}
	return items
}

// OverallStatus is Fail when any service marked for the summary failed.
func OverallStatus(entries []results.ServiceEntry) types.Status {
	for _, e := range entries {
		if e.IncludeInSummary && e.Status == types.StatusFail {
			return types.StatusFail
		}
	}
	return types.StatusPass
}
