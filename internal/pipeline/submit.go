package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/report-composer/internal/db"
	"github.com/jonathan/report-composer/internal/submission"
	"github.com/jonathan/report-composer/internal/types"
)

// Recorder stores submission attempts. *db.DB satisfies it.
type Recorder interface {
	CreateSubmission(ctx context.Context, input *db.SubmissionInput) (uuid.UUID, error)
	RecordStep(ctx context.Context, submissionID uuid.UUID, input *db.StepInput) error
	CompleteSubmission(ctx context.Context, submissionID uuid.UUID, input *db.CompletionInput) error
}

// SubmitOptions controls one submission.
type SubmitOptions struct {
	WithSummary   bool
	SummaryNotes  string
	OverallStatus types.Status // derived from the included services when empty
	OnProgress    ProgressCallback
}

// Result is the outcome of Submit.
type Result struct {
	Submission   *submission.Outcome `json:"submission"`
	Report       *Report             `json:"-"`
	Skipped      []string            `json:"skipped,omitempty"`
	SubmissionID uuid.UUID           `json:"submission_id,omitempty"`
}

// Submit optionally composes the combined report and then uploads changed service
// results followed by the report. The Result is returned alongside upload errors
// so callers can show what was persisted.
func (e *Engine) Submit(ctx context.Context, s Session, opts SubmitOptions) (*Result, error) {
	if _, err := s.check(); err != nil {
		return nil, err
	}

	res := &Result{}
	var summary *submission.Summary
	if opts.WithSummary {
		report, err := e.Compose(ctx, s, opts.OnProgress)
		if err != nil {
			return nil, err
		}
		res.Report = report
		res.Skipped = report.Document.SkippedLabels()

		status := opts.OverallStatus
		if status == "" {
			status = OverallStatus(s.Tracker.Entries())
		}
		summary = &submission.Summary{Data: report.Document.Data, Notes: opts.SummaryNotes, OverallStatus: status}
	}

	orch := submission.New(e.backend, submission.Options{
		Concurrency:  e.opts.Concurrency,
		SummaryLabel: e.opts.SummaryLabel,
		Logger:       e.logger,
		OnProgress: func(ev submission.ProgressEvent) {
			step := StepUploadServices
			switch ev.State {
			case submission.StateUploadingSummary:
				step = StepUploadSummary
			case submission.StateSuccess:
				step = StepComplete
			case submission.StateError:
				step = StepFailed
			}
			emitProgress(opts.OnProgress, step, CategorySubmission, ev.Message, ev.Percent, ev)
		},
	})

	outcome, err := orch.Submit(ctx, submission.Request{
		Order:   s.Order,
		Tracker: s.Tracker,
		Catalog: s.Catalog,
		Summary: summary,
	})
	if outcome == nil {
		return nil, err
	}
	res.Submission = outcome
	res.SubmissionID = e.record(ctx, s, opts.WithSummary, res, err)
	return res, err
}

// record writes the attempt to the audit log. Audit failures are logged and do
// not affect the submission result.
func (e *Engine) record(ctx context.Context, s Session, withSummary bool, res *Result, submitErr error) uuid.UUID {
	if e.opts.Recorder == nil {
		return uuid.Nil
	}
	candidate := s.Tracker.Candidate()

	id, err := e.opts.Recorder.CreateSubmission(ctx, &db.SubmissionInput{
		OrderID:     s.Order.ID.String(),
		CandidateID: candidate.ID.String(),
		WithSummary: withSummary,
	})
	if err != nil {
		e.logger.Warn("Failed to record submission", zap.Error(err))
		return uuid.Nil
	}

	for i, svc := range res.Submission.Services {
		if err := e.opts.Recorder.RecordStep(ctx, id, &db.StepInput{
			Position:    i,
			ServiceID:   svc.ServiceID.String(),
			ServiceName: svc.ServiceName,
			Status:      string(svc.Status),
			Error:       svc.Error,
		}); err != nil {
			e.logger.Warn("Failed to record submission step", zap.String("service", svc.ServiceID.String()), zap.Error(err))
		}
	}

	completion := &db.CompletionInput{
		State:       string(res.Submission.State),
		Progress:    progressOf(res.Submission),
		SummaryFile: res.Submission.SummaryFileName,
		Skipped:     res.Skipped,
	}
	if submitErr != nil {
		completion.Error = submitErr.Error()
	}
	if err := e.opts.Recorder.CompleteSubmission(ctx, id, completion); err != nil {
		e.logger.Warn("Failed to complete submission record", zap.Error(err))
	}
	return id
}

// progressOf reconstructs the last reported percentage of an outcome.
func progressOf(o *submission.Outcome) int {
	if o.State == submission.StateSuccess {
		return 100
	}
	total := len(o.Services)
	if total == 0 {
		return 0
	}
	done := 0
	for _, s := range o.Services {
		if s.Status == submission.ServiceUploaded || s.Status == submission.ServiceSkipped {
			done++
		}
	}
	return 50 * done / total
}
