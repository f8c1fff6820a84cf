package db

import (
	"time"

	"github.com/google/uuid"
)

// Step status values mirror the per-service submission statuses.
const (
	StepStatusUploaded     = "uploaded"
	StepStatusSkipped      = "skipped"
	StepStatusFailed       = "failed"
	StepStatusNotAttempted = "not_attempted"
)

// Submission is one recorded submission attempt.
type Submission struct {
	ID           uuid.UUID        `json:"id"`
	OrderID      string           `json:"order_id"`
	CandidateID  string           `json:"candidate_id"`
	State        string           `json:"state"`
	Progress     int              `json:"progress"`
	WithSummary  bool             `json:"with_summary"`
	SummaryFile  *string          `json:"summary_file,omitempty"`
	Skipped      []string         `json:"skipped,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Steps        []SubmissionStep `json:"steps,omitempty"`
}

// SubmissionStep is the recorded result of one service upload.
type SubmissionStep struct {
	ID           uuid.UUID `json:"id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	Position     int       `json:"position"`
	ServiceID    string    `json:"service_id"`
	ServiceName  string    `json:"service_name"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubmissionInput starts a submission record.
type SubmissionInput struct {
	OrderID     string
	CandidateID string
	WithSummary bool
}

// StepInput records one service upload. Position is the service's enrollment index.
type StepInput struct {
	Position    int
	ServiceID   string
	ServiceName string
	Status      string
	Error       string
}

// CompletionInput closes a submission record.
type CompletionInput struct {
	State       string
	Progress    int
	SummaryFile string
	Skipped     []string
	Error       string
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
