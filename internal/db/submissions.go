package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateSubmission starts a submission record and returns its ID.
func (db *DB) CreateSubmission(ctx context.Context, input *SubmissionInput) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO submissions (id, order_id, candidate_id, state, with_summary)
		 VALUES ($1, $2, $3, 'uploading_services', $4)`,
		id, input.OrderID, input.CandidateID, input.WithSummary,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return id, nil
}

// RecordStep stores the result of one service upload. Steps are read back in
// Position order.
func (db *DB) RecordStep(ctx context.Context, submissionID uuid.UUID, input *StepInput) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO submission_steps (submission_id, position, service_id, service_name, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		submissionID, input.Position, input.ServiceID, input.ServiceName, input.Status, nullable(input.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record step %s: %w", input.ServiceID, err)
	}
	return nil
}

// CompleteSubmission stores the terminal state of a submission.
func (db *DB) CompleteSubmission(ctx context.Context, submissionID uuid.UUID, input *CompletionInput) error {
	var skippedJSON []byte
	if len(input.Skipped) > 0 {
		var err error
		skippedJSON, err = json.Marshal(input.Skipped)
		if err != nil {
			return fmt.Errorf("failed to marshal skipped artifacts: %w", err)
		}
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE submissions
		 SET state = $1, progress = $2, summary_file = $3, skipped = $4, error_message = $5, completed_at = NOW()
		 WHERE id = $6`,
		input.State, input.Progress, nullable(input.SummaryFile), skippedJSON, nullable(input.Error), submissionID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %s not found", submissionID)
	}
	return nil
}

// GetSubmission retrieves a submission with its steps. Returns nil when not found.
func (db *DB) GetSubmission(ctx context.Context, submissionID uuid.UUID) (*Submission, error) {
	var sub Submission
	var skippedJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, order_id, candidate_id, state, progress, with_summary, summary_file,
		        skipped, error_message, created_at, completed_at
		 FROM submissions WHERE id = $1`,
		submissionID,
	).Scan(&sub.ID, &sub.OrderID, &sub.CandidateID, &sub.State, &sub.Progress, &sub.WithSummary,
		&sub.SummaryFile, &skippedJSON, &sub.ErrorMessage, &sub.CreatedAt, &sub.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if sub.Skipped, err = decodeSkipped(skippedJSON); err != nil {
		return nil, fmt.Errorf("submission %s: %w", submissionID, err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, submission_id, position, service_id, service_name, status, error_message, created_at
		 FROM submission_steps WHERE submission_id = $1 ORDER BY position, created_at`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step SubmissionStep
		if err := rows.Scan(&step.ID, &step.SubmissionID, &step.Position, &step.ServiceID, &step.ServiceName,
			&step.Status, &step.ErrorMessage, &step.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission step: %w", err)
		}
		sub.Steps = append(sub.Steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read submission steps: %w", err)
	}

	return &sub, nil
}

// ListSubmissions retrieves recent submissions of an order.
func (db *DB) ListSubmissions(ctx context.Context, orderID string, limit int) ([]Submission, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, order_id, candidate_id, state, progress, with_summary, summary_file,
		        error_message, created_at, completed_at
		 FROM submissions WHERE order_id = $1 ORDER BY created_at DESC LIMIT $2`,
		orderID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.OrderID, &sub.CandidateID, &sub.State, &sub.Progress,
			&sub.WithSummary, &sub.SummaryFile, &sub.ErrorMessage, &sub.CreatedAt, &sub.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// decodeSkipped reads the skipped-artifact labels stored as JSONB.
func decodeSkipped(data []byte) ([]string, error) {
	if data == nil {
		return nil, nil
	}
	var skipped []string
	if err := json.Unmarshal(data, &skipped); err != nil {
		return nil, fmt.Errorf("failed to decode skipped artifacts: %w", err)
	}
	return skipped, nil
}
