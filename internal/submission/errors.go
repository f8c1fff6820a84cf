// Package submission uploads edited service results and the combined report of a
// candidate to the order backend.
package submission

import (
	"fmt"

	"github.com/jonathan/report-composer/internal/types"
)

// GatingError is returned when the order does not accept submissions.
type GatingError struct {
	OrderID     types.ID
	OrderStatus string
}

func (e *GatingError) Error() string {
	return fmt.Sprintf("order %s is %q, submissions require %q", e.OrderID, e.OrderStatus, types.OrderStatusProcessing)
}

// ValidationError rejects a submission before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Message)
}

// ServiceUploadError aborts the per-service phase. Services uploaded before it
// stay persisted.
type ServiceUploadError struct {
	ServiceID   types.ID
	ServiceName string
	Cause       error
}

func (e *ServiceUploadError) Error() string {
	return fmt.Sprintf("failed to upload result for %s: %v", e.ServiceName, e.Cause)
}

func (e *ServiceUploadError) Unwrap() error {
	return e.Cause
}

// SummaryUploadError reports a failed combined report upload. Per-service results
// uploaded before it stay persisted.
type SummaryUploadError struct {
	FileName string
	Cause    error
}

func (e *SummaryUploadError) Error() string {
	return fmt.Sprintf("failed to upload summary %s: %v", e.FileName, e.Cause)
}

func (e *SummaryUploadError) Unwrap() error {
	return e.Cause
}
