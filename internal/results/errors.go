// Package results tracks the per-service editing state of the candidate whose
// results are being entered.
package results

import (
	"fmt"

	"github.com/jonathan/report-composer/internal/types"
)

// Validation error codes.
const (
	CodeInvalidFile   = "invalid_file"
	CodeNotIncludable = "not_includable"
)

// ValidationError is returned when an edit is rejected before any state change.
type ValidationError struct {
	Code      string
	ServiceID types.ID
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s) for service %s: %s", e.Code, e.ServiceID, e.Message)
}

// UnknownServiceError is returned when an edit names a service the current
// candidate is not enrolled in.
type UnknownServiceError struct {
	ServiceID types.ID
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("service %s is not enrolled for the current candidate", e.ServiceID)
}

// NoCandidateError is returned when an edit is attempted before Initialize.
type NoCandidateError struct{}

func (e *NoCandidateError) Error() string {
	return "no candidate selected"
}
