// Package rendering rasterizes the cover page of a combined background check report.
package rendering

import (
	"errors"
	"fmt"
)

// ErrUnknownStatus marks a service outcome that is neither Pass nor Fail.
var ErrUnknownStatus = errors.New("unknown result status")

// RenderError represents a cover rendering failure
type RenderError struct {
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
