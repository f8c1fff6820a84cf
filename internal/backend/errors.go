// Package backend is the HTTP client of the order backend: order and catalog reads,
// result uploads and persisted artifact downloads.
package backend

import "fmt"

// APIError is a structured failure reported by the backend, either through a
// non-2xx status or a response envelope with success=false.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Operation, msg, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Operation, msg, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}
