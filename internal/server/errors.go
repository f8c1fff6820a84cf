package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/report-composer/internal/backend"
	"github.com/jonathan/report-composer/internal/pipeline"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/submission"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		reqErr       *ErrValidation
		editErr      *results.ValidationError
		unknownErr   *results.UnknownServiceError
		submitErr    *submission.ValidationError
		gatingErr    *submission.GatingError
		serviceErr   *submission.ServiceUploadError
		summaryErr   *submission.SummaryUploadError
		candidateErr *pipeline.CandidateNotFoundError
		apiErr       *backend.APIError
		tooLarge     *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr), errors.As(err, &editErr), errors.As(err, &unknownErr), errors.As(err, &submitErr):
		return http.StatusBadRequest
	case errors.As(err, &gatingErr):
		return http.StatusConflict
	case errors.As(err, &serviceErr), errors.As(err, &summaryErr):
		return http.StatusBadGateway
	case errors.As(err, &candidateErr):
		return http.StatusNotFound
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
