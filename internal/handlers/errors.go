package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// APIError is the single error body of the API: {"error": "..."}.
type APIError struct {
	status  int
	Message string `json:"error" doc:"What went wrong" example:"Slug already exists"`
}

var _ huma.StatusError = (*APIError)(nil)

func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// NewError replaces huma.NewError so that framework errors, such as body
// validation failures, share the API error body. Validation failures are
// reported as 400.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}

	for _, err := range errs {
		if err == nil {
			continue
		}

		var detail *huma.ErrorDetail
		if errors.As(err, &detail) && detail.Location != "" {
			msg += ": " + detail.Location + " " + detail.Message
		} else if status < http.StatusInternalServerError {
			msg += ": " + err.Error()
		}

		break
	}

	return &APIError{status: status, Message: msg}
}
