package oauth

import "fmt"

// Callback failure markers, surfaced to the login page as ?error=<marker>.
const (
	MarkerMissingParams       = "missing_params"
	MarkerInvalidState        = "invalid_state"
	MarkerTokenExchangeFailed = "token_exchange_failed"
	MarkerUnknown             = "unknown"
	MarkerUnauthorizedRole    = "unauthorized_role"
	MarkerSessionFailed       = "session_failed"
)

// CallbackError is a failed callback. Marker identifies the failure class.
type CallbackError struct {
	Marker string
	Err    error
}

func (e *CallbackError) Error() string {
	if e.Err == nil {
		return "oauth callback: " + e.Marker
	}

	return fmt.Sprintf("oauth callback: %s: %v", e.Marker, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func callbackError(marker string, err error) *CallbackError {
	return &CallbackError{Marker: marker, Err: err}
}
