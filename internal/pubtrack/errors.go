package pubtrack

import (
	"errors"
	"fmt"
)

// Common errors returned by the pubtrack client.
var (
	// ErrNoResult indicates a filtered lookup matched no records.
	ErrNoResult = errors.New("no matching record in pubtrack")

	// ErrMissingKey indicates a record operation was attempted without a primary key.
	ErrMissingKey = errors.New("operation requires a record key")

	// ErrAuthNotConfigured indicates a request was attempted before an
	// authentication strategy was installed.
	ErrAuthNotConfigured = errors.New("pubtrack authentication not configured")

	// ErrUnknownResource indicates a resource name that is not registered.
	ErrUnknownResource = errors.New("unknown pubtrack resource")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with pubtrack")

	// ErrInvalidResponse indicates a response body that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from pubtrack")
)

// StatusError is returned for any response outside the 2xx range. It keeps
// the original status code so callers can distinguish a validation rejection
// from an authorization failure instead of collapsing both into one class.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("pubtrack: %s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("pubtrack: %s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

// IsStatus returns true if the error is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == code
	}
	return false
}

// IsRejection returns true if the server refused the request body or the
// credentials behind it (HTTP 400 or 403).
func IsRejection(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 400 || statusErr.StatusCode == 403
	}
	return false
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNoResult) {
		return true
	}
	return IsStatus(err, 404)
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthNotConfigured) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 401 || statusErr.StatusCode == 403
	}
	return false
}
