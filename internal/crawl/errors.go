package crawl

import (
	"errors"
	"fmt"
)

// Sentinel errors for terminal fetch outcomes. HTTP status outcomes use
// HTTPError instead so the status survives classification.
var (
	ErrFetchTimeout      = errors.New("fetch timeout")
	ErrConnectionFailure = errors.New("connection failure")
	ErrTLSFailure        = errors.New("tls failure")
	ErrRedirectLimit     = errors.New("redirect limit exceeded")
)

// HTTPError is a fetch that completed with a terminal 4xx/5xx status.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d", e.StatusCode)
}

// ServerError reports whether the status is in the 5xx class.
func (e *HTTPError) ServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// ErrorCode maps a terminal fetch error to the stable code stored on
// PageRecord.FetchError. HTTP statuses map to an empty code because the
// status field already carries them.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, ErrTLSFailure):
		return "tls-failure"
	case errors.Is(err, ErrConnectionFailure):
		return "connection-failure"
	case errors.Is(err, ErrRedirectLimit):
		return "redirect-limit"
	default:
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			return ""
		}
		return "fetch-error"
	}
}
