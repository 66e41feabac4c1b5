package feed

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents an HTTP error response from the feed API
type HTTPError struct {
	StatusCode int
	URL        string
	Status     string
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, status string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Status:     status,
	}
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Status)
}

// IsNotFound reports whether err is an HTTP 404 from the feed API.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// retryable reports whether err is worth retrying. Server-side errors
// and transport failures are transient, client errors are not.
func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError ||
			httpErr.StatusCode == http.StatusTooManyRequests
	}
	// Transport-level failures (connection refused, timeouts)
	return true
}
