package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// IndexQueryError is returned when the CDX index answers a domain query
// with a non-success status
type IndexQueryError struct {
	Domain     string
	StatusCode int
	Body       string
}

func (e *IndexQueryError) Error() string {
	return fmt.Sprintf("CDX API returned status %d for %s: %s", e.StatusCode, e.Domain, e.Body)
}

// MalformedSnapshotError marks a CDX row whose timestamp could not be parsed
type MalformedSnapshotError struct {
	Domain    string
	Timestamp string
	Err       error
}

func (e *MalformedSnapshotError) Error() string {
	return fmt.Sprintf("malformed snapshot timestamp %q for %s: %v", e.Timestamp, e.Domain, e.Err)
}

func (e *MalformedSnapshotError) Unwrap() error {
	return e.Err
}

// PageFetchError is returned when a replay page cannot be retrieved
type PageFetchError struct {
	URL        string
	StatusCode int
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("replay page %s returned status %d", e.URL, e.StatusCode)
}

// isRetryable reports whether a failed request is worth repeating:
// rate limiting, temporary server unavailability, or a timeout
func isRetryable(err error) bool {
	var qe *IndexQueryError
	if errors.As(err, &qe) {
		switch qe.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsTimeout reports whether err was caused by a request timeout
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
