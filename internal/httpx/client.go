// Package httpx builds the HTTP client shared by outbound integrations.
package httpx

import (
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewClient returns a client with the configured timeout in seconds, or
// DefaultTimeout when timeoutSeconds is not positive.
func NewClient(timeoutSeconds int) (*http.Client, time.Duration) {
	timeout := DefaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &http.Client{Timeout: timeout}, timeout
}
