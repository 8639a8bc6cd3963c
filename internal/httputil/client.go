package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout suits the LAN-local gateway; remote endpoints pass their own.
const DefaultTimeout = 5 * time.Second

// NewClient returns an HTTP client with a bounded timeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}
