// Package gateway fetches and parses the inverter gateway's embedded
// status page.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const userAgent = "apsmon/1.0"

// TransportError is any failure to fetch the gateway page: connection
// failure, timeout, or a non-200 response. Status is zero when no
// response was received.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client reads the gateway's parameters page.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a gateway client for url. The http.Client supplies
// the timeout; there are no retries.
func NewClient(url string, httpClient *http.Client) *Client {
	return &Client{
		url:        url,
		httpClient: httpClient,
	}
}

// Fetch performs one GET of the parameters page and returns the raw
// markup.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", &TransportError{URL: c.url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{URL: c.url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{URL: c.url, Err: err}
	}
	return string(body), nil
}
