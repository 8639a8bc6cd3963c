// Package pvoutput uploads an aggregated status to the PVOutput
// addstatus service. The upload is best-effort: one POST, no retries,
// and failure never disturbs locally computed results.
package pvoutput

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const StatusURL = "https://pvoutput.org/service/r2/addstatus.jsp"

// DefaultTimeout bounds the upload; the service is remote, so it gets
// more headroom than the LAN gateway fetch.
const DefaultTimeout = 10 * time.Second

// PublishError is any upload failure: transport error or a non-200
// response. Status is zero when no response was received.
type PublishError struct {
	Status int
	Body   string
	Err    error
}

func (e *PublishError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("pvoutput: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("pvoutput: %v", e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Options selects which optional metrics accompany the power value and
// which extended slot carries frequency.
type Options struct {
	SendVoltage bool
	SendTemp    bool
	SendFreq    bool
	FreqField   string
}

// Status is the subset of an aggregation that the service accepts.
// Power is required; nil metrics are simply not sent.
type Status struct {
	Watts     int
	AvgVolt   *float64
	AvgTempC  *float64
	AvgFreqHz *float64
}

// Client posts status updates for one PVOutput system.
type Client struct {
	apiKey     string
	systemID   string
	url        string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(apiKey, systemID string, httpClient *http.Client) *Client {
	return &Client{
		apiKey:     apiKey,
		systemID:   systemID,
		url:        StatusURL,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// AddStatus uploads one status update and returns the service's text
// response (e.g. "OK 200: Added Status").
func (c *Client) AddStatus(ctx context.Context, st Status, opts Options) (string, error) {
	now := c.now()
	form := url.Values{}
	form.Set("d", now.Format("20060102"))
	form.Set("t", now.Format("15:04"))
	form.Set("v2", strconv.Itoa(st.Watts))
	if opts.SendTemp && st.AvgTempC != nil {
		form.Set("v5", strconv.Itoa(int(math.Round(*st.AvgTempC))))
	}
	if opts.SendVoltage && st.AvgVolt != nil {
		form.Set("v6", strconv.FormatFloat(*st.AvgVolt, 'f', 1, 64))
	}
	if opts.SendFreq && st.AvgFreqHz != nil && opts.FreqField != "" {
		form.Set(opts.FreqField, strconv.FormatFloat(*st.AvgFreqHz, 'f', 2, 64))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &PublishError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Pvoutput-Apikey", c.apiKey)
	req.Header.Set("X-Pvoutput-SystemId", c.systemID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &PublishError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &PublishError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &PublishError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return strings.TrimSpace(string(body)), nil
}
