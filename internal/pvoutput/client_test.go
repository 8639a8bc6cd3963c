package pvoutput

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/apsmon/internal/httputil"
)

var fixedTime = time.Date(2026, 8, 27, 14, 5, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("testkey", "98765", httputil.NewClient(DefaultTimeout))
	c.url = srv.URL
	c.now = func() time.Time { return fixedTime }
	return c, srv
}

func allOptions() Options {
	return Options{SendVoltage: true, SendTemp: true, SendFreq: true, FreqField: "v8"}
}

func TestAddStatus_AllFields(t *testing.T) {
	var form url.Values
	var apiKey, systemID string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		apiKey = r.Header.Get("X-Pvoutput-Apikey")
		systemID = r.Header.Get("X-Pvoutput-SystemId")
		w.Write([]byte("OK 200: Added Status\n"))
	})

	st := Status{Watts: 1234, AvgVolt: f(231.5), AvgTempC: f(26.6), AvgFreqHz: f(49.9)}
	resp, err := c.AddStatus(context.Background(), st, allOptions())
	require.NoError(t, err)

	assert.Equal(t, "OK 200: Added Status", resp, "text status is trimmed")
	assert.Equal(t, "testkey", apiKey)
	assert.Equal(t, "98765", systemID)

	assert.Equal(t, "20260827", form.Get("d"))
	assert.Equal(t, "14:05", form.Get("t"))
	assert.Equal(t, "1234", form.Get("v2"))
	assert.Equal(t, "27", form.Get("v5"), "temperature sent as rounded integer")
	assert.Equal(t, "231.5", form.Get("v6"), "voltage sent with one decimal")
	assert.Equal(t, "49.90", form.Get("v8"), "frequency sent in configured slot")
}

func TestAddStatus_TogglesAndAbsentMetrics(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		opts    Options
		present []string
		absent  []string
	}{
		{
			name:    "all toggles off",
			status:  Status{Watts: 100, AvgVolt: f(230), AvgTempC: f(25), AvgFreqHz: f(50)},
			opts:    Options{},
			present: []string{"v2"},
			absent:  []string{"v5", "v6", "v7", "v8"},
		},
		{
			name:    "toggle on but metric absent",
			status:  Status{Watts: 100},
			opts:    allOptions(),
			present: []string{"v2"},
			absent:  []string{"v5", "v6", "v8"},
		},
		{
			name:    "frequency in alternate slot",
			status:  Status{Watts: 100, AvgFreqHz: f(50)},
			opts:    Options{SendFreq: true, FreqField: "v11"},
			present: []string{"v2", "v11"},
			absent:  []string{"v5", "v6", "v8"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var form url.Values
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				form = r.PostForm
				w.Write([]byte("OK 200: Added Status"))
			})

			_, err := c.AddStatus(context.Background(), tt.status, tt.opts)
			require.NoError(t, err)

			for _, key := range tt.present {
				assert.True(t, form.Has(key), "field %s should be sent", key)
			}
			for _, key := range tt.absent {
				assert.False(t, form.Has(key), "field %s should not be sent", key)
			}
		})
	}
}

func TestAddStatus_ErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized 401: Invalid System ID", http.StatusUnauthorized)
	})

	_, err := c.AddStatus(context.Background(), Status{Watts: 100}, Options{})
	require.Error(t, err)

	var perr *PublishError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
	assert.Contains(t, perr.Body, "Invalid System ID")
}

func TestAddStatus_TransportFailure(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.AddStatus(context.Background(), Status{Watts: 100}, Options{})
	require.Error(t, err)

	var perr *PublishError
	require.True(t, errors.As(err, &perr))
	assert.Zero(t, perr.Status)
	assert.Error(t, perr.Unwrap())
}
