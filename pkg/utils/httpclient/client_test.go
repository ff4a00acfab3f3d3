package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON_QueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		_, _ = w.Write([]byte(`{"records":[{"State":"Punjab"}]}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 0)
	var out struct {
		Records []map[string]interface{} `json:"records"`
	}
	err := c.GetJSON(context.Background(), srv.URL, url.Values{"format": {"json"}}, map[string]string{"api-key": "secret"}, &out)
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "Punjab", out.Records[0]["State"])
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 2).WithBackoff(time.Millisecond)
	var out map[string]bool
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, nil, map[string]string{"q": "x"}, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(time.Second, 0)
	err := c.GetJSON(context.Background(), srv.URL, nil, nil, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestDoRequest_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(time.Second, 5).WithBackoff(time.Second)
	err := c.GetJSON(ctx, srv.URL, nil, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
