package httpinfra

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequester_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(r.UserAgent()))
	}))
	defer srv.Close()

	r := NewRequester(Options{Timeout: time.Second, UserAgent: "anvil/1.0"})

	resp, err := r.Get(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "anvil/1.0", string(body))

	_, err = r.Get(context.Background(), srv.URL+"/missing")
	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.True(t, status.NotFound())
	assert.False(t, Retryable(err))
}

func TestRequester_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	r := NewRequester(Options{Timeout: time.Second, RequestsPerSecond: 20})
	start := time.Now()
	for i := 0; i < 41; i++ {
		resp, err := r.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "41 requests at 20/s with burst 20 take at least a second")
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "server_error", err: &StatusError{StatusCode: 502}, want: true},
		{name: "too_many_requests", err: &StatusError{StatusCode: 429}, want: true},
		{name: "forbidden", err: &StatusError{StatusCode: 403}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "unexpected_eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "stall", err: &stallError{after: time.Second, err: context.Canceled}, want: true},
		{name: "plain", err: errors.New("disk full"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://api.example/v2/project/luck%20perms/version",
		JoinURL("https://api.example/", nil, "v2", "project", "luck perms", "version"))
	assert.Equal(t, "https://api.example/v2/search?limit=5&query=perm",
		JoinURL("https://api.example", url.Values{"query": {"perm"}, "limit": {"5"}}, "v2", "search"))
}
