package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		RatePerHost: 1000,
		Burst:       100,
	})
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("region,sales\nNorth,10\n")) //nolint:errcheck
	}))
	defer srv.Close()

	data, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/sales.csv", 1024, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "region,sales\nNorth,10\n", string(data))
}

func TestFetch_HTTPStatusNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		}))

		_, err := newTestFetcher().Fetch(context.Background(), srv.URL, 1024, 5*time.Second)
		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, status, statusErr.Status)
		assert.Equal(t, int32(1), calls.Load())
		srv.Close()
	}
}

func TestFetch_DeclaredSizeExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5000")
		w.Write([]byte(strings.Repeat("x", 5000))) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL, 100, 5*time.Second)
	var sizeErr *SizeExceededError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(100), sizeErr.Limit)
	assert.Equal(t, int64(5000), sizeErr.Declared)
}

func TestFetch_StreamedSizeExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for range 50 {
			w.Write([]byte(strings.Repeat("y", 100))) //nolint:errcheck
			flusher.Flush()
		}
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL, 1000, 5*time.Second)
	var sizeErr *SizeExceededError
	require.ErrorAs(t, err, &sizeErr)
	assert.Zero(t, sizeErr.Declared)
}

func TestFetch_ExactLimitAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("12345")) //nolint:errcheck
	}))
	defer srv.Close()

	data, err := newTestFetcher().Fetch(context.Background(), srv.URL, 5, 5*time.Second)
	require.NoError(t, err)
	assert.Len(t, data, 5)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL, 0, 50*time.Millisecond)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout)
	assert.False(t, netErr.Permanent)
}

func TestFetch_InvalidURL(t *testing.T) {
	for _, u := range []string{"not a url", "/relative/path.csv", "mailto:someone@example.com"} {
		_, err := newTestFetcher().Fetch(context.Background(), u, 0, time.Second)
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr, u)
		assert.True(t, netErr.Permanent, u)
	}
}

func TestFetch_RateLimitedHostSlowsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Fetch(context.Background(), srv.URL, 0, time.Second)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)

	lim := f.limiterFor(strings.TrimPrefix(srv.URL, "http://"))
	assert.Equal(t, rate.Limit(500), lim.Limit())
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	a := NewAdaptiveLimiter(10, 10)
	for range 10 {
		a.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(a.Limit()), 0.001)

	for range 10 {
		a.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(a.Limit()), 0.001)
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Fetch(ctx, srv.URL, 0, time.Second)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}
