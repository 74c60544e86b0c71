package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poutila/doxstrux/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	return cfg
}

// countingServer records the number of requests it served.
type countingServer struct {
	*httptest.Server
	requests atomic.Int32
}

func newServer(t *testing.T, handler http.HandlerFunc) *countingServer {
	t.Helper()

	s := &countingServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestCheckRefusesWithoutRequesting(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c := NewClient(testConfig(), nil, nil)

	tests := []struct {
		name   string
		url    string
		target error
	}{
		{"javascript", "javascript:alert(1)", errors.ErrURLRefused},
		{"data", "data:text/html,hi", errors.ErrURLRefused},
		{"ftp", "ftp://files.example.com/a", errors.ErrURLRefused},
		{"mailto", "mailto:a@example.com", errors.ErrURLRefused},
		{"relative", "docs/guide.md", errors.ErrURLRefused},
		{"protocol-relative", "//" + strings.TrimPrefix(srv.URL, "http://"), errors.ErrProtocolRelative},
		{"control character", srv.URL + "/\nHost: evil", errors.ErrControlChar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := c.Check(context.Background(), tt.url)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, status)
		})
	}

	assert.Zero(t, srv.requests.Load())
}

func TestCheckUsesHEAD(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	c := NewClient(testConfig(), nil, nil)

	status, err := c.Check(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.True(t, status.OK)
	assert.Equal(t, http.StatusOK, status.StatusCode)
	assert.Equal(t, http.MethodHead, status.Method)
	assert.Equal(t, srv.URL+"/page", status.Normalized)
	assert.False(t, status.CheckedAt.IsZero())
}

func TestCheckFallsBackToGET(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	c := NewClient(testConfig(), nil, nil)

	status, err := c.Check(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.True(t, status.OK)
	assert.Equal(t, http.MethodGet, status.Method)
	assert.EqualValues(t, 2, srv.requests.Load())
}

func TestCheckReportsBrokenLink(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c := NewClient(testConfig(), nil, nil)

	status, err := c.Check(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)

	assert.False(t, status.OK)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
}

func TestRedirectTargetsAreNormalized(t *testing.T) {
	targets := []struct {
		name     string
		location string
	}{
		{"javascript", "javascript:alert(1)"},
		{"file", "file:///etc/passwd"},
		{"data", "data:text/html,<script>alert(1)</script>"},
	}

	for _, tt := range targets {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", tt.location)
				w.WriteHeader(http.StatusFound)
			})
			c := NewClient(testConfig(), nil, nil)

			status, err := c.Check(context.Background(), srv.URL)
			require.NoError(t, err)

			assert.False(t, status.OK)
			assert.Equal(t, errors.ErrCodeURLRefused, status.Code)
			assert.EqualValues(t, 1, srv.requests.Load())
		})
	}
}

func TestRedirectFollowsAllowedTarget(t *testing.T) {
	var srv *countingServer
	srv = newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, srv.URL+"/new", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	c := NewClient(testConfig(), nil, nil)

	status, err := c.Check(context.Background(), srv.URL+"/old")
	require.NoError(t, err)

	assert.True(t, status.OK)
	assert.Equal(t, srv.URL+"/new", status.FinalURL)
}

func TestRedirectLimit(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	})
	cfg := testConfig()
	cfg.MaxRedirects = 2
	c := NewClient(cfg, nil, nil)

	status, err := c.Check(context.Background(), srv.URL+"/a")
	require.NoError(t, err)

	assert.False(t, status.OK)
	assert.Equal(t, errors.ErrCodeURLRefused, status.Code)
	assert.EqualValues(t, 3, srv.requests.Load())
}

func TestCheckUsesCache(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	cache := NewMemoryCache()
	c := NewClient(testConfig(), cache, nil)

	first, err := c.Check(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// Same URL in another spelling hits the same entry.
	upper := strings.Replace(srv.URL, "http://", "HTTP://", 1) + "/a"
	second, err := c.Check(context.Background(), upper)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, upper, second.URL)
	assert.Equal(t, first.StatusCode, second.StatusCode)
	assert.EqualValues(t, 1, srv.requests.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "k", &Status{URL: "u", OK: true}, time.Minute))

	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.OK)

	now = now.Add(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}

func TestCheckAllKeepsOrder(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	c := NewClient(testConfig(), NewMemoryCache(), nil)

	urls := []string{srv.URL + "/a", "javascript:alert(1)", srv.URL + "/gone", srv.URL + "/b"}
	results := c.CheckAll(context.Background(), urls)

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, urls[i], r.URL)
	}
	assert.True(t, results[0].OK)
	assert.Equal(t, errors.ErrCodeURLRefused, results[1].Code)
	assert.Equal(t, http.StatusGone, results[2].StatusCode)
	assert.True(t, results[3].OK)
}

func TestCheckAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(testConfig(), nil, nil)
	results := c.CheckAll(ctx, []string{"https://a.example", "https://b.example"})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.OK)
		assert.NotEmpty(t, r.Error)
	}
}

func TestRedisCache(t *testing.T) {
	redisURL := os.Getenv("DOXSTRUX_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("DOXSTRUX_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	cache, err := NewRedisCache(ctx, redisURL, "doxstrux:test:")
	require.NoError(t, err)
	defer cache.Close()

	key := "https://example.com/" + time.Now().Format(time.RFC3339Nano)
	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, key, &Status{URL: key, StatusCode: 200, OK: true}, time.Minute))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200, got.StatusCode)
}

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not a url", "")
	assert.Error(t, err)
}
