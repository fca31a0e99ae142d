package marketfeeds_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/cache"
	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/internal/marketfeeds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// keyRecorder remembers every key written to the wrapped cache
type keyRecorder struct {
	*cache.MemoryCache
	mu   sync.Mutex
	keys []string
}

func (r *keyRecorder) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.mu.Unlock()
	return r.MemoryCache.Set(ctx, key, value, ttl)
}

func TestFetchPassesThrough(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/stocks/005930/chart", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		assert.Equal(t, "D", r.URL.Query().Get("period"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("date,close\n20240501,78000\n"))
	}))
	defer server.Close()

	svc := marketfeeds.NewService(zap.NewNop(), config.MarketConfig{
		Chart:       server.URL + "/stocks/{code}/chart",
		APIKey:      "secret",
		APIKeyParam: "apikey",
		CacheTTL:    time.Minute,
	}, cache.NewMemoryCache())

	for i := 0; i < 2; i++ {
		resp, err := svc.Fetch(context.Background(), marketfeeds.FeedChart, "005930", url.Values{"period": {"D"}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "text/csv", resp.ContentType)
		assert.Equal(t, "date,close\n20240501,78000\n", string(resp.Body))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchKeepsUpstreamErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Empty(t, r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown index"}`))
	}))
	defer server.Close()

	svc := marketfeeds.NewService(zap.NewNop(), config.MarketConfig{
		Indices:     server.URL + "/indices",
		APIKey:      "secret",
		APIKeyParam: "apikey",
		APIKeyHdr:   "X-API-Key",
		CacheTTL:    time.Minute,
	}, cache.NewMemoryCache())

	for i := 0; i < 2; i++ {
		resp, err := svc.Fetch(context.Background(), marketfeeds.FeedIndices, "", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
		assert.JSONEq(t, `{"error":"unknown index"}`, string(resp.Body))
	}
	// error replies are not cached
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchFailures(t *testing.T) {
	svc := marketfeeds.NewService(zap.NewNop(), config.MarketConfig{
		Quote:   "http://127.0.0.1:1/quote/{code}",
		Timeout: time.Second,
	}, nil)

	_, err := svc.Fetch(context.Background(), marketfeeds.FeedRankings, "", nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))

	_, err = svc.Fetch(context.Background(), marketfeeds.FeedQuote, "005930", nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstream))
}

func TestCacheKeysOmitAPIKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "top-secret", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	recorder := &keyRecorder{MemoryCache: cache.NewMemoryCache()}
	svc := marketfeeds.NewService(zap.NewNop(), config.MarketConfig{
		Rankings:    server.URL + "/rankings",
		APIKey:      "top-secret",
		APIKeyParam: "apikey",
		CacheTTL:    time.Minute,
	}, recorder)

	// a caller supplied key is neither forwarded nor part of the cache key
	for _, query := range []url.Values{{"market": {"KOSPI"}}, {"market": {"KOSPI"}, "apikey": {"forged"}}} {
		resp, err := svc.Fetch(context.Background(), marketfeeds.FeedRankings, "", query)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.Len(t, recorder.keys, 1)
	assert.False(t, strings.Contains(recorder.keys[0], "top-secret"), recorder.keys[0])
	assert.Contains(t, recorder.keys[0], "market=KOSPI")
}
