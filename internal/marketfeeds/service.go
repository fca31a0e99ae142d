// Package marketfeeds proxies stock and market data from third-party APIs.
package marketfeeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/cache"
	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/pkg/httpclient"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Feeds served by the proxy
const (
	FeedRankings = "rankings"
	FeedQuote    = "quote"
	FeedChart    = "chart"
	FeedIndices  = "indices"
)

// Response is an upstream reply passed through as-is
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// MarketFeedService defines market proxy operations
type MarketFeedService interface {
	Start() error
	Stop() error
	Fetch(ctx context.Context, feed, code string, query url.Values) (*Response, error)
}

// Service implements MarketFeedService
type Service struct {
	logger   *zap.Logger
	http     *retryablehttp.Client
	cache    cache.Cache
	ttl      time.Duration
	feeds    map[string]string
	apiKey   string
	keyParam string
	keyHdr   string
}

// NewService creates a market proxy. c may be nil to disable caching.
func NewService(logger *zap.Logger, cfg config.MarketConfig, c cache.Cache) *Service {
	return &Service{
		logger: logger,
		http:   httpclient.New(logger, httpclient.Options{Timeout: cfg.Timeout}),
		cache:  c,
		ttl:    cfg.CacheTTL,
		feeds: map[string]string{
			FeedRankings: cfg.Rankings,
			FeedQuote:    cfg.Quote,
			FeedChart:    cfg.Chart,
			FeedIndices:  cfg.Indices,
		},
		apiKey:   cfg.APIKey,
		keyParam: cfg.APIKeyParam,
		keyHdr:   cfg.APIKeyHdr,
	}
}

// Start starts the market feeds service
func (s *Service) Start() error {
	configured := make([]string, 0, len(s.feeds))
	for feed, tmpl := range s.feeds {
		if tmpl != "" {
			configured = append(configured, feed)
		}
	}
	s.logger.Info("Market feeds service started", zap.Strings("feeds", configured))
	return nil
}

// Stop stops the market feeds service
func (s *Service) Stop() error {
	s.logger.Info("Market feeds service stopped")
	return nil
}

// Fetch calls the upstream configured for feed. Any upstream status is
// returned unchanged; only transport failures are errors.
func (s *Service) Fetch(ctx context.Context, feed, code string, query url.Values) (*Response, error) {
	target, public, err := s.buildURL(feed, code, query)
	if err != nil {
		return nil, err
	}

	// keyed without the API key so the secret never lands in the cache
	cacheKey := "market:" + public
	if s.cache != nil && s.ttl > 0 {
		var cached Response
		if ok, err := cache.GetJSON(ctx, s.cache, cacheKey, &cached); err != nil {
			s.logger.Warn("Market cache read failed", zap.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	resp, err := s.do(ctx, feed, target)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 && resp.Status >= 200 && resp.Status < 300 {
		if err := cache.SetJSON(ctx, s.cache, cacheKey, resp, s.ttl); err != nil {
			s.logger.Warn("Market cache write failed", zap.Error(err))
		}
	}
	return resp, nil
}

// buildURL returns the upstream URL and the same URL without the API key
func (s *Service) buildURL(feed, code string, query url.Values) (target, public string, err error) {
	tmpl := s.feeds[feed]
	if tmpl == "" {
		return "", "", apperrors.New(apperrors.ErrUnavailable, "Market feed %q is not configured", feed)
	}

	u, err := url.Parse(strings.ReplaceAll(tmpl, "{code}", url.PathEscape(code)))
	if err != nil {
		return "", "", fmt.Errorf("invalid %s feed url: %w", feed, err)
	}
	params := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if s.keyParam != "" {
		params.Del(s.keyParam)
	}
	u.RawQuery = params.Encode()
	public = u.String()

	if s.apiKey != "" && s.keyHdr == "" && s.keyParam != "" {
		params.Set(s.keyParam, s.apiKey)
		u.RawQuery = params.Encode()
	}
	return u.String(), public, nil
}

func (s *Service) do(ctx context.Context, feed, target string) (resp *Response, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if s.apiKey != "" && s.keyHdr != "" {
		req.Header.Set(s.keyHdr, s.apiKey)
	}

	start := time.Now()
	defer func() { httpclient.Observe("market_"+feed, start, err) }()

	httpResp, err := s.http.Do(req)
	if err != nil {
		s.logger.Error("Market upstream request failed", zap.String("feed", feed), zap.Error(err))
		return nil, apperrors.New(apperrors.ErrUpstream, "Failed to reach market data provider")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "Failed to read market data response")
	}
	return &Response{
		Status:      httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
