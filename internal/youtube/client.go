// Package youtube searches finance videos on YouTube and keeps users' saved
// videos.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/pkg/httpclient"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// VideoData is a video as returned by the Data API
type VideoData struct {
	YouTubeID    string
	Title        string
	Description  string
	ThumbnailURL string
	PublishedAt  time.Time
	ChannelTitle string
}

// Searcher finds videos upstream
type Searcher interface {
	Search(ctx context.Context, query string) ([]VideoData, error)
	Related(ctx context.Context, videoID string) ([]VideoData, error)
}

const relatedResults = 5

// Client calls the YouTube Data API v3
type Client struct {
	logger     *zap.Logger
	http       *retryablehttp.Client
	baseURL    string
	apiKey     string
	maxResults int
}

// NewClient creates a Data API client, nil when no API key is configured
func NewClient(logger *zap.Logger, cfg config.YouTubeConfig) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Client{
		logger:     logger,
		http:       httpclient.New(logger, httpclient.Options{Timeout: cfg.Timeout, RetryMax: 1}),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
	}
}

// Search finds finance videos for query
func (c *Client) Search(ctx context.Context, query string) ([]VideoData, error) {
	params := url.Values{}
	params.Set("q", query+" stocks finance investing")
	params.Set("part", "id,snippet")
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	params.Set("type", "video")
	params.Set("regionCode", "KR")
	params.Set("safeSearch", "moderate")
	return c.searchThenDetail(ctx, params)
}

// Related finds videos related to videoID
func (c *Client) Related(ctx context.Context, videoID string) ([]VideoData, error) {
	params := url.Values{}
	params.Set("relatedToVideoId", videoID)
	params.Set("part", "id,snippet")
	params.Set("maxResults", strconv.Itoa(relatedResults))
	params.Set("type", "video")
	return c.searchThenDetail(ctx, params)
}

func (c *Client) searchThenDetail(ctx context.Context, params url.Values) ([]VideoData, error) {
	body, err := c.get(ctx, "search", params)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	for _, id := range gjson.GetBytes(body, "items.#.id.videoId").Array() {
		if id.String() != "" {
			ids = append(ids, id.String())
		}
	}
	if len(ids) == 0 {
		return []VideoData{}, nil
	}

	details := url.Values{}
	details.Set("part", "contentDetails,statistics,snippet")
	details.Set("id", strings.Join(ids, ","))
	body, err = c.get(ctx, "videos", details)
	if err != nil {
		return nil, err
	}

	items := gjson.GetBytes(body, "items").Array()
	videos := make([]VideoData, 0, len(items))
	for _, item := range items {
		published, err := time.Parse(time.RFC3339, item.Get("snippet.publishedAt").String())
		if err != nil {
			c.logger.Warn("Skipping video with bad publishedAt",
				zap.String("id", item.Get("id").String()), zap.Error(err))
			continue
		}
		videos = append(videos, VideoData{
			YouTubeID:    item.Get("id").String(),
			Title:        item.Get("snippet.title").String(),
			Description:  item.Get("snippet.description").String(),
			ThumbnailURL: item.Get("snippet.thumbnails.high.url").String(),
			PublishedAt:  published.UTC(),
			ChannelTitle: item.Get("snippet.channelTitle").String(),
		})
	}
	return videos, nil
}

func (c *Client) get(ctx context.Context, resource string, params url.Values) (body []byte, err error) {
	params.Set("key", c.apiKey)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+resource+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	defer func() { httpclient.Observe("youtube", start, err) }()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read youtube response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("youtube API error: %s (status: %d)", msg, resp.StatusCode)
	}
	return body, nil
}
