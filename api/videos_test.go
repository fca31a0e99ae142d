package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/finmate/finmate/internal/youtube"
	"github.com/finmate/finmate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoSearchAndBookmarks(t *testing.T) {
	env := setupRouter(t)
	testutil.CreateUser(t, env.db, "lee")
	testutil.CreateUser(t, env.db, "park")
	token := env.login(t, "lee")
	other := env.login(t, "park")

	w := env.do(t, http.MethodGet, "/api/v1/youtube/videos/search?q=etf", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	env.searcher.videos = []youtube.VideoData{
		{YouTubeID: "abc123", Title: "ETF 기초", ChannelTitle: "머니채널", PublishedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	w = env.do(t, http.MethodGet, "/api/v1/youtube/videos/search?q=etf", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/youtube/videos/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/youtube/videos/get-by-youtube-id?id=abc123", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/youtube/videos/get-by-youtube-id?id=abc123", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	video := decode(t, w)
	assert.Equal(t, "etf", video["search_query"])
	videoID := video["id"]

	w = env.do(t, http.MethodGet, "/api/v1/youtube/videos/get-by-youtube-id?id=missing", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/youtube/saved", map[string]interface{}{"video": videoID, "notes": "나중에 보기"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	savedID := int(decode(t, w)["id"].(float64))

	w = env.do(t, http.MethodPost, "/api/v1/youtube/saved", map[string]interface{}{"video": videoID, "notes": "다시 보기"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "다시 보기", decode(t, w)["notes"])

	w = env.do(t, http.MethodPost, "/api/v1/youtube/saved", map[string]interface{}{"video": 9999}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := fmt.Sprintf("/api/v1/youtube/saved/%d", savedID)
	w = env.do(t, http.MethodGet, path, nil, other)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPatch, path, map[string]string{"notes": "메모"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "메모", decode(t, w)["notes"])

	w = env.do(t, http.MethodGet, "/api/v1/youtube/saved/my-saved-videos", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "abc123")

	w = env.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestVideoSearchUpstreamFailure(t *testing.T) {
	env := setupRouter(t)
	env.searcher.err = errors.New("quota exceeded")

	w := env.do(t, http.MethodGet, "/api/v1/youtube/videos/search?q=etf", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
