package advisor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/finmate/finmate/internal/advisor"
	"github.com/finmate/finmate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, failModel string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	seen := make([]recordedRequest, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if req.Model == failModel {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"model not available"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  추천 결과 (` + req.Model + `)  "}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testConfig(url string) config.OpenAIConfig {
	return config.OpenAIConfig{
		APIKey:        "sk-test",
		BaseURL:       url + "/v1/",
		Model:         "gpt-4o",
		FallbackModel: "gpt-4o-mini",
		MaxTokens:     1500,
		Temperature:   0.7,
		Timeout:       5 * time.Second,
	}
}

func TestNewClientWithoutKey(t *testing.T) {
	assert.Nil(t, advisor.NewClient(zap.NewNop(), config.OpenAIConfig{}))
}

func TestRecommend(t *testing.T) {
	srv, seen := newServer(t, "")
	c := advisor.NewClient(zap.NewNop(), testConfig(srv.URL))

	text, err := c.Recommend(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "추천 결과 (gpt-4o)", text)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, 1500, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, advisor.SystemPrompt, req.Messages[0].Content)
	assert.Equal(t, "prompt", req.Messages[1].Content)
}

func TestRecommendFallsBack(t *testing.T) {
	srv, seen := newServer(t, "gpt-4o")
	c := advisor.NewClient(zap.NewNop(), testConfig(srv.URL))

	text, err := c.Recommend(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "추천 결과 (gpt-4o-mini)", text)
	require.Len(t, *seen, 2)
	assert.Equal(t, "gpt-4o-mini", (*seen)[1].Model)
}

func TestRecommendBothFail(t *testing.T) {
	srv, _ := newServer(t, "gpt-4o")
	cfg := testConfig(srv.URL)
	cfg.FallbackModel = "gpt-4o"
	c := advisor.NewClient(zap.NewNop(), cfg)

	_, err := c.Recommend(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not available")
}

func TestBuildPrompt(t *testing.T) {
	salary := int64(3000000)
	prompt, err := advisor.BuildPrompt(advisor.Situation{Salary: &salary, Period: 12}, map[string]string{"name": "정기예금"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "- 월 소득: 3000000원")
	assert.Contains(t, prompt, "- 현재 자산: 정보 없음")
	assert.Contains(t, prompt, "- 원하는 기간(개월 수): 12개월")
	assert.Contains(t, prompt, `"name": "정기예금"`)
	assert.Contains(t, prompt, "출력 형식")
}
