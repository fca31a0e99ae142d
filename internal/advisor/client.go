// Package advisor talks to an OpenAI compatible chat completions API.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/pkg/httpclient"
	"github.com/finmate/finmate/pkg/metrics"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// SystemPrompt positions the model as a financial planner
const SystemPrompt = "당신은 재무설계에 전문적인 금융 조언가입니다."

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the chat completions endpoint, retrying once with the
// fallback model when the primary model fails.
type Client struct {
	logger        *zap.Logger
	http          *retryablehttp.Client
	apiKey        string
	endpoint      string
	model         string
	fallbackModel string
	maxTokens     int
	temperature   float64
}

// NewClient returns nil when no API key is configured
func NewClient(logger *zap.Logger, cfg config.OpenAIConfig) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	return &Client{
		logger:        logger,
		http:          httpclient.New(logger, httpclient.Options{Timeout: cfg.Timeout}),
		apiKey:        cfg.APIKey,
		endpoint:      strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
	}
}

// Recommend returns the model's answer to prompt
func (c *Client) Recommend(ctx context.Context, prompt string) (string, error) {
	text, err := c.complete(ctx, c.model, prompt)
	if err == nil {
		return text, nil
	}
	c.logger.Error("Chat completion failed", zap.String("model", c.model), zap.Error(err))
	if c.fallbackModel == "" || c.fallbackModel == c.model {
		return "", err
	}

	c.logger.Info("Retrying with fallback model", zap.String("model", c.fallbackModel))
	text, fallbackErr := c.complete(ctx, c.fallbackModel, prompt)
	if fallbackErr != nil {
		return "", fmt.Errorf("both main and fallback models failed: %w", err)
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, model, prompt string) (text string, err error) {
	start := time.Now()
	defer func() {
		httpclient.Observe("openai", start, err)
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.AIRecommendations.WithLabelValues(model, result).Inc()
	}()

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("API error (status %d)", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
