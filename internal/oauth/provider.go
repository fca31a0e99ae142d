// Package oauth exchanges provider authorization codes for user profiles.
package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/pkg/metrics"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// Provider names
const (
	Google = "google"
	Kakao  = "kakao"
)

// Profile is the provider-neutral subset of a social account
type Profile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// Provider turns an authorization code into a Profile
type Provider interface {
	Name() string
	Exchange(ctx context.Context, code, redirectURI string) (*Profile, error)
}

func exchangeToken(ctx context.Context, client *http.Client, conf *oauth2.Config, code, redirectURI string) (*oauth2.Token, error) {
	c := *conf
	c.RedirectURL = redirectURI

	start := time.Now()
	tok, err := c.Exchange(context.WithValue(ctx, oauth2.HTTPClient, client), code)
	observe("oauth_token", start, err)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Failed to get access token: %v", err)
	}
	return tok, nil
}

func fetchJSON(client *http.Client, req *http.Request, upstream string) (gjson.Result, error) {
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		observe(upstream, start, err)
		return gjson.Result{}, fmt.Errorf("request to %s failed: %w", upstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("%s returned status %d", upstream, resp.StatusCode)
	}
	observe(upstream, start, err)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s returned invalid JSON", upstream)
	}
	return gjson.ParseBytes(body), nil
}

func observe(upstream string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.UpstreamLatency.WithLabelValues(upstream, outcome).Observe(time.Since(start).Seconds())
}
