package oauth

import (
	"context"
	"net/http"
	"net/url"

	apperrors "github.com/finmate/finmate/common/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultGoogleTokenInfoURL verifies ID tokens
const DefaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleProvider signs users in with Google
type GoogleProvider struct {
	conf         *oauth2.Config
	tokenInfoURL string
	client       *http.Client
}

// NewGoogleProvider creates a Google provider. Empty URLs fall back to Google's.
func NewGoogleProvider(clientID, clientSecret, tokenURL, tokenInfoURL string, client *http.Client) *GoogleProvider {
	endpoint := endpoints.Google
	if tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	if tokenInfoURL == "" {
		tokenInfoURL = DefaultGoogleTokenInfoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GoogleProvider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		tokenInfoURL: tokenInfoURL,
		client:       client,
	}
}

// Name returns "google"
func (p *GoogleProvider) Name() string { return Google }

// Exchange trades the code for tokens and reads the verified ID token claims
func (p *GoogleProvider) Exchange(ctx context.Context, code, redirectURI string) (*Profile, error) {
	tok, err := exchangeToken(ctx, p.client, p.conf, code, redirectURI)
	if err != nil {
		return nil, err
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "No ID token received from Google")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.tokenInfoURL+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return nil, err
	}
	info, err := fetchJSON(p.client, req, "google_tokeninfo")
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Failed to verify Google ID token")
	}

	if aud := info.Get("aud").String(); p.conf.ClientID != "" && aud != "" && aud != p.conf.ClientID {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Google ID token was issued for another client")
	}

	profile := &Profile{
		ID:      info.Get("sub").String(),
		Email:   info.Get("email").String(),
		Name:    info.Get("name").String(),
		Picture: info.Get("picture").String(),
	}
	if profile.ID == "" {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Google ID token has no subject")
	}
	return profile, nil
}
