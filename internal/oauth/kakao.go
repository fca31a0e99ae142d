package oauth

import (
	"context"
	"net/http"

	apperrors "github.com/finmate/finmate/common/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/kakao"
)

// DefaultKakaoUserURL returns the signed-in user's account
const DefaultKakaoUserURL = "https://kapi.kakao.com/v2/user/me"

// KakaoProvider signs users in with Kakao
type KakaoProvider struct {
	conf    *oauth2.Config
	userURL string
	client  *http.Client
}

// NewKakaoProvider creates a Kakao provider. Empty URLs fall back to Kakao's.
func NewKakaoProvider(clientID, clientSecret, tokenURL, userURL string, client *http.Client) *KakaoProvider {
	endpoint := kakao.Endpoint
	if tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	// Kakao expects client credentials in the form body
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if userURL == "" {
		userURL = DefaultKakaoUserURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &KakaoProvider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
		},
		userURL: userURL,
		client:  client,
	}
}

// Name returns "kakao"
func (p *KakaoProvider) Name() string { return Kakao }

// Exchange trades the code for an access token and loads the Kakao account
func (p *KakaoProvider) Exchange(ctx context.Context, code, redirectURI string) (*Profile, error) {
	tok, err := exchangeToken(ctx, p.client, p.conf, code, redirectURI)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.userURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	info, err := fetchJSON(p.client, req, "kakao_user")
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Failed to get user info from Kakao")
	}

	profile := &Profile{
		ID:      info.Get("id").String(),
		Email:   info.Get("kakao_account.email").String(),
		Name:    info.Get("kakao_account.profile.nickname").String(),
		Picture: info.Get("kakao_account.profile.profile_image_url").String(),
	}
	if profile.ID == "" {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Kakao account has no id")
	}
	return profile, nil
}
