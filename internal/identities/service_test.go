package identities_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/auth"
	"github.com/finmate/finmate/internal/cache"
	"github.com/finmate/finmate/internal/identities"
	"github.com/finmate/finmate/internal/media"
	"github.com/finmate/finmate/internal/oauth"
	"github.com/finmate/finmate/pkg/models"
	"github.com/finmate/finmate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubProvider struct {
	name    string
	profile *oauth.Profile
	gotURI  string
	err     error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Exchange(_ context.Context, code, redirectURI string) (*oauth.Profile, error) {
	p.gotURI = redirectURI
	if p.err != nil {
		return nil, p.err
	}
	if code != "ok" {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Failed to get access token")
	}
	return p.profile, nil
}

func newService(t *testing.T, providers ...oauth.Provider) (*identities.Service, *gorm.DB, *auth.Service) {
	t.Helper()
	db := testutil.NewTestDB(t)
	tokens := auth.NewService(zap.NewNop(), "test-secret", time.Hour, 24*time.Hour, cache.NewMemoryCache())
	store := media.NewLocalStore(zap.NewNop(), t.TempDir(), "/media", 1<<20)
	svc, err := identities.NewService(zap.NewNop(), db, tokens, store, providers...)
	require.NoError(t, err)
	return svc, db, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens := newService(t)

	res, err := svc.Register(ctx, &models.RegisterRequest{
		Username: "kim",
		Email:    "kim@example.com",
		Password: "secret-pass",
		Nickname: "김씨",
		Age:      testutil.Ptr(30),
	})
	require.NoError(t, err)
	assert.NotZero(t, res.User.ID)
	assert.NotEmpty(t, res.Tokens.Access)
	assert.NotEmpty(t, res.Tokens.Refresh)

	claims, err := tokens.ValidateAccess(ctx, res.Tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, err = svc.Login(ctx, &models.LoginRequest{Username: "kim", Password: "secret-pass"})
	require.NoError(t, err)

	// email login
	logged, err := svc.Login(ctx, &models.LoginRequest{Username: "kim@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	assert.NotNil(t, logged.User.LastLogin)

	_, err = svc.Login(ctx, &models.LoginRequest{Username: "kim", Password: "wrong"})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRegisterDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)
	testutil.CreateUser(t, db, "taken")

	cases := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"username", models.RegisterRequest{Username: "taken", Email: "new@example.com", Password: "pw12", Nickname: "new"}},
		{"email", models.RegisterRequest{Username: "new", Email: "taken@example.com", Password: "pw12", Nickname: "new"}},
		{"nickname", models.RegisterRequest{Username: "new", Email: "new@example.com", Password: "pw12", Nickname: "taken"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tc.req)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)
	testutil.CreateUser(t, db, "lee")

	res, err := svc.Login(ctx, &models.LoginRequest{Username: "lee", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, res.Tokens.Access, res.Tokens.Refresh))

	_, err = svc.ValidateToken(ctx, res.Tokens.Access)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	_, err = svc.RefreshToken(ctx, res.Tokens.Refresh)
	assert.Error(t, err)

	err = svc.Logout(ctx, "", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)
	user := testutil.CreateUser(t, db, "park")
	testutil.CreateUser(t, db, "choi")

	updated, err := svc.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{
		Nickname: testutil.Ptr("parky"),
		Age:      testutil.Ptr("41"),
		Money:    testutil.Ptr("1500000"),
		Salary:   testutil.Ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "parky", updated.Nickname)
	require.NotNil(t, updated.Age)
	assert.Equal(t, 41, *updated.Age)
	assert.Equal(t, int64(1500000), updated.Money)
	assert.Nil(t, updated.Salary)

	_, err = svc.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{Money: testutil.Ptr("lots")})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	_, err = svc.UpdateProfile(ctx, user.ID, &models.UpdateProfileRequest{Nickname: testutil.Ptr("choi")})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestProfileImageFallsBackToSocialAvatar(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)
	user := testutil.CreateUser(t, db, "jung")
	require.NoError(t, db.Model(user).Updates(map[string]interface{}{
		"profile_img":   "profile_images/x.png",
		"social_avatar": "https://img/avatar.png",
	}).Error)

	user, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "/media/profile_images/x.png", *svc.ProfileImageURL(user))

	user, err = svc.ResetProfileImage(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, user.ProfileImg)
	assert.Equal(t, "https://img/avatar.png", *svc.ProfileImageURL(user))
}

func TestSocialLoginCreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	google := &stubProvider{name: oauth.Google, profile: &oauth.Profile{
		ID: "g-1", Email: "new@example.com", Name: "A very long display name", Picture: "https://img/g.png",
	}}
	svc, db, _ := newService(t, google)

	first, err := svc.SocialLogin(ctx, oauth.Google, "ok", "http://localhost:5173/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173/login/google/callback", google.gotURI)
	require.NotNil(t, first.User.GoogleID)
	assert.Equal(t, "g-1", *first.User.GoogleID)
	assert.LessOrEqual(t, len([]rune(first.User.Nickname)), 15)
	assert.True(t, first.User.IsSocialAccount())

	second, err := svc.SocialLogin(ctx, oauth.Google, "ok", "http://localhost:5173")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSocialLoginLinksByEmail(t *testing.T) {
	ctx := context.Background()
	kakao := &stubProvider{name: oauth.Kakao, profile: &oauth.Profile{ID: "k-9", Email: "han@example.com", Name: "han"}}
	svc, db, _ := newService(t, kakao)
	existing := testutil.CreateUser(t, db, "han")

	res, err := svc.SocialLogin(ctx, oauth.Kakao, "ok", "http://localhost:5173")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.User.ID)
	require.NotNil(t, res.User.KakaoID)
	assert.Equal(t, "k-9", *res.User.KakaoID)
}

func TestSocialLoginNicknameCollision(t *testing.T) {
	ctx := context.Background()
	kakao := &stubProvider{name: oauth.Kakao, profile: &oauth.Profile{ID: "k-2", Name: "han"}}
	svc, db, _ := newService(t, kakao)
	testutil.CreateUser(t, db, "han")

	res, err := svc.SocialLogin(ctx, oauth.Kakao, "ok", "http://localhost:5173")
	require.NoError(t, err)
	assert.Equal(t, "han_1", res.User.Nickname)
	assert.Empty(t, res.User.Email)
}

func TestSocialLoginErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, &stubProvider{name: oauth.Google, profile: &oauth.Profile{ID: "g"}})

	_, err := svc.SocialLogin(ctx, oauth.Google, "", "http://localhost:5173")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
	assert.True(t, strings.Contains(err.Error(), "Google authorization code is required"))

	_, err = svc.SocialLogin(ctx, oauth.Google, "bad", "http://localhost:5173")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = svc.SocialLogin(ctx, oauth.Kakao, "ok", "http://localhost:5173")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))
}

func TestSocialLoginTransportFailureIsUnauthorized(t *testing.T) {
	google := &stubProvider{name: oauth.Google, err: fmt.Errorf("userinfo returned 502")}
	svc, _, _ := newService(t, google)

	_, err := svc.SocialLogin(context.Background(), oauth.Google, "ok", "http://localhost:5173")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	assert.Contains(t, err.Error(), "Failed to authenticate with google")
	assert.NotContains(t, err.Error(), "502")
}

func TestSocialLoginStorageFailureIsNotUnauthorized(t *testing.T) {
	google := &stubProvider{name: oauth.Google, profile: &oauth.Profile{ID: "g-5", Email: "db@example.com", Name: "db"}}
	svc, db, _ := newService(t, google)
	require.NoError(t, db.Migrator().DropTable(&models.User{}))

	_, err := svc.SocialLogin(context.Background(), oauth.Google, "ok", "http://localhost:5173")
	require.Error(t, err)
	var appErr *apperrors.Error
	assert.False(t, apperrors.As(err, &appErr))
}

func TestRedirectOrigin(t *testing.T) {
	assert.Equal(t, "https://app.example.com", identities.RedirectOrigin("https://app.example.com/", "", "http://fallback"))
	assert.Equal(t, "https://web.example.com", identities.RedirectOrigin("", "https://web.example.com/login?next=/", "http://fallback"))
	assert.Equal(t, "http://fallback", identities.RedirectOrigin("null", "not a url", "http://fallback/"))
}
