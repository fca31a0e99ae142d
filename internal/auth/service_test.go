package auth

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/cache"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() *Service {
	return NewService(zap.NewNop(), "test-secret", time.Hour, 24*time.Hour, cache.NewMemoryCache())
}

func TestIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	access, refresh, err := svc.IssuePair(42)
	require.NoError(t, err)

	claims, err := svc.ValidateAccess(ctx, "Bearer "+access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	// refresh tokens are not accepted as access tokens
	_, err = svc.ValidateAccess(ctx, refresh)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	access, refresh, err := svc.IssuePair(7)
	require.NoError(t, err)

	newAccess, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	claims, err := svc.ValidateAccess(ctx, newAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)

	_, err = svc.Refresh(ctx, access)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	access, _, err := svc.IssuePair(1)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateAccess(ctx, access)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	access, _, err := svc.IssuePair(3)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, access))

	_, err = svc.ValidateAccess(ctx, access)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoked")
}

func TestRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	claims := TokenClaims{UserID: 1, TokenType: TokenTypeAccess, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = svc.Verify(ctx, forged)
	assert.Error(t, err)

	_, err = svc.Verify(ctx, "")
	assert.Error(t, err)
}
