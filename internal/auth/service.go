package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/cache"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Token types carried in the token_type claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const revokedKeyPrefix = "auth:revoked:"

// TokenService issues and checks access/refresh token pairs
type TokenService interface {
	IssuePair(userID uint) (access, refresh string, err error)
	ValidateAccess(ctx context.Context, token string) (*TokenClaims, error)
	Refresh(ctx context.Context, refresh string) (string, error)
	Verify(ctx context.Context, token string) (*TokenClaims, error)
	Revoke(ctx context.Context, token string) error
}

// TokenClaims are the JWT claims of both token types
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service implements TokenService with HS256 tokens and a cache backed revocation list
type Service struct {
	logger     *zap.Logger
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    cache.Cache
	now        func() time.Time
}

// NewService creates a token service
func NewService(logger *zap.Logger, secret string, accessTTL, refreshTTL time.Duration, revoked cache.Cache) *Service {
	return &Service{
		logger:     logger,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revoked:    revoked,
		now:        time.Now,
	}
}

// IssuePair signs a new access and refresh token for userID
func (s *Service) IssuePair(userID uint) (string, string, error) {
	access, err := s.sign(userID, TokenTypeAccess, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.sign(userID, TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ValidateAccess accepts only unrevoked access tokens
func (s *Service) ValidateAccess(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Given token not valid for any token type")
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new access token
func (s *Service) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.Verify(ctx, refresh)
	if err != nil {
		return "", err
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", apperrors.New(apperrors.ErrUnauthorized, "Token has wrong type")
	}
	return s.sign(claims.UserID, TokenTypeAccess, s.accessTTL)
}

// Verify checks signature, expiry and revocation of a token of either type
func (s *Service) Verify(ctx context.Context, tokenString string) (*TokenClaims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Authentication credentials were not provided.")
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Token is invalid or expired")
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || claims.UserID == 0 {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Token contained no recognizable user identification")
	}

	_, revoked, err := s.revoked.Get(ctx, revokedKeyPrefix+claims.ID)
	if err != nil {
		// a cache outage must not lock every user out
		s.logger.Warn("Failed to check token revocation", zap.Error(err))
	} else if revoked {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Token has been revoked")
	}

	return claims, nil
}

// Revoke blacklists a token until it would have expired anyway
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.Verify(ctx, tokenString)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Set(ctx, revokedKeyPrefix+claims.ID, []byte(strconv.FormatUint(uint64(claims.UserID), 10)), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *Service) sign(userID uint, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := TokenClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
