package identities

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/auth"
	"github.com/finmate/finmate/internal/database"
	"github.com/finmate/finmate/internal/media"
	"github.com/finmate/finmate/internal/oauth"
	"github.com/finmate/finmate/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	maxNicknameLength = 15
	profileImageDir   = "profile_images"
)

// IdentityService defines account operations
type IdentityService interface {
	Start() error
	Stop() error
	Register(ctx context.Context, req *models.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	SocialLogin(ctx context.Context, provider, code, origin string) (*AuthResult, error)
	RefreshToken(ctx context.Context, refresh string) (string, error)
	VerifyToken(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (uint, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uint, req *models.UpdateProfileRequest) (*models.User, error)
	ResetProfileImage(ctx context.Context, userID uint) (*models.User, error)
	IsAdmin(ctx context.Context, userID uint) (bool, error)
	ProfileImageURL(user *models.User) *string
}

// AuthResult is returned by every successful sign-in
type AuthResult struct {
	User   *models.User
	Tokens models.TokenPair
}

// Service implements IdentityService
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	tokens    auth.TokenService
	media     media.Store
	providers map[string]oauth.Provider
	now       func() time.Time
}

// NewService creates a new IdentityService
func NewService(logger *zap.Logger, db *gorm.DB, tokens auth.TokenService, store media.Store, providers ...oauth.Provider) (*Service, error) {
	if db == nil || tokens == nil {
		return nil, fmt.Errorf("identities: db and token service are required")
	}
	svc := &Service{
		logger:    logger,
		db:        db,
		tokens:    tokens,
		media:     store,
		providers: make(map[string]oauth.Provider),
		now:       time.Now,
	}
	for _, p := range providers {
		svc.providers[p.Name()] = p
	}
	return svc, nil
}

// Start starts the identities service
func (s *Service) Start() error {
	s.logger.Info("Identities service started", zap.Int("oauth_providers", len(s.providers)))
	return nil
}

// Stop stops the identities service
func (s *Service) Stop() error {
	s.logger.Info("Identities service stopped")
	return nil
}

// Register creates a local account and signs it in
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*AuthResult, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	nickname := strings.TrimSpace(req.Nickname)
	if username == "" || email == "" || req.Password == "" || nickname == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "Username, email, password, and nickname are required")
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLength {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "nickname", "Nickname must be at most %d characters", maxNicknameLength)
	}

	db := s.db.WithContext(ctx)
	for _, check := range []struct{ column, value, message string }{
		{"username", username, "Username already exists"},
		{"email", email, "Email already exists"},
		{"nickname", nickname, "Nickname already exists"},
	} {
		var count int64
		if err := db.Model(&models.User{}).Where(check.column+" = ?", check.value).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", check.column, err)
		}
		if count > 0 {
			return nil, apperrors.NewField(apperrors.ErrConflict, check.column, check.message)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Nickname:     nickname,
		Age:          req.Age,
		Gender:       req.Gender,
		JoinDate:     now,
		DateJoined:   now,
		LastLogin:    &now,
	}
	if err := db.Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrConflict, "User already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(user)
}

// Login authenticates by username, falling back to email when the login contains "@"
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error) {
	invalid := apperrors.New(apperrors.ErrUnauthorized, "Invalid credentials")

	user, err := s.authenticate(ctx, "username", req.Username, req.Password)
	if err != nil && strings.Contains(req.Username, "@") {
		user, err = s.authenticate(ctx, "email", req.Username, req.Password)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return nil, invalid
		}
		return nil, err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		s.logger.Warn("Failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	return s.issue(user)
}

func (s *Service) authenticate(ctx context.Context, column, login, password string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(column+" = ?", login).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	return &user, nil
}

// Logout revokes the access token and, when given, the refresh token
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, accessToken); err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return apperrors.New(apperrors.ErrUnauthorized, "Not logged in")
		}
		return err
	}
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
			s.logger.Debug("Refresh token not revoked on logout", zap.Error(err))
		}
	}
	return nil
}

// RefreshToken exchanges a refresh token for a new access token
func (s *Service) RefreshToken(ctx context.Context, refresh string) (string, error) {
	return s.tokens.Refresh(ctx, refresh)
}

// VerifyToken checks a token of either type
func (s *Service) VerifyToken(ctx context.Context, token string) error {
	_, err := s.tokens.Verify(ctx, token)
	return err
}

// ValidateToken returns the user id of a valid access token
func (s *Service) ValidateToken(ctx context.Context, token string) (uint, error) {
	claims, err := s.tokens.ValidateAccess(ctx, token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// GetUser loads a user by id
func (s *Service) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// IsAdmin reports whether the user may use admin endpoints
func (s *Service) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.HasAdminRights(), nil
}

// UpdateProfile applies the non-empty fields of req
func (s *Service) UpdateProfile(ctx context.Context, userID uint, req *models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	updates := make(map[string]interface{})

	if nickname := trimmed(req.Nickname); nickname != "" && nickname != user.Nickname {
		if utf8.RuneCountInString(nickname) > maxNicknameLength {
			return nil, apperrors.NewField(apperrors.ErrInvalid, "nickname", "Nickname must be at most %d characters", maxNicknameLength)
		}
		var count int64
		if err := db.Model(&models.User{}).Where("nickname = ? AND id <> ?", nickname, user.ID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check nickname: %w", err)
		}
		if count > 0 {
			return nil, apperrors.NewField(apperrors.ErrConflict, "nickname", "Nickname already exists")
		}
		updates["nickname"] = nickname
	}

	if raw := trimmed(req.Age); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 {
			return nil, apperrors.NewField(apperrors.ErrInvalid, "age", "Invalid age value provided")
		}
		updates["age"] = age
	}
	if raw := trimmed(req.Gender); raw != "" {
		if raw != "M" && raw != "F" {
			return nil, apperrors.NewField(apperrors.ErrInvalid, "gender", "Invalid gender value provided")
		}
		updates["gender"] = raw
	}
	if raw := trimmed(req.Salary); raw != "" {
		salary, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.NewField(apperrors.ErrInvalid, "salary", "Invalid salary value provided")
		}
		updates["salary"] = salary
	}
	if raw := trimmed(req.Money); raw != "" {
		money, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.NewField(apperrors.ErrInvalid, "money", "Invalid money value provided")
		}
		updates["money"] = money
	}

	var oldImage string
	if req.ProfileImg != nil {
		if s.media == nil {
			return nil, apperrors.New(apperrors.ErrUnavailable, "Image uploads are disabled")
		}
		f, err := req.ProfileImg.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open uploaded image: %w", err)
		}
		name, err := s.media.Save(ctx, profileImageDir, req.ProfileImg.Filename, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		if user.ProfileImg != nil {
			oldImage = *user.ProfileImg
		}
		updates["profile_img"] = name
	}

	if len(updates) > 0 {
		if err := db.Model(user).Updates(updates).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return nil, apperrors.NewField(apperrors.ErrConflict, "nickname", "Nickname already exists")
			}
			return nil, fmt.Errorf("failed to save profile: %w", err)
		}
	}
	if oldImage != "" {
		_ = s.media.Delete(ctx, oldImage)
	}

	return s.GetUser(ctx, userID)
}

// ResetProfileImage removes the uploaded image so the social avatar shows again
func (s *Service) ResetProfileImage(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ProfileImg == nil {
		return user, nil
	}

	old := *user.ProfileImg
	if err := s.db.WithContext(ctx).Model(user).Update("profile_img", nil).Error; err != nil {
		return nil, fmt.Errorf("failed to reset profile image: %w", err)
	}
	user.ProfileImg = nil
	if s.media != nil {
		_ = s.media.Delete(ctx, old)
	}
	s.logger.Info("Profile image reset", zap.Uint("user_id", user.ID))
	return user, nil
}

// ProfileImageURL returns the uploaded image path, else the social avatar
func (s *Service) ProfileImageURL(user *models.User) *string {
	if user.ProfileImg != nil && *user.ProfileImg != "" && s.media != nil {
		u := s.media.URL(*user.ProfileImg)
		return &u
	}
	return user.SocialAvatar
}

// SocialLogin signs a user in with an OAuth provider, creating or linking the account
func (s *Service) SocialLogin(ctx context.Context, providerName, code, origin string) (*AuthResult, error) {
	title := strings.ToUpper(providerName[:1]) + providerName[1:]
	if code == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "%s authorization code is required", title)
	}
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, apperrors.New(apperrors.ErrUnavailable, "%s login is not configured", title)
	}

	redirectURI := strings.TrimRight(origin, "/") + "/login/" + providerName + "/callback"
	profile, err := provider.Exchange(ctx, code, redirectURI)
	if err != nil {
		s.logger.Warn("Social login exchange failed", zap.String("provider", providerName), zap.Error(err))
		var appErr *apperrors.Error
		if apperrors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Failed to authenticate with %s", providerName)
	}

	var user *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		user, txErr = s.resolveSocialUser(tx, providerName, profile)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		s.logger.Warn("Failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	s.logger.Info("Social login", zap.String("provider", providerName), zap.Uint("user_id", user.ID))
	return s.issue(user)
}

func (s *Service) resolveSocialUser(tx *gorm.DB, providerName string, profile *oauth.Profile) (*models.User, error) {
	idColumn := providerName + "_id"

	var user models.User
	err := tx.Where(idColumn+" = ?", profile.ID).First(&user).Error
	if err == nil {
		if profile.Picture != "" && user.ProfileImg == nil && (user.SocialAvatar == nil || *user.SocialAvatar != profile.Picture) {
			if err := tx.Model(&user).Update("social_avatar", profile.Picture).Error; err != nil {
				return nil, fmt.Errorf("failed to update social avatar: %w", err)
			}
			user.SocialAvatar = &profile.Picture
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find %s user: %w", providerName, err)
	}

	if profile.Email != "" {
		err = tx.Where("email = ?", profile.Email).First(&user).Error
		if err == nil {
			updates := map[string]interface{}{idColumn: profile.ID}
			if profile.Picture != "" && user.SocialAvatar == nil {
				updates["social_avatar"] = profile.Picture
			}
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("failed to link %s account: %w", providerName, err)
			}
			s.logger.Info("Linked social account", zap.String("provider", providerName), zap.Uint("user_id", user.ID))
			return s.reload(tx, user.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
	}

	base := profile.Name
	if strings.TrimSpace(base) == "" {
		suffix, err := randomHex(4)
		if err != nil {
			return nil, err
		}
		base = "user_" + suffix
	}
	nickname, err := uniqueNickname(tx, base)
	if err != nil {
		return nil, err
	}

	password := make([]byte, 32)
	if _, err := rand.Read(password); err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(password)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	providerID := profile.ID
	user = models.User{
		Username:     providerName + "_" + profile.ID,
		Email:        profile.Email,
		PasswordHash: string(hash),
		Nickname:     nickname,
		JoinDate:     now,
		DateJoined:   now,
	}
	if profile.Picture != "" {
		user.SocialAvatar = &profile.Picture
	}
	switch providerName {
	case oauth.Google:
		user.GoogleID = &providerID
	case oauth.Kakao:
		user.KakaoID = &providerID
	}
	if err := tx.Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrConflict, "Account already exists")
		}
		return nil, fmt.Errorf("failed to create %s user: %w", providerName, err)
	}
	return &user, nil
}

func (s *Service) reload(tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	return &user, nil
}

func (s *Service) issue(user *models.User) (*AuthResult, error) {
	access, refresh, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return &AuthResult{User: user, Tokens: models.TokenPair{Access: access, Refresh: refresh}}, nil
}

// uniqueNickname returns base, or base_1, base_2 ... trimmed to fit the column
func uniqueNickname(tx *gorm.DB, base string) (string, error) {
	base = truncateRunes(strings.TrimSpace(base), maxNicknameLength)
	candidate := base
	for i := 1; ; i++ {
		var count int64
		if err := tx.Model(&models.User{}).Where("nickname = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check nickname: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		suffix := "_" + strconv.Itoa(i)
		candidate = truncateRunes(base, maxNicknameLength-len(suffix)) + suffix
	}
}

// RedirectOrigin picks the frontend origin for OAuth callbacks: the Origin
// header, else the scheme and host of Referer, else fallback.
func RedirectOrigin(origin, referer, fallback string) string {
	if origin = strings.TrimSpace(origin); origin != "" && origin != "null" {
		return strings.TrimRight(origin, "/")
	}
	if u, err := url.Parse(referer); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return strings.TrimRight(fallback, "/")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nickname: %w", err)
	}
	return hex.EncodeToString(b), nil
}
