package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/identities"
	"github.com/finmate/finmate/pkg/models"
	"github.com/gin-gonic/gin"
)

// profileView is the account representation returned by every account endpoint
type profileView struct {
	ID              uint       `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Nickname        string     `json:"nickname"`
	ProfileImg      *string    `json:"profile_img"`
	SocialAvatar    *string    `json:"social_avatar"`
	Age             *int       `json:"age"`
	Gender          *string    `json:"gender"`
	Money           int64      `json:"money"`
	Salary          *int64     `json:"salary"`
	IsSocialAccount bool       `json:"is_social_account"`
	DateJoined      time.Time  `json:"date_joined"`
	JoinDate        time.Time  `json:"join_date"`
	LastLogin       *time.Time `json:"last_login"`
	IsStaff         bool       `json:"is_staff"`
	IsSuperuser     bool       `json:"is_superuser"`
	IsAdmin         bool       `json:"is_admin"`
}

func (s *Server) registerAccountRoutes(accounts *gin.RouterGroup) {
	accounts.POST("/register", s.register)
	accounts.POST("/login", s.login)
	accounts.POST("/logout", s.logout)
	accounts.GET("/check-auth", s.optionalAuthMiddleware(), s.checkAuth)
	accounts.POST("/token/refresh", s.refreshToken)
	accounts.POST("/token/verify", s.verifyToken)

	for _, provider := range []string{"google", "kakao"} {
		accounts.GET("/"+provider+"/login", s.socialLoginInfo(provider))
		accounts.POST("/"+provider+"/login", s.socialLogin(provider))
	}

	authed := accounts.Group("", s.authMiddleware())
	authed.GET("/profile", s.getProfile)
	authed.PUT("/update-profile", s.updateProfile)
	authed.PATCH("/update-profile", s.updateProfile)
	authed.POST("/reset-profile-image", s.resetProfileImage)
}

func (s *Server) profile(c *gin.Context, user *models.User) profileView {
	return profileView{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		Nickname:        user.Nickname,
		ProfileImg:      absoluteURL(c, s.identities.ProfileImageURL(user)),
		SocialAvatar:    user.SocialAvatar,
		Age:             user.Age,
		Gender:          user.Gender,
		Money:           user.Money,
		Salary:          user.Salary,
		IsSocialAccount: user.IsSocialAccount(),
		DateJoined:      user.DateJoined,
		JoinDate:        user.JoinDate,
		LastLogin:       user.LastLogin,
		IsStaff:         user.IsStaff,
		IsSuperuser:     user.IsSuperuser,
		IsAdmin:         user.IsAdmin,
	}
}

// absoluteURL prefixes site-relative paths with the request's scheme and host
func absoluteURL(c *gin.Context, p *string) *string {
	if p == nil || !strings.HasPrefix(*p, "/") {
		return p
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	u := scheme + "://" + c.Request.Host + *p
	return &u
}

func (s *Server) authResponse(c *gin.Context, status int, message string, result *identities.AuthResult) {
	c.JSON(status, gin.H{
		"message": message,
		"user":    s.profile(c, result.User),
		"tokens":  result.Tokens,
	})
}

func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if !s.bind(c, &req) {
		return
	}
	result, err := s.identities.Register(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.authResponse(c, http.StatusCreated, "User registered successfully", result)
}

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if !s.bind(c, &req) {
		return
	}
	result, err := s.identities.Login(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.authResponse(c, http.StatusOK, "Login successful", result)
}

func (s *Server) logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		apperrors.Unauthorized(c, "Not logged in")
		return
	}
	var req models.LogoutRequest
	// the refresh token is optional, so an empty body is fine
	_ = c.ShouldBindJSON(&req)

	if err := s.identities.Logout(c.Request.Context(), token, req.Refresh); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func (s *Server) checkAuth(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"is_authenticated": false})
		return
	}
	user, err := s.identities.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"is_authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_authenticated": true, "user": s.profile(c, user)})
}

func (s *Server) getProfile(c *gin.Context) {
	userID, _ := currentUserID(c)
	user, err := s.identities.GetUser(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.profile(c, user))
}

func (s *Server) updateProfile(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req models.UpdateProfileRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") || c.ContentType() == "application/x-www-form-urlencoded" {
		if err := c.ShouldBind(&req); err != nil {
			apperrors.BadRequest(c, "Invalid form data")
			return
		}
	} else if err := decodeProfileJSON(c, &req); err != nil {
		apperrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := s.identities.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": s.profile(c, user)})
}

// decodeProfileJSON accepts numbers and strings alike for the profile fields
func decodeProfileJSON(c *gin.Context, req *models.UpdateProfileRequest) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	field := func(name string) *string {
		v, ok := raw[name]
		if !ok || v == nil {
			return nil
		}
		s := fmt.Sprint(v)
		return &s
	}
	req.Nickname = field("nickname")
	req.Age = field("age")
	req.Gender = field("gender")
	req.Salary = field("salary")
	req.Money = field("money")
	return nil
}

func (s *Server) resetProfileImage(c *gin.Context) {
	userID, _ := currentUserID(c)
	user, err := s.identities.ResetProfileImage(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile image reset successfully", "user": s.profile(c, user)})
}

func (s *Server) socialLoginInfo(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := identities.RedirectOrigin(c.GetHeader("Origin"), c.GetHeader("Referer"), s.cfg.OAuth.FrontendOrigin)
		c.JSON(http.StatusOK, gin.H{
			"provider":     provider,
			"message":      "POST the authorization code as {\"code\": \"...\"} to sign in",
			"redirect_uri": origin + "/login/" + provider + "/callback",
		})
	}
}

func (s *Server) socialLogin(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SocialLoginRequest
		_ = c.ShouldBindJSON(&req)
		if req.Code == "" {
			req.Code = c.PostForm("code")
		}

		origin := identities.RedirectOrigin(c.GetHeader("Origin"), c.GetHeader("Referer"), s.cfg.OAuth.FrontendOrigin)
		result, err := s.identities.SocialLogin(c.Request.Context(), provider, req.Code, origin)
		if err != nil {
			s.writeError(c, err)
			return
		}
		s.authResponse(c, http.StatusOK, "Login successful", result)
	}
}

func (s *Server) refreshToken(c *gin.Context) {
	var req models.RefreshRequest
	if !s.bind(c, &req) {
		return
	}
	access, err := s.identities.RefreshToken(c.Request.Context(), req.Refresh)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access})
}

func (s *Server) verifyToken(c *gin.Context) {
	var req models.VerifyRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.identities.VerifyToken(c.Request.Context(), req.Token); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
