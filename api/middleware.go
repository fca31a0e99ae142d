package api

import (
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ctxUserID  = "userID"
	ctxIsAdmin = "isAdmin"
	ctxTraceID = "trace_id"
)

// traceIDMiddleware exposes the request span's trace id to error responses.
// Must run after otelgin.
func traceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			id := sc.TraceID().String()
			c.Set(ctxTraceID, id)
			c.Header("X-Trace-ID", id)
		}
		c.Next()
	}
}

// bearerToken extracts the token of an "Authorization: Bearer" header
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:]), true
	}
	return "", false
}

// authMiddleware returns a middleware for authentication
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			apperrors.Unauthorized(c, "Authorization header required")
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			apperrors.Unauthorized(c, "Invalid authorization format")
			return
		}

		userID, err := s.identities.ValidateToken(c.Request.Context(), token)
		if err != nil {
			apperrors.Unauthorized(c, "Given token not valid for any token type")
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// optionalAuthMiddleware sets the user id when a valid token is present
func (s *Server) optionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if userID, err := s.identities.ValidateToken(c.Request.Context(), token); err == nil {
				c.Set(ctxUserID, userID)
			}
		}
		c.Next()
	}
}

// adminAuthMiddleware admits authenticated users with admin rights
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			apperrors.Unauthorized(c, "Authorization header required")
			return
		}

		isAdmin, err := s.identities.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if !isAdmin {
			apperrors.Forbidden(c, "You do not have permission to perform this action.")
			return
		}

		c.Set(ctxIsAdmin, true)
		c.Next()
	}
}

// rateLimitMiddleware throttles endpoints that spend third-party quota
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		key := c.ClientIP()
		if userID, ok := currentUserID(c); ok {
			key = "user:" + strconv.FormatUint(uint64(userID), 10)
		}
		if !s.limiter.allow(key) {
			s.logger.Debug("Rate limit exceeded", zap.String("client", key), zap.String("route", c.FullPath()))
			apperrors.RateLimit(c, "Request was throttled.")
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// clientLimiter keeps one token bucket per client
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const maxTrackedClients = 10000

func newClientLimiter(perMinute, burst int) *clientLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		clients: make(map[string]*clientBucket),
	}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.prune(now)
		}
		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

// prune drops buckets idle for longer than it takes them to refill
func (l *clientLimiter) prune(now time.Time) {
	idle := time.Duration(float64(l.burst)/float64(l.limit)*float64(time.Second)) + time.Minute
	for key, bucket := range l.clients {
		if now.Sub(bucket.lastSeen) > idle {
			delete(l.clients, key)
		}
	}
}
