package api

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/board"
	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/internal/finlife"
	"github.com/finmate/finmate/internal/identities"
	"github.com/finmate/finmate/internal/marketfeeds"
	"github.com/finmate/finmate/internal/products"
	"github.com/finmate/finmate/internal/youtube"
	"github.com/finmate/finmate/pkg/metrics"
	"github.com/finmate/finmate/pkg/validation"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Services are the domain services the API serves
type Services struct {
	Identities identities.IdentityService
	Board      board.BoardService
	Products   products.ProductService
	Sync       finlife.SyncService
	Videos     youtube.VideoService
	Market     marketfeeds.MarketFeedService
}

// Server represents the API server
type Server struct {
	router     *gin.Engine
	logger     *zap.Logger
	cfg        *config.Config
	identities identities.IdentityService
	board      board.BoardService
	products   products.ProductService
	sync       finlife.SyncService
	videos     youtube.VideoService
	market     marketfeeds.MarketFeedService
	limiter    *clientLimiter
}

// NewServer creates a new API server with injected services
func NewServer(logger *zap.Logger, cfg *config.Config, svc Services) *Server {
	server := &Server{
		logger:     logger,
		cfg:        cfg,
		identities: svc.Identities,
		board:      svc.Board,
		products:   svc.Products,
		sync:       svc.Sync,
		videos:     svc.Videos,
		market:     svc.Market,
		limiter:    newClientLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validation.RegisterCustomValidators(v); err != nil {
			logger.Warn("Failed to register custom validators", zap.Error(err))
		}
	}

	router := gin.New()

	// Add middleware
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = "finmate-api"
	}
	router.Use(otelgin.Middleware(serviceName))
	router.Use(traceIDMiddleware())
	router.Use(metricsMiddleware())
	router.Use(apperrors.UnifiedErrorMiddleware())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.Media.URLPrefix != "" && cfg.Media.Root != "" {
		router.Static(cfg.Media.URLPrefix, cfg.Media.Root)
	}

	server.router = router
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", s.healthCheck)

	s.registerAccountRoutes(v1.Group("/accounts"))
	s.registerBoardRoutes(v1.Group("/articles", s.authMiddleware()))
	s.registerProductRoutes(v1.Group("/products"))
	s.registerAdminRoutes(v1.Group("/products/admin", s.authMiddleware(), s.adminAuthMiddleware()))
	s.registerVideoRoutes(v1.Group("/youtube"))
	s.registerMarketRoutes(v1.Group("/market", s.rateLimitMiddleware()))

	s.router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.New(apperrors.ErrNotFound, "Not found."))
	})
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// writeError renders err as problem details; errors without a kind are logged
func (s *Server) writeError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if !apperrors.As(err, &appErr) {
		s.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err))
	}
	apperrors.HandleError(c, err)
}

// bind decodes the JSON body into req; decoding failures are a 400
func (s *Server) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if apperrors.As(err, &verrs) {
			apperrors.HandleError(c, err)
		} else {
			apperrors.BadRequest(c, "Invalid request body")
		}
		return false
	}
	return true
}

// idParam parses a numeric path parameter, writing a 404 when it is not one
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apperrors.NotFoundError(c, "Not found.")
		return 0, false
	}
	return uint(id), true
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
