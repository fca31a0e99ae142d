package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finmate/finmate/api"
	"github.com/finmate/finmate/internal/advisor"
	"github.com/finmate/finmate/internal/auth"
	"github.com/finmate/finmate/internal/board"
	"github.com/finmate/finmate/internal/cache"
	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/internal/database"
	"github.com/finmate/finmate/internal/finlife"
	"github.com/finmate/finmate/internal/identities"
	"github.com/finmate/finmate/internal/marketfeeds"
	"github.com/finmate/finmate/internal/media"
	"github.com/finmate/finmate/internal/messaging"
	"github.com/finmate/finmate/internal/oauth"
	"github.com/finmate/finmate/internal/products"
	"github.com/finmate/finmate/internal/scheduler"
	"github.com/finmate/finmate/internal/youtube"
	"github.com/finmate/finmate/pkg/httpclient"
	"github.com/finmate/finmate/pkg/logger"
	"github.com/finmate/finmate/pkg/metrics"
	"github.com/finmate/finmate/pkg/tracing"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	pflag.String("config", "", "path to a config file (defaults to ./config.yaml)")
	pflag.Parse()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Fatalf("Failed to bind flags: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	shutdownTracing, err := tracing.Setup(cfg.Tracing, os.Stdout)
	if err != nil {
		zapLogger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	var c cache.Cache = cache.NewMemoryCache()
	if cfg.Redis.Address != "" {
		redisClient, err := database.NewRedisClient(context.Background(), cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		c = cache.NewRedisCache(redisClient, "finmate:")
	}

	tokens := auth.NewService(zapLogger, cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, c)
	store := media.NewLocalStore(zapLogger, cfg.Media.Root, cfg.Media.URLPrefix, cfg.Media.MaxBytes)

	oauthClient := httpclient.New(zapLogger, httpclient.Options{Timeout: 10 * time.Second, RetryMax: 2}).StandardClient()
	var providers []oauth.Provider
	if cfg.OAuth.Google.ClientID != "" {
		providers = append(providers, oauth.NewGoogleProvider(cfg.OAuth.Google.ClientID, cfg.OAuth.Google.ClientSecret, "", "", oauthClient))
	}
	if cfg.OAuth.Kakao.ClientID != "" {
		providers = append(providers, oauth.NewKakaoProvider(cfg.OAuth.Kakao.ClientID, cfg.OAuth.Kakao.ClientSecret, "", "", oauthClient))
	}

	identitySvc, err := identities.NewService(zapLogger, db, tokens, store, providers...)
	if err != nil {
		zapLogger.Fatal("Failed to create identities service", zap.Error(err))
	}

	boardSvc := board.NewService(zapLogger, db, store)

	var recommender products.Recommender
	if client := advisor.NewClient(zapLogger, cfg.OpenAI); client != nil {
		recommender = client
	} else {
		zapLogger.Warn("OPENAI_API_KEY not set, AI recommendations disabled")
	}
	productSvc := products.NewService(zapLogger, db, c, recommender)

	var fetcher finlife.Fetcher = finlife.NewClient(zapLogger, cfg.Finlife)
	if cfg.Finlife.APIKey == "" {
		zapLogger.Warn("FINLIFE_API_KEY not set, product sync will fail until it is configured")
	}
	publisher := messaging.NewPublisher(cfg.Kafka, zapLogger)
	syncer := finlife.NewSyncer(zapLogger, db, fetcher, publisher, productSvc, "finlife")

	var searcher youtube.Searcher
	if client := youtube.NewClient(zapLogger, cfg.YouTube); client != nil {
		searcher = client
	} else {
		zapLogger.Warn("YOUTUBE_API_KEY not set, video search disabled")
	}
	videoSvc := youtube.NewService(zapLogger, db, searcher)

	marketSvc := marketfeeds.NewService(zapLogger, cfg.Market, c)

	if cfg.Finlife.FixturesOnBoot != "" {
		reports, err := syncer.LoadFixtures(context.Background(), cfg.Finlife.FixturesOnBoot)
		if err != nil {
			zapLogger.Fatal("Failed to load product fixtures", zap.Error(err))
		}
		for kind, report := range reports {
			zapLogger.Info("Loaded product fixtures",
				zap.String("kind", kind),
				zap.Int("products", report.Products),
				zap.Int("options", report.Options))
		}
	}

	var cronScheduler *scheduler.Scheduler
	if cfg.Finlife.SyncSchedule != "" {
		cronScheduler, err = scheduler.New(zapLogger, cfg.Finlife.SyncSchedule, syncer, 10*time.Minute)
		if err != nil {
			zapLogger.Fatal("Failed to create sync scheduler", zap.Error(err))
		}
	}

	poolCtx, stopPoolStats := context.WithCancel(context.Background())
	defer stopPoolStats()
	go reportPoolStats(poolCtx, zapLogger, db, cfg.Database.Driver, 30*time.Second)

	// Start services
	if err := identitySvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start identities service", zap.Error(err))
	}
	if err := boardSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start board service", zap.Error(err))
	}
	if err := productSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start products service", zap.Error(err))
	}
	if err := videoSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start video service", zap.Error(err))
	}
	if err := marketSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start market feed service", zap.Error(err))
	}
	if cronScheduler != nil {
		if err := cronScheduler.Start(); err != nil {
			zapLogger.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		zapLogger.Info("Product sync scheduled", zap.Time("next", cronScheduler.Next()))
	}

	apiServer := api.NewServer(zapLogger, cfg, api.Services{
		Identities: identitySvc,
		Board:      boardSvc,
		Products:   productSvc,
		Sync:       syncer,
		Videos:     videoSvc,
		Market:     marketSvc,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shut down API server", zap.Error(err))
	}

	stopPoolStats()

	// Stop services in reverse order
	if cronScheduler != nil {
		if err := cronScheduler.Stop(); err != nil {
			zapLogger.Error("Failed to stop sync scheduler", zap.Error(err))
		}
	}
	if err := marketSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop market feed service", zap.Error(err))
	}
	if err := videoSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop video service", zap.Error(err))
	}
	if err := productSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop products service", zap.Error(err))
	}
	if err := boardSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop board service", zap.Error(err))
	}
	if err := identitySvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop identities service", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		zapLogger.Error("Failed to close publisher", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		zapLogger.Error("Failed to flush traces", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

// reportPoolStats publishes connection pool gauges every interval until ctx is done
func reportPoolStats(ctx context.Context, logger *zap.Logger, db *gorm.DB, label string, interval time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("Connection pool metrics unavailable", zap.Error(err))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := sqlDB.Stats()
			metrics.DBOpenConns.WithLabelValues(label).Set(float64(stats.OpenConnections))
			metrics.DBIdleConns.WithLabelValues(label).Set(float64(stats.Idle))
			metrics.DBInUseConns.WithLabelValues(label).Set(float64(stats.InUse))
		}
	}
}
