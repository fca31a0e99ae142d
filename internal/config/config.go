package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host" mapstructure:"host"`
	Port            int           `yaml:"port" json:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins" mapstructure:"allowed_origins"`
	Mode            string        `yaml:"mode" json:"mode" mapstructure:"mode"`
}

// DatabaseConfig selects and tunes the relational store
type DatabaseConfig struct {
	Driver          string `yaml:"driver" json:"driver" mapstructure:"driver"` // postgres or sqlite
	DSN             string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"` // seconds
	AutoMigrate     bool   `yaml:"auto_migrate" json:"auto_migrate" mapstructure:"auto_migrate"`
	LogQueries      bool   `yaml:"log_queries" json:"log_queries" mapstructure:"log_queries"`
}

// RedisConfig configures the cache. An empty address selects the in-process cache.
type RedisConfig struct {
	Address  string `yaml:"address" json:"address" mapstructure:"address"`
	Password string `yaml:"password" json:"password" mapstructure:"password"`
	DB       int    `yaml:"db" json:"db" mapstructure:"db"`
}

// JWTConfig configures access and refresh tokens
type JWTConfig struct {
	Secret     string        `yaml:"secret" json:"secret" mapstructure:"secret"`
	AccessTTL  time.Duration `yaml:"access_ttl" json:"access_ttl" mapstructure:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" json:"refresh_ttl" mapstructure:"refresh_ttl"`
}

// OAuthClientConfig holds one provider's client credentials
type OAuthClientConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret" mapstructure:"client_secret"`
}

// OAuthConfig holds social login settings
type OAuthConfig struct {
	Google         OAuthClientConfig `yaml:"google" json:"google" mapstructure:"google"`
	Kakao          OAuthClientConfig `yaml:"kakao" json:"kakao" mapstructure:"kakao"`
	FrontendOrigin string            `yaml:"frontend_origin" json:"frontend_origin" mapstructure:"frontend_origin"`
}

// FinlifeConfig configures the product disclosure API client
type FinlifeConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	APIKey         string        `yaml:"api_key" json:"api_key" mapstructure:"api_key"`
	SavingGroups   []string      `yaml:"saving_groups" json:"saving_groups" mapstructure:"saving_groups"`
	LoanGroups     []string      `yaml:"loan_groups" json:"loan_groups" mapstructure:"loan_groups"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	RetryMax       int           `yaml:"retry_max" json:"retry_max" mapstructure:"retry_max"`
	RetryWaitMin   time.Duration `yaml:"retry_wait_min" json:"retry_wait_min" mapstructure:"retry_wait_min"`
	RetryWaitMax   time.Duration `yaml:"retry_wait_max" json:"retry_wait_max" mapstructure:"retry_wait_max"`
	MaxPages       int           `yaml:"max_pages" json:"max_pages" mapstructure:"max_pages"`
	SyncSchedule   string        `yaml:"sync_schedule" json:"sync_schedule" mapstructure:"sync_schedule"`
	FixturesOnBoot string        `yaml:"fixtures_on_boot" json:"fixtures_on_boot" mapstructure:"fixtures_on_boot"`
}

// OpenAIConfig configures the recommendation model
type OpenAIConfig struct {
	APIKey        string        `yaml:"api_key" json:"api_key" mapstructure:"api_key"`
	BaseURL       string        `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	Model         string        `yaml:"model" json:"model" mapstructure:"model"`
	FallbackModel string        `yaml:"fallback_model" json:"fallback_model" mapstructure:"fallback_model"`
	MaxTokens     int           `yaml:"max_tokens" json:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64       `yaml:"temperature" json:"temperature" mapstructure:"temperature"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// YouTubeConfig configures the YouTube Data API client
type YouTubeConfig struct {
	APIKey     string        `yaml:"api_key" json:"api_key" mapstructure:"api_key"`
	BaseURL    string        `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	MaxResults int           `yaml:"max_results" json:"max_results" mapstructure:"max_results"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// MarketConfig configures the stock/market pass-through proxy. URLs may
// contain a {code} placeholder.
type MarketConfig struct {
	Rankings    string        `yaml:"rankings_url" json:"rankings_url" mapstructure:"rankings_url"`
	Quote       string        `yaml:"quote_url" json:"quote_url" mapstructure:"quote_url"`
	Chart       string        `yaml:"chart_url" json:"chart_url" mapstructure:"chart_url"`
	Indices     string        `yaml:"indices_url" json:"indices_url" mapstructure:"indices_url"`
	APIKey      string        `yaml:"api_key" json:"api_key" mapstructure:"api_key"`
	APIKeyParam string        `yaml:"api_key_param" json:"api_key_param" mapstructure:"api_key_param"`
	APIKeyHdr   string        `yaml:"api_key_header" json:"api_key_header" mapstructure:"api_key_header"`
	CacheTTL    time.Duration `yaml:"cache_ttl" json:"cache_ttl" mapstructure:"cache_ttl"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// MediaConfig configures uploaded profile image storage
type MediaConfig struct {
	Root      string `yaml:"root" json:"root" mapstructure:"root"`
	URLPrefix string `yaml:"url_prefix" json:"url_prefix" mapstructure:"url_prefix"`
	MaxBytes  int64  `yaml:"max_bytes" json:"max_bytes" mapstructure:"max_bytes"`
}

// KafkaConfig configures sync event publishing
type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" json:"brokers" mapstructure:"brokers"`
	Topic              string   `yaml:"topic" json:"topic" mapstructure:"topic"`
	EnableMessageQueue bool     `yaml:"enable_message_queue" json:"enable_message_queue" mapstructure:"enable_message_queue"`
}

// TracingConfig toggles the stdout trace and metric exporters
type TracingConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	MetricInterval time.Duration `yaml:"metric_interval" json:"metric_interval" mapstructure:"metric_interval"`
}

// RateLimitConfig throttles endpoints that spend third-party quota
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int `yaml:"burst" json:"burst" mapstructure:"burst"`
}

// Config represents the application configuration
type Config struct {
	LogLevel  string          `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	LogFormat string          `yaml:"log_format" json:"log_format" mapstructure:"log_format"`
	Server    ServerConfig    `yaml:"server" json:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" json:"database" mapstructure:"database"`
	Redis     RedisConfig     `yaml:"redis" json:"redis" mapstructure:"redis"`
	JWT       JWTConfig       `yaml:"jwt" json:"jwt" mapstructure:"jwt"`
	OAuth     OAuthConfig     `yaml:"oauth" json:"oauth" mapstructure:"oauth"`
	Finlife   FinlifeConfig   `yaml:"finlife" json:"finlife" mapstructure:"finlife"`
	OpenAI    OpenAIConfig    `yaml:"openai" json:"openai" mapstructure:"openai"`
	YouTube   YouTubeConfig   `yaml:"youtube" json:"youtube" mapstructure:"youtube"`
	Market    MarketConfig    `yaml:"market" json:"market" mapstructure:"market"`
	Media     MediaConfig     `yaml:"media" json:"media" mapstructure:"media"`
	Kafka     KafkaConfig     `yaml:"kafka" json:"kafka" mapstructure:"kafka"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit" mapstructure:"rate_limit"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			Mode:            "release",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "finmate.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 3600,
			AutoMigrate:     true,
		},
		JWT: JWTConfig{
			Secret:     "change-me",
			AccessTTL:  60 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		OAuth: OAuthConfig{
			FrontendOrigin: "http://localhost:5173",
		},
		Finlife: FinlifeConfig{
			BaseURL:      "http://finlife.fss.or.kr/finlifeapi",
			SavingGroups: []string{"020000"},
			LoanGroups:   []string{"050000"},
			Timeout:      10 * time.Second,
			RetryMax:     3,
			RetryWaitMin: 1 * time.Second,
			RetryWaitMax: 10 * time.Second,
			MaxPages:     20,
		},
		OpenAI: OpenAIConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o",
			FallbackModel: "gpt-4o-mini",
			MaxTokens:     1500,
			Temperature:   0.7,
			Timeout:       60 * time.Second,
		},
		YouTube: YouTubeConfig{
			BaseURL:    "https://www.googleapis.com/youtube/v3",
			MaxResults: 10,
			Timeout:    10 * time.Second,
		},
		Market: MarketConfig{
			APIKeyParam: "apikey",
			CacheTTL:    30 * time.Second,
			Timeout:     10 * time.Second,
		},
		Media: MediaConfig{
			Root:      "media",
			URLPrefix: "/media",
			MaxBytes:  5 << 20,
		},
		Kafka: KafkaConfig{
			Topic: "finmate.product-sync",
		},
		Tracing: TracingConfig{
			ServiceName:    "finmate-api",
			MetricInterval: time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			Burst:             10,
		},
	}
}

// LoadConfig loads defaults, then environment variables, then config.yaml
func LoadConfig() (*Config, error) {
	config := Default()

	applyEnv(config)

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/finmate")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("jwt token lifetimes must be positive")
	}
	return nil
}

func applyEnv(config *Config) {
	envString("LOG_LEVEL", &config.LogLevel)
	envString("LOG_FORMAT", &config.LogFormat)

	envInt("SERVER_PORT", &config.Server.Port)
	envString("GIN_MODE", &config.Server.Mode)
	envList("CORS_ALLOWED_ORIGINS", &config.Server.AllowedOrigins)

	envString("DATABASE_DRIVER", &config.Database.Driver)
	envString("DATABASE_DSN", &config.Database.DSN)
	envInt("DATABASE_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	envBool("DATABASE_AUTO_MIGRATE", &config.Database.AutoMigrate)

	envString("REDIS_ADDRESS", &config.Redis.Address)
	envString("REDIS_PASSWORD", &config.Redis.Password)
	envInt("REDIS_DB", &config.Redis.DB)

	envString("JWT_SECRET", &config.JWT.Secret)
	envDuration("JWT_ACCESS_TTL", &config.JWT.AccessTTL)
	envDuration("JWT_REFRESH_TTL", &config.JWT.RefreshTTL)

	envString("GOOGLE_CLIENT_ID", &config.OAuth.Google.ClientID)
	envString("GOOGLE_CLIENT_SECRET", &config.OAuth.Google.ClientSecret)
	envString("KAKAO_CLIENT_ID", &config.OAuth.Kakao.ClientID)
	envString("KAKAO_CLIENT_SECRET", &config.OAuth.Kakao.ClientSecret)
	envString("FRONTEND_ORIGIN", &config.OAuth.FrontendOrigin)

	envString("FINLIFE_API_KEY", &config.Finlife.APIKey)
	envString("FINLIFE_BASE_URL", &config.Finlife.BaseURL)
	envString("PRODUCT_SYNC_SCHEDULE", &config.Finlife.SyncSchedule)

	envString("OPENAI_API_KEY", &config.OpenAI.APIKey)
	envString("OPENAI_MODEL", &config.OpenAI.Model)

	envString("YOUTUBE_API_KEY", &config.YouTube.APIKey)

	envString("MARKET_API_KEY", &config.Market.APIKey)
	envString("MARKET_RANKINGS_URL", &config.Market.Rankings)
	envString("MARKET_QUOTE_URL", &config.Market.Quote)
	envString("MARKET_CHART_URL", &config.Market.Chart)
	envString("MARKET_INDICES_URL", &config.Market.Indices)

	envString("MEDIA_ROOT", &config.Media.Root)

	envList("KAFKA_BROKERS", &config.Kafka.Brokers)
	envBool("ENABLE_MESSAGE_QUEUE", &config.Kafka.EnableMessageQueue)

	envBool("TRACING_ENABLED", &config.Tracing.Enabled)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func envList(key string, dst *[]string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}
