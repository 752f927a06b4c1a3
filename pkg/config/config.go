package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional, for cross-run API quota tracking)
	Redis RedisConfig

	// External data providers
	FRED         FREDConfig
	Finnhub      FinnhubConfig
	AlphaVantage AlphaVantageConfig
	Marketaux    MarketauxConfig
	OKX          OKXConfig
	Polymarket   PolymarketConfig

	// Delivery
	Telegram TelegramConfig

	// Analysis config file (YAML: signal thresholds, alert rules, schedule)
	AnalysisConfigPath string

	// Pipeline
	HTTPTimeout time.Duration // per-request timeout
	RunDeadline time.Duration // whole-run deadline

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Run archive is optional: without a DATABASE_URL runs are not persisted
	Enabled bool
}

// FREDConfig holds FRED (Federal Reserve Economic Data) API configuration
type FREDConfig struct {
	APIKey  string
	BaseURL string
}

// FinnhubConfig holds Finnhub API configuration
type FinnhubConfig struct {
	APIKey  string
	BaseURL string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
}

// MarketauxConfig holds Marketaux news API configuration
type MarketauxConfig struct {
	APIKey  string
	BaseURL string
}

// OKXConfig holds OKX public market data configuration
// 공개 시세 API라 키 불필요
type OKXConfig struct {
	BaseURL string
}

// PolymarketConfig holds Polymarket (optional provider) configuration
type PolymarketConfig struct {
	BaseURL string
	Enabled bool
}

// TelegramConfig holds Telegram bot delivery configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External data providers
		FRED: FREDConfig{
			APIKey:  getEnv("FRED_API_KEY", ""),
			BaseURL: getEnv("FRED_BASE_URL", "https://api.stlouisfed.org/fred"),
		},
		Finnhub: FinnhubConfig{
			APIKey:  getEnv("FINNHUB_API_KEY", ""),
			BaseURL: getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:  getEnv("ALPHAVANTAGE_API_KEY", ""),
			BaseURL: getEnv("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		},
		Marketaux: MarketauxConfig{
			APIKey:  getEnv("MARKETAUX_API_KEY", ""),
			BaseURL: getEnv("MARKETAUX_BASE_URL", "https://api.marketaux.com/v1"),
		},
		OKX: OKXConfig{
			BaseURL: getEnv("OKX_BASE_URL", "https://www.okx.com"),
		},
		Polymarket: PolymarketConfig{
			BaseURL: getEnv("POLYMARKET_BASE_URL", "https://gamma-api.polymarket.com"),
			Enabled: getEnvAsBool("POLYMARKET_ENABLED", true),
		},

		// Delivery
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			Enabled:  getEnvAsBool("TELEGRAM_ENABLED", false),
		},

		// Analysis config
		AnalysisConfigPath: getEnv("ANALYSIS_CONFIG", "config/analysis.yaml"),

		// Pipeline
		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", "10s"),
		RunDeadline: getEnvAsDuration("RUN_DEADLINE", "5m"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	cfg.Database.Enabled = cfg.Database.URL != ""

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.RunDeadline <= c.HTTPTimeout {
		return fmt.Errorf("RUN_DEADLINE must exceed HTTP_TIMEOUT")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
