// Package config loads the radar configuration from config.json with
// environment variable overrides taking precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	FeedConfig      FeedConfig      `json:"feed"`
	EngineConfig    EngineConfig    `json:"engine"`
	ServerConfig    ServerConfig    `json:"server"`
	RedisConfig     RedisConfig     `json:"redis"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	MarketCapConfig MarketCapConfig `json:"marketcap"`
	AIConfig        AIConfig        `json:"ai"`
	LoggingConfig   LoggingConfig   `json:"logging"`
}

// FeedConfig holds the exchange stream configuration
type FeedConfig struct {
	SpotEnabled    bool     `json:"spot_enabled"`
	FuturesEnabled bool     `json:"futures_enabled"`
	SpotWSURL      string   `json:"spot_ws_url"`    // empty selects the public endpoint
	FuturesWSURL   string   `json:"futures_ws_url"` // empty selects the public endpoint
	Symbols        []string `json:"symbols"`
}

// EngineConfig holds detection and classification tuning
type EngineConfig struct {
	ClassifyIntervalSeconds int     `json:"classify_interval_seconds"`
	SweepIntervalSeconds    int     `json:"sweep_interval_seconds"`
	BaselineAlpha           float64 `json:"baseline_alpha"`
	AnomalyThreshold        float64 `json:"anomaly_threshold"`
	SignalCooldownMinutes   int     `json:"signal_cooldown_minutes"`
	MaxStoredAlerts         int     `json:"max_stored_alerts"`
	MaxStoredSignals        int     `json:"max_stored_signals"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Port            int      `json:"port"`
	Host            string   `json:"host"`
	ProductionMode  bool     `json:"production_mode"`
	AllowedOrigins  []string `json:"allowed_origins"`
	ShutdownTimeout int      `json:"shutdown_timeout"` // seconds
}

// RedisConfig holds Redis configuration for the tier cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds the optional Postgres sink configuration
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// MarketCapConfig holds the tier lookup configuration
type MarketCapConfig struct {
	ProviderURL            string `json:"provider_url"`
	RefreshIntervalMinutes int    `json:"refresh_interval_minutes"`
}

// AIConfig holds the optional signal reviewer configuration
type AIConfig struct {
	Enabled      bool          `json:"enabled"`
	LLMProvider  string        `json:"llm_provider"` // "claude" or "openai"
	ClaudeAPIKey string        `json:"claude_api_key"`
	OpenAIAPIKey string        `json:"openai_api_key"`
	LLMModel     string        `json:"llm_model"`
	Timeout      time.Duration `json:"timeout"`
	MinSeverity  string        `json:"min_severity"` // review signals at or above
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Feed config
	cfg.FeedConfig.SpotEnabled = getEnvOrDefault("FEED_SPOT_ENABLED", "true") == "true"
	cfg.FeedConfig.FuturesEnabled = getEnvOrDefault("FEED_FUTURES_ENABLED", "true") == "true"
	cfg.FeedConfig.SpotWSURL = getEnvOrDefault("FEED_SPOT_WS_URL", cfg.FeedConfig.SpotWSURL)
	cfg.FeedConfig.FuturesWSURL = getEnvOrDefault("FEED_FUTURES_WS_URL", cfg.FeedConfig.FuturesWSURL)
	if symbols := os.Getenv("FEED_SYMBOLS"); symbols != "" {
		cfg.FeedConfig.Symbols = strings.Split(symbols, ",")
	}
	if len(cfg.FeedConfig.Symbols) == 0 {
		cfg.FeedConfig.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT"}
	}

	// Engine config
	cfg.EngineConfig.ClassifyIntervalSeconds = getEnvIntOrDefault("ENGINE_CLASSIFY_INTERVAL", 10)
	cfg.EngineConfig.SweepIntervalSeconds = getEnvIntOrDefault("ENGINE_SWEEP_INTERVAL", 60)
	cfg.EngineConfig.BaselineAlpha = getEnvFloatOrDefault("ENGINE_BASELINE_ALPHA", 0.08)
	cfg.EngineConfig.AnomalyThreshold = getEnvFloatOrDefault("ENGINE_ANOMALY_THRESHOLD", 2.5)
	cfg.EngineConfig.SignalCooldownMinutes = getEnvIntOrDefault("ENGINE_SIGNAL_COOLDOWN", 5)
	cfg.EngineConfig.MaxStoredAlerts = getEnvIntOrDefault("ENGINE_MAX_ALERTS", 200)
	cfg.EngineConfig.MaxStoredSignals = getEnvIntOrDefault("ENGINE_MAX_SIGNALS", 200)

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"
	if origins := os.Getenv("SERVER_ALLOWED_ORIGINS"); origins != "" {
		cfg.ServerConfig.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", "false") == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "radar")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "flowradar")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	// Market-cap config
	cfg.MarketCapConfig.ProviderURL = getEnvOrDefault("MARKETCAP_PROVIDER_URL", cfg.MarketCapConfig.ProviderURL)
	cfg.MarketCapConfig.RefreshIntervalMinutes = getEnvIntOrDefault("MARKETCAP_REFRESH_MINUTES", 30)

	// AI config
	cfg.AIConfig.Enabled = getEnvOrDefault("AI_ENABLED", "false") == "true"
	cfg.AIConfig.LLMProvider = getEnvOrDefault("AI_LLM_PROVIDER", "claude")
	cfg.AIConfig.ClaudeAPIKey = getEnvOrDefault("AI_CLAUDE_API_KEY", cfg.AIConfig.ClaudeAPIKey)
	cfg.AIConfig.OpenAIAPIKey = getEnvOrDefault("AI_OPENAI_API_KEY", cfg.AIConfig.OpenAIAPIKey)
	cfg.AIConfig.LLMModel = getEnvOrDefault("AI_LLM_MODEL", "claude-sonnet-4-20250514")
	cfg.AIConfig.Timeout = getEnvDurationOrDefault("AI_TIMEOUT", 15*time.Second)
	cfg.AIConfig.MinSeverity = getEnvOrDefault("AI_MIN_SEVERITY", "HIGH")

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
