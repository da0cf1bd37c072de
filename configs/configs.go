// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad() and pass it into component
// constructors; business logic never reads the process environment directly.
type AppConfig struct {
	// DatabasePath is the SQLite database file location.
	DatabasePath string

	// LogLevel is the logrus level name (debug, info, warn, error).
	LogLevel string

	// SupportedCoins is the list of coin IDs processed by pipeline runs.
	SupportedCoins []string

	// CoinGecko contains upstream API client settings.
	CoinGecko CoinGeckoConfig

	// OpenAI contains LLM client settings.
	OpenAI OpenAIConfig

	// Anomaly contains z-score thresholds for anomaly detection.
	Anomaly AnomalyConfig

	// Standardize contains settings for the candle standardization pass.
	Standardize StandardizeConfig

	// Server contains dashboard API server settings.
	Server ServerConfig
}

// CoinGeckoConfig holds upstream API client settings.
type CoinGeckoConfig struct {
	// BaseURL is the API root (e.g., "https://api.coingecko.com/api/v3").
	BaseURL string

	// APIKey is the optional pro API key, sent as x-cg-pro-api-key.
	APIKey string

	// RateLimit is the allowed number of requests per minute.
	RateLimit int

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration

	// MaxRetries is the number of attempts for transient failures.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff between retries.
	RetryDelay time.Duration
}

// OpenAIConfig holds LLM client settings.
type OpenAIConfig struct {
	// APIKey is required; startup fails without it.
	APIKey string

	// Model is the chat completion model name.
	Model string

	// MaxTokens caps the completion length.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64
}

// AnomalyConfig holds z-score thresholds for anomaly detection.
type AnomalyConfig struct {
	// VolumeThreshold flags volume rows with |z| above it. Default: 3.0.
	VolumeThreshold float64

	// PriceThreshold flags return and volatility rows with |z| above it.
	// Default: 2.5.
	PriceThreshold float64

	// VolatilityWindow is the rolling window for the volatility series.
	VolatilityWindow int
}

// StandardizeConfig holds settings for the candle standardization pass.
type StandardizeConfig struct {
	// CandleWidth is the target candle granularity. Default: 30m.
	CandleWidth time.Duration

	// ChunkSize bounds a single range fetch from the upstream API.
	// Default: 7 days.
	ChunkSize time.Duration

	// Lookback is the rebuild window when a coin has no stored data.
	// Default: 7 days.
	Lookback time.Duration
}

// ServerConfig holds dashboard API server settings.
type ServerConfig struct {
	// Port is the listen port for the gin server.
	Port int

	// RefreshCooldown debounces manual refresh requests per coin.
	RefreshCooldown time.Duration
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		DatabasePath:   getEnv("DATABASE_PATH", "data/market_data.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		SupportedCoins: getEnvList("SUPPORTED_COINS", "bitcoin,ethereum,solana,cardano,binancecoin"),
		CoinGecko: CoinGeckoConfig{
			BaseURL:        getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			APIKey:         getEnv("COINGECKO_API_KEY", ""),
			RateLimit:      getEnvInt("API_RATE_LIMIT", 10),
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			MaxRetries:     getEnvInt("MAX_RETRIES", 3),
			RetryDelay:     getEnvDuration("RETRY_DELAY", time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 1000),
			Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
		},
		Anomaly: AnomalyConfig{
			VolumeThreshold:  getEnvFloat("VOLUME_ZSCORE_THRESHOLD", 3.0),
			PriceThreshold:   getEnvFloat("PRICE_ZSCORE_THRESHOLD", 2.5),
			VolatilityWindow: getEnvInt("VOLATILITY_WINDOW", 24),
		},
		Standardize: StandardizeConfig{
			CandleWidth: getEnvDuration("CANDLE_WIDTH", 30*time.Minute),
			ChunkSize:   getEnvDuration("STANDARDIZE_CHUNK", 7*24*time.Hour),
			Lookback:    getEnvDuration("STANDARDIZE_LOOKBACK", 7*24*time.Hour),
		},
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8080),
			RefreshCooldown: getEnvDuration("REFRESH_COOLDOWN", 5*time.Minute),
		},
	}
}

// Validate checks required settings. It runs before any coin is
// processed; a failure here aborts startup entirely.
func (c *AppConfig) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.CoinGecko.BaseURL == "" {
		return fmt.Errorf("COINGECKO_BASE_URL is required")
	}
	if len(c.SupportedCoins) == 0 {
		return fmt.Errorf("SUPPORTED_COINS is empty")
	}
	return nil
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList returns a comma-separated environment variable as a slice.
func getEnvList(key, defaultValue string) []string {
	valueStr := getEnv(key, defaultValue)
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
