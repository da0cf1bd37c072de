package configs

import (
	"testing"
	"time"
)

func TestAppLoadDefaults(t *testing.T) {
	cfg := AppLoad()

	if cfg.DatabasePath != "data/market_data.db" {
		t.Errorf("Expected default database path, got '%s'", cfg.DatabasePath)
	}
	if len(cfg.SupportedCoins) != 5 {
		t.Errorf("Expected 5 default coins, got %d", len(cfg.SupportedCoins))
	}
	if cfg.CoinGecko.RateLimit != 10 {
		t.Errorf("Expected rate limit 10, got %d", cfg.CoinGecko.RateLimit)
	}
	if cfg.Anomaly.VolumeThreshold != 3.0 {
		t.Errorf("Expected volume threshold 3.0, got %v", cfg.Anomaly.VolumeThreshold)
	}
	if cfg.Anomaly.PriceThreshold != 2.5 {
		t.Errorf("Expected price threshold 2.5, got %v", cfg.Anomaly.PriceThreshold)
	}
	if cfg.Standardize.CandleWidth != 30*time.Minute {
		t.Errorf("Expected 30m candle width, got %v", cfg.Standardize.CandleWidth)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
}

func TestAppLoadOverrides(t *testing.T) {
	t.Setenv("SUPPORTED_COINS", "bitcoin, dogecoin")
	t.Setenv("VOLUME_ZSCORE_THRESHOLD", "4.5")
	t.Setenv("CANDLE_WIDTH", "1h")
	t.Setenv("SERVER_PORT", "9090")

	cfg := AppLoad()

	if len(cfg.SupportedCoins) != 2 || cfg.SupportedCoins[1] != "dogecoin" {
		t.Errorf("Expected trimmed coin list, got %v", cfg.SupportedCoins)
	}
	if cfg.Anomaly.VolumeThreshold != 4.5 {
		t.Errorf("Expected threshold 4.5, got %v", cfg.Anomaly.VolumeThreshold)
	}
	if cfg.Standardize.CandleWidth != time.Hour {
		t.Errorf("Expected 1h candle width, got %v", cfg.Standardize.CandleWidth)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestAppLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("API_RATE_LIMIT", "not-a-number")
	t.Setenv("CANDLE_WIDTH", "sideways")

	cfg := AppLoad()

	if cfg.CoinGecko.RateLimit != 10 {
		t.Errorf("Expected fallback rate limit 10, got %d", cfg.CoinGecko.RateLimit)
	}
	if cfg.Standardize.CandleWidth != 30*time.Minute {
		t.Errorf("Expected fallback 30m width, got %v", cfg.Standardize.CandleWidth)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{
			name:   "Valid config",
			mutate: func(c *AppConfig) { c.OpenAI.APIKey = "sk-test" },
		},
		{
			name:    "Missing OpenAI key",
			mutate:  func(c *AppConfig) {},
			wantErr: true,
		},
		{
			name: "Missing base URL",
			mutate: func(c *AppConfig) {
				c.OpenAI.APIKey = "sk-test"
				c.CoinGecko.BaseURL = ""
			},
			wantErr: true,
		},
		{
			name: "Empty coin list",
			mutate: func(c *AppConfig) {
				c.OpenAI.APIKey = "sk-test"
				c.SupportedCoins = nil
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := AppLoad()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}
