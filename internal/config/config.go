// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/clients/coingecko"
	"github.com/cht-holly/chtholly-vault/internal/clients/exchangerate"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir             string // Directory holding the local state database (always absolute)
	LogLevel            string
	MarketDataBaseURL   string
	ExchangeRateBaseURL string
	Port                int
	RequestDelay        time.Duration // Minimum spacing between provider dispatches
	HTTPTimeout         time.Duration // Upper bound on a single provider request
	CacheCleanup        time.Duration // Interval of the expired-cache sweep
	DevMode             bool
	StartVisible        bool // Whether the host starts as visible (auto-refresh runs)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("PORTFOLIO_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MarketDataBaseURL:   getEnv("MARKET_DATA_BASE_URL", coingecko.DefaultBaseURL),
		ExchangeRateBaseURL: getEnv("EXCHANGE_RATE_BASE_URL", exchangerate.DefaultBaseURL),
		Port:                getEnvAsInt("PORT", 8080),
		RequestDelay:        time.Duration(getEnvAsInt("REQUEST_DELAY_MS", 1000)) * time.Millisecond,
		HTTPTimeout:         time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		CacheCleanup:        time.Duration(getEnvAsInt("CACHE_CLEANUP_MINUTES", 10)) * time.Minute,
		DevMode:             getEnvAsBool("DEV_MODE", false),
		StartVisible:        getEnvAsBool("START_VISIBLE", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the location of the local state database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// BackupDir returns the directory holding state database snapshots.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RequestDelay <= 0 {
		return fmt.Errorf("REQUEST_DELAY_MS must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}
	if c.CacheCleanup <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_MINUTES must be positive")
	}
	for name, value := range map[string]string{
		"MARKET_DATA_BASE_URL":   c.MarketDataBaseURL,
		"EXCHANGE_RATE_BASE_URL": c.ExchangeRateBaseURL,
	} {
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("%s must be an http(s) URL, got %q", name, value)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
