// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Scoring model
	ModelAPI       string        // Remote scoring endpoint base URL
	RemoteTimeout  time.Duration // Timeout for remote scoring requests
	MockData       bool          // Enable synthetic fallback data and mock scoring
	UseCachedModel bool          // Attempt local model artifact load at startup
	ModelPath      string        // Local model artifact location

	// Blockchain settings
	RPCURL  string
	ChainID int64

	// Assessment cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultRPCURL        = "https://sepolia.base.org"
	DefaultChainID       = 84532 // Base Sepolia
	DefaultModelPath     = "./models/risk_model.json"
	DefaultRemoteTimeout = 10 * time.Second
	DefaultCacheTTL      = 15 * time.Minute
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		ModelAPI:       os.Getenv("AI_MODEL_API"), // Optional; remote tier disabled if not set
		RemoteTimeout:  time.Duration(getEnvInt64("REMOTE_TIMEOUT_MS", DefaultRemoteTimeout.Milliseconds())) * time.Millisecond,
		MockData:       getEnvBool("MOCK_DATA", true),
		UseCachedModel: getEnvBool("USE_CACHED_MODEL", false),
		ModelPath:      getEnv("MODEL_PATH", DefaultModelPath),
		RPCURL:         getEnv("RPC_URL", DefaultRPCURL),
		ChainID:        getEnvInt64("CHAIN_ID", DefaultChainID),
		CacheTTL:       time.Duration(getEnvInt64("CACHE_TTL_MS", DefaultCacheTTL.Milliseconds())) * time.Millisecond,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent
func (c *Config) Validate() error {
	if c.ModelAPI != "" {
		if _, err := url.ParseRequestURI(c.ModelAPI); err != nil {
			return fmt.Errorf("AI_MODEL_API is not a valid URL: %w", err)
		}
	}

	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT_MS must be positive")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_MS must be positive")
	}

	if c.UseCachedModel && c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required when USE_CACHED_MODEL is set")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
