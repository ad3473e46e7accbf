// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/bedaniele0/fraud-detection/internal/logging"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses file/memory stores if not set)

	// Model
	ModelPath     string  // Path to the exported model artifact (optional, falls back to a constant scorer)
	FallbackScore float64 // Score the fallback scorer returns when no artifact is configured

	// Threshold
	ThresholdPath    string  // JSON threshold file, used when no database is configured
	DefaultThreshold float64 // Seeded at startup when nothing was persisted yet; -1 disables seeding

	// Calibration
	CalibrationObjective string  // "f1" or "cost"
	FalsePositiveCost    float64 // Per-unit cost of a false positive (cost objective)
	FalseNegativeCost    float64 // Per-unit cost of a missed fraud (cost objective)

	// Security
	RateLimitRPS int
}

// Defaults
const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultThresholdPath = "threshold_config.json"
	DefaultRateLimit     = 100
	DefaultFallbackScore = 0.5
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:            getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:          os.Getenv("DATABASE_URL"), // Optional, uses file/memory stores if not set
		ModelPath:            os.Getenv("MODEL_PATH"),   // Optional, constant scorer if not set
		FallbackScore:        getEnvFloat("MODEL_FALLBACK_SCORE", DefaultFallbackScore),
		ThresholdPath:        getEnv("THRESHOLD_PATH", DefaultThresholdPath),
		DefaultThreshold:     getEnvFloat("DEFAULT_THRESHOLD", -1),
		CalibrationObjective: getEnv("CALIBRATION_OBJECTIVE", "f1"),
		FalsePositiveCost:    getEnvFloat("FALSE_POSITIVE_COST", 0),
		FalseNegativeCost:    getEnvFloat("FALSE_NEGATIVE_COST", 0),
		RateLimitRPS:         int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	if c.FallbackScore < 0 || c.FallbackScore > 1 {
		return fmt.Errorf("MODEL_FALLBACK_SCORE must be in [0, 1]")
	}

	if c.DefaultThreshold != -1 && (c.DefaultThreshold < 0 || c.DefaultThreshold > 1) {
		return fmt.Errorf("DEFAULT_THRESHOLD must be in [0, 1]")
	}

	switch c.CalibrationObjective {
	case "f1", "cost":
	default:
		return fmt.Errorf("CALIBRATION_OBJECTIVE must be f1 or cost")
	}

	if c.FalsePositiveCost < 0 || c.FalseNegativeCost < 0 {
		return fmt.Errorf("calibration costs must be non-negative")
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}

	return nil
}

// SeedThreshold reports whether a default threshold should be seeded at
// startup when persistence is empty.
func (c *Config) SeedThreshold() bool {
	return c.DefaultThreshold >= 0
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
