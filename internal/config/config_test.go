package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultThresholdPath, cfg.ThresholdPath)
	assert.Equal(t, DefaultFallbackScore, cfg.FallbackScore)
	assert.Equal(t, "f1", cfg.CalibrationObjective)
	assert.Equal(t, float64(-1), cfg.DefaultThreshold)
	assert.False(t, cfg.SeedThreshold())
}

func TestLoad_WithOverrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "DEFAULT_THRESHOLD", "0.5")
	setEnv(t, "CALIBRATION_OBJECTIVE", "cost")
	setEnv(t, "FALSE_NEGATIVE_COST", "150")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 0.5, cfg.DefaultThreshold)
	assert.True(t, cfg.SeedThreshold())
	assert.Equal(t, "cost", cfg.CalibrationObjective)
	assert.Equal(t, float64(150), cfg.FalseNegativeCost)
}

func TestLoad_InvalidObjective(t *testing.T) {
	setEnv(t, "CALIBRATION_OBJECTIVE", "accuracy")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CALIBRATION_OBJECTIVE")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		LogLevel:             "info",
		FallbackScore:        0.5,
		DefaultThreshold:     -1,
		CalibrationObjective: "f1",
		RateLimitRPS:         100,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "fallback score out of range",
			mutate:  func(c *Config) { c.FallbackScore = 1.5 },
			wantErr: "MODEL_FALLBACK_SCORE",
		},
		{
			name:    "default threshold out of range",
			mutate:  func(c *Config) { c.DefaultThreshold = 2 },
			wantErr: "DEFAULT_THRESHOLD",
		},
		{
			name:    "disabled default threshold is legal",
			mutate:  func(c *Config) { c.DefaultThreshold = -1 },
			wantErr: "",
		},
		{
			name:    "bad objective",
			mutate:  func(c *Config) { c.CalibrationObjective = "auc" },
			wantErr: "CALIBRATION_OBJECTIVE",
		},
		{
			name:    "negative cost",
			mutate:  func(c *Config) { c.FalsePositiveCost = -1 },
			wantErr: "non-negative",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.RateLimitRPS = 0 },
			wantErr: "RATE_LIMIT_RPS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvFloat(t *testing.T) {
	setEnv(t, "TEST_FLOAT", "0.35")

	assert.Equal(t, 0.35, getEnvFloat("TEST_FLOAT", 0))
	assert.Equal(t, 0.5, getEnvFloat("NONEXISTENT_VAR", 0.5))
}
