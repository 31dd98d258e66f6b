package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	HistoryDir   string
	LogLevel     string
	Port         int
	DevMode      bool

	// Engine defaults, overridable per request.
	NumLong             int
	NumShort            int
	MaxPositionSize     float64
	TargetGrossExposure float64
	CommissionRate      float64
	SlippageRate        float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvAsInt("PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		DatabasePath:        getEnv("DATABASE_PATH", "./data/engine.db"),
		HistoryDir:          getEnv("HISTORY_DIR", "./data/history"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		NumLong:             getEnvAsInt("NUM_LONG", 20),
		NumShort:            getEnvAsInt("NUM_SHORT", 20),
		MaxPositionSize:     getEnvAsFloat("MAX_POSITION_SIZE", 0.10),
		TargetGrossExposure: getEnvAsFloat("TARGET_GROSS_EXPOSURE", 2.0),
		CommissionRate:      getEnvAsFloat("COMMISSION_RATE", 0.001),
		SlippageRate:        getEnvAsFloat("SLIPPAGE_RATE", 0.0005),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.NumLong <= 0 || c.NumShort <= 0 {
		return fmt.Errorf("NUM_LONG and NUM_SHORT must be positive")
	}
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		return fmt.Errorf("MAX_POSITION_SIZE must be in (0, 1]")
	}
	if c.TargetGrossExposure <= 0 {
		return fmt.Errorf("TARGET_GROSS_EXPOSURE must be positive")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
