package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Forecast model artifact
	ModelPath string

	// AMQP (optional; retrain requests are dropped when unset)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Analytics
	AnomalyThresholdSigma float64
	InsightsCacheTTL      time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/smartbudget.db"),
		ModelPath:    getEnv("MODEL_PATH", "./data/forecast_model.json"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "smartbudget"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "retrain_model"),

		AnomalyThresholdSigma: getEnvFloat("ANOMALY_THRESHOLD_SIGMA", 2.5),
		InsightsCacheTTL:      getEnvDuration("INSIGHTS_CACHE_TTL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite path and make sure its directory exists
	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if err := ensureDir(c.SQLiteDBPath); err != nil {
		errs = append(errs, fmt.Sprintf("cannot create SQLite database directory: %v", err))
	}

	// Validate model artifact path
	if c.ModelPath == "" {
		errs = append(errs, "model path cannot be empty")
	} else if err := ensureDir(c.ModelPath); err != nil {
		errs = append(errs, fmt.Sprintf("cannot create model directory: %v", err))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate analytics settings
	if c.AnomalyThresholdSigma <= 0 {
		errs = append(errs, fmt.Sprintf("invalid anomaly threshold sigma %v: must be positive", c.AnomalyThresholdSigma))
	} else if c.AnomalyThresholdSigma > 10 {
		errs = append(errs, fmt.Sprintf("invalid anomaly threshold sigma %v: must be at most 10", c.AnomalyThresholdSigma))
	}

	if c.InsightsCacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid insights cache TTL %v: must not be negative", c.InsightsCacheTTL))
	} else if c.InsightsCacheTTL > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid insights cache TTL %v: must be at most 24 hours", c.InsightsCacheTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
