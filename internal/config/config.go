/**
 * Configuration for the text annotation worker
 *
 * Loads configuration from environment variables matching .env.textannotate
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL string

	// PostgreSQL configuration (job records, postgres object store)
	DatabaseURL string

	// Queue configuration
	QueueBackend      string // "redis" or "asynq"
	QueueName         string
	WorkerConcurrency int
	ProcessingTimeout int // milliseconds

	// Object storage
	ObjectStore     string // "file" or "postgres"
	ObjectStoreRoot string
	MaxFileSize     int64

	// OCR and entity classification
	OCREngine           string // "tesseract" or "remote"
	AnalysisURL         string
	EntityClassifierURL string
	LanguageCode        string
	TesseractLanguage   string

	// Named parameters
	ParameterSource string // "env" or "redis"
	ParameterHash   string

	// Normalization
	LegacySpecialChars bool

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://nexus-redis:6379"),
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", ""),
		QueueBackend:        getEnvOrDefault("QUEUE_BACKEND", "redis"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "textannotate:jobs"),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout:   getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		ObjectStore:         getEnvOrDefault("OBJECT_STORE", "file"),
		ObjectStoreRoot:     getEnvOrDefault("OBJECT_STORE_ROOT", "/var/lib/textannotate"),
		MaxFileSize:         getEnvAsInt64OrDefault("MAX_FILE_SIZE", 104857600), // 100MB
		OCREngine:           getEnvOrDefault("OCR_ENGINE", "tesseract"),
		AnalysisURL:         getEnvOrDefault("ANALYSIS_URL", ""),
		EntityClassifierURL: getEnvOrDefault("ENTITY_CLASSIFIER_URL", "http://nexus-entities:8080"),
		LanguageCode:        getEnvOrDefault("LANGUAGE_CODE", "en"),
		TesseractLanguage:   getEnvOrDefault("TESSERACT_LANGUAGE", "eng"),
		ParameterSource:     getEnvOrDefault("PARAMETER_SOURCE", "env"),
		ParameterHash:       getEnvOrDefault("PARAMETER_HASH", "textannotate:parameters"),
		LegacySpecialChars:  getEnvAsBoolOrDefault("LEGACY_SPECIAL_CHARS", false),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.QueueBackend {
	case "redis", "asynq":
	default:
		return fmt.Errorf("QUEUE_BACKEND must be redis or asynq, got %q", c.QueueBackend)
	}

	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	switch c.ObjectStore {
	case "file":
		if c.ObjectStoreRoot == "" {
			return fmt.Errorf("OBJECT_STORE_ROOT is required for the file object store")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres object store")
		}
	default:
		return fmt.Errorf("OBJECT_STORE must be file or postgres, got %q", c.ObjectStore)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 10737418240 { // 1KB to 10GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 10GB, got %d", c.MaxFileSize)
	}

	switch c.OCREngine {
	case "tesseract":
	case "remote":
		if c.AnalysisURL == "" {
			return fmt.Errorf("ANALYSIS_URL is required for the remote OCR engine")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be tesseract or remote, got %q", c.OCREngine)
	}

	if c.EntityClassifierURL == "" {
		return fmt.Errorf("ENTITY_CLASSIFIER_URL is required")
	}

	switch c.ParameterSource {
	case "env":
	case "redis":
		if c.ParameterHash == "" {
			return fmt.Errorf("PARAMETER_HASH is required for the redis parameter source")
		}
	default:
		return fmt.Errorf("PARAMETER_SOURCE must be env or redis, got %q", c.ParameterSource)
	}

	return nil
}

// Timeout returns the per-job processing timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
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

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
