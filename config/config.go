package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"cooplend/database"
)

// Config holds all application configuration
type Config struct {
	// HTTP gateway configuration
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Authentication
	JWTSecret  string // HMAC secret used to verify member bearer tokens
	JWTIssuer  string // Expected "iss" claim; empty disables the check
	CronSecret string // Shared secret for scheduled sweep triggers

	// Database configuration
	DatabaseURL      string
	DatabaseName     string
	DatabaseMaxConns int32

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated); empty disables publishing

	// Redis configuration
	RedisURL string // Enables the shared rate limiter when set

	// Rate limits (requests per minute)
	MemberRateLimit   int
	GovernorRateLimit int

	// Sweep scheduler
	SweepCron         string // robfig/cron spec with seconds; empty disables the in-process scheduler
	TransitionRetries int

	// Ledger configuration
	WithdrawalFee int64 // minor units

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// NATSEnabled reports whether domain events should be published to NATS
func (c *Config) NATSEnabled() bool {
	return strings.TrimSpace(c.NATSServers) != ""
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// HTTP
		HTTPAddr:        getEnvWithDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: 10 * time.Second,

		// Auth
		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTIssuer:  os.Getenv("JWT_ISSUER"),
		CronSecret: os.Getenv("CRON_SECRET"),

		// Database
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseName:     os.Getenv("DATABASE_NAME"),
		DatabaseMaxConns: 20,

		// NATS
		NATSServers: os.Getenv("NATS_SERVERS"),

		// Redis
		RedisURL: os.Getenv("REDIS_URL"),

		// Rate limits
		MemberRateLimit:   10,
		GovernorRateLimit: 60,

		// Sweeps run five minutes past midnight UTC by default
		SweepCron:         getEnvWithDefault("SWEEP_CRON", "0 5 0 * * *"),
		TransitionRetries: 3,

		// Ledger
		WithdrawalFee: 1500,

		// OpenTelemetry
		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "cooplend"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "none"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		OTelExportIntervalMillis: 30000,

		// Logging
		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if v := os.Getenv("MEMBER_RATE_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.MemberRateLimit = parsed
		}
	}
	if v := os.Getenv("GOVERNOR_RATE_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.GovernorRateLimit = parsed
		}
	}
	if v := os.Getenv("DATABASE_MAX_CONNS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 32); err == nil && parsed > 0 {
			config.DatabaseMaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("TRANSITION_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			config.TransitionRetries = parsed
		}
	}
	if v := os.Getenv("OTEL_EXPORT_INTERVAL_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.OTelExportIntervalMillis = parsed
		}
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			config.ShutdownTimeout = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		if config.CronSecret == "" {
			return nil, fmt.Errorf("CRON_SECRET is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:       "test",
		HTTPAddr:          ":0",
		JWTSecret:         "test-jwt-secret",
		CronSecret:        "test-cron-secret",
		MemberRateLimit:   10,
		GovernorRateLimit: 60,
		TransitionRetries: 3,
		WithdrawalFee:     1500,
		OTelExporterType:  "none",
		LogLevel:          "debug",
		LogFormat:         "text",
	}
}
