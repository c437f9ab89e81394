package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend   string
	DataDirectory string

	// Database
	SQLiteDBPath string

	// AMQP (optional payment-request publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GooglePeriodPrefix       string
	GoogleHandlesSheet       string
	GoogleAPIKey             string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string
	GoogleFetchConcurrency   int

	// Presentation
	CurrencySymbol string

	// Report caching (server only)
	CacheSize int
	CacheTTL  time.Duration

	// Server hardening
	RateLimit int

	// Sheets -> SQLite mirroring (server only, 0 disables)
	SyncInterval time.Duration
}

var validBackends = []string{"memory", "sheets", "sqlite"}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		DataDirectory: getEnv("DATA_DIRECTORY", "data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/settle.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "settle"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "payment_requests"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GooglePeriodPrefix:       getEnv("GOOGLE_PERIOD_PREFIX", "Week"),
		GoogleHandlesSheet:       getEnv("GOOGLE_HANDLES_SHEET", ""),
		GoogleAPIKey:             getEnv("GOOGLE_API_KEY", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleFetchConcurrency:   getEnvInt("GOOGLE_FETCH_CONCURRENCY", 4),

		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "$"),

		CacheSize: getEnvInt("REPORT_CACHE_SIZE", 32),
		CacheTTL:  getEnvDuration("REPORT_CACHE_TTL", time.Minute),

		RateLimit: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 0),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json", "pretty", "tint":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of [text json pretty]", c.LogFormat))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets configuration if backend is sheets
	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasAPIKey := c.GoogleAPIKey != ""
		hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
		hasOAuthClient := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
		hasOAuthToken := c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != ""
		if !hasAPIKey && !hasServiceAccount && !hasOAuthClient {
			errors = append(errors, "one of GOOGLE_API_KEY, GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_CLIENT_JSON/FILE must be provided for sheets backend")
		}
		if hasOAuthClient && !hasAPIKey && !hasServiceAccount && !hasOAuthToken {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided with an OAuth client")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.GoogleOAuthTokenFile != "" {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
			}
		}
		if c.GoogleFetchConcurrency < 1 || c.GoogleFetchConcurrency > 32 {
			errors = append(errors, fmt.Sprintf("invalid fetch concurrency %d: must be between 1 and 32", c.GoogleFetchConcurrency))
		}
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.CacheTTL))
	}

	if c.RateLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimit))
	}
	if c.SyncInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must not be negative", c.SyncInterval))
	}
	if c.SyncInterval > 0 && c.DataBackend != "sqlite" {
		errors = append(errors, "SYNC_INTERVAL requires the sqlite backend")
	}
	if c.SyncInterval > 0 && c.GoogleSpreadsheetID == "" {
		errors = append(errors, "SYNC_INTERVAL requires GOOGLE_SPREADSHEET_ID to mirror from")
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
