package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backends selectable with DATA_BACKEND.
const (
	BackendRemote   = "remote"
	BackendEmbedded = "embedded"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// REST backend
	APIURL     string
	StorageURL string
	APITimeout time.Duration

	// Backend selection; embedded serves the API in-process from sqlite
	DataBackend      string
	SQLiteDBPath     string
	DevAPIPort       string
	DevAPIStorageDir string

	// KTP uploads
	KTPMaxWidth  int
	KTPMaxHeight int

	// AMQP; an empty URL disables mutation events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID string
	GooglePaymentsSheet string
	GoogleExpensesSheet string

	// Worker
	SyncInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		APIURL:     strings.TrimRight(getEnv("RT_API_URL", "http://localhost:8000/api"), "/"),
		StorageURL: strings.TrimRight(getEnv("RT_STORAGE_URL", ""), "/"),
		APITimeout: getEnvDuration("RT_API_TIMEOUT", 10*time.Second),

		DataBackend:      getEnv("DATA_BACKEND", BackendRemote),
		SQLiteDBPath:     getEnv("SQLITE_DB_PATH", "./data/rt.db"),
		DevAPIPort:       getEnv("RT_DEVAPI_PORT", "8000"),
		DevAPIStorageDir: getEnv("RT_DEVAPI_STORAGE_DIR", "./data/storage"),

		KTPMaxWidth:  getEnvInt("KTP_MAX_WIDTH", 1600),
		KTPMaxHeight: getEnvInt("KTP_MAX_HEIGHT", 1600),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "rt"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "rt_ledger"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GooglePaymentsSheet: getEnv("GOOGLE_PAYMENTS_SHEET", "Pembayaran"),
		GoogleExpensesSheet: getEnv("GOOGLE_EXPENSES_SHEET", "Pengeluaran"),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 15*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	if cfg.StorageURL == "" {
		cfg.StorageURL = DeriveStorageURL(cfg.APIURL)
	}
	return cfg
}

// DeriveStorageURL maps "http://host:8000/api" to "http://host:8000/storage".
func DeriveStorageURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "/storage"
	}
	return u.Scheme + "://" + u.Host + "/storage"
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	errors = append(errors, validatePort("port", c.Port)...)

	validBackends := []string{BackendRemote, BackendEmbedded}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendRemote {
		if u, err := url.Parse(c.APIURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid RT API URL '%s': %v", c.APIURL, err))
		} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid RT API URL '%s': must be an absolute http(s) URL", c.APIURL))
		}
	}
	if c.DataBackend == BackendEmbedded {
		errors = append(errors, c.validateSQLite()...)
	}

	if c.APITimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid RT API timeout %v: must be positive", c.APITimeout))
	} else if c.APITimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid RT API timeout %v: must be at most 2 minutes", c.APITimeout))
	}

	if c.KTPMaxWidth < 100 || c.KTPMaxWidth > 10000 {
		errors = append(errors, fmt.Sprintf("invalid KTP max width %d: must be between 100 and 10000", c.KTPMaxWidth))
	}
	if c.KTPMaxHeight < 100 || c.KTPMaxHeight > 10000 {
		errors = append(errors, fmt.Sprintf("invalid KTP max height %d: must be between 100 and 10000", c.KTPMaxHeight))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	errors = append(errors, c.validateAMQP()...)
	errors = append(errors, c.validateLogging()...)

	return joinErrors(errors)
}

// ValidateDevAPI checks the settings of the standalone dev backend.
func (c *Config) ValidateDevAPI() error {
	var errors []string
	errors = append(errors, validatePort("dev API port", c.DevAPIPort)...)
	errors = append(errors, c.validateSQLite()...)
	errors = append(errors, c.validateLogging()...)
	return joinErrors(errors)
}

// ValidateWorker checks the settings of the ledger worker, which cannot run
// without a broker.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the ledger worker")
	}
	errors = append(errors, c.validateAMQP()...)

	if c.GoogleSpreadsheetID != "" {
		if strings.TrimSpace(c.GooglePaymentsSheet) == "" {
			errors = append(errors, "Google payments sheet name cannot be empty")
		}
		if strings.TrimSpace(c.GoogleExpensesSheet) == "" {
			errors = append(errors, "Google expenses sheet name cannot be empty")
		}
		if c.GooglePaymentsSheet == c.GoogleExpensesSheet {
			errors = append(errors, "Google payments and expenses sheets must differ")
		}
	}

	if c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	errors = append(errors, c.validateLogging()...)
	return joinErrors(errors)
}

func (c *Config) validateSQLite() []string {
	if c.SQLiteDBPath == "" {
		return []string{"SQLite database path cannot be empty when using the embedded backend"}
	}
	return nil
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
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
	return errors
}

func (c *Config) validateLogging() []string {
	var errors []string
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}
	return errors
}

func validatePort(name, value string) []string {
	port, err := strconv.Atoi(value)
	if err != nil {
		return []string{fmt.Sprintf("invalid %s '%s': must be a number", name, value)}
	}
	if port < 1 || port > 65535 {
		return []string{fmt.Sprintf("invalid %s %d: must be between 1 and 65535", name, port)}
	}
	return nil
}

func joinErrors(errors []string) error {
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
