// Package config loads the server configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment keys
const (
	KeyAPIKey           = "NPS_API_KEY"
	KeyBaseURL          = "NPS_API_BASE_URL"
	KeyTimeout          = "NPS_TIMEOUT"
	KeyOperationTimeout = "NPS_OPERATION_TIMEOUT"
	KeyMaxPages         = "NPS_MAX_PAGES"
	KeyRateLimitPerHour = "NPS_RATE_LIMIT_PER_HOUR"
	KeyUserAgent        = "NPS_USER_AGENT"
	KeyMetricsAddr      = "NPS_METRICS_ADDR"
	KeyLogLevel         = "LOG_LEVEL"
)

// Defaults
const (
	DefaultBaseURL          = "https://developer.nps.gov/api/v1"
	DefaultTimeout          = 30 * time.Second
	DefaultOperationTimeout = 2 * time.Minute
	DefaultMaxPages         = 20
	DefaultRateLimitPerHour = 1000 // NPS developer key quota
	DefaultUserAgent        = "nps-mcp-server/1.0 (github.com/olgasafonova/nps-mcp-server)"

	// MinTimeout is the shortest request or operation timeout accepted
	MinTimeout = time.Second
)

// Config holds NPS connection settings. It is built once by Load and passed
// explicitly to the components that need it; nothing reads the environment
// after startup.
type Config struct {
	// APIKey is sent as X-Api-Key on every request
	APIKey string

	// BaseURL is the NPS API root (e.g., https://developer.nps.gov/api/v1)
	BaseURL string

	// Timeout bounds a single HTTP request
	Timeout time.Duration

	// OperationTimeout bounds a whole paginated operation
	OperationTimeout time.Duration

	// MaxPages caps the number of pages one operation may request
	MaxPages int

	// RateLimitPerHour throttles outbound requests; <= 0 disables throttling
	RateLimitPerHour int

	// UserAgent identifies the client to the NPS API
	UserAgent string

	// MetricsAddr is the listen address for /metrics and /healthz; empty disables it
	MetricsAddr string

	// LogLevel is the slog level name
	LogLevel string
}

// Load reads .env files (if present) and then the process environment.
// Values already present in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeyMaxPages, DefaultMaxPages)
	v.SetDefault(KeyRateLimitPerHour, DefaultRateLimitPerHour)
	v.SetDefault(KeyUserAgent, DefaultUserAgent)
	v.SetDefault(KeyLogLevel, "info")

	timeout, err := durationSetting(v, KeyTimeout, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	operationTimeout, err := durationSetting(v, KeyOperationTimeout, DefaultOperationTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:           strings.TrimSpace(v.GetString(KeyAPIKey)),
		BaseURL:          strings.TrimRight(strings.TrimSpace(v.GetString(KeyBaseURL)), "/"),
		Timeout:          timeout,
		OperationTimeout: operationTimeout,
		MaxPages:         v.GetInt(KeyMaxPages),
		RateLimitPerHour: v.GetInt(KeyRateLimitPerHour),
		UserAgent:        v.GetString(KeyUserAgent),
		MetricsAddr:      strings.TrimSpace(v.GetString(KeyMetricsAddr)),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationSetting reads key as a Go duration ("30s", "2m"). A bare integer
// is taken as seconds, so NPS_TIMEOUT=30 means 30s and not 30ns.
func durationSetting(v *viper.Viper, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 30s or a number of seconds, got %q", key, raw)
	}
	return d, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%s environment variable is required", KeyAPIKey)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", KeyBaseURL, c.BaseURL)
	}
	if c.Timeout < MinTimeout {
		return fmt.Errorf("%s must be at least %v, got %v", KeyTimeout, MinTimeout, c.Timeout)
	}
	if c.OperationTimeout < MinTimeout {
		return fmt.Errorf("%s must be at least %v, got %v", KeyOperationTimeout, MinTimeout, c.OperationTimeout)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyMaxPages, c.MaxPages)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
