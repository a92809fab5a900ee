package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Version is reported by the health endpoint and sent as User-Agent.
const Version = "0.3.0"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Form      FormConfig
	Webhook   WebhookConfig
	History   HistoryConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8090
	Mode string // "debug", "release", "test"; default: "release"
}

// BackendConfig points at the scraping backend.
type BackendConfig struct {
	// BaseURL is the backend root, without trailing slash.
	BaseURL string // default: "http://localhost:8000"

	// Timeout bounds each backend call. Zero means no client-side timeout:
	// a hung scrape stays running until cancelled.
	Timeout time.Duration // default: 0

	// UserAgent is sent with every backend request.
	UserAgent string // default: "scrapedesk/<Version>"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the history detail cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached log entries.
	MaxEntries int // default: 500

	// TTL is how long a cached entry stays fresh.
	TTL time.Duration // default: 10m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"

	// File, when set, also writes logs to a size-rotated file.
	File       string
	MaxSizeMB  int // default: 50
	MaxBackups int // default: 3
	MaxAgeDays int // default: 28
}

// FormConfig controls form state persistence.
type FormConfig struct {
	// StatePath is the JSON file holding the saved form. Empty keeps it in memory.
	StatePath string // default: <user config dir>/scrapedesk/form.json
}

// WebhookConfig controls operation event delivery.
type WebhookConfig struct {
	// URL receives a signed POST for every finished operation. Empty disables it.
	URL string

	// Secret signs webhook bodies with HMAC-SHA256.
	Secret string
}

// HistoryConfig controls log browsing.
type HistoryConfig struct {
	// PageSize is the default number of entries per page.
	PageSize int // default: 25
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SCRAPEDESK_HOST", "0.0.0.0"),
			Port: envIntOr("SCRAPEDESK_PORT", 8090),
			Mode: envOr("SCRAPEDESK_MODE", "release"),
		},
		Backend: BackendConfig{
			BaseURL:   strings.TrimRight(envOr("SCRAPEDESK_BACKEND_URL", "http://localhost:8000"), "/"),
			Timeout:   envDurationOr("SCRAPEDESK_BACKEND_TIMEOUT", 0),
			UserAgent: envOr("SCRAPEDESK_USER_AGENT", "scrapedesk/"+Version),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SCRAPEDESK_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SCRAPEDESK_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SCRAPEDESK_RATE_RPS", 5.0),
			Burst:             envIntOr("SCRAPEDESK_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SCRAPEDESK_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("SCRAPEDESK_CACHE_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:      envOr("SCRAPEDESK_LOG_LEVEL", "info"),
			Format:     envOr("SCRAPEDESK_LOG_FORMAT", "json"),
			File:       os.Getenv("SCRAPEDESK_LOG_FILE"),
			MaxSizeMB:  envIntOr("SCRAPEDESK_LOG_MAX_SIZE_MB", 50),
			MaxBackups: envIntOr("SCRAPEDESK_LOG_MAX_BACKUPS", 3),
			MaxAgeDays: envIntOr("SCRAPEDESK_LOG_MAX_AGE_DAYS", 28),
		},
		Form: FormConfig{
			StatePath: envOr("SCRAPEDESK_FORM_STATE", defaultFormPath()),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("SCRAPEDESK_WEBHOOK_URL"),
			Secret: os.Getenv("SCRAPEDESK_WEBHOOK_SECRET"),
		},
		History: HistoryConfig{
			PageSize: envIntOr("SCRAPEDESK_HISTORY_PAGE_SIZE", 25),
		},
	}
}

func defaultFormPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "scrapedesk", "form.json")
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
