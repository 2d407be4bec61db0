package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultLoginURL is the SOSDirect account login page.
const DefaultLoginURL = "https://direct.sos.state.tx.us/acct/acct-login.asp"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Harvest   HarvestConfig
	Timeouts  TimeoutConfig
	Debug     DebugConfig
	Store     StoreConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server used by "sosharvest serve".
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ControlURL connects to an already running Chrome instead of launching one.
	ControlURL string

	// Proxy is the upstream proxy URL for the browser and the preflight probe.
	Proxy string

	// Stealth injects the go-rod/stealth evasions before every document.
	Stealth bool // default: true

	// Preflight probes the login URL over plain HTTPS before the browser starts.
	Preflight bool // default: true

	// BlockedResourceTypes lists resource types to block ("Image", "Font", ...).
	// Empty by default so checkpoint screenshots render the portal faithfully.
	BlockedResourceTypes []string

	// BlockAds drops requests to well-known tracking domains.
	BlockAds bool // default: false

	// ExtraHeaders are sent with every browser request ("Name: value" pairs).
	ExtraHeaders map[string]string
}

// HarvestConfig is the per-run input of a harvest.
type HarvestConfig struct {
	Username string
	Password string

	// LoginURL is the portal entry point.
	LoginURL string // default: DefaultLoginURL

	// TargetDate is MM/DD/YYYY or YYYY-MM-DD; other shapes are passed through.
	TargetDate string

	// MaxPages caps the number of result pages visited.
	MaxPages int // default: 250

	// SearchWildcard fills the name criterion of the report search.
	SearchWildcard string // default: "*.*"

	// AccountSelector picks the client/payment account when the portal asks for one.
	AccountSelector string

	// StopOnRepeatedPage ends pagination when "Next" yields the same rows again.
	StopOnRepeatedPage bool // default: true
}

// TimeoutConfig holds the per-action timeouts.
type TimeoutConfig struct {
	Navigation time.Duration // default: 120s
	Selector   time.Duration // default: 60s
	Click      time.Duration // default: 2s, used by best-effort link probes
}

// DebugConfig toggles checkpoint artifact capture.
type DebugConfig struct {
	HTML        bool // default: true
	Screenshots bool // default: true
	Markdown    bool // default: false
}

// StoreConfig controls where artifacts and extracted rows are written.
type StoreConfig struct {
	// ArtifactDir is the root of the per-run key-value stores.
	ArtifactDir string // default: "./storage/key_value_stores"

	// DatasetDir is the root of the per-run JSONL/CSV datasets.
	DatasetDir string // default: "./storage/datasets"

	// DatasetFormats selects the record stores: "jsonl", "csv", "sqlite".
	DatasetFormats []string // default: ["jsonl"]

	// SQLitePath is the database used by the "sqlite" dataset format.
	SQLitePath string // default: "./storage/harvest.db"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the run status cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of remembered runs.
	MaxEntries int // default: 256
}

// WebhookConfig controls completion notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host: envOr("SOSH_HOST", "0.0.0.0"),
			Port: envIntOr("SOSH_PORT", 8080),
			Mode: envOr("SOSH_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("SOSH_HEADLESS", true),
			NoSandbox:            envBoolOr("SOSH_NO_SANDBOX", false),
			BrowserBin:           os.Getenv("SOSH_BROWSER_BIN"),
			ControlURL:           os.Getenv("SOSH_CDP_URL"),
			Proxy:                os.Getenv("SOSH_PROXY"),
			Stealth:              envBoolOr("SOSH_STEALTH", true),
			Preflight:            envBoolOr("SOSH_PREFLIGHT", true),
			BlockedResourceTypes: envSliceOr("SOSH_BLOCKED_RESOURCES", nil),
			BlockAds:             envBoolOr("SOSH_BLOCK_ADS", false),
			ExtraHeaders:         envHeadersOr("SOSH_EXTRA_HEADERS", nil),
		},
		Harvest: HarvestConfig{
			Username:           os.Getenv("SOSH_USERNAME"),
			Password:           os.Getenv("SOSH_PASSWORD"),
			LoginURL:           envOr("SOSH_LOGIN_URL", DefaultLoginURL),
			TargetDate:         os.Getenv("SOSH_TARGET_DATE"),
			MaxPages:           envIntOr("SOSH_MAX_PAGES", 250),
			SearchWildcard:     envOr("SOSH_SEARCH_WILDCARD", "*.*"),
			AccountSelector:    os.Getenv("SOSH_ACCOUNT"),
			StopOnRepeatedPage: envBoolOr("SOSH_STOP_ON_REPEATED_PAGE", true),
		},
		Timeouts: TimeoutConfig{
			Navigation: envDurationOr("SOSH_NAV_TIMEOUT", 120*time.Second),
			Selector:   envDurationOr("SOSH_SELECTOR_TIMEOUT", 60*time.Second),
			Click:      envDurationOr("SOSH_CLICK_TIMEOUT", 2*time.Second),
		},
		Debug: DebugConfig{
			HTML:        envBoolOr("SOSH_DEBUG_HTML", true),
			Screenshots: envBoolOr("SOSH_DEBUG_SCREENSHOTS", true),
			Markdown:    envBoolOr("SOSH_DEBUG_MARKDOWN", false),
		},
		Store: StoreConfig{
			ArtifactDir:    envOr("SOSH_ARTIFACT_DIR", "./storage/key_value_stores"),
			DatasetDir:     envOr("SOSH_DATASET_DIR", "./storage/datasets"),
			DatasetFormats: envSliceOr("SOSH_DATASET_FORMATS", []string{"jsonl"}),
			SQLitePath:     envOr("SOSH_SQLITE_PATH", "./storage/harvest.db"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SOSH_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SOSH_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SOSH_RATE_RPS", 2.0),
			Burst:             envIntOr("SOSH_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SOSH_CACHE_MAX_ENTRIES", 256),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("SOSH_WEBHOOK_URL"),
			Secret: os.Getenv("SOSH_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SOSH_LOG_LEVEL", "info"),
			Format: envOr("SOSH_LOG_FORMAT", "json"),
		},
	}
	cfg.Validate()
	return cfg
}

// Validate clamps values that would make a run meaningless.
func (c *Config) Validate() {
	if c.Harvest.MaxPages < 1 {
		c.Harvest.MaxPages = 1
	}
	if c.Harvest.LoginURL == "" {
		c.Harvest.LoginURL = DefaultLoginURL
	}
	if c.Timeouts.Navigation <= 0 {
		c.Timeouts.Navigation = 120 * time.Second
	}
	if c.Timeouts.Selector <= 0 {
		c.Timeouts.Selector = 60 * time.Second
	}
	if c.Timeouts.Click <= 0 {
		c.Timeouts.Click = 2 * time.Second
	}
	if len(c.Store.DatasetFormats) == 0 {
		c.Store.DatasetFormats = []string{"jsonl"}
	}
	if c.Cache.MaxEntries < 1 {
		c.Cache.MaxEntries = 1
	}
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

// envDurationOr accepts Go durations ("90s") and bare integers as milliseconds.
func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
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

// envHeadersOr parses "Name: value; Other: value" pairs.
func envHeadersOr(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(v, ";") {
		name, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			headers[name] = strings.TrimSpace(value)
		}
	}
	if len(headers) == 0 {
		return fallback
	}
	return headers
}
