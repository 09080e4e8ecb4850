// Package config provides application configuration loaded from environment
// variables (optionally seeded from a .env file) with defaults and validation.
// It centralizes server timeouts, logging, storage locations, the ranked-item
// source credentials, pipeline tuning, and observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the relational engine backing the metric store.
type DBConfig struct {
	Driver string // sqlite|postgres|mysql
	Path   string // SQLite file path
	DSN    string // postgres/mysql DSN
}

// SourceConfig holds the ranked-item source settings. Credentials are only
// required in "oauth" mode.
type SourceConfig struct {
	Mode         string // public|oauth
	Subreddit    string
	BaseURL      string
	UserAgent    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// ReportConfig holds the fixed texts of the rendered report.
type ReportConfig struct {
	PageTitle    string
	Heading      string
	TableHeading string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration // generous: a trigger may run the whole pipeline
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool
	APIBasePath string

	// Storage
	DB           DBConfig
	CacheBackend string // fs|memory
	CacheDir     string
	ReportsDir   string

	// Pipeline
	TopN            int
	TimeWindow      string        // listing window: hour|day|week|month|year|all
	Retention       time.Duration // vote history kept
	FreshnessWindow time.Duration // artifact reuse window
	FetchWorkers    int
	FetchTimeout    time.Duration
	CrawlInterval   time.Duration // 0 disables the scheduled tick

	Source SourceConfig
	Report ReportConfig

	// Rate limiting of trigger endpoints
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Notifications
	NotifyURLs    []string
	NotifyTimeout time.Duration

	// Observability
	OTEL OTELConfig
}

// LoadDotEnv seeds the process environment from the given .env files. Missing
// files are ignored; variables already set in the environment win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "memes.db"),
			DSN:    getenv("DB_DSN", ""),
		},
		CacheBackend: strings.ToLower(getenv("CACHE_BACKEND", "fs")),
		CacheDir:     getenv("CACHE_DIR", "img_cache"),
		ReportsDir:   getenv("REPORTS_DIR", "reports"),

		// Pipeline
		TopN:            getint("TOP_N", 20),
		TimeWindow:      strings.ToLower(getenv("TIME_WINDOW", "day")),
		Retention:       getdur("RETENTION", 24*time.Hour),
		FreshnessWindow: getdur("FRESHNESS_WINDOW", time.Second),
		FetchWorkers:    getint("FETCH_WORKERS", 4),
		FetchTimeout:    getdur("FETCH_TIMEOUT", 30*time.Second),
		CrawlInterval:   getdur("CRAWL_INTERVAL", 0),

		Source: SourceConfig{
			Mode:         strings.ToLower(getenv("SOURCE_MODE", "public")),
			Subreddit:    getenv("SUBREDDIT", "memes"),
			BaseURL:      strings.TrimRight(getenv("REDDIT_BASE_URL", "https://www.reddit.com"), "/"),
			UserAgent:    getenv("REDDIT_USER_AGENT", "go-meme-report/1.0"),
			ClientID:     getenv("REDDIT_CLIENT_ID", ""),
			ClientSecret: getenv("REDDIT_SECRET", ""),
			Username:     getenv("REDDIT_USERNAME", ""),
			Password:     getenv("REDDIT_PASSWORD", ""),
		},
		Report: ReportConfig{
			PageTitle:    getenv("REPORT_PAGE_TITLE", "Meme Report"),
			Heading:      getenv("REPORT_HEADING", "Top 20 memes of r/memes in the past 24 hours"),
			TableHeading: getenv("REPORT_TABLE_HEADING", "Top 20 memes"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 2.0),
		RateBurst: getint("RATE_BURST", 5),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Notifications
		NotifyURLs:    splitCSV(getenv("NOTIFY_URLS", "")),
		NotifyTimeout: getdur("NOTIFY_TIMEOUT", 10*time.Second),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-meme-report"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "sqlite3" {
		cfg.DB.Driver = "sqlite"
	}
	if cfg.CacheBackend == "filesystem" {
		cfg.CacheBackend = "fs"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres", "mysql":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN is required for DB_DRIVER=" + cfg.DB.Driver)
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres, mysql")
	}
	switch cfg.CacheBackend {
	case "fs", "memory":
	default:
		return cfg, errors.New("CACHE_BACKEND must be one of: fs, memory")
	}
	if cfg.CacheBackend == "fs" && strings.TrimSpace(cfg.CacheDir) == "" {
		return cfg, errors.New("CACHE_DIR must not be empty")
	}
	if strings.TrimSpace(cfg.ReportsDir) == "" {
		return cfg, errors.New("REPORTS_DIR must not be empty")
	}
	if cfg.TopN < 1 || cfg.TopN > 100 {
		return cfg, errors.New("TOP_N must be between 1 and 100")
	}
	switch cfg.TimeWindow {
	case "hour", "day", "week", "month", "year", "all":
	default:
		return cfg, errors.New("TIME_WINDOW must be one of: hour, day, week, month, year, all")
	}
	if cfg.Retention <= 0 {
		return cfg, errors.New("RETENTION must be > 0")
	}
	if cfg.FreshnessWindow < 0 {
		return cfg, errors.New("FRESHNESS_WINDOW must be >= 0")
	}
	if cfg.FetchWorkers < 1 {
		return cfg, errors.New("FETCH_WORKERS must be >= 1")
	}
	if cfg.FetchTimeout <= 0 {
		return cfg, errors.New("FETCH_TIMEOUT must be > 0")
	}
	if cfg.CrawlInterval < 0 {
		return cfg, errors.New("CRAWL_INTERVAL must be >= 0")
	}
	switch cfg.Source.Mode {
	case "public":
	case "oauth":
		if cfg.Source.ClientID == "" || cfg.Source.ClientSecret == "" ||
			cfg.Source.Username == "" || cfg.Source.Password == "" {
			return cfg, errors.New("SOURCE_MODE=oauth requires REDDIT_CLIENT_ID, REDDIT_SECRET, REDDIT_USERNAME and REDDIT_PASSWORD")
		}
	default:
		return cfg, errors.New("SOURCE_MODE must be one of: public, oauth")
	}
	if strings.TrimSpace(cfg.Source.Subreddit) == "" {
		return cfg, errors.New("SUBREDDIT must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
