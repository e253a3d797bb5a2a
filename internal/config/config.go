package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// DefaultCatalogKey is the storage key holding the product document.
const DefaultCatalogKey = "toss-payment-products"

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv        string
	Port          string
	PublicBaseURL string
	RedisURL      string

	CatalogStorageKey   string
	CatalogSeedDefaults bool

	TossSecretKey     string
	TossClientKey     string
	TossAPIBaseURL    string
	TossPaymentMethod string

	OutboundTimeout            time.Duration
	CircuitUpstreamMinReq      int
	CircuitUpstreamFailureRate float64
	CircuitUpstreamOpenFor     time.Duration

	RateLimitConfirmMax     int
	RateLimitConfirmWindow  time.Duration
	RateLimitCheckoutMax    int
	RateLimitCheckoutWindow time.Duration

	BodyLimitBytes        int64
	SecurityHeadersEnable bool
	CORSAllowedOrigins    []string

	LockTTL          time.Duration
	LockRetryBackoff time.Duration

	TasksEnabled      bool
	WorkerConcurrency int
	// WorkerMetricsAddr is where the worker serves /metrics; "off" disables it.
	WorkerMetricsAddr string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:        valueOrDefault(k.String("APP_ENV"), "development"),
		Port:          valueOrDefault(k.String("PORT"), "8080"),
		PublicBaseURL: strings.TrimRight(valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:8080"), "/"),
		RedisURL:      strings.TrimSpace(k.String("REDIS_URL")),

		CatalogStorageKey:   valueOrDefault(k.String("CATALOG_STORAGE_KEY"), DefaultCatalogKey),
		CatalogSeedDefaults: parseBoolDefault(k.String("CATALOG_SEED_DEFAULTS"), true),

		TossSecretKey:     k.String("TOSS_SECRET_KEY"),
		TossClientKey:     valueOrDefault(k.String("TOSS_CLIENT_KEY"), k.String("NEXT_PUBLIC_TOSS_CLIENT_KEY")),
		TossAPIBaseURL:    strings.TrimRight(valueOrDefault(k.String("TOSS_API_BASE_URL"), "https://api.tosspayments.com"), "/"),
		TossPaymentMethod: valueOrDefault(k.String("TOSS_PAYMENT_METHOD"), "CARD"),

		OutboundTimeout:            parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		CircuitUpstreamMinReq:      parseInt(k.String("CIRCUIT_UPSTREAM_MIN_REQ"), 10),
		CircuitUpstreamFailureRate: parseFloat(k.String("CIRCUIT_UPSTREAM_FAILURE_RATE"), 0.5),
		CircuitUpstreamOpenFor:     parseDuration(k.String("CIRCUIT_UPSTREAM_OPEN_FOR"), "30s"),

		RateLimitConfirmMax:     parseInt(k.String("RATE_LIMIT_CONFIRM_MAX"), 30),
		RateLimitConfirmWindow:  parseDuration(k.String("RATE_LIMIT_CONFIRM_WINDOW"), "1m"),
		RateLimitCheckoutMax:    parseInt(k.String("RATE_LIMIT_CHECKOUT_MAX"), 10),
		RateLimitCheckoutWindow: parseDuration(k.String("RATE_LIMIT_CHECKOUT_WINDOW"), "1m"),

		BodyLimitBytes:        int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64*1024)),
		SecurityHeadersEnable: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLE"), true),
		CORSAllowedOrigins:    splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		LockTTL:          parseDuration(k.String("LOCK_TTL"), "5s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		TasksEnabled:      parseBoolDefault(k.String("TASKS_ENABLED"), false),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		WorkerMetricsAddr: workerMetricsAddr(k.String("WORKER_METRICS_ADDR")),
	}

	if cfg.TasksEnabled && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when TASKS_ENABLED is set")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// UsesRedis reports whether a Redis URL was configured.
func (c *Config) UsesRedis() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}

func workerMetricsAddr(value string) string {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "":
		return ":9091"
	case "off", "false", "0":
		return ""
	}
	return value
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
