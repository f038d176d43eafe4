package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Cache    CacheConfig
	Routing  RoutingConfig
	Auth     AuthConfig
	Sentry   SentryConfig
	Upstream UpstreamConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// BackendConfig holds content backend (GraphQL) settings. Timeout bounds
// every directory lookup; the routing layer adds no deadline of its own.
type BackendConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// CacheConfig holds directory cache settings. RedisAddr is optional; when
// set, a shared L2 cache is layered under the in-process one.
type CacheConfig struct {
	MaxBytes      int64
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string //nolint:gosec // G117: Redis connection config
	RedisDB       int
}

// RoutingConfig holds the routing middleware's fixed paths and tables.
type RoutingConfig struct {
	HealthPath      string
	UnpublishedPath string
	// HostRedirects maps a hostname to the plan subdomain it redirects to
	// before any resolution runs. Development convenience, e.g.
	// localhost=sunnydale sends http://localhost:3000 to
	// http://sunnydale.localhost:3000.
	HostRedirects map[string]string
	// LegacyPrefixes are retired leading path segments redirected to
	// canonical form.
	LegacyPrefixes []string
}

// AuthConfig holds session signing and per-hostname protection settings.
type AuthConfig struct {
	Secret     string //nolint:gosec // G117: session signing secret config
	SessionTTL time.Duration
	// ProtectedHosts maps a hostname to the bcrypt hash of its password.
	ProtectedHosts map[string]string
	// AdminToken guards the /api/admin surface; empty disables it.
	AdminToken string
}

// SentryConfig holds error reporting settings. An empty DSN falls back to
// log-only reporting.
type SentryConfig struct {
	DSN         string
	Environment string
}

// UpstreamConfig holds the downstream renderer. An empty URL enables the
// local debug handler instead of proxying.
type UpstreamConfig struct {
	URL string
}

// Load reads configuration from environment variables. Defaults are safe
// for local development only.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("EDGE_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("EDGE_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	backendTimeout, err := getEnvDuration("EDGE_BACKEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cacheMaxBytes, err := getEnvInt64("EDGE_CACHE_MAX_BYTES", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cacheTTL, err := getEnvDuration("EDGE_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("EDGE_CACHE_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sessionTTL, err := getEnvDuration("EDGE_AUTH_SESSION_TTL", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("EDGE_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  getEnvList("EDGE_CORS_ORIGINS", []string{"*"}),
		},
		Backend: BackendConfig{
			URL:     getEnv("EDGE_BACKEND_URL", ""),
			Token:   getEnv("EDGE_BACKEND_TOKEN", ""),
			Timeout: backendTimeout,
		},
		Cache: CacheConfig{
			MaxBytes:      cacheMaxBytes,
			TTL:           cacheTTL,
			RedisAddr:     getEnv("EDGE_CACHE_REDIS_ADDR", ""),
			RedisPassword: getEnv("EDGE_CACHE_REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Routing: RoutingConfig{
			HealthPath:      getEnv("EDGE_HEALTH_PATH", "/_health"),
			UnpublishedPath: getEnv("EDGE_UNPUBLISHED_PATH", "/unpublished"),
			HostRedirects:   getEnvMap("EDGE_HOST_REDIRECTS", map[string]string{"localhost": "sunnydale"}),
			LegacyPrefixes:  getEnvList("EDGE_LEGACY_PREFIXES", nil),
		},
		Auth: AuthConfig{
			Secret:         getEnv("EDGE_AUTH_SECRET", ""),
			SessionTTL:     sessionTTL,
			ProtectedHosts: getEnvMap("EDGE_AUTH_PROTECTED_HOSTS", nil),
			AdminToken:     getEnv("EDGE_ADMIN_TOKEN", ""),
		},
		Sentry: SentryConfig{
			DSN:         getEnv("EDGE_SENTRY_DSN", ""),
			Environment: getEnv("EDGE_SENTRY_ENVIRONMENT", "development"),
		},
		Upstream: UpstreamConfig{
			URL: getEnv("EDGE_UPSTREAM_URL", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Backend.URL == "" {
		return errors.New("EDGE_BACKEND_URL is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("EDGE_BACKEND_TIMEOUT must be positive, got %s", c.Backend.Timeout)
	}
	if c.Cache.MaxBytes < 1 {
		return fmt.Errorf("EDGE_CACHE_MAX_BYTES must be >= 1, got %d", c.Cache.MaxBytes)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("EDGE_CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("EDGE_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("EDGE_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if !strings.HasPrefix(c.Routing.HealthPath, "/") {
		return fmt.Errorf("EDGE_HEALTH_PATH must start with /, got %q", c.Routing.HealthPath)
	}
	if !strings.HasPrefix(c.Routing.UnpublishedPath, "/") {
		return fmt.Errorf("EDGE_UNPUBLISHED_PATH must start with /, got %q", c.Routing.UnpublishedPath)
	}

	// Session signing is only needed when some hostname is protected,
	// but then the secret must be real.
	if len(c.Auth.ProtectedHosts) > 0 {
		if c.Auth.Secret == "" {
			return errors.New("EDGE_AUTH_SECRET is required when EDGE_AUTH_PROTECTED_HOSTS is set")
		}
		if len(c.Auth.Secret) < 32 {
			return errors.New("EDGE_AUTH_SECRET must be at least 32 characters")
		}
		if c.Auth.SessionTTL <= 0 {
			return fmt.Errorf("EDGE_AUTH_SESSION_TTL must be positive, got %s", c.Auth.SessionTTL)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int64: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// getEnvMap parses comma-separated key=value pairs. Values may contain '='
// (bcrypt hashes do); only the first separator splits.
func getEnvMap(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, val, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			continue
		}
		result[strings.TrimSpace(k)] = val
	}
	return result
}
