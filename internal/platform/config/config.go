// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database for AppConfig.Location

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (1MB).
	DefaultMaxRequestSize = 1 << 20

	// DefaultRateLimit is the per-client-IP API rate in limiter notation.
	DefaultRateLimit = "300-M"

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultSessionTTL is how long an idle quote session lives.
	DefaultSessionTTL = 8 * time.Hour

	// DefaultCatalogMaxSize caps a downloaded catalog workbook (10MB).
	DefaultCatalogMaxSize = 10 << 20

	// DefaultClientRetryMaxAttempts is the default number of download attempts.
	DefaultClientRetryMaxAttempts = 3

	// DefaultClientRetryMultiplier is the default backoff multiplier.
	DefaultClientRetryMultiplier = 2.0

	// DefaultClientRetryJitterFactor is the default backoff jitter (±25%).
	DefaultClientRetryJitterFactor = 0.25

	// DefaultClientCircuitMaxFailures opens the circuit after this many failures.
	DefaultClientCircuitMaxFailures = 5

	// DefaultClientCircuitHalfOpenLimit closes the circuit after this many probes succeed.
	DefaultClientCircuitHalfOpenLimit = 2

	// DefaultHighlightThreshold marks export rows whose line total exceeds it.
	DefaultHighlightThreshold = "1000"
)

// Store drivers.
const (
	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Auth      AuthConfig      `koanf:"auth"`
	Catalog   CatalogConfig   `koanf:"catalog"   validate:"required"`
	Store     StoreConfig     `koanf:"store"     validate:"required"`
	Export    ExportConfig    `koanf:"export"    validate:"required"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
	Timezone    string `koanf:"timezone"    validate:"required,timezone"`
}

// Location resolves the configured IANA time zone.
func (a AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
	// RateLimit is a per-client-IP limit such as "300-M"; empty disables it.
	RateLimit string `koanf:"rate_limit"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig contains gateway-header authentication settings.
type AuthConfig struct {
	Enabled       bool   `koanf:"enabled"`
	SubjectHeader string `koanf:"subject_header"`
	RolesHeader   string `koanf:"roles_header"`
	ScopesHeader  string `koanf:"scopes_header"`
	AdminRole     string `koanf:"admin_role" validate:"required_if=Enabled true"`
}

// CatalogConfig points at the product spreadsheet.
type CatalogConfig struct {
	Path string `koanf:"path" validate:"required"`
	// URL, when set, downloads the workbook over HTTP instead of reading Path.
	URL string `koanf:"url" validate:"omitempty,url"`
	// Fallback serves the built-in catalog when the spreadsheet is missing.
	Fallback bool         `koanf:"fallback"`
	Sheet    string       `koanf:"sheet"`
	Client   ClientConfig `koanf:"client" validate:"required"`
}

// ClientConfig contains HTTP client settings for the catalog download.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	MaxSize        int64                `koanf:"max_size"        validate:"required,min=1"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// StoreConfig selects the quote session store.
type StoreConfig struct {
	Driver string        `koanf:"driver" validate:"required,oneof=memory redis"`
	TTL    time.Duration `koanf:"ttl"    validate:"required,min=1m"`
	Redis  RedisConfig   `koanf:"redis"`
}

// RedisConfig contains Redis connection settings for the session store.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"         validate:"min=0,max=15"`
	KeyPrefix string `koanf:"key_prefix"`
}

// ExportConfig contains PDF export settings.
type ExportConfig struct {
	Title              string `koanf:"title"               validate:"required"`
	Footer             string `koanf:"footer"`
	HighlightThreshold string `koanf:"highlight_threshold" validate:"required,numeric"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "quote-service",
		"app.version":     "dev",
		"app.environment": "local",
		"app.timezone":    "America/Sao_Paulo",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "30s",
		"server.max_request_size": DefaultMaxRequestSize,
		"server.rate_limit":       DefaultRateLimit,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "quote-service",
		"telemetry.sampling_rate": 1.0,

		"auth.enabled":        false,
		"auth.subject_header": "X-User-ID",
		"auth.roles_header":   "X-User-Roles",
		"auth.scopes_header":  "X-User-Scopes",
		"auth.admin_role":     "admin",

		"catalog.path":     "produtos.xlsx",
		"catalog.fallback": true,
		"catalog.sheet":    "",
		"catalog.url":      "",

		"catalog.client.timeout":                         "10s",
		"catalog.client.max_size":                        DefaultCatalogMaxSize,
		"catalog.client.retry.max_attempts":              DefaultClientRetryMaxAttempts,
		"catalog.client.retry.initial_interval":          "100ms",
		"catalog.client.retry.max_interval":              "2s",
		"catalog.client.retry.multiplier":                DefaultClientRetryMultiplier,
		"catalog.client.retry.jitter_factor":             DefaultClientRetryJitterFactor,
		"catalog.client.circuit_breaker.max_failures":    DefaultClientCircuitMaxFailures,
		"catalog.client.circuit_breaker.timeout":         "30s",
		"catalog.client.circuit_breaker.half_open_limit": DefaultClientCircuitHalfOpenLimit,

		"store.driver":           StoreDriverMemory,
		"store.ttl":              DefaultSessionTTL.String(),
		"store.redis.addr":       "localhost:6379",
		"store.redis.password":   "",
		"store.redis.db":         0,
		"store.redis.key_prefix": "quote:",

		"export.title":               "Orçamento - Fábrica de Ração",
		"export.footer":              "Orçamento gerado automaticamente - Fábrica de Ração",
		"export.highlight_threshold": DefaultHighlightThreshold,
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix), including those from a .env file
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
func Load(profile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := koanf.New(".")

	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	err = k.Load(env.Provider("APP_", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKey maps APP_STORE_REDIS_ADDR to store.redis.addr. Keys whose leaf
// contains an underscore (read_timeout, key_prefix, ...) are matched against
// the known defaults so they keep their underscore.
func envKey(s string) string {
	raw := strings.ToLower(strings.TrimPrefix(s, "APP_"))
	for key := range defaults() {
		if strings.ReplaceAll(key, ".", "_") == raw {
			return key
		}
	}
	return strings.ReplaceAll(raw, "_", ".")
}

// loadDotEnv exports variables from path without overriding the real
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
