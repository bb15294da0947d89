// Package config loads gateway configuration from a YAML file with
// environment variable overrides. Secrets may be referenced as ${VAR}
// and are substituted from the environment after load.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment override keys, e.g.
// ROUTER_SERVER__PORT=9090 sets server.port.
const EnvPrefix = "ROUTER_"

// DefaultProviderTimeout bounds an upstream call when the provider does
// not configure its own timeout.
const DefaultProviderTimeout = 30 * time.Second

type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Logging   LoggingConfig    `koanf:"logging"`
	Telemetry TelemetryConfig  `koanf:"telemetry"`
	Routing   RoutingConfig    `koanf:"routing"`
	Providers []ProviderConfig `koanf:"providers"`
	Keys      []APIKeyConfig   `koanf:"keys"`
	RateLimit RateLimitConfig  `koanf:"rate_limit"`
	Credits   CreditsConfig    `koanf:"credits"`
	Usage     UsageConfig      `koanf:"usage"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	RequestTimeout  string `koanf:"request_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// RequestTimeoutOrDefault returns the parsed request timeout.
func (s ServerConfig) RequestTimeoutOrDefault() time.Duration {
	return parseDuration(s.RequestTimeout, 60*time.Second)
}

// ShutdownTimeoutOrDefault returns the parsed drain timeout.
func (s ServerConfig) ShutdownTimeoutOrDefault() time.Duration {
	return parseDuration(s.ShutdownTimeout, 30*time.Second)
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type RoutingConfig struct {
	// Strict disables fuzzy model matching and the priority fallback:
	// a model that no provider lists is rejected instead of routed.
	Strict bool `koanf:"strict"`
}

// ProviderConfig describes one upstream provider. The list is immutable
// after load.
type ProviderConfig struct {
	Name         string   `koanf:"name"`
	DisplayName  string   `koanf:"display_name"`
	Type         string   `koanf:"type"` // openai or anthropic
	APIKey       string   `koanf:"api_key"`
	BaseURL      string   `koanf:"base_url"` // custom API endpoint
	Models       []string `koanf:"models"`
	DefaultModel string   `koanf:"default_model"` // injected when a request omits the model
	Priority     int      `koanf:"priority"`      // lower routes first
	Active       bool     `koanf:"active"`
	RPM          int      `koanf:"rpm"` // advisory provider-side limits
	TPM          int      `koanf:"tpm"`
	Timeout      string   `koanf:"timeout"` // duration string like "30s"
	Retries      int      `koanf:"retries"` // carried for operators; the gateway never retries
}

// RequestTimeout returns the per-provider upstream timeout.
func (p ProviderConfig) RequestTimeout() time.Duration {
	return parseDuration(p.Timeout, DefaultProviderTimeout)
}

// Default returns the model injected when a request omits one: the
// configured default, or the first listed model.
func (p ProviderConfig) Default() string {
	if p.DefaultModel != "" {
		return p.DefaultModel
	}
	if len(p.Models) > 0 {
		return p.Models[0]
	}
	return ""
}

// HasModel reports whether the provider lists the given model.
func (p ProviderConfig) HasModel(model string) bool {
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}

// APIKeyConfig is one caller credential. KeyHash is the SHA-256 hex of
// the raw key (see cmd/keygen); raw keys never appear in config.
type APIKeyConfig struct {
	KeyHash     string   `koanf:"key_hash"`
	Name        string   `koanf:"name"`
	Description string   `koanf:"description"`
	RPM         int      `koanf:"rpm"`     // per-key overrides; zero inherits rate_limit defaults
	TPM         int      `koanf:"tpm"`
	Credits     *float64 `koanf:"credits"` // starting balance; nil inherits credits.default_balance
}

type RateLimitConfig struct {
	RPM      int    `koanf:"rpm"`
	TPM      int    `koanf:"tpm"`
	IPLimit  int    `koanf:"ip_limit"`
	IPWindow string `koanf:"ip_window"`
}

// IPResetWindow returns the parsed global IP limiter window.
func (r RateLimitConfig) IPResetWindow() time.Duration {
	return parseDuration(r.IPWindow, 15*time.Minute)
}

type CreditsConfig struct {
	DefaultBalance float64 `koanf:"default_balance"`
}

type UsageConfig struct {
	Backend  string         `koanf:"backend"` // memory, sql, redis
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres
	DSN    string `koanf:"dsn"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Stream   string `koanf:"stream"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the config file at path (default "config.yaml"; a missing
// file is fine), overlays ROUTER_ environment variables, applies
// defaults, substitutes ${VAR} references, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = "config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Environment variables override file config. Double underscore
	// separates nesting levels so single underscores survive in key
	// names: ROUTER_RATE_LIMIT__RPM→rate_limit.rpm.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":             8080,
		"server.request_timeout":  "60s",
		"server.shutdown_timeout": "30s",
		"logging.level":           "info",
		"rate_limit.rpm":          60,
		"rate_limit.tpm":          100000,
		"rate_limit.ip_limit":     1000,
		"rate_limit.ip_window":    "15m",
		"credits.default_balance": 10.0,
		"usage.backend":           "memory",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

// expandEnv substitutes ${VAR} references in credential-bearing fields.
func (c *Config) expandEnv() {
	for i := range c.Providers {
		c.Providers[i].APIKey = substituteEnvVars(c.Providers[i].APIKey)
	}
	c.Usage.Database.DSN = substituteEnvVars(c.Usage.Database.DSN)
	c.Usage.Redis.Password = substituteEnvVars(c.Usage.Redis.Password)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks structural invariants the rest of the gateway relies
// on. Provider types are checked later against the adapter factories.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true
		if p.Type == "" {
			return fmt.Errorf("provider %s: type is required", p.Name)
		}
		if p.Active && len(p.Models) == 0 {
			return fmt.Errorf("provider %s: active providers need at least one model", p.Name)
		}
		if p.DefaultModel != "" && !p.HasModel(p.DefaultModel) {
			return fmt.Errorf("provider %s: default_model %q is not in its model list", p.Name, p.DefaultModel)
		}
		if err := checkDuration(p.Timeout, "provider "+p.Name+" timeout"); err != nil {
			return err
		}
	}

	for i, key := range c.Keys {
		if key.KeyHash == "" {
			return fmt.Errorf("keys[%d]: key_hash is required", i)
		}
		if key.Name == "" {
			return fmt.Errorf("keys[%d]: name is required", i)
		}
	}

	switch c.Usage.Backend {
	case "", "memory", "sql", "redis":
	default:
		return fmt.Errorf("usage.backend %q is not one of memory, sql, redis", c.Usage.Backend)
	}
	if c.Usage.Backend == "sql" && c.Usage.Database.Driver == "" {
		return errors.New("usage.database.driver is required for the sql backend")
	}
	if c.Usage.Backend == "redis" && c.Usage.Redis.Addr == "" {
		return errors.New("usage.redis.addr is required for the redis backend")
	}

	for _, d := range []struct{ field, value string }{
		{"server.request_timeout", c.Server.RequestTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"rate_limit.ip_window", c.RateLimit.IPWindow},
	} {
		if err := checkDuration(d.value, d.field); err != nil {
			return err
		}
	}
	return nil
}

// Provider returns the named provider config.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func checkDuration(value, field string) error {
	if value == "" {
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%s: invalid duration %q", field, value)
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
