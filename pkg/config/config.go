// Package config loads the proxy settings from an optional YAML file and
// the environment. Environment variables override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/cover/pkg/cache"
	"github.com/Sternrassler/cover/pkg/logging"
	"github.com/Sternrassler/cover/pkg/rules"
)

// ErrConfigNotFound indicates that no configuration file path was given.
var ErrConfigNotFound = errors.New("config file not found")

// DefaultLifetime applies to responses without freshness information.
const DefaultLifetime = time.Hour

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the complete proxy configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Redis        RedisConfig        `yaml:"redis"`
	Store        string             `yaml:"store" validate:"oneof=memory redis"`
	Cache        CacheConfig        `yaml:"cache"`
	Invalidation InvalidationConfig `yaml:"invalidation"`
	Log          LogConfig          `yaml:"log"`

	// Rules maps step names to rule lists. Empty selects rules.DefaultSteps.
	Rules map[string][]rules.Rule `yaml:"rules" validate:"dive,dive"`
}

// ServerConfig configures the HTTP listener and the proxied origin.
type ServerConfig struct {
	Port     string `yaml:"port" validate:"required,numeric"`
	Upstream string `yaml:"upstream" validate:"omitempty,url"`

	// SessionCookie names the cookie identifying a started session. Empty
	// disables per-session entries.
	SessionCookie string `yaml:"sessionCookie"`
}

// RedisConfig configures the Redis connection used by the redis store and
// the invalidation channel.
type RedisConfig struct {
	Addr   string `yaml:"addr" validate:"required"`
	Prefix string `yaml:"prefix" validate:"required"`
}

// CacheConfig mirrors cache.Config.
type CacheConfig struct {
	Context         string        `yaml:"context"`
	DefaultLifetime time.Duration `yaml:"defaultLifetime" validate:"gte=0"`
	MaxLifetime     time.Duration `yaml:"maxLifetime" validate:"gte=0"`
	VaryHeaders     []string      `yaml:"varyHeaders"`
}

// InvalidationConfig configures external invalidation triggers.
type InvalidationConfig struct {
	Channel string `yaml:"channel"`

	// Purge mounts the purge endpoint. It requires PurgeToken, which
	// callers present as a bearer token.
	Purge      bool   `yaml:"purge"`
	PurgeToken string `yaml:"purgeToken" validate:"required_if=Purge true"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error disabled off"`
	Pretty bool   `yaml:"pretty"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "cover",
		},
		Store: StoreMemory,
		Cache: CacheConfig{
			Context:         "Production",
			DefaultLifetime: DefaultLifetime,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Loader reads and validates configuration.
type Loader struct {
	validator *validator.Validate
	getenv    func(string) string
}

// NewLoader creates a loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
		getenv:    os.Getenv,
	}
}

// Load builds the configuration from defaults, the file named by
// COVER_RULES_FILE (if set) and environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	if path := l.getenv("COVER_RULES_FILE"); path != "" {
		var err error
		if cfg, err = l.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := l.validator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFromFile reads a YAML file over Defaults and validates the result.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, ErrConfigNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse YAML config: %w", err)
	}

	if err := l.validator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	cfg.Server.Port = l.env("PORT", cfg.Server.Port)
	cfg.Server.Upstream = l.env("UPSTREAM_URL", cfg.Server.Upstream)
	cfg.Server.SessionCookie = l.env("COVER_SESSION_COOKIE", cfg.Server.SessionCookie)
	cfg.Redis.Addr = l.env("REDIS_URL", cfg.Redis.Addr)
	cfg.Redis.Prefix = l.env("COVER_REDIS_PREFIX", cfg.Redis.Prefix)
	cfg.Store = l.env("COVER_STORE", cfg.Store)
	cfg.Cache.Context = l.env("COVER_CONTEXT", cfg.Cache.Context)
	cfg.Invalidation.Channel = l.env("COVER_INVALIDATION_CHANNEL", cfg.Invalidation.Channel)
	cfg.Invalidation.PurgeToken = l.env("COVER_PURGE_TOKEN", cfg.Invalidation.PurgeToken)
	cfg.Log.Level = l.env("LOG_LEVEL", cfg.Log.Level)

	if v := l.getenv("COVER_PURGE"); v != "" {
		purge, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse COVER_PURGE: %w", err)
		}
		cfg.Invalidation.Purge = purge
	}

	if v := l.getenv("COVER_DEFAULT_LIFETIME"); v != "" {
		d, err := parseLifetime(v)
		if err != nil {
			return fmt.Errorf("parse COVER_DEFAULT_LIFETIME: %w", err)
		}
		cfg.Cache.DefaultLifetime = d
	}
	if v := l.getenv("COVER_MAX_LIFETIME"); v != "" {
		d, err := parseLifetime(v)
		if err != nil {
			return fmt.Errorf("parse COVER_MAX_LIFETIME: %w", err)
		}
		cfg.Cache.MaxLifetime = d
	}
	if v := l.getenv("COVER_VARY_HEADERS"); v != "" {
		cfg.Cache.VaryHeaders = strings.Split(v, ",")
	}
	if v := l.getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse LOG_PRETTY: %w", err)
		}
		cfg.Log.Pretty = pretty
	}
	return nil
}

func (l *Loader) env(key, defaultValue string) string {
	if value := l.getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseLifetime accepts a Go duration ("5m") or a number of seconds ("300").
func parseLifetime(v string) (time.Duration, error) {
	if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// StepConfiguration orders the configured rules, falling back to the
// built-in rules when none are configured.
func (c *Config) StepConfiguration() (*rules.StepConfiguration, error) {
	steps := c.Rules
	if len(steps) == 0 {
		steps = rules.DefaultSteps()
	}
	return rules.NewStepConfiguration(steps)
}

// CacheConfig returns the cache manager settings.
func (c *Config) CacheConfig() cache.Config {
	headers := make([]string, 0, len(c.Cache.VaryHeaders))
	for _, h := range c.Cache.VaryHeaders {
		if h = strings.TrimSpace(h); h != "" {
			headers = append(headers, h)
		}
	}
	return cache.Config{
		Environment:     c.Cache.Context,
		DefaultLifetime: c.Cache.DefaultLifetime,
		MaxLifetime:     c.Cache.MaxLifetime,
		VaryHeaders:     headers,
	}
}

// LoggingConfig returns the logger settings writing to stderr.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
