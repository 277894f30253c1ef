// Package config loads the menu client configuration from a YAML file.
// Values may reference environment variables as ${NAME}; they are expanded
// before parsing, so secrets can stay in the environment or a .env file.
//
// API settings missing from the file fall back to MENU_API_URL,
// MENU_API_KEY and MENU_ACCESS_TOKEN.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/logging"
	"github.com/Sternrassler/campus-menu-client/pkg/recovery"
)

// Config represents the main configuration structure.
type Config struct {
	API          APIConfig          `yaml:"api"`
	Cache        CacheConfig        `yaml:"cache"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Recovery     RecoveryConfig     `yaml:"recovery"`
	Logging      logging.Config     `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// APIConfig describes the menu backend.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	AnonKey     string        `yaml:"anon_key"`
	AccessToken string        `yaml:"access_token"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// CacheConfig configures the cache tiers.
type CacheConfig struct {
	Dir            string        `yaml:"dir" validate:"required"`
	Policy         string        `yaml:"policy" validate:"omitempty,oneof=default short_term long_term"`
	MemoryEntries  int           `yaml:"memory_entries" validate:"gte=0"`
	MaxMemoryBytes int64         `yaml:"max_memory_bytes" validate:"gte=0"`
	MaxDiskBytes   int64         `yaml:"max_disk_bytes" validate:"gte=0"`
	SweepInterval  time.Duration `yaml:"sweep_interval" validate:"gte=0"`
	Redis          RedisConfig   `yaml:"redis"`
}

// RedisConfig selects a shared Redis tier instead of the disk tier.
// An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

// ConnectivityConfig configures the connectivity monitor. An empty
// ProbeURL probes the API base URL.
type ConnectivityConfig struct {
	ProbeURL string        `yaml:"probe_url" validate:"omitempty,url"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

// RecoveryConfig holds the strategy delays and the AI service probe target.
type RecoveryConfig struct {
	recovery.Config `yaml:",inline"`

	AIProbeURL string `yaml:"ai_probe_url" validate:"omitempty,url"`
}

// MetricsConfig configures the metrics endpoint of the serve command.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
}

// Default returns the configuration used for fields missing from the file.
func Default() Config {
	return Config{
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Dir:           defaultCacheDir(),
			Policy:        cache.DefaultPolicy.Name,
			MemoryEntries: cache.DefaultMemoryEntries,
			SweepInterval: 10 * time.Minute,
			Redis: RedisConfig{
				Prefix: cache.DefaultRedisPrefix,
			},
		},
		Connectivity: ConnectivityConfig{
			Interval: 30 * time.Second,
			Timeout:  2 * time.Second,
		},
		Recovery: RecoveryConfig{
			Config: recovery.DefaultConfig(),
		},
		Logging: logging.Config{
			Level: logging.LevelInfo,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "campus-menu")
}

// Load reads the file at path over the defaults and validates the result.
// An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		cfg.applyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Environment fallbacks for the API section.
const (
	EnvAPIURL      = "MENU_API_URL"
	EnvAPIKey      = "MENU_API_KEY"
	EnvAccessToken = "MENU_ACCESS_TOKEN"
)

func (c *Config) applyEnv() {
	setIfEmpty(&c.API.BaseURL, EnvAPIURL)
	setIfEmpty(&c.API.AnonKey, EnvAPIKey)
	setIfEmpty(&c.API.AccessToken, EnvAccessToken)
}

func setIfEmpty(field *string, env string) {
	if *field == "" {
		*field = os.Getenv(env)
	}
}

// Validate checks the struct constraints and the cache policy name.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.CachePolicy(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CachePolicy resolves the named preset and applies the configured size
// overrides.
func (c *Config) CachePolicy() (cache.Policy, error) {
	policy, err := cache.PolicyByName(c.Cache.Policy)
	if err != nil {
		return cache.Policy{}, err
	}
	if c.Cache.MaxMemoryBytes > 0 {
		policy.MaxMemoryBytes = c.Cache.MaxMemoryBytes
	}
	if c.Cache.MaxDiskBytes > 0 {
		policy.MaxDiskBytes = c.Cache.MaxDiskBytes
	}
	return policy, nil
}

// ProbeURL is the connectivity probe target.
func (c *Config) ProbeURL() string {
	if c.Connectivity.ProbeURL != "" {
		return c.Connectivity.ProbeURL
	}
	return c.API.BaseURL
}
