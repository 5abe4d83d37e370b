package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Log    LogConfig    `yaml:"log"`
	Auth   AuthConfig   `yaml:"auth"`
	NATS   NATSConfig   `yaml:"nats"`
	Cache  CacheConfig  `yaml:"cache"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// AuthConfig controls API key checks. With auth disabled every request acts
// as DefaultUser in DefaultTenant.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DefaultTenant string `yaml:"default_tenant"`
	DefaultUser   string `yaml:"default_user"`
}

// NATSConfig enables event publishing when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
	MaxItems int64         `yaml:"max_items"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "tally.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Enabled:       true,
			DefaultTenant: "default",
			DefaultUser:   "admin",
		},
		NATS: NATSConfig{
			SubjectPrefix: "tally.events",
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTL:      5 * time.Minute,
			MaxItems: 10000,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
// Environment variables win over the file.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("TALLY_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("TALLY_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("TALLY_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TALLY_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("TALLY_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("TALLY_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if v := os.Getenv("TALLY_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TALLY_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	if tenant := os.Getenv("TALLY_DEFAULT_TENANT"); tenant != "" {
		cfg.Auth.DefaultTenant = tenant
	}
	if user := os.Getenv("TALLY_DEFAULT_USER"); user != "" {
		cfg.Auth.DefaultUser = user
	}
	if url := os.Getenv("TALLY_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
	if prefix := os.Getenv("TALLY_NATS_SUBJECT_PREFIX"); prefix != "" {
		cfg.NATS.SubjectPrefix = prefix
	}
	if v := os.Getenv("TALLY_CACHE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TALLY_CACHE_ENABLED: %w", err)
		}
		cfg.Cache.Enabled = enabled
	}
	if v := os.Getenv("TALLY_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TALLY_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = ttl
	}

	if cfg.Cache.MaxItems <= 0 {
		cfg.Cache.MaxItems = Default().Cache.MaxItems
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
