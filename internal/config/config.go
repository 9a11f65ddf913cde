package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Filters   FiltersConfig   `yaml:"filters"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Import names a JSON dump loaded into the store at startup.
	Import string `yaml:"import"`
}

type FiltersConfig struct {
	SystemPath string `yaml:"system_path"`
	CustomPath string `yaml:"custom_path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Driver: "sqlite",
			DSN:    "lineage.db",
		},
		Filters: FiltersConfig{
			SystemPath: "system_filters.yaml",
			CustomPath: "custom_filters.yaml",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("LINEAGE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LINEAGE_SERVER_HOST":    &cfg.Server.Host,
		"LINEAGE_DB_DRIVER":      &cfg.DB.Driver,
		"LINEAGE_DB_DSN":         &cfg.DB.DSN,
		"LINEAGE_DB_IMPORT":      &cfg.DB.Import,
		"LINEAGE_SYSTEM_FILTERS": &cfg.Filters.SystemPath,
		"LINEAGE_CUSTOM_FILTERS": &cfg.Filters.CustomPath,
		"LINEAGE_LOG_LEVEL":      &cfg.Log.Level,
		"LINEAGE_LOG_PATH":       &cfg.Log.Path,
		"LINEAGE_TRANSPORT":      &cfg.Transport.Mode,
		"LINEAGE_AUTH_TOKEN":     &cfg.Auth.Token,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if portStr := os.Getenv("LINEAGE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid LINEAGE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if enabled := os.Getenv("LINEAGE_AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid LINEAGE_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = v
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("unsupported transport mode %q", c.Transport.Mode)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Log.Level)
	}
	if c.Auth.Enabled && c.Transport.Mode == "http" && c.Auth.Token == "" {
		return fmt.Errorf("auth is enabled but no token is configured")
	}
	if c.Filters.CustomPath == "" {
		return fmt.Errorf("custom filter path is required")
	}
	return nil
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
