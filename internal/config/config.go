// Package config loads the application configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the file or a field is absent.
const (
	DefaultDSN        = "flowledger.sqlite3"
	DefaultServerAddr = ":8317"
	DefaultLogLevel   = "info"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "FLOWLEDGER_CONFIG"

// DatabaseConfig selects the backing store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // sqlite path or postgres DSN.
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, host:port.
}

// SchedulerConfig controls the periodic evaluation tick.
type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"` // Whether the cron loop runs.
	Spec    string `yaml:"spec"`    // Cron spec, hourly when empty.
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"` // logrus level name.
	File  string `yaml:"file"`  // Rotating log file, stderr-only when empty.
}

// Config is the full application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database:  DatabaseConfig{DSN: DefaultDSN},
		Server:    ServerConfig{Addr: DefaultServerAddr},
		Scheduler: SchedulerConfig{Enabled: true},
		Log:       LogConfig{Level: DefaultLogLevel},
	}
}

// ResolveConfigPath picks the config file path: the explicit argument
// wins, then the environment override, then the conventional name.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fromEnv := os.Getenv(EnvConfigPath); fromEnv != "" {
		return fromEnv
	}
	return "config.yaml"
}

// Load reads the config file, falling back to defaults when it does
// not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if errDecode := yaml.Unmarshal(data, cfg); errDecode != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errDecode)
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = DefaultDSN
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	return cfg, nil
}
