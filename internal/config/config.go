package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/dbmeta/internal/adapter"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	LogFormat   string            `yaml:"log_format"` // "text" or "json"
	Output      string            `yaml:"output"`     // "json" or "yaml"
	Concurrent  bool              `yaml:"concurrent"`
	Theme       string            `yaml:"theme"`
	Audit       AuditConfig       `yaml:"audit"`
	History     HistoryConfig     `yaml:"history"`
	Connections []SavedConnection `yaml:"connections"`
}

// AuditConfig controls the JSON Lines audit log of sync runs.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// HistoryConfig controls the snapshot history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// SavedConnection holds parameters for a saved database connection. DSN,
// when set, takes precedence over the individual fields.
type SavedConnection struct {
	Name     string `yaml:"name"`
	Engine   string `yaml:"engine"`
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Output:    "json",
		Theme:     "default",
		Audit: AuditConfig{
			MaxSizeMB: 10,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the dbmeta configuration directory path, typically
// ~/.config/dbmeta/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "dbmeta"), nil
}

// DefaultPath is ConfigDir()/config.yaml.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads a Config from the YAML file at path. If the file does not exist,
// it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from DefaultPath.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// AuditPath returns the configured audit log path or
// ConfigDir()/audit.jsonl.
func (c *Config) AuditPath() (string, error) {
	return c.pathOr(c.Audit.Path, "audit.jsonl")
}

// HistoryPath returns the configured history database path or
// ConfigDir()/history.db.
func (c *Config) HistoryPath() (string, error) {
	return c.pathOr(c.History.Path, "history.db")
}

func (c *Config) pathOr(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Connection returns the saved connection called name.
func (c *Config) Connection(name string) (*SavedConnection, error) {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], nil
		}
	}
	return nil, adapter.ArgumentError("config", "no saved connection named %q", name)
}

// ConnectionConfig converts the saved connection into validated driver
// parameters.
func (sc *SavedConnection) ConnectionConfig() (adapter.ConnectionConfig, error) {
	if sc.DSN != "" {
		return adapter.ParseDSN(sc.DSN)
	}
	engine, err := adapter.ParseEngine(sc.Engine)
	if err != nil {
		return adapter.ConnectionConfig{}, err
	}
	cfg := adapter.ConnectionConfig{
		Engine:   engine,
		Host:     sc.Host,
		Port:     sc.Port,
		Username: sc.User,
		Password: sc.Password,
		Database: sc.Database,
	}
	if err := cfg.Validate(); err != nil {
		return adapter.ConnectionConfig{}, err
	}
	return cfg, nil
}

// DisplayString returns a human-readable representation of the connection
// with the password left out.
func (sc *SavedConnection) DisplayString() string {
	if cfg, err := sc.ConnectionConfig(); err == nil {
		return cfg.String()
	}
	return fmt.Sprintf("%s://%s", sc.Engine, sc.Database)
}

// Environment variables consulted by ApplyEnv.
const (
	EnvEngine   = "DBMETA_ENGINE"
	EnvHost     = "DBMETA_HOST"
	EnvPort     = "DBMETA_PORT"
	EnvUser     = "DBMETA_USER"
	EnvPassword = "DBMETA_PASSWORD"
	EnvDatabase = "DBMETA_DATABASE"
)

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. An empty path tries ./.env and ignores its absence; a named
// file must exist.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays the DBMETA_* variables that are set onto cfg.
func ApplyEnv(cfg *adapter.ConnectionConfig) error {
	if v := os.Getenv(EnvEngine); v != "" {
		e, err := adapter.ParseEngine(v)
		if err != nil {
			return err
		}
		cfg.Engine = e
	}
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return adapter.ArgumentError("config", "%s: invalid port %q", EnvPort, v)
		}
		cfg.Port = port
	}
	if v := os.Getenv(EnvUser); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		cfg.Database = v
	}
	return nil
}
