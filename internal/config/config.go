// Package config loads and validates the JSON configuration document
// described in spec.md §6, with secret material optionally overridden
// from the environment the way services/auth/internal/config favors
// environment-driven secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server holds the bind endpoint and worker count.
type Server struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	Threads int    `json:"threads"`
}

// SSL holds paths to the TLS material.
type SSL struct {
	CertificateFile string `json:"certificate_file"`
	PrivateKeyFile  string `json:"private_key_file"`
	DHParamsFile    string `json:"dh_params_file"`
}

// Database holds the store DSN components and pool sizing.
type Database struct {
	Address           string `json:"address"`
	Port              int    `json:"port"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	DBName            string `json:"db_name"`
	MaxConnections    int    `json:"max_connections"`
	ConnectionTimeout int    `json:"connection_timeout"`
}

// JWT holds the signing secret and token lifetimes.
type JWT struct {
	SecretKey                string `json:"secret_key"`
	AccessTokenExpiryMinutes int    `json:"access_token_expiry_minutes"`
	RefreshTokenExpiryDays   int    `json:"refresh_token_expiry_days"`
}

// Logging holds the logger's sink configuration.
type Logging struct {
	Level         string `json:"level"`
	AccessLog     string `json:"access_log"`
	ErrorLog      string `json:"error_log"`
	ConsoleOutput bool   `json:"console_output"`
	LogAccess     bool   `json:"log_access"`
}

// Config is the full recognized JSON document (§6).
type Config struct {
	Server   Server   `json:"server"`
	SSL      SSL      `json:"ssl"`
	Database Database `json:"database"`
	JWT      JWT      `json:"jwt"`
	Logging  Logging  `json:"logging"`
}

// envOverrides is the narrow set of secret fields that may be
// supplied via the environment instead of the config file, applied
// after the JSON load.
type envOverrides struct {
	JWTSecretKey     string `env:"JWT_SECRET_KEY"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
}

// validLoggingLevels enumerates §6's accepted logging.level values.
var validLoggingLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warning": true, "error": true, "fatal": true,
}

// Load reads and parses the JSON document at path, applies any
// environment secret overrides, and validates the result. Every
// failure carries the specific missing/invalid key, matching
// ConfigManager's "clear error message for missing required keys"
// behavior (SPEC_FULL.md, SUPPLEMENTED FEATURES).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment overrides: %w", err)
	}
	if overrides.JWTSecretKey != "" {
		cfg.JWT.SecretKey = overrides.JWTSecretKey
	}
	if overrides.DatabasePassword != "" {
		cfg.Database.Password = overrides.DatabasePassword
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every required key and range described in §6,
// returning the first violation found.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("config: missing required key server.address")
	}
	if c.Server.Port < 1 || c.Server.Port > 65534 {
		return fmt.Errorf("config: server.port must be in [1,65535), got %d", c.Server.Port)
	}
	if c.Server.Threads < 1 || c.Server.Threads > 1024 {
		return fmt.Errorf("config: server.threads must be in [1,1024], got %d", c.Server.Threads)
	}

	for key, path := range map[string]string{
		"ssl.certificate_file": c.SSL.CertificateFile,
		"ssl.private_key_file": c.SSL.PrivateKeyFile,
	} {
		if path == "" {
			return fmt.Errorf("config: missing required key %s", key)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config: %s does not exist: %s", key, path)
		}
	}
	if c.SSL.DHParamsFile != "" {
		if _, err := os.Stat(c.SSL.DHParamsFile); err != nil {
			return fmt.Errorf("config: ssl.dh_params_file does not exist: %s", c.SSL.DHParamsFile)
		}
	}

	if c.Database.Address == "" {
		return fmt.Errorf("config: missing required key database.address")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: missing required key database.db_name")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("config: database.max_connections must be >= 1, got %d", c.Database.MaxConnections)
	}
	if c.Database.ConnectionTimeout < 1 {
		return fmt.Errorf("config: database.connection_timeout must be >= 1 second, got %d", c.Database.ConnectionTimeout)
	}

	if c.JWT.SecretKey == "" {
		return fmt.Errorf("config: missing required key jwt.secret_key")
	}
	if c.JWT.AccessTokenExpiryMinutes < 1 || c.JWT.AccessTokenExpiryMinutes > 525600 {
		return fmt.Errorf("config: jwt.access_token_expiry_minutes out of range, got %d", c.JWT.AccessTokenExpiryMinutes)
	}
	if c.JWT.RefreshTokenExpiryDays < 1 {
		return fmt.Errorf("config: jwt.refresh_token_expiry_days must be >= 1, got %d", c.JWT.RefreshTokenExpiryDays)
	}

	if c.Logging.Level != "" && !validLoggingLevels[c.Logging.Level] {
		return fmt.Errorf("config: logging.level %q is not one of trace|debug|info|warning|error|fatal", c.Logging.Level)
	}

	return nil
}

// DSN builds a Postgres connection string from the database section.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.Username, c.Database.Password, c.Database.Address, c.Database.Port, c.Database.DBName)
}

// AccessTokenExpiry converts the configured minutes into a
// time.Duration.
func (c *Config) AccessTokenExpiry() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpiryMinutes) * time.Minute
}

// RefreshTokenExpiry converts the configured days into a
// time.Duration.
func (c *Config) RefreshTokenExpiry() time.Duration {
	return time.Duration(c.JWT.RefreshTokenExpiryDays) * 24 * time.Hour
}

// ConnectTimeout converts the configured seconds into a
// time.Duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Database.ConnectionTimeout) * time.Second
}
