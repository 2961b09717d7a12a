// Package config resolves runtime settings from defaults, an optional TOML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Duration is a time.Duration that decodes from strings like "10m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// storage
	StoreBackend string `toml:"store_backend"`
	StorePath    string `toml:"store_path"`
	DBPath       string `toml:"db_path"`

	// model
	ModelPath string `toml:"model_path"`
	ModelURL  string `toml:"model_url"`

	// web
	TemplateDir  string   `toml:"template_dir"`
	StaticDir    string   `toml:"static_dir"`
	SecureCookie bool     `toml:"secure_cookie"`
	CORSOrigins  []string `toml:"cors_origins"`

	// auth
	PasswordScheme         string   `toml:"password_scheme"`
	SessionCleanupInterval Duration `toml:"session_cleanup_interval"`
	AdminUser              string   `toml:"-"`
	AdminPassword          string   `toml:"-"`

	// logging
	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	LogToStdout bool   `toml:"log_to_stdout"`
	LogJSON     bool   `toml:"log_json"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:                   8080,
		StoreBackend:           BackendJSON,
		StorePath:              "users.json",
		DBPath:                 "fitness.db",
		ModelPath:              "calories_model.json",
		TemplateDir:            "web/templates",
		StaticDir:              "web/static",
		PasswordScheme:         "sha256",
		SessionCleanupInterval: Duration{time.Hour},
		LogLevel:               "info",
		LogToStdout:            true,
	}
}

// Load builds the config. A missing file at path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) validate() error {
	c.StoreBackend = strings.ToLower(c.StoreBackend)
	switch c.StoreBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Host = getEnv("LISTEN_HOST", c.Host)
	c.Port = getIntEnv("PORT", c.Port)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.StorePath = getEnv("STORE_PATH", c.StorePath)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ModelURL = getEnv("MODEL_URL", c.ModelURL)
	c.TemplateDir = getEnv("TEMPLATE_DIR", c.TemplateDir)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.SecureCookie = getBoolEnv("SECURE_COOKIE", c.SecureCookie)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.CORSOrigins = splitAndTrim(origins)
	}
	c.PasswordScheme = getEnv("PASSWORD_SCHEME", c.PasswordScheme)
	c.SessionCleanupInterval.Duration = getDurationEnv("SESSION_CLEANUP_INTERVAL", c.SessionCleanupInterval.Duration)
	c.AdminUser = getEnv("ADMIN_USER", c.AdminUser)
	c.AdminPassword = getEnv("ADMIN_PASSWORD", c.AdminPassword)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.LogToStdout = getBoolEnv("LOG_TO_STDOUT", c.LogToStdout)
	c.LogJSON = getBoolEnv("LOG_JSON", c.LogJSON)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
