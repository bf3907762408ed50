package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration, read from a YAML file and
// overridden by environment variables.
type Config struct {
	Database Database `yaml:"database"`
	API      API      `yaml:"api"`
	Redis    Redis    `yaml:"redis"`
}

type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`

	// URL takes precedence over the discrete fields when set.
	URL string `yaml:"url"`
}

type API struct {
	Port            int    `yaml:"port"`
	SecretKey       string `yaml:"secret_key"`
	CorsOrigin      string `yaml:"cors_origin"`
	RateLimitMax    int    `yaml:"rate_limit_max"`
	RateLimitWindow int    `yaml:"rate_limit_window"` // seconds
	TokenTTLHours   int    `yaml:"token_ttl_hours"`
}

type Redis struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{
		Database: Database{
			Host: "localhost",
			Port: 5432,
		},
		API: API{
			Port:            8080,
			CorsOrigin:      "*",
			RateLimitMax:    60,
			RateLimitWindow: 60,
			TokenTTLHours:   24,
		},
	}
}

// Load reads the YAML file at path (if path is non-empty), then applies
// environment overrides. A .env file in the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		c.Database.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		c.API.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGIN")); v != "" {
		c.API.CorsOrigin = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.API.Port = port
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_TX_MAX")); v != "" {
		max, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_TX_MAX: %w", err)
		}
		c.API.RateLimitMax = max
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_TX_WINDOW_SECONDS")); v != "" {
		window, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_TX_WINDOW_SECONDS: %w", err)
		}
		c.API.RateLimitWindow = window
	}
	return nil
}

// ValidateDatabase checks only what a database client needs.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL != "" {
		return nil
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user cannot be empty")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	return nil
}

// Validate checks everything the API server needs.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.API.SecretKey == "" {
		return fmt.Errorf("api secret_key (JWT_SECRET) cannot be empty")
	}
	if len(c.API.SecretKey) < 16 {
		return fmt.Errorf("api secret_key must be at least 16 characters long")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}
	if c.API.RateLimitMax <= 0 {
		return fmt.Errorf("rate limit max must be greater than 0")
	}
	if c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be greater than 0")
	}
	if c.API.TokenTTLHours <= 0 {
		return fmt.Errorf("token ttl must be greater than 0")
	}
	return nil
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.DBName,
	}
	if c.Database.Password != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	} else {
		u.User = url.User(c.Database.User)
	}
	return u.String()
}

// ListenAddr returns the API listen address in :port format.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.API.Port)
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.API.RateLimitWindow) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.API.TokenTTLHours) * time.Hour
}
