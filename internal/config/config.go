// Package config loads server configuration with layered precedence:
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "15m" parse.
type Duration time.Duration

// UnmarshalYAML parses a duration string such as "15m" or "1h".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RatePolicy is one route class's rate-limit setting.
type RatePolicy struct {
	Window Duration `yaml:"window"`
	Max    int      `yaml:"max"`
}

// RateLimits holds the per-route-class policies plus the failed-login
// counter's policy.
type RateLimits struct {
	Auth         RatePolicy `yaml:"auth"`
	Transactions RatePolicy `yaml:"transactions"`
	Analytics    RatePolicy `yaml:"analytics"`
	General      RatePolicy `yaml:"general"`
	FailedLogins RatePolicy `yaml:"failed_logins"`
}

// Config holds all server settings.
type Config struct {
	Addr         string     `yaml:"addr"`
	DBPath       string     `yaml:"db_path"`
	JWTSecret    string     `yaml:"jwt_secret"`
	TokenTTL     Duration   `yaml:"token_ttl"`
	SecureCookie bool       `yaml:"secure_cookie"`
	RateLimits   RateLimits `yaml:"rate_limits"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:     ":8080",
		DBPath:   "finance.db",
		TokenTTL: Duration(7 * 24 * time.Hour),
		RateLimits: RateLimits{
			Auth:         RatePolicy{Window: Duration(15 * time.Minute), Max: 5},
			Transactions: RatePolicy{Window: Duration(time.Hour), Max: 100},
			Analytics:    RatePolicy{Window: Duration(time.Hour), Max: 50},
			General:      RatePolicy{Window: Duration(time.Hour), Max: 200},
			FailedLogins: RatePolicy{Window: Duration(15 * time.Minute), Max: 20},
		},
	}
}

// Load builds the configuration: defaults, overlaid with the YAML file at
// path (when non-empty), overlaid with environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.fromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) fromEnv() {
	if v := os.Getenv("ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TokenTTL = Duration(d)
		}
	}
	if v := os.Getenv("SECURE_COOKIE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SecureCookie = b
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required (set JWT_SECRET or jwt_secret in the config file)")
	}
	if c.Addr == "" {
		return errors.New("listen address is required")
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	for name, p := range map[string]RatePolicy{
		"auth":          c.RateLimits.Auth,
		"transactions":  c.RateLimits.Transactions,
		"analytics":     c.RateLimits.Analytics,
		"general":       c.RateLimits.General,
		"failed_logins": c.RateLimits.FailedLogins,
	} {
		if p.Window <= 0 || p.Max <= 0 {
			return fmt.Errorf("rate limit %q must have a positive window and max", name)
		}
	}
	return nil
}
