package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rvald/veloguard/internal/listener"
	"github.com/rvald/veloguard/internal/ratelimit"
	"github.com/rvald/veloguard/internal/token"
)

// FileName is the config file looked up in the state directory.
const FileName = "veloguard.yml"

// Config is the full runtime configuration.
type Config struct {
	Tokens            []string          `yaml:"tokens"`
	TokenFile         string            `yaml:"token_file"`
	Verbose           bool              `yaml:"verbose"`
	LogLevel          string            `yaml:"log_level"`
	Messages          listener.Messages `yaml:"messages"`
	LogRateLimit      RateLimitConfig   `yaml:"log_rate_limit"`
	ExtraProtection   bool              `yaml:"extra_protection"`
	Gateway           GatewayConfig     `yaml:"gateway"`
	TokenPollInterval time.Duration     `yaml:"token_poll_interval"`

	// Path is the file this config was loaded from, empty for defaults.
	Path string `yaml:"-"`
}

// RateLimitConfig bounds how many denials are logged per interval.
type RateLimitConfig struct {
	Limit    int           `yaml:"limit"`
	Interval time.Duration `yaml:"interval"`
}

// GatewayConfig configures the sidecar server that host shims connect to.
type GatewayConfig struct {
	Port       int           `yaml:"port"`
	Bind       string        `yaml:"bind"` // "loopback" or "lan"
	AuthToken  string        `yaml:"auth_token"`
	RateLimit  float64       `yaml:"rate_limit"` // new connections per second
	RateBurst  int           `yaml:"rate_burst"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Messages: listener.DefaultMessages(),
		LogRateLimit: RateLimitConfig{
			Limit:    ratelimit.DefaultLimit,
			Interval: ratelimit.DefaultInterval,
		},
		ExtraProtection: true,
		Gateway: GatewayConfig{
			Port:       18790,
			Bind:       "loopback",
			RateLimit:  20,
			RateBurst:  40,
			SessionTTL: 30 * time.Second,
		},
		TokenPollInterval: 10 * time.Second,
	}
}

// Load reads path on top of Default and applies environment overrides.
// A missing file is reported with an error wrapping fs.ErrNotExist.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path

	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyEnv() {
	c.Gateway.Port = envInt("VELOGUARD_PORT", c.Gateway.Port)
	c.Gateway.Bind = envStr("VELOGUARD_BIND", c.Gateway.Bind)
	c.Gateway.AuthToken = envStr("VELOGUARD_AUTH_TOKEN", c.Gateway.AuthToken)
	c.LogLevel = envStr("VELOGUARD_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("VELOGUARD_TOKENS"); v != "" {
		c.Tokens = append(c.Tokens, strings.Split(v, ",")...)
	}
}

// Validate checks the settings the server cannot run without.
func (c Config) Validate() error {
	g := c.Gateway
	if g.Port <= 0 || g.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", g.Port)
	}
	if g.Bind != "loopback" && g.Bind != "lan" {
		return fmt.Errorf("invalid bind mode: %q (must be \"loopback\" or \"lan\")", g.Bind)
	}
	if g.Bind == "lan" && g.AuthToken == "" {
		return fmt.Errorf("refusing to start: bind lan requires gateway.auth_token to prevent unauthenticated access")
	}
	if g.RateLimit <= 0 || g.RateBurst <= 0 {
		return fmt.Errorf("invalid gateway rate limit: %v/s burst %d (both must be > 0)", g.RateLimit, g.RateBurst)
	}
	if g.SessionTTL <= 0 {
		return fmt.Errorf("invalid gateway.session_ttl: %s", g.SessionTTL)
	}
	if c.LogRateLimit.Limit <= 0 || c.LogRateLimit.Interval <= 0 {
		return fmt.Errorf("invalid log_rate_limit: %d per %s (both must be > 0)", c.LogRateLimit.Limit, c.LogRateLimit.Interval)
	}
	if c.TokenPollInterval < 0 {
		return fmt.Errorf("invalid token_poll_interval: %s", c.TokenPollInterval)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	return nil
}

// TokenFilePath resolves TokenFile relative to the config file.
func (c Config) TokenFilePath() string {
	if c.TokenFile == "" || filepath.IsAbs(c.TokenFile) || c.Path == "" {
		return c.TokenFile
	}
	return filepath.Join(filepath.Dir(c.Path), c.TokenFile)
}

// AllTokens merges inline tokens with the token file. Blanks and
// duplicates are dropped.
func (c Config) AllTokens() ([]string, error) {
	all := append([]string(nil), c.Tokens...)
	if path := c.TokenFilePath(); path != "" {
		fromFile, err := token.LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}

	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, t := range all {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// DefaultStateDir returns XDG_STATE_HOME/veloguard or ~/.local/state/veloguard.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "veloguard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".veloguard", "state")
	}
	return filepath.Join(home, ".local", "state", "veloguard")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
