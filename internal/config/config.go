// Package config provides centralized configuration management for the
// slugnotes application. It loads configuration from an optional YAML file,
// environment variables, and CLI flags, validates required fields, and
// provides sensible defaults.
//
// Precedence, lowest to highest: defaults, YAML file, environment, flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slugnotes/slugnotes/internal/ratelimit"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string
	BaseURL    string

	// Database and encryption
	DataDir         string        // Directory holding the SQLite database
	DBKey           string        // Optional SQLCipher key, 64 hex characters (32 bytes)
	SessionDuration time.Duration // How long sessions remain valid

	// Rate limiting
	RateLimitConfig ratelimit.Config
}

// fileConfig mirrors Config for the optional YAML config file.
type fileConfig struct {
	ListenAddr      string  `yaml:"listen_addr"`
	BaseURL         string  `yaml:"base_url"`
	DataDir         string  `yaml:"data_dir"`
	DBKey           string  `yaml:"db_key"`
	SessionDuration string  `yaml:"session_duration"`
	RateLimitUser   float64 `yaml:"rate_limit_user_rps"`
	RateLimitAnon   float64 `yaml:"rate_limit_anon_rps"`
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
func ParseFlags() (configPath, addr, dataDir string) {
	flag.StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	flag.StringVar(&dataDir, "data-dir", "", "Data directory (default ./data, overrides DATA_DIR env var)")
	flag.Parse()
	return configPath, addr, dataDir
}

// LoadConfig loads configuration. The addr and dataDir flag values override
// their env vars when non-empty.
func LoadConfig(configPath, addr, dataDir string) (*Config, error) {
	cfg := &Config{
		ListenAddr:      ":8080",
		BaseURL:         "",
		DataDir:         "./data",
		SessionDuration: 30 * 24 * time.Hour,
		RateLimitConfig: ratelimit.DefaultConfig,
	}

	if configPath != "" {
		if err := applyFile(cfg, configPath); err != nil {
			return nil, err
		}
	}

	// Environment overrides the file
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.BaseURL = getEnvOrDefault("BASE_URL", cfg.BaseURL)
	cfg.DataDir = getEnvOrDefault("DATA_DIR", cfg.DataDir)
	cfg.DBKey = getEnvOrDefault("DB_KEY", cfg.DBKey)
	cfg.SessionDuration = parseDurationOrDefault("SESSION_DURATION", cfg.SessionDuration)
	cfg.RateLimitConfig = ratelimit.Config{
		UserRPS:         parseFloat64OrDefault("RATE_LIMIT_USER_RPS", cfg.RateLimitConfig.UserRPS),
		UserBurst:       parseIntOrDefault("RATE_LIMIT_USER_BURST", cfg.RateLimitConfig.UserBurst),
		AnonRPS:         parseFloat64OrDefault("RATE_LIMIT_ANON_RPS", cfg.RateLimitConfig.AnonRPS),
		AnonBurst:       parseIntOrDefault("RATE_LIMIT_ANON_BURST", cfg.RateLimitConfig.AnonBurst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", cfg.RateLimitConfig.CleanupInterval),
	}

	// Flags override everything
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.DBKey != "" {
		cfg.DBKey = fc.DBKey
	}
	if fc.SessionDuration != "" {
		d, err := time.ParseDuration(fc.SessionDuration)
		if err != nil {
			return fmt.Errorf("parse config file %s: session_duration: %w", path, err)
		}
		cfg.SessionDuration = d
	}
	if fc.RateLimitUser > 0 {
		cfg.RateLimitConfig.UserRPS = fc.RateLimitUser
	}
	if fc.RateLimitAnon > 0 {
		cfg.RateLimitConfig.AnonRPS = fc.RateLimitAnon
	}
	return nil
}

// Validate checks that all configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if c.DataDir == "" {
		errs = append(errs, "DATA_DIR must not be empty")
	}

	// Database encryption is optional; when a key is set it must be a full one.
	if c.DBKey != "" {
		if len(c.DBKey) != 64 {
			errs = append(errs, "DB_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		} else if !isHex(c.DBKey) {
			errs = append(errs, "DB_KEY must be hex encoded")
		}
	}

	if c.SessionDuration <= 0 {
		errs = append(errs, "SESSION_DURATION must be positive")
	}
	if c.RateLimitConfig.UserRPS <= 0 {
		errs = append(errs, "RATE_LIMIT_USER_RPS must be positive")
	}
	if c.RateLimitConfig.UserBurst <= 0 {
		errs = append(errs, "RATE_LIMIT_USER_BURST must be positive")
	}
	if c.RateLimitConfig.AnonRPS <= 0 {
		errs = append(errs, "RATE_LIMIT_ANON_RPS must be positive")
	}
	if c.RateLimitConfig.AnonBurst <= 0 {
		errs = append(errs, "RATE_LIMIT_ANON_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// RequireSecureCookies returns true if secure cookies should be required.
// Returns false for localhost development URLs.
func (c *Config) RequireSecureCookies() bool {
	return !strings.HasPrefix(c.BaseURL, "http://localhost") &&
		!strings.HasPrefix(c.BaseURL, "http://127.0.0.1")
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "slugnotes server starting...")
	if c.DBKey != "" {
		fmt.Fprintln(os.Stderr, "  DB:      Encrypted SQLite (DB_KEY set)")
	} else {
		fmt.Fprintln(os.Stderr, "  DB:      Plain SQLite (no DB_KEY)")
	}
	fmt.Fprintf(os.Stderr, "  Data:    %s\n", c.DataDir)
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base:    %s\n", c.BaseURL)
	fmt.Fprintf(os.Stderr, "  Session: %s\n", c.SessionDuration)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}

// MustLoadConfig loads configuration and panics if validation fails.
// Use this in main() when you want the application to fail fast on bad config.
func MustLoadConfig(configPath, addr, dataDir string) *Config {
	cfg, err := LoadConfig(configPath, addr, dataDir)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
