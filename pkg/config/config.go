package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs accept values like
// "1.5s" or "4m" as well as plain nanosecond integers.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML renders the duration in its human-readable form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts either a duration string or an integer
// nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asInt int64
	if err := value.Decode(&asInt); err == nil {
		*d = Duration(asInt)
		return nil
	}

	var asString string
	if err := value.Decode(&asString); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	parsed, err := time.ParseDuration(asString)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", asString, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all configuration options for the graph scraper
type Config struct {
	// Batch orchestration settings
	Scraper ScraperConfig `yaml:"scraper" json:"scraper"`

	// Collection loop defaults
	Scroll ScrollConfig `yaml:"scroll" json:"scroll"`

	// Account pool settings
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Postgres connection for the account pool and persistence sink
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Stored browser session settings
	Session SessionConfig `yaml:"session" json:"session"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration for adapter calls
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScraperConfig holds batch orchestration configuration
type ScraperConfig struct {
	MaxRoots        int  `yaml:"max_roots" json:"max_roots"`
	MaxConcurrency  int  `yaml:"max_concurrency" json:"max_concurrency"`
	DefaultMaxItems int  `yaml:"default_max_items" json:"default_max_items"`
	StrictSessions  bool `yaml:"strict_sessions" json:"strict_sessions"`
	Persist         bool `yaml:"persist" json:"persist"`
}

// ScrollConfig holds collection loop defaults
type ScrollConfig struct {
	MaxIterations             int      `yaml:"max_iterations" json:"max_iterations"`
	Pause                     Duration `yaml:"pause" json:"pause"`
	StagnationLimit           int      `yaml:"stagnation_limit" json:"stagnation_limit"`
	EmptyLimit                int      `yaml:"empty_limit" json:"empty_limit"`
	Timeout                   Duration `yaml:"timeout" json:"timeout"`
	Adaptive                  bool     `yaml:"adaptive" json:"adaptive"`
	AdaptiveDecayThreshold    float64  `yaml:"adaptive_decay_threshold" json:"adaptive_decay_threshold"`
	MinScrollsAfterDecay      int      `yaml:"min_scrolls_after_decay" json:"min_scrolls_after_decay"`
	MinScrollsForDirectBottom int      `yaml:"min_scrolls_for_direct_bottom" json:"min_scrolls_for_direct_bottom"`
	MinTotalForDirectBottom   int      `yaml:"min_total_for_direct_bottom" json:"min_total_for_direct_bottom"`
}

// PoolConfig holds account pool thresholds
type PoolConfig struct {
	CooldownThreshold int      `yaml:"cooldown_threshold" json:"cooldown_threshold"`
	SuspendThreshold  int      `yaml:"suspend_threshold" json:"suspend_threshold"`
	LeaseTimeout      Duration `yaml:"lease_timeout" json:"lease_timeout"`
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	DSN             string   `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// SessionConfig holds stored session settings
type SessionConfig struct {
	// Directory holding per-platform storage-state files
	Directory string `yaml:"directory" json:"directory"`
	// UseKeyring enables the system keychain backend
	UseKeyring bool `yaml:"use_keyring" json:"use_keyring"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds retry configuration for adapter calls
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64  `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			MaxRoots:        5,
			MaxConcurrency:  3,
			DefaultMaxItems: 200,
			StrictSessions:  false,
			Persist:         false,
		},
		Scroll: ScrollConfig{
			MaxIterations:             60,
			Pause:                     Duration(1500 * time.Millisecond),
			StagnationLimit:           4,
			EmptyLimit:                3,
			Timeout:                   Duration(4 * time.Minute),
			Adaptive:                  true,
			AdaptiveDecayThreshold:    1.5,
			MinScrollsAfterDecay:      3,
			MinScrollsForDirectBottom: 5,
			MinTotalForDirectBottom:   30,
		},
		Pool: PoolConfig{
			CooldownThreshold: 3,
			SuspendThreshold:  5,
			LeaseTimeout:      Duration(30 * time.Minute),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(30 * time.Minute),
		},
		Session: SessionConfig{
			Directory:  defaultSessionDir(),
			UseKeyring: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(2 * time.Second),
			MaxDelay:    Duration(time.Minute),
			Multiplier:  2.0,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

func defaultSessionDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "scr4per", "sessions")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "sessions")
	}
	return filepath.Join(home, ".config", "scr4per", "sessions")
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Config) LoadFromEnv() error {
	if dsn := os.Getenv("SCR4PER_DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if dir := os.Getenv("SCR4PER_SESSION_DIR"); dir != "" {
		c.Session.Directory = dir
	}
	if level := os.Getenv("SCR4PER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("SCR4PER_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scraper.MaxConcurrency = n
		}
	}
	if v := os.Getenv("SCR4PER_MAX_ROOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scraper.MaxRoots = n
		}
	}
	if v := os.Getenv("SCR4PER_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("SCR4PER_STRICT_SESSIONS"); v != "" {
		c.Scraper.StrictSessions = strings.ToLower(v) == "true"
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".scr4per.yaml",
		".scr4per.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "scr4per", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".scr4per.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Scraper.MaxRoots <= 0 {
		errs = append(errs, errors.New("max roots must be positive"))
	}
	if c.Scraper.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("max concurrency must be positive"))
	}
	if c.Scraper.MaxConcurrency > 10 {
		errs = append(errs, errors.New("max concurrency should not exceed 10"))
	}
	if c.Scraper.DefaultMaxItems < 0 {
		errs = append(errs, errors.New("default max items cannot be negative"))
	}

	if c.Scroll.MaxIterations <= 0 {
		errs = append(errs, errors.New("scroll max iterations must be positive"))
	}
	if c.Scroll.StagnationLimit <= 0 {
		errs = append(errs, errors.New("scroll stagnation limit must be positive"))
	}
	if c.Scroll.EmptyLimit <= 0 {
		errs = append(errs, errors.New("scroll empty limit must be positive"))
	}
	if c.Scroll.Timeout <= 0 {
		errs = append(errs, errors.New("scroll timeout must be positive"))
	}

	if c.Pool.CooldownThreshold <= 0 {
		errs = append(errs, errors.New("pool cooldown threshold must be positive"))
	}
	if c.Pool.SuspendThreshold <= c.Pool.CooldownThreshold {
		errs = append(errs, errors.New("pool suspend threshold must exceed cooldown threshold"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry max attempts cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dsn, ok := flags["database-dsn"].(string); ok && dsn != "" {
		c.Database.DSN = dsn
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency > 0 {
		c.Scraper.MaxConcurrency = concurrency
	}
	if maxItems, ok := flags["max-items"].(int); ok && maxItems > 0 {
		c.Scraper.DefaultMaxItems = maxItems
	}
	if strict, ok := flags["strict-sessions"].(bool); ok {
		c.Scraper.StrictSessions = strict
	}
	if persist, ok := flags["persist"].(bool); ok {
		c.Scraper.Persist = persist
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".scr4per.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
