// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/report-composer/internal/results"
)

// Defaults applied by MergeWithDefaults when a field is left empty.
const (
	DefaultPort              = 8080
	DefaultLocale            = "en_US"
	DefaultDateLayout        = "January 2, 2006"
	DefaultSummaryLabel      = "Summary"
	DefaultUploadConcurrency = 1
	DefaultFetchTimeout      = 30
	DefaultMaxUploadBytes    = results.MaxFileSize
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
)

// Config represents the engine configuration. It can be loaded from a JSON or YAML
// file and overridden from the environment.
type Config struct {
	// Backend
	BackendURL  string `json:"backend_url,omitempty" yaml:"backend_url,omitempty"`   // Base URL of the order backend
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection URL for the audit log

	// Server
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Report
	LogoPath     string `json:"logo_path,omitempty" yaml:"logo_path,omitempty"`
	Locale       string `json:"locale,omitempty" yaml:"locale,omitempty"`
	DateLayout   string `json:"date_layout,omitempty" yaml:"date_layout,omitempty"`
	SummaryLabel string `json:"summary_label,omitempty" yaml:"summary_label,omitempty"` // Prefix of the uploaded summary file name

	// Limits
	UploadConcurrency   int   `json:"upload_concurrency,omitempty" yaml:"upload_concurrency,omitempty"` // 1 uploads services sequentially
	FetchTimeoutSeconds int   `json:"fetch_timeout_seconds,omitempty" yaml:"fetch_timeout_seconds,omitempty"`
	MaxUploadBytes      int64 `json:"max_upload_bytes,omitempty" yaml:"max_upload_bytes,omitempty"`

	// Logging
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"` // json or console
	Verbose   bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                DefaultPort,
		Locale:              DefaultLocale,
		DateLayout:          DefaultDateLayout,
		SummaryLabel:        DefaultSummaryLabel,
		UploadConcurrency:   DefaultUploadConcurrency,
		FetchTimeoutSeconds: DefaultFetchTimeout,
		MaxUploadBytes:      DefaultMaxUploadBytes,
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// FromEnv overlays environment variables onto the configuration.
// Unset variables leave the current value untouched.
func (c *Config) FromEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", key, err)
		}
		*dst = n
		return nil
	}

	setString("BACKEND_URL", &c.BackendURL)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("REPORT_LOGO_PATH", &c.LogoPath)
	setString("REPORT_LOCALE", &c.Locale)
	setString("REPORT_DATE_LAYOUT", &c.DateLayout)
	setString("SUMMARY_LABEL", &c.SummaryLabel)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_FORMAT", &c.LogFormat)

	if err := setInt("PORT", &c.Port); err != nil {
		return err
	}
	if err := setInt("UPLOAD_CONCURRENCY", &c.UploadConcurrency); err != nil {
		return err
	}
	if err := setInt("FETCH_TIMEOUT_SECONDS", &c.FetchTimeoutSeconds); err != nil {
		return err
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES: %v", err)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// Validate checks that the configuration has valid values.
// Required fields are checked by the commands that need them.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}
	if c.UploadConcurrency < 0 {
		return fmt.Errorf("config error: 'upload_concurrency' must be non-negative")
	}
	if c.FetchTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'fetch_timeout_seconds' must be non-negative")
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("config error: 'max_upload_bytes' must be non-negative")
	}
	if c.MaxUploadBytes > results.MaxFileSize {
		return fmt.Errorf("config error: 'max_upload_bytes' must not exceed %d, got %d", results.MaxFileSize, c.MaxUploadBytes)
	}
	if c.Locale != "" && !knownLocale(c.Locale) {
		return fmt.Errorf("config error: 'locale' %q is not supported", c.Locale)
	}
	if c.SummaryLabel != "" && strings.ContainsAny(c.SummaryLabel, `/\`) {
		return fmt.Errorf("config error: 'summary_label' must not contain path separators")
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("config error: 'log_format' must be json or console, got %q", c.LogFormat)
	}

	if c.LogoPath != "" {
		if _, err := os.Stat(c.LogoPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: logo file not found: %s", c.LogoPath)
		}
	}

	return nil
}

func knownLocale(locale string) bool {
	for _, l := range monday.ListLocales() {
		if string(l) == locale {
			return true
		}
	}
	return false
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.BackendURL == "" {
		result.BackendURL = defaults.BackendURL
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.LogoPath == "" {
		result.LogoPath = defaults.LogoPath
	}
	if result.Locale == "" {
		result.Locale = defaults.Locale
	}
	if result.DateLayout == "" {
		result.DateLayout = defaults.DateLayout
	}
	if result.SummaryLabel == "" {
		result.SummaryLabel = defaults.SummaryLabel
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.UploadConcurrency == 0 {
		result.UploadConcurrency = defaults.UploadConcurrency
	}
	if result.FetchTimeoutSeconds == 0 {
		result.FetchTimeoutSeconds = defaults.FetchTimeoutSeconds
	}
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = defaults.MaxUploadBytes
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge

	return result
}

// FetchTimeout returns the remote artifact timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}
