// Package config loads busstop settings from an optional .env file, an
// optional YAML file and environment variables, in that order of precedence
// (later wins), and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPostcodesURL = "https://api.postcodes.io"
	DefaultTfLURL       = "https://api.tfl.gov.uk"
)

// Config holds everything the session pipeline needs. It is passed into
// constructors explicitly so tests can run with different bounds in parallel.
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Retry   RetryConfig   `yaml:"retry"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
}

// SearchConfig bounds the stop search and the arrivals listing.
type SearchConfig struct {
	MinRadius    int    `yaml:"min_radius" validate:"gte=1,ltefield=MaxRadius"`
	MaxRadius    int    `yaml:"max_radius" validate:"gte=1"`
	StopCount    int    `yaml:"stop_count" validate:"gte=1"`
	ArrivalCount int    `yaml:"arrival_count" validate:"gte=1"`
	Region       string `yaml:"region" validate:"required"`

	// Interleaved prints each stop's arrivals as soon as they arrive, tagged
	// with the stop label, instead of waiting for every stop.
	Interleaved bool `yaml:"interleaved"`
}

// RetryConfig limits interactive retry loops. Zero means unbounded.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0"`
}

// APIConfig points at the upstream services.
type APIConfig struct {
	PostcodesURL string        `yaml:"postcodes_url" validate:"required,url"`
	TfLURL       string        `yaml:"tfl_url" validate:"required,url"`
	TfLAppKey    string        `yaml:"tfl_app_key"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the settings of the reference session: two stops within
// 100-600m of a London postcode, five arrivals each.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			MinRadius:    100,
			MaxRadius:    600,
			StopCount:    2,
			ArrivalCount: 5,
			Region:       "London",
		},
		API: APIConfig{
			PostcodesURL: DefaultPostcodesURL,
			TfLURL:       DefaultTfLURL,
			Timeout:      10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// BUSSTOP_CONFIG environment variable is consulted, and when that is empty
// too only defaults and environment variables apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("BUSSTOP_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"BUSSTOP_MIN_RADIUS", &cfg.Search.MinRadius},
		{"BUSSTOP_MAX_RADIUS", &cfg.Search.MaxRadius},
		{"BUSSTOP_STOP_COUNT", &cfg.Search.StopCount},
		{"BUSSTOP_ARRIVAL_COUNT", &cfg.Search.ArrivalCount},
		{"BUSSTOP_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts},
	}
	for _, v := range ints {
		s := os.Getenv(v.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dst = n
	}

	cfg.Search.Region = getEnv("BUSSTOP_REGION", cfg.Search.Region)
	if s := os.Getenv("BUSSTOP_INTERLEAVED"); s != "" {
		cfg.Search.Interleaved = isTrue(s)
	}

	cfg.API.PostcodesURL = strings.TrimSuffix(getEnv("BUSSTOP_POSTCODES_URL", cfg.API.PostcodesURL), "/")
	cfg.API.TfLURL = strings.TrimSuffix(getEnv("BUSSTOP_TFL_URL", cfg.API.TfLURL), "/")
	cfg.API.TfLAppKey = getEnv("TFL_APP_KEY", cfg.API.TfLAppKey)
	if s := os.Getenv("BUSSTOP_HTTP_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid BUSSTOP_HTTP_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}

	cfg.Logging.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(getEnv("LOG_FORMAT", cfg.Logging.Format))
	return nil
}

// getEnv returns the value of an environment variable or a default value if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
