// Package config loads systemet settings from YAML and the environment.
//
// Precedence, lowest first: Default(), the YAML file, SYSTEMET_* variables.
// The merged result is checked against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/systemet/internal/catalog"
)

//go:embed schema.cue
var schemaSource string

// Config is the full application configuration.
type Config struct {
	API       APIConfig       `yaml:"api" json:"api"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// APIConfig configures the catalog HTTP source.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	APIKey            string        `yaml:"api_key" json:"api_key"`
	PageSize          int           `yaml:"page_size" json:"page_size"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// TelemetryConfig configures metric export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint   string        `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	OTLPInsecure   bool          `yaml:"otlp_insecure" json:"otlp_insecure"`
	MetricInterval time.Duration `yaml:"metric_interval" json:"metric_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:    catalog.DefaultBaseURL,
			PageSize:   30,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
			Timeout:    30 * time.Second,
			UserAgent:  "systemet-price-tracker/1.0",
		},
		Database: DatabaseConfig{Path: "products.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			MetricInterval: 30 * time.Second,
		},
	}
}

// Load builds the configuration. An empty path skips the file; a named file
// that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(cfg))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}

// ValidationError reports schema violations.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.TrimSpace(e.Details)
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides cfg from SYSTEMET_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SYSTEMET_API_URL", &cfg.API.BaseURL)
	str("SYSTEMET_API_KEY", &cfg.API.APIKey)
	integer("SYSTEMET_PAGE_SIZE", &cfg.API.PageSize)
	integer("SYSTEMET_MAX_RETRIES", &cfg.API.MaxRetries)
	duration("SYSTEMET_RETRY_DELAY", &cfg.API.RetryDelay)
	duration("SYSTEMET_TIMEOUT", &cfg.API.Timeout)
	float("SYSTEMET_RPS", &cfg.API.RequestsPerSecond)
	str("SYSTEMET_DB_NAME", &cfg.Database.Path)
	str("SYSTEMET_LOG_LEVEL", &cfg.Log.Level)
	str("SYSTEMET_LOG_FORMAT", &cfg.Log.Format)
	str("SYSTEMET_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	if len(errs) > 0 {
		return fmt.Errorf("environment: %w", errors.Join(errs...))
	}
	return nil
}
