// Package config loads the optional rendercore.yaml configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by LoadOptional.
const FileName = "rendercore.yaml"

// SchemaMajor is the supported configuration schema major version.
const SchemaMajor = "v1"

// Config represents the rendercore.yaml configuration.
type Config struct {
	Version string        `yaml:"version" validate:"required"`
	Mount   MountConfig   `yaml:"mount"`
	Pool    PoolConfig    `yaml:"pool"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MountConfig contains mount engine policies.
type MountConfig struct {
	// EnsureParentMounted mounts a missing host before its child instead of
	// failing with a host-not-mounted error.
	EnsureParentMounted bool `yaml:"ensure_parent_mounted"`
	// SkipNegativeCoordinates skips incremental mount for visible rects that
	// lie entirely above or left of the origin.
	SkipNegativeCoordinates bool `yaml:"skip_negative_coordinates"`
}

// PoolConfig configures content recycling.
type PoolConfig struct {
	Enabled     bool           `yaml:"enabled"`
	DefaultSize int            `yaml:"default_size" validate:"gte=0,lte=1024"`
	Sizes       map[string]int `yaml:"sizes" validate:"dive,keys,required,endkeys,gte=0,lte=1024"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Output string `yaml:"output" validate:"required"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter" validate:"oneof=stdout none"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: "v1.0.0",
		Mount: MountConfig{
			EnsureParentMounted:     true,
			SkipNegativeCoordinates: true,
		},
		Pool: PoolConfig{
			Enabled:     true,
			DefaultSize: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Namespace: "rendercore",
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadOptional reads rendercore.yaml from dir if present, otherwise returns
// the defaults.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return Parse(data)
}

// Validate checks field constraints and the schema version.
func (c *Config) Validate() error {
	version := strings.TrimSpace(c.Version)
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return fmt.Errorf("invalid config version %q", c.Version)
	}
	if major := semver.Major(version); major != SchemaMajor {
		return fmt.Errorf("unsupported config version %q: want %s.x", c.Version, SchemaMajor)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return nil
}

// PoolSize returns the pool capacity for a content type.
func (c *Config) PoolSize(contentType string) int {
	if !c.Pool.Enabled {
		return 0
	}
	if size, ok := c.Pool.Sizes[contentType]; ok {
		return size
	}
	return c.Pool.DefaultSize
}
