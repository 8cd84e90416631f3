// Package config loads cargo-llvm-lines settings from a YAML file, the
// environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// Default values.
const (
	DefaultReportSort   = "lines"
	DefaultReportFormat = "text"
	DefaultReportLimit  = 0
	DefaultCargoColor   = "auto"
	DefaultLogLevel     = "warn"
	DefaultLogJSON      = false
	DefaultInputMaxSize = ""
)

// Config is the top-level configuration.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Report    ReportConfig    `mapstructure:"report"`
	Cargo     CargoConfig     `mapstructure:"cargo"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Input     InputConfig     `mapstructure:"input"`
}

// ReportConfig holds report rendering defaults.
type ReportConfig struct {
	Sort   string `mapstructure:"sort"`
	Format string `mapstructure:"format"`
	Filter string `mapstructure:"filter"`
	Limit  int    `mapstructure:"limit"`
}

// CargoConfig holds build tool settings.
type CargoConfig struct {
	// Program replaces $CARGO and "cargo" when set.
	Program string `mapstructure:"program"`
	Color   string `mapstructure:"color"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	// MetricsFile receives run metrics in Prometheus text format.
	MetricsFile string `mapstructure:"metrics_file"`
}

// InputConfig holds IR input limits.
type InputConfig struct {
	// MaxSize is a humanized byte count, e.g. "2GB". Empty (the default) or
	// "0" disables the limit.
	MaxSize string `mapstructure:"max_size"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidSort indicates an unknown report.sort value.
	ErrInvalidSort = errors.New("report.sort must be one of lines, copies, name")
	// ErrInvalidFormat indicates an unknown report.format value.
	ErrInvalidFormat = errors.New("report.format must be one of text, table, json, yaml, plot")
	// ErrInvalidLimit indicates a negative report.limit.
	ErrInvalidLimit = errors.New("report.limit must be non-negative")
	// ErrInvalidColor indicates an unknown cargo.color value.
	ErrInvalidColor = errors.New("cargo.color must be one of auto, always, never")
	// ErrInvalidLogLevel indicates an unknown log.level value.
	ErrInvalidLogLevel = errors.New("log.level must be one of debug, info, warn, error")
	// ErrInvalidMaxSize indicates an unparsable input.max_size value.
	ErrInvalidMaxSize = errors.New("input.max_size must be a byte size such as 512MB")
)

var (
	validSorts     = []string{"lines", "copies", "name"}
	validFormats   = []string{"text", "table", "json", "yaml", "plot"}
	validColors    = []string{"auto", "always", "never"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if !oneOf(validSorts, c.Report.Sort) {
		return ErrInvalidSort
	}

	if !oneOf(validFormats, c.Report.Format) {
		return ErrInvalidFormat
	}

	if c.Report.Limit < 0 {
		return ErrInvalidLimit
	}

	if !oneOf(validColors, c.Cargo.Color) {
		return ErrInvalidColor
	}

	if !oneOf(validLogLevels, c.Log.Level) {
		return ErrInvalidLogLevel
	}

	_, err := c.MaxInputBytes()

	return err
}

// MaxInputBytes parses Input.MaxSize. Zero means unlimited.
func (c *Config) MaxInputBytes() (uint64, error) {
	trimmed := strings.TrimSpace(c.Input.MaxSize)
	if trimmed == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxSize, c.Input.MaxSize)
	}

	return size, nil
}

// oneOf accepts the empty string, which means "use the default".
func oneOf(valid []string, v string) bool {
	return v == "" || slices.Contains(valid, strings.ToLower(v))
}
