package types

import (
	"errors"
	"time"
)

// Config holds backend selection and execution parameters.
type Config struct {
	Backend   string          `json:"backend" yaml:"backend"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Defect    DefectConfig    `json:"defect" yaml:"defect"`
	Export    ExportConfig    `json:"export" yaml:"export"`
}

// ExecutionConfig tunes the simulated execution engine.
type ExecutionConfig struct {
	// Interval between scheduler ticks.
	Interval time.Duration `json:"interval" yaml:"interval"`
	// PassRate is the probability that a simulated step passes.
	PassRate float64 `json:"pass_rate" yaml:"pass_rate"`
	// Seed fixes the outcome generator; zero seeds from the clock.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefectConfig holds defaults applied to defect drafts.
type DefectConfig struct {
	Environment string `json:"environment" yaml:"environment"`
	Severity    string `json:"severity" yaml:"severity"`
}

// ExportConfig holds defaults for the export document.
type ExportConfig struct {
	Format string `json:"format" yaml:"format"`
	Dir    string `json:"dir" yaml:"dir"`
}

// Supported backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Export formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatJSONL = "jsonl"
)

// Defaults applied by DefaultConfig.
const (
	DefaultInterval    = 200 * time.Millisecond
	DefaultPassRate    = 0.85
	DefaultEnvironment = "QA / web dashboard"
)

// Config validation errors.
var (
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrInvalidInterval = errors.New("execution interval must be positive")
	ErrInvalidPassRate = errors.New("pass rate must be within [0, 1]")
	ErrInvalidFormat   = errors.New("unknown export format")
	ErrInvalidSeverity = errors.New("invalid severity")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendMemory: true,
	BackendSQLite: true,
}

// knownFormats lists the export formats that Validate accepts.
var knownFormats = map[string]bool{
	FormatJSON:  true,
	FormatYAML:  true,
	FormatJSONL: true,
}

// ValidFormat reports whether f is a supported export format.
func ValidFormat(f string) bool {
	return knownFormats[f]
}

// DefaultConfig returns a Config populated with the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Execution: ExecutionConfig{
			Interval: DefaultInterval,
			PassRate: DefaultPassRate,
		},
		Defect: DefectConfig{
			Environment: DefaultEnvironment,
			Severity:    DefaultSeverity,
		},
		Export: ExportConfig{
			Format: FormatJSON,
			Dir:    ".",
		},
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Execution.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Execution.PassRate < 0 || c.Execution.PassRate > 1 {
		return ErrInvalidPassRate
	}
	if c.Defect.Severity != "" && !validSeverities[c.Defect.Severity] {
		return ErrInvalidSeverity
	}
	if c.Export.Format != "" && !knownFormats[c.Export.Format] {
		return ErrInvalidFormat
	}
	return nil
}
