package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/workbench/internal/export"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// envPrefix scopes environment overrides, e.g. WORKBENCH_EXECUTION_PASS_RATE.
	envPrefix = "WORKBENCH"

	cfgKeyBackend     = "backend"
	cfgKeyIntervalMS  = "execution.interval_ms"
	cfgKeyPassRate    = "execution.pass_rate"
	cfgKeySeed        = "execution.seed"
	cfgKeyEnvironment = "defect.environment"
	cfgKeySeverity    = "defect.severity"
	cfgKeyFormat      = "export.format"
	cfgKeyExportDir   = "export.dir"
)

// loadConfig reads config.yaml from configDir using Viper, with defaults for
// every key and WORKBENCH_* environment overrides. A missing config.yaml is
// not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	def := types.DefaultConfig()

	v := viper.New()
	v.SetDefault(cfgKeyBackend, def.Backend)
	v.SetDefault(cfgKeyIntervalMS, def.Execution.Interval.Milliseconds())
	v.SetDefault(cfgKeyPassRate, def.Execution.PassRate)
	v.SetDefault(cfgKeySeed, 0)
	v.SetDefault(cfgKeyEnvironment, def.Defect.Environment)
	v.SetDefault(cfgKeySeverity, def.Defect.Severity)
	v.SetDefault(cfgKeyFormat, def.Export.Format)
	v.SetDefault(cfgKeyExportDir, "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// configFromViper converts the loaded keys into a validated types.Config.
func configFromViper(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		Backend: strings.ToLower(strings.TrimSpace(v.GetString(cfgKeyBackend))),
		Execution: types.ExecutionConfig{
			Interval: time.Duration(v.GetInt64(cfgKeyIntervalMS)) * time.Millisecond,
			PassRate: v.GetFloat64(cfgKeyPassRate),
			Seed:     v.GetInt64(cfgKeySeed),
		},
		Defect: types.DefectConfig{
			Environment: v.GetString(cfgKeyEnvironment),
			Severity:    strings.ToLower(strings.TrimSpace(v.GetString(cfgKeySeverity))),
		},
		Export: types.ExportConfig{
			Format: v.GetString(cfgKeyFormat),
			Dir:    v.GetString(cfgKeyExportDir),
		},
	}
	if f, err := export.ParseFormat(cfg.Export.Format); err == nil {
		cfg.Export.Format = f
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
