package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/workbench/internal/backend"
	"github.com/mesh-intelligence/workbench/internal/paths"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend   string           `yaml:"backend"`
	Execution executionSection `yaml:"execution"`
	Defect    defectSection    `yaml:"defect"`
	Export    exportSection    `yaml:"export"`
}

type executionSection struct {
	IntervalMS int64   `yaml:"interval_ms"`
	PassRate   float64 `yaml:"pass_rate"`
	Seed       int64   `yaml:"seed"`
}

type defectSection struct {
	Environment string `yaml:"environment"`
	Severity    string `yaml:"severity"`
}

type exportSection struct {
	Format string `yaml:"format"`
	Dir    string `yaml:"dir,omitempty"`
}

// defaultConfigFile mirrors types.DefaultConfig in config.yaml form.
func defaultConfigFile() configFile {
	def := types.DefaultConfig()
	return configFile{
		Backend: def.Backend,
		Execution: executionSection{
			IntervalMS: def.Execution.Interval.Milliseconds(),
			PassRate:   def.Execution.PassRate,
		},
		Defect: defectSection{
			Environment: def.Defect.Environment,
			Severity:    def.Defect.Severity,
		},
		Export: exportSection{Format: def.Export.Format},
	}
}

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration",
		Long:  "Create the configuration directory and a default config.yaml, then check that the backend attaches.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, a, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.yaml")
	return cmd
}

func runInit(cmd *cobra.Command, a *app, force bool) error {
	if err := os.MkdirAll(a.configDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create config directory: %w", err))
	}

	path := paths.ConfigFile(a.configDir)
	written, err := writeConfig(path, defaultConfigFile(), force)
	if err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}

	// Attach then Detach to prove the configured backend is usable.
	v, err := loadConfig(a.configDir)
	if err != nil {
		return err
	}
	cfg, err := configFromViper(v)
	if err != nil {
		return err
	}
	b, err := backend.Open(cfg)
	if err != nil {
		return sysError(fmt.Errorf("initialize storage: %w", err))
	}
	if err := b.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize storage: %w", err))
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return writeJSON(out, map[string]any{"config": path, "written": written, "backend": cfg.Backend})
	}
	if written {
		fmt.Fprintf(out, "Wrote %s\n", path)
	} else {
		fmt.Fprintf(out, "Config already exists at %s\n", path)
	}
	fmt.Fprintln(out, "Workbench initialized successfully")
	return nil
}

// writeConfig writes cfg to path unless the file exists and force is false.
// It reports whether the file was written.
func writeConfig(path string, cfg configFile, force bool) (bool, error) {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("stat config file: %w", err)
		}
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
