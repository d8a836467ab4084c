// Package cli implements the workbench command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workbench/internal/backend"
	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/internal/catalog"
	"github.com/mesh-intelligence/workbench/internal/defect"
	"github.com/mesh-intelligence/workbench/internal/engine"
	"github.com/mesh-intelligence/workbench/internal/paths"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// sysError marks err as a failure of the environment rather than of the
// user's input.
func sysError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitSysError, err: err}
}

// exitCode maps err to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	jsonMode  bool
	logLevel  string
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	cfg       types.Config
	exportDir string
	logger    *slog.Logger

	backend types.Backend
	store   *casestate.Store
}

// NewRootCmd creates the top-level "workbench" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{cfg: types.DefaultConfig(), logger: slog.New(slog.DiscardHandler)}

	root := &cobra.Command{
		Use:   "workbench",
		Short: "An interactive workbench for scripted QA test cases",
		Long: "Workbench browses a catalog of banking test cases, edits their steps and\n" +
			"test data, simulates execution runs, drafts defects, and exports results.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newTUICmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("error:"), err)
		os.Exit(exitCode(err))
	}
}

// setup builds the logger, resolves the config directory, and loads
// config.yaml for every command that needs it.
func (a *app) setup(cmd *cobra.Command) error {
	logger, err := newLogger(cmd.ErrOrStderr(), a.flags.logLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	if cmd.Name() == "version" {
		return nil
	}

	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = dir

	// init must work even when the existing config is broken.
	if cmd.Name() == "init" {
		return nil
	}

	v, err := loadConfig(dir)
	if err != nil {
		return err
	}
	cfg, err := configFromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.exportDir = v.GetString(cfgKeyExportDir)
	a.logger.Debug("config loaded", "dir", dir, "backend", cfg.Backend)
	return nil
}

// open attaches the configured backend and builds the case store on first
// use.
func (a *app) open() (*casestate.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	cat, err := catalog.Default()
	if err != nil {
		return nil, sysError(err)
	}
	b, err := backend.Open(a.cfg)
	if err != nil {
		return nil, sysError(err)
	}
	store, err := casestate.New(cat, b, casestate.WithLogger(a.logger))
	if err != nil {
		b.Detach()
		return nil, sysError(err)
	}
	a.backend = b
	a.store = store
	return store, nil
}

// close detaches the backend if one was opened.
func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Detach()
	a.backend = nil
	a.store = nil
	if err != nil {
		return sysError(fmt.Errorf("detach backend: %w", err))
	}
	return nil
}

// newEngine builds an engine configured from the loaded config.
func (a *app) newEngine(store *casestate.Store, opts ...engine.Option) *engine.Engine {
	seed := uint64(a.cfg.Execution.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	base := []engine.Option{
		engine.WithInterval(a.cfg.Execution.Interval),
		engine.WithOutcome(engine.SeededOutcome(a.cfg.Execution.PassRate, seed)),
		engine.WithLogger(a.logger),
	}
	return engine.New(store, append(base, opts...)...)
}

// newDrafter builds a defect drafter with the configured defaults.
func (a *app) newDrafter(store *casestate.Store) *defect.Drafter {
	return defect.NewDrafter(store,
		defect.WithEnvironment(a.cfg.Defect.Environment),
		defect.WithSeverity(a.cfg.Defect.Severity),
	)
}

// newLogger returns a text logger on w at the named level.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
