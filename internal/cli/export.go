package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/internal/engine"
	"github.com/mesh-intelligence/workbench/internal/export"
	"github.com/mesh-intelligence/workbench/internal/paths"
)

// stdioPath selects stdout for --out and stdin for --data-file.
const stdioPath = "-"

type exportOptions struct {
	format string
	out    string
	runAll bool
}

// exportResult is the JSON form of a written export.
type exportResult struct {
	Path    string         `json:"path"`
	Total   int            `json:"total"`
	Summary export.Summary `json:"summary"`
}

func newExportCmd(a *app) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every test case with its effective state",
		Long: `Export writes test-results.<format> to the export directory. The
document lists every catalog case in order with its lifecycle status,
effective steps, and effective test data.

With --run-all, every case is run first on a virtual clock so the export
carries a full set of outcomes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "", "json, yaml, or jsonl (default from config)")
	cmd.Flags().StringVar(&opts.out, "out", "", "output directory, or - for stdout")
	cmd.Flags().BoolVar(&opts.runAll, "run-all", false, "run every case before exporting")
	return cmd
}

func runExport(cmd *cobra.Command, a *app, opts exportOptions) error {
	format := a.cfg.Export.Format
	if opts.format != "" {
		f, err := export.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		format = f
	}

	store, err := a.open()
	if err != nil {
		return err
	}
	if opts.runAll {
		if err := runAll(cmd.Context(), a, store); err != nil {
			return err
		}
	}

	doc, err := export.Build(store)
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.out == stdioPath {
		return export.Encode(out, doc, format)
	}

	dir, err := paths.ResolveExportDir(opts.out, a.exportDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve export dir: %w", err))
	}
	path, err := export.WriteFile(dir, doc, format)
	if err != nil {
		return sysError(err)
	}
	a.logger.Info("exported results", "path", path, "records", doc.Total)

	if a.flags.jsonMode {
		return writeJSON(out, exportResult{Path: path, Total: doc.Total, Summary: doc.Summary})
	}
	fmt.Fprintf(out, "Exported %d cases to %s\n", doc.Total, path)
	fmt.Fprintf(out, "%s %d  %s %d  %s %d  %s %d\n",
		passColor.Sprint("passed"), doc.Summary.Passed,
		failColor.Sprint("failed"), doc.Summary.Failed,
		warnColor.Sprint("in progress"), doc.Summary.InProgress,
		idleColor.Sprint("not started"), doc.Summary.NotStarted)
	return nil
}

// runAll runs every catalog case to completion on a manual scheduler, so
// the configured tick interval does not apply.
func runAll(ctx context.Context, a *app, store *casestate.Store) error {
	sched := engine.NewManualScheduler()
	eng := a.newEngine(store, engine.WithScheduler(sched))
	for _, tc := range store.Catalog().ListAll() {
		if _, err := eng.Start(ctx, tc.ID); err != nil {
			return fmt.Errorf("run %s: %w", tc.ID, err)
		}
		for sched.Pending() > 0 {
			sched.Tick()
		}
	}
	return nil
}
