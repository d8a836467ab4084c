package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workbench/internal/defect"
	"github.com/mesh-intelligence/workbench/internal/engine"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// progressWidth is the number of cells in the live progress bar.
const progressWidth = 30

// runResult is the JSON form of a finished run.
type runResult struct {
	Run    types.ExecutionRun `json:"run"`
	Steps  []types.Step       `json:"steps"`
	Defect *types.DefectDraft `json:"defect,omitempty"`
}

type runOptions struct {
	defect   bool
	severity string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Simulate an execution run of a test case",
		Long: `Run resets the case's steps, decides an outcome for each step on every
tick, and records the run once it finishes. Interrupting the command
abandons the run.

With --defect, a defect draft is printed when the run failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, a, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.defect, "defect", false, "draft a defect when the run fails")
	cmd.Flags().StringVar(&opts.severity, "severity", "", "defect severity: critical, major, minor, trivial")
	return cmd
}

func runRun(cmd *cobra.Command, a *app, id string, opts runOptions) error {
	var draftOpts []defect.Option
	if opts.severity != "" {
		sev, err := types.ParseSeverity(opts.severity)
		if err != nil {
			return fmt.Errorf("%w: %q", err, opts.severity)
		}
		draftOpts = append(draftOpts, defect.WithSeverity(sev))
	}

	store, err := a.open()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := a.newEngine(store)
	started, err := eng.Start(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	live := !a.flags.jsonMode && isTerminal(out)
	if !a.flags.jsonMode {
		fmt.Fprintf(out, "Running %s (%d ticks)\n", id, started.TotalTicks)
	}

	var run types.ExecutionRun
	if live {
		run, err = watchRun(ctx, out, eng, a.cfg.Execution.Interval)
	} else {
		run, err = eng.Wait(ctx)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("run interrupted")
		}
		return err
	}
	if run.State == types.RunStateAbandoned {
		return errors.New("run abandoned")
	}

	steps, err := store.EffectiveSteps(id)
	if err != nil {
		return err
	}

	var draft *types.DefectDraft
	if opts.defect && run.Outcome == types.OutcomeFailed {
		d, err := a.newDrafter(store).Draft(id, draftOpts...)
		if err != nil {
			return err
		}
		draft = &d
	}

	if a.flags.jsonMode {
		return writeJSON(out, runResult{Run: run, Steps: steps, Defect: draft})
	}

	printSteps(out, steps)
	fmt.Fprintf(out, "\nOutcome: %s in %.1fs (run %s)\n",
		paint(run.Outcome, strings.ToUpper(run.Outcome)), run.DurationSeconds, run.RunID)
	if draft != nil {
		fmt.Fprintf(out, "\n%s", defect.Markdown(*draft))
	} else if opts.defect {
		fmt.Fprintln(out, "No defect drafted: the run passed.")
	}
	return nil
}

// watchRun redraws a progress bar on out until the run ends.
func watchRun(ctx context.Context, out io.Writer, eng *engine.Engine, interval time.Duration) (types.ExecutionRun, error) {
	bar := newProgressBar()
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	defer fmt.Fprintln(out)

	for {
		run, ok := eng.Current()
		if ok {
			fmt.Fprintf(out, "\r%s", bar.ViewAs(run.Progress()))
			if !run.Active() {
				return run, nil
			}
		}
		select {
		case <-ctx.Done():
			return eng.Wait(ctx)
		case <-ticker.C:
		}
	}
}

// newProgressBar returns the bar used for live runs. It is rendered with
// ViewAs only, so no animation state is needed.
func newProgressBar() progress.Model {
	return progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth))
}
