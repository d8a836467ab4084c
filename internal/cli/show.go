package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

// caseView is the JSON form of one case with its effective values.
type caseView struct {
	types.TestCase
	Status   string            `json:"status"`
	Steps    []types.Step      `json:"steps"`
	TestData string            `json:"test_data"`
	LastRun  *types.RunSummary `json:"last_run,omitempty"`
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a test case with its effective steps and test data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, a, args[0])
		},
	}
}

func runShow(cmd *cobra.Command, a *app, id string) error {
	store, err := a.open()
	if err != nil {
		return err
	}
	tc, err := store.TestCase(id)
	if err != nil {
		return err
	}
	state, err := store.State(id)
	if err != nil {
		return err
	}
	steps, err := store.EffectiveSteps(id)
	if err != nil {
		return err
	}
	data, err := store.EffectiveTestData(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return writeJSON(out, caseView{
			TestCase: tc,
			Status:   state.LifecycleStatus,
			Steps:    steps,
			TestData: data,
			LastRun:  state.LastRun,
		})
	}

	fmt.Fprintf(out, "%s  %s\n", titleColor.Sprint(tc.ID), titleColor.Sprint(tc.Title))
	fmt.Fprintf(out, "Priority: %s  Category: %s  Status: %s\n",
		tc.Priority, tc.Category, paint(state.LifecycleStatus, types.StatusLabel(state.LifecycleStatus)))
	if tc.Actor != "" {
		fmt.Fprintf(out, "Actor: %s\n", tc.Actor)
	}
	if tc.Description != "" {
		fmt.Fprintf(out, "\n%s\n", tc.Description)
	}
	if len(tc.Preconditions) > 0 {
		fmt.Fprintln(out, "\nPreconditions:")
		for _, p := range tc.Preconditions {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}
	fmt.Fprintln(out, "\nSteps:")
	printSteps(out, steps)
	fmt.Fprintln(out, "\nTest data:")
	fmt.Fprintln(out, indent(data, "  "))

	api := tc.ExpectedAPIContract
	if api.Endpoint != "" {
		fmt.Fprintf(out, "\nAPI: %s %s -> %d\n", api.Method, api.Endpoint, api.ResponseStatus)
	}
	if state.LastRun != nil {
		fmt.Fprintf(out, "\nLast run: %s (%.1fs)\n", paint(state.LastRun.Outcome, state.LastRun.Outcome), state.LastRun.DurationSeconds)
	}
	return nil
}

// printSteps writes one line per step with its run status.
func printSteps(w io.Writer, steps []types.Step) {
	if len(steps) == 0 {
		fmt.Fprintln(w, "  (no steps)")
		return
	}
	for _, st := range steps {
		fmt.Fprintf(w, "  %d. %s %s\n", st.Number, st.Action, paint(st.RunStatus, "["+st.RunStatus+"]"))
		fmt.Fprintf(w, "     expect: %s\n", st.ExpectedResult)
	}
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
