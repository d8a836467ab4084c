package cli

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// Sort orders accepted by list --sort.
const (
	sortCatalog  = "catalog"
	sortPriority = "priority"
)

// listRow is the JSON form of one listed case.
type listRow struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

func newListCmd(a *app) *cobra.Command {
	var (
		f      casestate.Filter
		sortBy string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List test cases matching a filter",
		Long: `List shows the catalog cases that match every given criterion, in
catalog order. With --sort priority, P1 cases come first and cases of equal
priority keep catalog order.

Examples:
  workbench list
  workbench list --category transfers
  workbench list --status failed --search card
  workbench list --sort priority`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, a, f, sortBy)
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "category: accounts, transfers, payments, cards, loans, security")
	cmd.Flags().StringVar(&f.Status, "status", types.StatusAll, "lifecycle status or all")
	cmd.Flags().StringVar(&f.Search, "search", "", "case-insensitive match on ID or title")
	cmd.Flags().StringVar(&sortBy, "sort", sortCatalog, "order: catalog or priority")
	return cmd
}

func runList(cmd *cobra.Command, a *app, f casestate.Filter, sortBy string) error {
	if f.Category != "" && !types.ValidCategory(f.Category) {
		return fmt.Errorf("unknown category %q", f.Category)
	}
	if sortBy != sortCatalog && sortBy != sortPriority {
		return fmt.Errorf("unknown sort order %q", sortBy)
	}
	store, err := a.open()
	if err != nil {
		return err
	}
	rows, err := store.VisibleRows(f)
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}
	if sortBy == sortPriority {
		slices.SortStableFunc(rows, func(x, y casestate.Row) int {
			return types.ComparePriority(x.TestCase.Priority, y.TestCase.Priority)
		})
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		items := make([]listRow, len(rows))
		for i, r := range rows {
			items[i] = listRow{
				ID:       r.TestCase.ID,
				Title:    r.TestCase.Title,
				Category: r.TestCase.Category,
				Priority: r.TestCase.Priority,
				Status:   r.Status,
			}
		}
		return writeJSON(out, items)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRIORITY\tCATEGORY\tSTATUS\tTITLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.TestCase.ID, r.TestCase.Priority, r.TestCase.Category,
			paint(r.Status, types.StatusLabel(r.Status)), r.TestCase.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d cases\n", len(rows), store.Catalog().Len())
	return nil
}
