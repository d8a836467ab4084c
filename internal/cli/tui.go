package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workbench/internal/paths"
	"github.com/mesh-intelligence/workbench/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive workbench",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(cmd.OutOrStdout()) {
				return fmt.Errorf("tui needs an interactive terminal")
			}
			store, err := a.open()
			if err != nil {
				return err
			}
			dir, err := paths.ResolveExportDir("", a.exportDir)
			if err != nil {
				return sysError(fmt.Errorf("resolve export dir: %w", err))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return tui.Run(ctx, tui.Options{
				Store:        store,
				Engine:       a.newEngine(store),
				Drafter:      a.newDrafter(store),
				ExportDir:    dir,
				ExportFormat: a.cfg.Export.Format,
				Logger:       a.logger,
			})
		},
	}
}
