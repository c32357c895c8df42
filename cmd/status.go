package cmd

import (
	"github.com/spf13/cobra"

	"projectdw/internal/etl"
	"projectdw/internal/ui"
	"projectdw/internal/warehouse"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the process state and the size of every output table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := etl.OptionsFromConfig(a.config)
			if err != nil {
				return err
			}
			store := warehouse.NewStore(a.config.Paths.WarehouseDir, a.config.Paths.OLAPDir, a.logger)

			status, err := etl.Inspect(opts, store)
			if err != nil {
				return err
			}
			ui.RenderStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}
