package cmd

import (
	"github.com/spf13/cobra"

	"projectdw/internal/etl"
	"projectdw/internal/ui"
	"projectdw/internal/warehouse"
)

func newRunCommand(a *app) *cobra.Command {
	var load, yes bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the projects closed since the last run",
		Long: `Run one incremental pass.

Projects that reached a terminal status (finalizado or cancelado) are moved
into the warehouse: catalogs and dimensions are extended, fact rows are
appended with fresh surrogate keys and the flat OLAP tables grow with them.
Open projects are remembered and picked up once they close.

A run that fails leaves every output and the state file as they were.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := etl.OptionsFromConfig(a.config)
			if err != nil {
				return err
			}
			store := warehouse.NewStore(a.config.Paths.WarehouseDir, a.config.Paths.OLAPDir, a.logger)

			rep, err := etl.NewPipeline(opts, store, a.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			ui.RenderRunReport(cmd.OutOrStdout(), rep)

			if load && !rep.Empty() {
				return a.runLoad(cmd, loadOptions{yes: yes})
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "copy the warehouse into the configured database after a non-empty run")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "with --load, do not ask before truncating")
	return cmd
}
