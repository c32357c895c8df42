package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"projectdw/internal/loader"
	"projectdw/internal/security"
	"projectdw/internal/ui"
	"projectdw/internal/warehouse"
	"projectdw/pkg/errors"
)

type loadOptions struct {
	driver      string
	dsn         string
	truncate    bool
	includeOLAP bool
	yes         bool
}

func newLoadCommand(a *app) *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Copy the warehouse tables into a relational database",
		Long: `Copy the warehouse CSV tables into SQLite or Snowflake.

Tables are created when missing. Rows whose key is already present are
skipped, so loading after every run only sends what the run appended. With
--truncate every target table is emptied first.

The warehouse files are only read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("driver") {
				a.config.Loader.Driver = opts.driver
			}
			if f.Changed("dsn") {
				a.config.Loader.DSN = opts.dsn
			}
			if f.Changed("truncate") {
				a.config.Loader.Truncate = opts.truncate
			}
			if f.Changed("include-olap") {
				a.config.Loader.IncludeOLAP = opts.includeOLAP
			}
			return a.runLoad(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.driver, "driver", "", "database driver (sqlite3, snowflake)")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "data source name, overrides the snowflake fields")
	cmd.Flags().BoolVar(&opts.truncate, "truncate", false, "empty every target table before loading")
	cmd.Flags().BoolVar(&opts.includeOLAP, "include-olap", false, "also load OLAP_Proyectos and OLAP_Calidad")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask before truncating")
	return cmd
}

func (a *app) runLoad(cmd *cobra.Command, opts loadOptions) error {
	lc := a.config.Loader

	if lc.Truncate && !opts.yes {
		if !ui.Interactive() {
			return errors.New(errors.ErrCodeConfigInvalid, "Truncating the target tables needs confirmation").
				WithContext("driver", lc.Driver).
				WithSuggestions(
					"Pass --yes to truncate without a prompt",
					"Set loader.truncate to false to load incrementally",
				)
		}
		ok, err := ui.Confirm(fmt.Sprintf("Delete every row of the %s target tables before loading?", lc.Driver), false)
		if err != nil {
			return err
		}
		if !ok {
			ui.ShowInfo("Load cancelled.")
			return nil
		}
	}

	password := ""
	if lc.Driver == loader.DriverSnowflake && lc.DSN == "" {
		store, err := security.NewCredentialStore()
		if err != nil {
			a.logger.Warnf("credential store unavailable: %v", err)
		}
		password, err = security.ResolvePassword(store, lc.Snowflake.Username, lc.Snowflake.Password)
		if err != nil {
			return err
		}
	}

	cfg, err := loader.ConfigFromModel(lc, password)
	if err != nil {
		return err
	}
	svc := loader.New(cfg, a.logger)

	spinner := ui.NewSpinner(fmt.Sprintf("Connecting to %s", cfg.Driver))
	spinner.Start()
	if err := svc.Connect(cmd.Context()); err != nil {
		spinner.Stop(false, "Connection failed")
		return err
	}
	defer svc.Close()

	spinner.UpdateMessage("Loading warehouse tables")
	store := warehouse.NewStore(a.config.Paths.WarehouseDir, a.config.Paths.OLAPDir, a.logger)
	rep, err := svc.Load(cmd.Context(), store)
	if err != nil {
		spinner.Stop(false, "Load failed")
		return err
	}
	spinner.Stop(true, "Load finished")

	ui.RenderLoadReport(cmd.OutOrStdout(), rep)
	return nil
}
