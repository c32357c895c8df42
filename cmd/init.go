package cmd

import (
	"github.com/spf13/cobra"

	"projectdw/internal/config"
	"projectdw/internal/ui"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default projectdw.yaml",
		Long: `Write a configuration file holding every default, ready to edit.

The file is written with owner-only permissions because the loader section
may carry a password.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigName + ".yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.Save(path, config.Default(), force); err != nil {
				return err
			}
			ui.ShowSuccess("Configuration written to " + path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
