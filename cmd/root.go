package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"projectdw/internal/config"
	"projectdw/internal/observability"
	"projectdw/internal/ui"
	"projectdw/pkg/models"
)

// skipConfig marks commands that run without loading projectdw.yaml.
const skipConfig = "skip-config"

// app carries what every command needs once the configuration is loaded.
type app struct {
	configFile string
	viper      *viper.Viper
	config     *models.Config
	logger     *observability.Logger
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"source-dir":    "paths.source_dir",
	"warehouse-dir": "paths.warehouse_dir",
	"olap-dir":      "paths.olap_dir",
	"state-file":    "paths.state_file",
	"journal-file":  "paths.journal_file",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// NewRootCommand builds the projectdw command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "projectdw",
		Short: "Incremental star-schema ETL for project data",
		Long: `projectdw builds a project-management data warehouse from CSV exports.

Each run picks up the projects that reached a terminal status since the last
run, appends their dimension and fact rows, refreshes the flat reporting
tables and records its progress so the next run continues where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.load(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./projectdw.yaml or ~/.projectdw/projectdw.yaml)")
	flags.String("source-dir", "", "directory holding the source CSV tables")
	flags.String("warehouse-dir", "", "directory of the warehouse tables")
	flags.String("olap-dir", "", "directory of the denormalized tables")
	flags.String("state-file", "", "process state file")
	flags.String("journal-file", "", "batch journal file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")

	root.AddCommand(
		newRunCommand(a),
		newStatusCommand(a),
		newLoadCommand(a),
		newCredentialsCommand(a),
		newInitCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and exits 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

// load reads the configuration with flag overrides and sets up logging.
func (a *app) load(flags *pflag.FlagSet) error {
	v := config.NewViper()
	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	}
	if err := config.ReadInConfig(v); err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	a.viper = v
	a.config = cfg
	a.logger = observability.NewLogger(observability.LoggerConfig{
		Level:   observability.LogLevelFromString(cfg.Log.Level),
		Output:  os.Stderr,
		Service: "projectdw",
		Version: Version,
		Encoder: observability.EncoderFor(cfg.Log.Format),
	})
	a.logger.Debugf("configuration loaded from %q", v.ConfigFileUsed())
	return nil
}
