package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"studiopipe/internal/common"
	"studiopipe/internal/config"
	"studiopipe/internal/observability"
	"studiopipe/internal/snowflake"
	"studiopipe/internal/ui"
	"studiopipe/pkg/models"
)

// viperKeyAnnotation marks a flag with the config key it overrides.
const viperKeyAnnotation = "studiopipe_config_key"

var (
	settings   = config.New()
	configFile string

	cfg    *models.Config
	logger *observability.Logger

	rootCmd = &cobra.Command{
		Use:   "studiopipe",
		Short: "Load synthetic studio data into Snowflake and monitor the pipeline",
		Long: `studiopipe generates synthetic fan interaction and box office records,
loads them into the raw landing tables in batches, refreshes the dynamic
table DAG after every batch and serves a monitoring dashboard over the
medallion layers.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initApp,
	}
)

// Execute runs the root command. Errors are printed in the formatted error
// style and exit with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.ShowError(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./studiopipe.yaml or ~/.studiopipe/studiopipe.yaml)")
	flags.StringP("connection", "c", "", "Named connection from connections.toml")
	flags.String("database", "", "Target database")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")

	configKey(flags, "connection", "snowflake.connection_name")
	configKey(flags, "database", "warehouse.database")
	configKey(flags, "log-level", "log.level")
}

// initApp reads the configuration for the command being run and sets up
// logging. Flags of that command override file and environment values.
func initApp(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		settings.SetConfigFile(common.ExpandHome(configFile))
	}
	if err := config.Read(settings); err != nil {
		return err
	}
	if err := bindFlags(settings, cmd.Flags()); err != nil {
		return err
	}

	loaded, err := config.Load(settings)
	if err != nil {
		return err
	}
	cfg = loaded

	logger = observability.NewLoggerFromConfig(cfg.Log, Version, os.Stderr)
	observability.SetDefaultLogger(logger)

	return snowflake.SetDriverLogLevel(cfg.Log.DriverLevel)
}

// configKey ties a flag to a config key; the binding happens in initApp so
// commands sharing a key do not override each other.
func configKey(flags *pflag.FlagSet, name, key string) {
	_ = flags.SetAnnotation(name, viperKeyAnnotation, []string{key})
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[viperKeyAnnotation]
		if !ok || len(keys) == 0 || err != nil {
			return
		}
		err = v.BindPFlag(keys[0], f)
	})
	return err
}
