package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trly/unitd/internal/config"
	"github.com/trly/unitd/internal/logger"
)

type appContextKeyType struct{}

var appContextKey = appContextKeyType{}

// RootCommand is the unitd cobra root: a thin control surface over a
// freshly-booted Engine, per-invocation, backed by the persisted
// unit-definition store.
type RootCommand struct{}

var (
	cfg            *config.Config
	userMode       bool
	verbose        bool
	configFilePath string
	dbPath         string
	queueDepth     int
)

// GetCobraCommand builds the unitd root command and its subcommands.
func (c *RootCommand) GetCobraCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unitd",
		Short: "unitd manages a dependency graph of long-running units.",
		Long: `unitd is a unit lifecycle and dependency engine: it starts and stops
units in Requires/Wants/After/Conflicts order, tracking each unit's state
through a per-unit guard goroutine.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFilePath != "" {
				viper.SetConfigFile(configFilePath)
				if err := viper.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config %s: %w", configFilePath, err)
				}
			}

			cfg = &config.Config{}
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("parsing config: %w", err)
			}

			if verbose {
				cfg.Verbose = true
			}
			if userMode {
				cfg.UserMode = true
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if queueDepth > 0 {
				cfg.QueueDepth = queueDepth
			}

			logger.Init(cfg.Verbose)

			app, err := NewApp(context.Background(), cfg, logger.GetLogger())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appContextKey, app))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appContextKey).(*App); ok {
				app.Close()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&userMode, "user", "u", false, "Run in user mode")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the unit-definition sqlite database")
	rootCmd.PersistentFlags().IntVar(&queueDepth, "queue-depth", 0, "Per-actor inbox channel capacity")

	rootCmd.AddCommand(
		newLoadCommand(),
		newStartCommand(),
		newStopCommand(),
		newRestartCommand(),
		newGetCommand(),
		newDumpCommand(),
	)

	return rootCmd
}

func appFromContext(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}
