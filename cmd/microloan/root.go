package main

import (
	"github.com/iwvelando/microloan/internal/config"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli holds what the persistent flags resolve to.
type cli struct {
	configPath string
	logLevel   string

	conf   *config.Configuration
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	state := &cli{}
	root := &cobra.Command{
		Use:          "microloan",
		Short:        "Microfinance loan calculator and back office API",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.LoadConfiguration(state.configPath)
			if err != nil {
				return err
			}
			logger, err := initializeLogger(conf.Logging, state.logLevel)
			if err != nil {
				return err
			}
			warnings, err := conf.ValidateConfiguration()
			if err != nil {
				return err
			}
			for _, warning := range warnings {
				logger.Warn("Configuration warning: "+warning,
					zap.String("op", "main"),
				)
			}
			state.conf = conf
			state.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.logger != nil {
				_ = state.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", constants.DefaultConfigFile, "path to configuration file")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		serveCmd(state),
		installmentCmd(state),
		scheduleCmd(state),
		payoffCmd(state),
		allocateCmd(state),
	)
	return root
}
