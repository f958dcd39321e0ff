package main

import (
	"os"
	"strings"
	"time"

	"BtcInsight/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath, envFile, logLevel string
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:          "btcinsight",
		Short:        "Bitcoin indicators with a short AI-written market insight",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			*cfg = *loaded
			setupLogging(cfg)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", config.Path(), "path to the YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with credentials")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(cfg))
	root.AddCommand(newWatchCmd(cfg))
	root.AddCommand(newHistoryCmd(cfg))
	return root
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
