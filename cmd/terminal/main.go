package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mphinancial/terminal/internal/config"
)

var (
	flagConfig  string
	flagOffline bool
	flagVerbose bool

	cfg *config.Config
)

func main() {
	root := &cobra.Command{
		Use:   "terminal",
		Short: "Market signal scoring and aggregation pipeline",
		Long: "terminal runs independent trading-signal strategies (Power Gauge, stage\n" +
			"classification, CANSLIM, options flow, congressional trades) over cached\n" +
			"provider data and folds them into one composite verdict per ticker.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			return loadConfig()
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config (built-in defaults when empty)")
	root.PersistentFlags().BoolVar(&flagOffline, "offline", false, "serve deterministic synthetic data instead of live providers")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newHealthCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setupLogging() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func loadConfig() error {
	if flagConfig == "" {
		cfg = config.Default()
		return nil
	}
	loaded, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flagConfig, err)
	}
	cfg = loaded
	return nil
}
