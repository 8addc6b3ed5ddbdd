package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/voxrelay/internal/config"
	"github.com/harun/voxrelay/internal/logger"
	"github.com/harun/voxrelay/internal/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay service",
	Long: `Run the relay in the foreground: the HTTP API for account login
flows and voice-reply requests, the trigger-command dispatcher for
connected accounts, and the downstream webhook forwarder.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Pretty:    false,
		Redaction: cfg.Logging.Redaction,
	})

	r, err := relay.New(cfg, loader.GetConfigPath(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize relay: %w", err)
	}

	return r.Run()
}
