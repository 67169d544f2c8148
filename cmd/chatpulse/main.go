// Package main is the chatpulse command line: it runs the bot and offers one-shot
// maintenance commands against its database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgard/chatpulse/internal/config"
	"github.com/edgard/chatpulse/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "chatpulse",
	Short: "Telegram bot that tracks chat activity, mentions and (opt-in) searchable history",
	Args:  cobra.NoArgs,
	// Running without a subcommand starts the bot.
	RunE:          runBot,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml",
		"Path to the configuration file. Missing files fall back to defaults and CHATPULSE_* variables.")
	rootCmd.AddCommand(runCmd, migrateCmd, rollupCmd, deadLettersCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the configured logger as default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Debug("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON, "config", configPath)
	return cfg, nil
}
