// Package cli wires configuration, engines and front-ends into the sanskrit-reader command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sanskrit-reader/api/internal/config"
	"sanskrit-reader/api/internal/logger"
)

var version = "0.1.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "sanskrit-reader",
	Short: "Translate Sanskrit text and images into English",
	Long: `sanskrit-reader sends Sanskrit text, or a photo of it, to a generative model
and returns an English translation.

Front-ends: a web page with a JSON API ("serve"), a Telegram bot ("bot")
and a one-shot command ("translate").

Configuration comes from environment variables (GEMINI_API_KEY, OPENAI_API_KEY,
LLM_DEFAULT, MODEL_TIMEOUT, MAX_IMAGE_BYTES, TELEGRAM_BOT_TOKEN, WEBHOOK_URL,
DATABASE_URL, ...), optionally overlaid on --config. MODEL_TIMEOUT is seconds
("30") or a duration ("2m"); 0 means no extra limit.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json, toml or .env)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads config and applies the log level. Validation is left to each command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}
