package main

import (
	"fmt"
	"os"
	"time"

	"chatharvest/internal/config"
	"chatharvest/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chatharvest",
	Short: "Collect recent chat history from a chat web app and summarize it",
	Long: `chatharvest attaches to a chat application open in Chrome, scrolls its message
list through the accessibility tree and collects the most recent messages.

The collected transcript can be printed as-is or handed to a language model for
a summary and reply suggestions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.For(logger, cfg.Logging, logging.CategoryBoot).Debug("config loaded",
			zap.String("path", configPath),
			zap.String("provider", cfg.LLM.Provider))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Harvest timeout")

	registerHarvestFlags(harvestCmd)
	registerHarvestFlags(assistCmd)
	registerAssistFlags(assistCmd)

	browserCmd.AddCommand(browserLaunchCmd)

	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(assistCmd)
	rootCmd.AddCommand(browserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
