// Package main implements the forge CLI, the conversational intent-refinement
// assistant for creative assets.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	forgecfg "intentforge/internal/config"
	"intentforge/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	ownerID    string
	ephemeral  bool
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "intentforge - conversational intent refinement for creative assets",
	Long: `forge turns a rough idea ("a cool emote for my channel") into a precise,
validated generation description through a coached conversation.

The coach asks clarifying questions, separates literal display text from
rendering instructions, grounds time-sensitive topics with fresh search
context, and only hands off once the user has confirmed the vision.

Run without arguments to start an interactive refinement chat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err := forgecfg.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Debug = true
			cfg.Logging.Level = "debug"
		}
		return logging.Initialize(".", logSettings(cfg.Logging))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".forge/forge.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "local", "owner id for session scoping")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep sessions in memory only")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "per-turn timeout")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the forge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("forge 0.4.0")
	},
}

// logSettings maps the YAML logging section onto the category logger.
func logSettings(lc forgecfg.LoggingConfig) logging.Settings {
	return logging.Settings{
		Debug:      lc.Debug,
		Level:      lc.Level,
		JSONFormat: lc.Format == "json",
		Categories: lc.Categories,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
