// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fbzone/internal/config"
	"fbzone/internal/ui"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig    string
	flagOutput    string
	flagSelection string
	flagProxy     string
	flagNoHistory bool
	flagJSON      bool
	flagDebug     bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

// logger is configured in loadConfig.
var logger = slog.Default()

var rootCmd = &cobra.Command{
	Use:   "fbzone",
	Short: "Resolve Facebook videos into uploader identities, audio, video and profile photos",
	Long: `fbzone takes a Facebook video or profile URL and works through a cascade of
fetch, heuristic and browser strategies until it finds the uploader, the media
file, its audio track or the uploader's profile photo.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.New(os.Stderr).Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: $XDG_CONFIG_HOME/fbzone/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Output directory for saved files")
	rootCmd.PersistentFlags().StringVarP(&flagSelection, "selection", "s", "", "Candidate selection policy: second-best | first")
	rootCmd.PersistentFlags().StringVar(&flagProxy, "proxy", "", "Proxy URL applied to every header profile and the browser")
	rootCmd.PersistentFlags().BoolVar(&flagNoHistory, "no-history", false, "Do not record this run in history")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(audioCmd)
	rootCmd.AddCommand(videoCmd)
	rootCmd.AddCommand(photoCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagOutput != "" {
		cfg.OutputDir = flagOutput
	}
	if flagSelection != "" {
		cfg.Selection = flagSelection
	}
	if flagProxy != "" {
		for i := range cfg.Profiles {
			cfg.Profiles[i].Proxy = flagProxy
		}
		cfg.Browser.Proxy = flagProxy
	}
	if flagNoHistory {
		cfg.History = false
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fbzone %s\n", Version)
	},
}
