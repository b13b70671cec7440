// Package cli provides the command-line interface for moviescope.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/handsomefox/moviescope/internal/config"
	"github.com/handsomefox/moviescope/internal/env"
	"github.com/handsomefox/moviescope/internal/logger"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	configPath string
	verbose    bool

	cfg      *config.Config
	log      *slog.Logger
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:   "moviescope",
	Short: "Browse TMDB movies and see what everyone searches for",
	Long: `moviescope searches The Movie Database, counts which movies people find
and shows the most searched ones as a trending list.

Run 'moviescope serve' for the web view, or use the search and trending
commands for one-off lookups.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := logger.ParseLevel(cfg.Log.Level)
		if verbose {
			level = slog.LevelDebug
		}
		log, closeLog = logger.New(logger.Options{
			Level: level,
			File:  cfg.Log.File,
			Env:   env.Current,
		})
		slog.SetDefault(log)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(trendingCmd)
}
