/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/jobtracker/apiserver/config"
	"github.com/jobtracker/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jobtracker",
	Short: "Job application tracker API",
	Long: `Job application tracker API server and tooling.

	jobtracker server          start the HTTP API
	jobtracker migrate up      apply database migrations
	jobtracker events tail     print job application events
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from config and makes it the slog default.
func newLogger(cfg config.Config) *slog.Logger {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return logger
}
