// Package main provides the entry point for the waterworks CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/amanzav/waterworks/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "waterworks",
	Short: "Cover letter automation for WaterlooWorks",
	Long: "Waterworks crawls a WaterlooWorks folder, generates tailored cover letters " +
		"with an LLM, renders them as PDFs and uploads them to the portal.",
}

var (
	flagConfig  string
	flagVerbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default ~/.waterworks/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	cobra.OnInitialize(setupLogging)
}

func setupLogging() {
	level := log.InfoLevel
	if flagVerbose {
		level = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level:  level,
		Writer: &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true},
	}
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.DefaultPath()
}

// loadConfig loads and validates the configuration for commands that need a
// complete one.
func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (edit %s)", err, path)
	}
	return cfg, nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
