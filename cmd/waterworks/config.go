package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amanzav/waterworks/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage waterworks configuration",
	Long: "Show, initialize or edit the configuration file. " +
		"Values are addressed by dot path, e.g. 'llm.model'.",
	RunE: runConfig,
}

var (
	configShow bool
	configInit bool
	configSet  string
)

func init() {
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show current configuration")
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write a starter configuration file")
	configCmd.Flags().StringVar(&configSet, "set", "", "Set a value as KEY=VALUE (e.g. --set llm.model=gemini-1.5-pro)")

	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	switch {
	case configInit:
		if err := config.WriteStarter(path); err != nil {
			return err
		}
		fmt.Printf("Wrote starter configuration to %s\n", path)
		fmt.Println("Edit it and run 'waterworks generate' to get started.")
		return nil

	case configSet != "":
		key, value, ok := strings.Cut(configSet, "=")
		if !ok || key == "" {
			return fmt.Errorf("--set wants KEY=VALUE, got %q", configSet)
		}
		doc, err := config.LoadDocument(path)
		if err != nil {
			return err
		}
		if err := doc.Set(key, value); err != nil {
			return err
		}
		if err := doc.Save(); err != nil {
			return err
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil

	case configShow:
		return showConfig(path)

	default:
		return cmd.Help()
	}
}

func showConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Config file: %s\n\n", path)

	fmt.Println("Profile:")
	fmt.Printf("  Name:            %s\n", orUnset(cfg.Profile.Name))
	fmt.Printf("  Email:           %s\n", orUnset(cfg.Profile.Email))
	fmt.Printf("  Resume text:     %s\n", lengthOrUnset(cfg.Profile.ResumeText))
	fmt.Printf("  Additional info: %s\n", lengthOrUnset(cfg.Profile.AdditionalInfo))
	fmt.Printf("  Signature:       %s\n", lengthOrUnset(cfg.Profile.Signature))

	fmt.Println("WaterlooWorks:")
	fmt.Printf("  Username: %s\n", orUnset(cfg.WaterlooWorks.Username))
	fmt.Printf("  Password: %s\n", masked(cfg.WaterlooWorks.Password, "(not set - will prompt)"))

	fmt.Println("LLM:")
	fmt.Printf("  Provider: %s\n", orUnset(cfg.LLM.Provider))
	fmt.Printf("  Model:    %s\n", orUnset(cfg.LLM.Model))
	fmt.Printf("  API key:  %s\n", masked(cfg.APIKey(), "(not set)"))

	fmt.Println("Paths:")
	fmt.Printf("  Cover letters: %s\n", cfg.Paths.CoverLettersDir)
	fmt.Printf("  Data:          %s\n", cfg.Paths.DataDir)

	fmt.Println("Defaults:")
	fmt.Printf("  Folder:    %s\n", cfg.Defaults.FolderName)
	fmt.Printf("  Job board: %s\n", cfg.Defaults.JobBoard)

	fmt.Println("Browser:")
	fmt.Printf("  Headless: %v\n", cfg.Browser.Headless)

	fmt.Println("Cover letter:")
	if cfg.CoverLetter.Prompt != "" {
		fmt.Printf("  Custom prompt: %d chars\n", len(cfg.CoverLetter.Prompt))
	} else {
		fmt.Println("  Custom prompt: (using default)")
	}
	return nil
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

func lengthOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return fmt.Sprintf("%d chars", len(v))
}

func masked(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return "***"
}
