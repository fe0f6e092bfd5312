package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"osufetch/pkg/auth"
	"osufetch/pkg/config"
	"osufetch/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage osufetch configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (OSUFETCH_*, also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file containing every option at its default value.

The file is created as 'osufetch.yaml' in the current directory unless a
different path is given with --config.`,
	Run: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging all sources. Secrets are masked.`,
	Run:   runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = "osufetch.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	cfg.Watch.Players = []string{"Cookiezi"}
	if err := cfg.Save(path); err != nil {
		ui.PrintError("Failed to create configuration file", err)
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit watch.players and the storage directories")
	fmt.Println("2. Run 'osufetch auth login' to store your osu! API credentials")
	fmt.Println("3. Start watching with 'osufetch watch'")
}

// maskedConfig returns a copy of cfg safe for display
func maskedConfig(cfg *config.Config) config.Config {
	display := *cfg
	masked := auth.Sanitize(&auth.Credentials{
		APIKey:       cfg.Osu.APIKey,
		ClientSecret: cfg.Osu.ClientSecret,
	})
	if cfg.Osu.APIKey != "" {
		display.Osu.APIKey = masked.APIKey
	}
	if cfg.Osu.ClientSecret != "" {
		display.Osu.ClientSecret = masked.ClientSecret
	}
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		os.Exit(1)
	}

	display := maskedConfig(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err)
		os.Exit(1)
	}
	fmt.Print(string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none, defaults and environment only)"
	}
	fmt.Println()
	fmt.Println(ui.Dim("config file: " + source))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		ui.PrintError("No configuration file found", "specify one with --config")
		os.Exit(1)
	}
	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration is invalid", err)
		os.Exit(1)
	}

	if err := cfg.ValidateForWatch(); err != nil {
		ui.PrintWarning("Not ready to watch")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  - %s\n", line)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Players: %s\n", strings.Join(cfg.Watch.Players, ", "))
	fmt.Printf("  Pacing per player: %s\n", cfg.Watch.PacingPerPlayer)
	fmt.Printf("  Songs directory: %s\n", cfg.Storage.SongsDirectory)
	fmt.Printf("  Output directory: %s\n", cfg.Storage.NewMapsDirectory)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
