package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"osufetch/pkg/identity"
	"osufetch/pkg/logger"
	"osufetch/pkg/store"
	"osufetch/pkg/ui"
)

var assumeYes bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the player identity cache",
	Long: `Inspect and edit the cache mapping player names to osu! user ids.

The cache lives in storage.database_file and is filled automatically by
'osufetch watch'. Removing a name forces it to be looked up again.`,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List cached players",
	Run:   runCacheShow,
}

var cacheForgetCmd = &cobra.Command{
	Use:   "forget <player...>",
	Short: "Remove players from the cache",
	Args:  cobra.MinimumNArgs(1),
	Run:   runCacheForget,
}

var cacheResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every cached player",
	Run:   runCacheReset,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheForgetCmd)
	cacheCmd.AddCommand(cacheResetCmd)

	cacheCmd.PersistentFlags().StringVar(&database, "database", "", "identity cache file")
	cacheResetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func openCache() *identity.Cache {
	flags := map[string]interface{}{}
	if database != "" {
		flags["database"] = database
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		os.Exit(1)
	}

	s, err := store.Open(cfg.Storage.DatabaseFile, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to open identity cache", err)
		os.Exit(1)
	}
	return identity.NewCache(s)
}

func runCacheShow(cmd *cobra.Command, args []string) {
	cache := openCache()
	entries := cache.Entries()

	if len(entries) == 0 {
		ui.PrintInfo("No cached players", cache.Path())
		return
	}

	names := make([]string, 0, len(entries))
	width := 0
	for name := range entries {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%-*s  %d\n", width, name, entries[name])
	}
	fmt.Println()
	fmt.Println(ui.Dim(fmt.Sprintf("%d players in %s", len(names), cache.Path())))
}

func runCacheForget(cmd *cobra.Command, args []string) {
	cache := openCache()

	for _, name := range args {
		name = strings.TrimSpace(name)
		removed, err := cache.Forget(name)
		if err != nil {
			ui.PrintError("Failed to remove "+name, err)
			os.Exit(1)
		}
		if !removed {
			ui.PrintWarning("Not cached", name)
			continue
		}
		ui.PrintSuccess("Removed " + name)
	}
}

func runCacheReset(cmd *cobra.Command, args []string) {
	cache := openCache()

	if !assumeYes {
		fmt.Printf("Remove all %d cached players from %s? (y/N): ", len(cache.Entries()), cache.Path())
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	if err := cache.Reset(); err != nil {
		ui.PrintError("Failed to reset identity cache", err)
		os.Exit(1)
	}
	ui.PrintSuccess("Identity cache cleared")
}
