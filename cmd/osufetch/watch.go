package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"osufetch/internal/downloader"
	"osufetch/pkg/auth"
	"osufetch/pkg/config"
	"osufetch/pkg/logger"
	"osufetch/pkg/ui"
	"osufetch/pkg/watcher"
)

var (
	// Watch command flags
	players     []string
	pacing      time.Duration
	songsDir    string
	outputDir   string
	database    string
	concurrent  int
	withMetrics bool
	once        bool
	notify      bool
	profile     string
)

var watchCmd = &cobra.Command{
	Use:   "watch [player...]",
	Short: "Poll players' recent plays and download new beatmap sets",
	Long: `Watch osu! players and download the beatmap sets from their recent plays.

Players come from the arguments, the --players flag, OSUFETCH_PLAYERS or the
watch.players list of the config file. Every round fetches the recent plays
of all players and then sleeps for pacing × number of players.

Credentials are read from the config file, OSUFETCH_* variables or the
credential store (see 'osufetch auth login').`,
	Example: `  # Watch two players with default settings
  osufetch watch Cookiezi mrekk

  # Run a single round, e.g. from cron
  osufetch watch --once --players Cookiezi,mrekk

  # Custom folders and Prometheus metrics on :9464
  osufetch watch --songs-dir ~/osu/Songs --output ./new --metrics`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVarP(&players, "players", "p", nil, "comma separated player names")
	watchCmd.Flags().DurationVar(&pacing, "pacing", 0, "sleep per watched player between rounds (default 2s)")
	watchCmd.Flags().StringVar(&songsDir, "songs-dir", "", "osu! Songs directory scanned for installed sets")
	watchCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory new archives are written to")
	watchCmd.Flags().StringVar(&database, "database", "", "identity cache file")
	watchCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads (1-10)")
	watchCmd.Flags().BoolVar(&withMetrics, "metrics", false, "serve Prometheus metrics")
	watchCmd.Flags().BoolVar(&once, "once", false, "run a single round and exit")
	watchCmd.Flags().BoolVar(&notify, "notify", false, "desktop notification when new sets are downloaded")
	watchCmd.Flags().StringVar(&profile, "profile", auth.DefaultProfile, "stored credential profile")
}

func watchFlags(args []string) map[string]interface{} {
	flags := map[string]interface{}{
		"pacing":     pacing,
		"songs-dir":  songsDir,
		"output":     outputDir,
		"database":   database,
		"concurrent": concurrent,
		"metrics":    withMetrics,
	}
	names := append([]string{}, args...)
	for _, p := range players {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	if len(names) > 0 {
		flags["players"] = names
	}
	return flags
}

// applyStoredCredentials fills missing osu! credentials from the credential
// store. A missing store or profile is not an error here.
func applyStoredCredentials(cfg *config.Config) {
	if cfg.Osu.APIKey != "" && cfg.Osu.ClientID != "" && cfg.Osu.ClientSecret != "" {
		return
	}
	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Debug("Credential store unavailable")
		return
	}
	creds, err := manager.Retrieve(profile)
	if err != nil {
		return
	}
	creds.ApplyTo(&cfg.Osu)
	logger.WithField("profile", creds.Profile).Info("Using stored credentials")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(watchFlags(args))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyStoredCredentials(cfg)
	if err := cfg.ValidateForWatch(); err != nil {
		ui.PrintWarning("Run 'osufetch auth login' to store osu! credentials")
		return err
	}

	var notifier *ui.Notifier
	opts := appOptions{once: once}
	if notify {
		notifier = ui.NewNotifier()
		opts.onRound = func(iteration int, sum downloader.Summary) {
			if sum.Downloaded > 0 {
				notifier.SendSuccess("osufetch", fmt.Sprintf("%d new beatmap sets downloaded", sum.Downloaded))
			}
		}
	}

	a, err := newApp(cfg, opts)
	if err != nil {
		return err
	}

	ui.PrintBanner()
	ui.PrintInfo("Players", strings.Join(cfg.Watch.Players, ", "))
	ui.PrintInfo("Known beatmap sets", strconv.Itoa(a.registry.Len()))
	ui.PrintInfo("Output", a.storage.NewMapsDir())
	ui.PrintInfo("Identity cache", a.cache.Path())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		ui.PrintInfo("Metrics", "http://"+cfg.Metrics.Addr+"/metrics")
		go func() {
			if err := a.metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				a.log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	a.log.WithField("version", version).Info("osufetch starting")
	err = a.watcher.Run(ctx)
	if errors.Is(err, watcher.ErrNoPlayers) {
		if notifier != nil {
			notifier.SendError("osufetch stopped", "none of the players could be found")
		}
		return fmt.Errorf("%w: check the player names and the API key", err)
	}
	if err != nil {
		return err
	}

	ui.PrintSuccess("Stopped")
	return nil
}
