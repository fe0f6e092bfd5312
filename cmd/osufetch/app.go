package main

import (
	"fmt"

	"osufetch/internal/downloader"
	"osufetch/pkg/config"
	"osufetch/pkg/dedupe"
	"osufetch/pkg/fetcher"
	"osufetch/pkg/httpclient"
	"osufetch/pkg/identity"
	"osufetch/pkg/logger"
	"osufetch/pkg/metrics"
	"osufetch/pkg/mirror"
	"osufetch/pkg/osu"
	"osufetch/pkg/ratelimit"
	"osufetch/pkg/registry"
	"osufetch/pkg/retry"
	"osufetch/pkg/storage"
	"osufetch/pkg/store"
	"osufetch/pkg/watcher"
)

// app owns everything a watch run needs. It is built once at start-up and
// torn down by the watcher's shutdown.
type app struct {
	log      logger.Logger
	metrics  *metrics.Recorder
	cache    *identity.Cache
	storage  *storage.Manager
	registry *registry.Registry
	watcher  *watcher.Watcher
}

type appOptions struct {
	once    bool
	onRound func(iteration int, sum downloader.Summary)
}

func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	log := logger.GetLogger()

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.NewRecorder()
	}

	db, err := store.Open(cfg.Storage.DatabaseFile, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity database: %w", err)
	}
	cache := identity.NewCache(db)

	apiHTTP := httpclient.New(httpclient.Options{
		Name:           "osu",
		Timeout:        cfg.Osu.RequestTimeout,
		UserAgent:      cfg.Osu.UserAgent,
		Limiter:        ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
		CircuitBreaker: cfg.CircuitBreaker,
		Metrics:        rec,
	}, log)
	osuClient := osu.NewClient(cfg.Osu, apiHTTP, retry.FromSettings(cfg.Retry, log), log)

	// the download pool paces mirror requests itself
	mirrorHTTP := httpclient.New(httpclient.Options{
		Name:           "mirror",
		Timeout:        cfg.Download.DownloadTimeout,
		UserAgent:      cfg.Osu.UserAgent,
		CircuitBreaker: cfg.CircuitBreaker,
		Metrics:        rec,
	}, log)
	mirrorClient := mirror.NewClient(cfg.Mirror.BaseURL, mirrorHTTP, log)

	maps, err := storage.NewManager(cfg.Storage.SongsDirectory, cfg.Storage.NewMapsDirectory, cfg.Mirror.ArchiveExt, log)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare map storage: %w", err)
	}
	reg := registry.New(maps.InstalledSets()...)
	rec.SetRegistrySize(reg.Len())

	a := &app{
		log:      log,
		metrics:  rec,
		cache:    cache,
		storage:  maps,
		registry: reg,
	}

	dl := downloader.New(mirrorClient, maps, reg, downloader.Options{
		Workers: cfg.Download.ConcurrentDownloads,
		Timeout: cfg.Download.DownloadTimeout,
		Limiter: ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
	}, log, rec)

	a.watcher = watcher.New(watcher.Options{
		Players:         cfg.Watch.Players,
		PacingPerPlayer: cfg.Watch.PacingPerPlayer,
		Once:            opts.once,
	}, watcher.Deps{
		Resolver:   identity.NewResolver(cache, osuClient, log, rec),
		Fetcher:    fetcher.New(osuClient, cfg.Watch.IncludeFails, cfg.Watch.FetchConcurrency, log, rec),
		Dedupe:     dedupe.New(reg, maps, log, rec),
		Downloader: dl,
		Cache:      cache,
		Closers:    []func(){osuClient.Close, mirrorClient.Close},
		OnRound:    opts.onRound,
		Logger:     log,
		Metrics:    rec,
	})

	return a, nil
}
