// Package downloader fetches reserved beatmap sets from the mirror into
// local storage on a bounded worker pool.
package downloader

import (
	"context"
	"time"

	"osufetch/pkg/dedupe"
	"osufetch/pkg/logger"
	"osufetch/pkg/metrics"
	"osufetch/pkg/ratelimit"
	"osufetch/pkg/registry"
)

// Summary totals one Run
type Summary struct {
	Downloaded int
	Failed     int
	Skipped    int
	Bytes      int64
}

// Options configures a Downloader
type Options struct {
	Workers int
	Timeout time.Duration
	Limiter ratelimit.Limiter
}

// Downloader settles a round's candidates
type Downloader struct {
	source   ArchiveSource
	storage  ArchiveStorage
	registry *registry.Registry
	opts     Options
	logger   logger.Logger
	metrics  *metrics.Recorder
}

// New creates a Downloader
func New(source ArchiveSource, storage ArchiveStorage, reg *registry.Registry, opts Options, log logger.Logger, m *metrics.Recorder) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{
		source:   source,
		storage:  storage,
		registry: reg,
		opts:     opts,
		logger:   log.WithField("component", "downloader"),
		metrics:  m,
	}
}

// Run downloads every candidate and returns once each one is committed or
// released. Candidates not yet started when ctx is done are released and
// counted as skipped.
func (d *Downloader) Run(ctx context.Context, candidates []dedupe.Candidate) Summary {
	var sum Summary
	if len(candidates) == 0 {
		return sum
	}

	workers := d.opts.Workers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	pool := NewWorkerPool(ctx, workers, d.source, d.storage, d.registry, d.opts.Limiter, d.opts.Timeout, d.logger)
	pool.Start()

	var unsubmitted []int
	go func() {
		for _, c := range candidates {
			if err := pool.Submit(DownloadJob{SetID: c.SetID, Title: c.Title, Player: c.Player}); err != nil {
				unsubmitted = append(unsubmitted, c.SetID)
			}
		}
		pool.Stop()
	}()

	for res := range pool.Results() {
		switch {
		case res.Success:
			sum.Downloaded++
			sum.Bytes += res.Size
			d.metrics.Download(true, res.Size, res.Duration)
			logger.LogDownload(d.logger, res.Job.SetID, res.Job.Title, res.Size, nil)
		case res.Skipped:
			sum.Skipped++
		default:
			sum.Failed++
			d.metrics.Download(false, 0, res.Duration)
			logger.LogDownload(d.logger, res.Job.SetID, res.Job.Title, 0, res.Error)
		}
	}

	// the results channel closes after the submitter is done with unsubmitted
	for _, id := range unsubmitted {
		d.registry.Release(id)
		sum.Skipped++
	}
	if sum.Skipped > 0 {
		d.logger.InfoWithFields("Shutting down, released pending downloads", map[string]interface{}{
			"skipped": sum.Skipped,
		})
	}

	d.metrics.SetRegistrySize(d.registry.Len())
	return sum
}
