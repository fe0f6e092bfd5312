package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/logger"
	"osufetch/pkg/ratelimit"
	"osufetch/pkg/registry"
)

// DownloadJob is a single reserved beatmap set to fetch
type DownloadJob struct {
	SetID  int
	Title  string
	Player string
}

// DownloadResult is the outcome of a DownloadJob
type DownloadResult struct {
	Job      DownloadJob
	Success  bool
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int64
}

// ArchiveSource opens beatmap set archives
type ArchiveSource interface {
	Download(ctx context.Context, setID int) (io.ReadCloser, error)
}

// ArchiveStorage persists beatmap set archives
type ArchiveStorage interface {
	Save(setID int, r io.Reader) (int64, error)
}

// WorkerPool manages concurrent download workers. Every job it accepts ends
// with the set either committed or released in the registry.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	source      ArchiveSource
	storage     ArchiveStorage
	registry    *registry.Registry
	rateLimiter ratelimit.Limiter
	timeout     time.Duration
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. Jobs stop being started
// once parent is done; jobs already running finish with their own timeout.
func NewWorkerPool(
	parent context.Context,
	numWorkers int,
	source ArchiveSource,
	storage ArchiveStorage,
	reg *registry.Registry,
	rateLimiter ratelimit.Limiter,
	timeout time.Duration,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(parent)

	if log == nil {
		log = logger.GetLogger()
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		source:      source,
		storage:     storage,
		registry:    reg,
		rateLimiter: rateLimiter,
		timeout:     timeout,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for the workers to drain it and closes the
// result channel. Results must be consumed concurrently.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	// every queued job yields a result so reservations are always settled
	for job := range wp.jobQueue {
		wp.resultQueue <- wp.processJob(job, id)
	}
}

func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}
	fields := map[string]interface{}{
		"worker_id": workerID,
		"set_id":    job.SetID,
	}

	fail := func(err error, skipped bool) DownloadResult {
		wp.registry.Release(job.SetID)
		result.Error = err
		result.Skipped = skipped
		result.Duration = time.Since(start)
		return result
	}

	if err := wp.ctx.Err(); err != nil {
		return fail(err, true)
	}
	if !wp.rateLimiter.Allow() {
		fields["interval"] = wp.rateLimiter.Interval()
		wp.logger.DebugWithFields("Worker waiting for rate limit", fields)
		if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
			return fail(err, true)
		}
	}

	// detached from shutdown so a started download is not cut mid-file
	dlCtx := context.WithoutCancel(wp.ctx)
	if wp.timeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(dlCtx, wp.timeout)
		defer cancel()
	}

	body, err := wp.source.Download(dlCtx, job.SetID)
	if err != nil {
		return fail(err, false)
	}
	defer body.Close()

	size, err := wp.storage.Save(job.SetID, body)
	if err != nil {
		return fail(apperrors.DownloadFailed(0, err, fmt.Sprintf("save set %d", job.SetID)), false)
	}

	wp.registry.Commit(job.SetID)
	result.Success = true
	result.Size = size
	result.Duration = time.Since(start)

	fields["size"] = size
	fields["duration"] = result.Duration
	wp.logger.DebugWithFields("Worker completed job", fields)
	return result
}
