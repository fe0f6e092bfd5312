package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"osufetch/internal/downloader"
	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/logger"
	"osufetch/pkg/metrics"
	"osufetch/pkg/models"
	"osufetch/pkg/retry"
)

// ErrNoPlayers is returned when a round has no resolved player to watch
var ErrNoPlayers = errors.New("no players could be resolved")

// State is the current phase of the poll loop
type State int32

const (
	StateInit State = iota
	StateResolving
	StateFetching
	StateDownloading
	StateWaiting
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateResolving:
		return "RESOLVING"
	case StateFetching:
		return "FETCHING"
	case StateDownloading:
		return "DOWNLOADING"
	case StateWaiting:
		return "WAITING"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures the poll loop
type Options struct {
	Players         []string
	PacingPerPlayer time.Duration
	// Once stops after the first round
	Once bool
}

// Deps are the collaborators driven by the poll loop
type Deps struct {
	Resolver   IdentityResolver
	Fetcher    ScoreFetcher
	Dedupe     CandidateSource
	Downloader SetDownloader
	Cache      Flusher
	// Closers run on shutdown, after the cache is flushed
	Closers []func()
	// OnRound is called after every completed round
	OnRound func(iteration int, sum downloader.Summary)
	Logger  logger.Logger
	Metrics *metrics.Recorder
	// Sleep waits for d or until ctx is done; defaults to retry.Wait
	Sleep func(ctx context.Context, d time.Duration) error
}

// Watcher repeatedly polls watched players and downloads new beatmap sets
type Watcher struct {
	opts    Options
	deps    Deps
	logger  logger.Logger
	metrics *metrics.Recorder
	sleep   func(ctx context.Context, d time.Duration) error

	state     atomic.Int32
	pending   []string
	players   []*models.Player
	iteration int
}

// New creates a Watcher. Duplicate and blank names are dropped.
func New(opts Options, deps Deps) *Watcher {
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = retry.Wait
	}

	seen := make(map[string]bool, len(opts.Players))
	var pending []string
	for _, name := range opts.Players {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		pending = append(pending, name)
	}

	return &Watcher{
		opts:    opts,
		deps:    deps,
		logger:  log.WithField("component", "watcher"),
		metrics: deps.Metrics,
		sleep:   sleep,
		pending: pending,
	}
}

// State returns the current phase
func (w *Watcher) State() State {
	return State(w.state.Load())
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
}

// Run drives rounds until ctx is done, the single round of Once mode has
// completed, or a round has no resolved player. Cancellation is a clean
// shutdown and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	w.setState(StateInit)
	logger.LogComponentStart(w.logger, "watcher", map[string]interface{}{
		"players":           len(w.pending),
		"pacing_per_player": w.opts.PacingPerPlayer,
		"once":              w.opts.Once,
	})
	defer w.shutdown()

	for {
		if ctx.Err() != nil {
			return nil
		}

		w.resolvePending(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if len(w.players) == 0 {
			w.logger.Error("No players could be resolved")
			return ErrNoPlayers
		}

		w.round(ctx)
		if w.opts.Once || ctx.Err() != nil {
			return nil
		}

		if err := w.wait(ctx); err != nil {
			return nil
		}
	}
}

// resolvePending tries every unresolved name. Names that fail stay pending
// and are retried next round.
func (w *Watcher) resolvePending(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}
	w.setState(StateResolving)

	callCtx := context.WithoutCancel(ctx)
	var still []string
	for _, name := range w.pending {
		if ctx.Err() != nil {
			still = append(still, name)
			continue
		}
		id, err := w.deps.Resolver.Resolve(callCtx, name)
		if err != nil {
			if !apperrors.IsKind(err, apperrors.ErrorTypeNotFound) {
				w.logger.WithError(err).WarnWithFields("Player will be retried next round", map[string]interface{}{
					"player": name,
				})
			}
			still = append(still, name)
			continue
		}
		w.players = append(w.players, &models.Player{DisplayName: name, ID: id})
	}
	w.pending = still
	w.metrics.SetPlayersResolved(len(w.players))
}

func (w *Watcher) round(ctx context.Context) {
	w.iteration++
	start := time.Now()
	log := w.logger.WithFields(map[string]interface{}{
		"round_id":  uuid.NewString(),
		"iteration": w.iteration,
	})
	log.Info(fmt.Sprintf("iteration %d", w.iteration))

	w.setState(StateFetching)
	w.deps.Fetcher.FetchAll(context.WithoutCancel(ctx), w.players)
	if ctx.Err() != nil {
		log.Info("Shutdown requested, skipping downloads")
		return
	}

	w.setState(StateDownloading)
	candidates := w.deps.Dedupe.Candidates(w.players)
	sum := w.deps.Downloader.Run(ctx, candidates)

	elapsed := time.Since(start)
	log.Info(fmt.Sprintf("downloaded %d beatmap sets this round", sum.Downloaded))
	logger.LogRound(log, w.iteration, len(w.players), len(candidates), sum.Downloaded, sum.Failed, elapsed)
	w.metrics.RoundCompleted(elapsed)
	if w.deps.OnRound != nil {
		w.deps.OnRound(w.iteration, sum)
	}
}

// PacingDelay is the pause between rounds for n resolved players
func PacingDelay(perPlayer time.Duration, n int) time.Duration {
	return perPlayer * time.Duration(n)
}

// wait sleeps for the pacing delay in one-second steps, logging progress
func (w *Watcher) wait(ctx context.Context) error {
	w.setState(StateWaiting)
	total := PacingDelay(w.opts.PacingPerPlayer, len(w.players))
	if total <= 0 {
		return ctx.Err()
	}

	steps := int(total / time.Second)
	if rem := total % time.Second; rem > 0 {
		if err := w.sleep(ctx, rem); err != nil {
			return err
		}
	}
	for i := 1; i <= steps; i++ {
		if err := w.sleep(ctx, time.Second); err != nil {
			return err
		}
		w.logger.Info(fmt.Sprintf("rate limit waiting %d/%d seconds", i, steps))
	}
	return nil
}

func (w *Watcher) shutdown() {
	w.setState(StateShutdown)

	if w.deps.Cache != nil {
		if err := w.deps.Cache.Flush(); err != nil {
			w.logger.WithError(err).Error("Failed to flush identity cache")
		}
	}
	for _, c := range w.deps.Closers {
		c()
	}
	logger.LogComponentStop(w.logger, "watcher", "shutdown")
}
