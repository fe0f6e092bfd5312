// Package metrics exposes Prometheus collectors for the poll loop.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "osufetch"

// Identity lookup outcomes
const (
	LookupCacheHit = "cache_hit"
	LookupResolved = "resolved"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

// Dedup decisions
const (
	DecisionCandidate = "candidate"
	DecisionRegistry  = "registry"
	DecisionLocal     = "local"
	DecisionNoSet     = "no_set"
)

// Recorder owns the collectors. A nil *Recorder is valid and records nothing,
// so components can be built without metrics in tests.
type Recorder struct {
	registry prometheus.Gatherer

	rounds           prometheus.Counter
	roundDuration    prometheus.Histogram
	playersResolved  prometheus.Gauge
	identityLookups  *prometheus.CounterVec
	scoreFetches     *prometheus.CounterVec
	dedupDecisions   *prometheus.CounterVec
	downloads        *prometheus.CounterVec
	downloadBytes    prometheus.Counter
	downloadDuration prometheus.Histogram
	registrySize     prometheus.Gauge
	breakerState     *prometheus.GaugeVec
}

// NewRecorder registers all collectors on a fresh registry
func NewRecorder() *Recorder {
	return NewRecorderWithRegistry(prometheus.NewRegistry())
}

// NewRecorderWithRegistry registers all collectors on reg
func NewRecorderWithRegistry(reg *prometheus.Registry) *Recorder {
	auto := promauto.With(reg)

	return &Recorder{
		registry: reg,
		rounds: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Number of completed poll rounds",
		}),
		roundDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time spent resolving, fetching and downloading per round, excluding the pacing sleep",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		playersResolved: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players_resolved",
			Help:      "Watched players with a known numeric id",
		}),
		identityLookups: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_lookups_total",
			Help:      "Display name resolutions by outcome",
		}, []string{"result"}),
		scoreFetches: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_fetches_total",
			Help:      "Recent score fetches by outcome",
		}, []string{"result"}),
		dedupDecisions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_decisions_total",
			Help:      "Per-score download decisions",
		}, []string{"decision"}),
		downloads: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Beatmap set downloads by outcome",
		}, []string{"result"}),
		downloadBytes: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes of beatmap archives written to disk",
		}),
		downloadDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of individual archive downloads",
			Buckets:   prometheus.DefBuckets,
		}),
		registrySize: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_size",
			Help:      "Beatmap set ids currently held by the download registry",
		}),
		breakerState: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
	}
}

func (r *Recorder) RoundCompleted(elapsed time.Duration) {
	if r == nil {
		return
	}
	r.rounds.Inc()
	r.roundDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) SetPlayersResolved(n int) {
	if r == nil {
		return
	}
	r.playersResolved.Set(float64(n))
}

func (r *Recorder) IdentityLookup(result string) {
	if r == nil {
		return
	}
	r.identityLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) ScoreFetch(ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "unavailable"
	}
	r.scoreFetches.WithLabelValues(result).Inc()
}

func (r *Recorder) DedupDecision(decision string) {
	if r == nil {
		return
	}
	r.dedupDecisions.WithLabelValues(decision).Inc()
}

func (r *Recorder) Download(ok bool, size int64, elapsed time.Duration) {
	if r == nil {
		return
	}
	if ok {
		r.downloads.WithLabelValues("success").Inc()
		r.downloadBytes.Add(float64(size))
	} else {
		r.downloads.WithLabelValues("failed").Inc()
	}
	r.downloadDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) SetRegistrySize(n int) {
	if r == nil {
		return
	}
	r.registrySize.Set(float64(n))
}

func (r *Recorder) SetBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(name).Set(float64(state))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
