package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RoundCompleted(time.Second)
		r.SetPlayersResolved(3)
		r.IdentityLookup(LookupCacheHit)
		r.ScoreFetch(true)
		r.DedupDecision(DecisionCandidate)
		r.Download(true, 10, time.Second)
		r.SetRegistrySize(1)
		r.SetBreakerState("osu", 0)
	})
}

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.RoundCompleted(2 * time.Second)
	r.RoundCompleted(time.Second)
	r.IdentityLookup(LookupNotFound)
	r.ScoreFetch(false)
	r.DedupDecision(DecisionLocal)
	r.DedupDecision(DecisionLocal)
	r.Download(true, 2048, time.Second)
	r.Download(false, 0, time.Second)
	r.SetRegistrySize(12)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.rounds))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.identityLookups.WithLabelValues(LookupNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scoreFetches.WithLabelValues("unavailable")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.dedupDecisions.WithLabelValues(DecisionLocal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.downloads.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.downloads.WithLabelValues("failed")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(r.downloadBytes))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.registrySize))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.RoundCompleted(time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "osufetch_rounds_total 1")
}
