// Package dedupe turns a round's scores into a list of beatmap sets that
// still need downloading. Every emitted set id is reserved in the registry
// before it is returned, so a set can only be scheduled once per round.
package dedupe

import (
	"fmt"

	"osufetch/pkg/logger"
	"osufetch/pkg/metrics"
	"osufetch/pkg/models"
	"osufetch/pkg/registry"
)

// Candidate is a reserved beatmap set awaiting download
type Candidate struct {
	SetID  int
	Title  string
	Player string
}

// LocalMaps reports whether a set is already on disk
type LocalMaps interface {
	Exists(setID int) bool
}

// Deduplicator filters scores against the registry and local storage
type Deduplicator struct {
	registry *registry.Registry
	local    LocalMaps
	logger   logger.Logger
	metrics  *metrics.Recorder
}

// New creates a Deduplicator
func New(reg *registry.Registry, local LocalMaps, log logger.Logger, m *metrics.Recorder) *Deduplicator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Deduplicator{
		registry: reg,
		local:    local,
		logger:   log.WithField("component", "dedupe"),
		metrics:  m,
	}
}

// Candidates walks every player's scores in order and returns the sets
// that were newly reserved. Sets found on disk are committed instead.
func (d *Deduplicator) Candidates(players []*models.Player) []Candidate {
	var out []Candidate
	for _, p := range players {
		for _, s := range p.MostRecentScores {
			setID, ok := s.SetID()
			if !ok {
				d.metrics.DedupDecision(metrics.DecisionNoSet)
				continue
			}

			if d.registry.Contains(setID) {
				d.metrics.DedupDecision(metrics.DecisionRegistry)
				d.logger.Debug(fmt.Sprintf("already have %s", s.Title()))
				continue
			}

			if d.local != nil && d.local.Exists(setID) {
				d.registry.Commit(setID)
				d.metrics.DedupDecision(metrics.DecisionLocal)
				d.logger.DebugWithFields("already in new maps folder", map[string]interface{}{
					"set_id": setID,
				})
				continue
			}

			// lost the race to another score in this batch
			if !d.registry.Reserve(setID) {
				d.metrics.DedupDecision(metrics.DecisionRegistry)
				continue
			}
			d.metrics.DedupDecision(metrics.DecisionCandidate)
			out = append(out, Candidate{SetID: setID, Title: s.Title(), Player: p.DisplayName})
		}
	}
	d.metrics.SetRegistrySize(d.registry.Len())
	return out
}
