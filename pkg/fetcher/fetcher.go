// Package fetcher retrieves the recent plays of watched players.
package fetcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/logger"
	"osufetch/pkg/metrics"
	"osufetch/pkg/models"
)

// ScoreSource returns a user's recent plays
type ScoreSource interface {
	RecentScores(ctx context.Context, userID int, includeFails bool) ([]models.Score, error)
}

// Fetcher fans recent-score requests out over players
type Fetcher struct {
	source       ScoreSource
	includeFails bool
	concurrency  int
	logger       logger.Logger
	metrics      *metrics.Recorder
}

// New creates a Fetcher. concurrency <= 0 means no limit.
func New(source ScoreSource, includeFails bool, concurrency int, log logger.Logger, m *metrics.Recorder) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		source:       source,
		includeFails: includeFails,
		concurrency:  concurrency,
		logger:       log.WithField("component", "fetcher"),
		metrics:      m,
	}
}

// FetchRecent returns the recent plays for id. An empty result and any
// upstream failure are both reported as unavailable.
func (f *Fetcher) FetchRecent(ctx context.Context, id int) ([]models.Score, error) {
	scores, err := f.source.RecentScores(ctx, id, f.includeFails)
	if err != nil {
		return nil, apperrors.Unavailable(err, fmt.Sprintf("recent scores for user %d", id))
	}
	if len(scores) == 0 {
		return nil, apperrors.Unavailable(nil, fmt.Sprintf("no recent scores for user %d", id))
	}
	return scores, nil
}

// FetchAll refreshes MostRecentScores for every player and returns once all
// requests have settled. Players whose scores are unavailable end up with
// nil MostRecentScores. Duplicate ids are fetched once.
func (f *Fetcher) FetchAll(ctx context.Context, players []*models.Player) {
	byID := make(map[int][]*models.Player, len(players))
	order := make([]int, 0, len(players))
	for _, p := range players {
		if _, seen := byID[p.ID]; !seen {
			order = append(order, p.ID)
		}
		byID[p.ID] = append(byID[p.ID], p)
	}

	results := make([][]models.Score, len(order))
	var g errgroup.Group
	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}
	for i, id := range order {
		i, id := i, id
		g.Go(func() error {
			scores, err := f.FetchRecent(ctx, id)
			f.metrics.ScoreFetch(err == nil)
			if err != nil {
				f.logger.WithError(err).DebugWithFields("Recent scores unavailable", map[string]interface{}{
					"user_id": id,
				})
				return nil
			}
			results[i] = scores
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range order {
		for _, p := range byID[id] {
			p.MostRecentScores = results[i]
			if results[i] == nil {
				f.logger.Info(fmt.Sprintf("no recent scores found for %s", p.DisplayName))
			} else {
				f.logger.InfoWithFields(fmt.Sprintf("recent scores found for %s", p.DisplayName), map[string]interface{}{
					"count": len(results[i]),
				})
			}
		}
	}
}
