package watcher

import (
	"context"

	"osufetch/internal/downloader"
	"osufetch/pkg/dedupe"
	"osufetch/pkg/models"
)

// IdentityResolver maps display names to user ids
type IdentityResolver interface {
	Resolve(ctx context.Context, name string) (int, error)
}

// ScoreFetcher refreshes players' recent scores
type ScoreFetcher interface {
	FetchAll(ctx context.Context, players []*models.Player)
}

// CandidateSource picks and reserves the sets to download
type CandidateSource interface {
	Candidates(players []*models.Player) []dedupe.Candidate
}

// SetDownloader settles reserved sets
type SetDownloader interface {
	Run(ctx context.Context, candidates []dedupe.Candidate) downloader.Summary
}

// Flusher persists buffered state
type Flusher interface {
	Flush() error
}
