package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogDownload logs the outcome of one beatmap set download
func LogDownload(l Logger, setID int, title string, size int64, err error) {
	entry := l.WithFields(map[string]interface{}{
		"set_id": setID,
		"title":  title,
	})

	if err != nil {
		entry.WithError(err).Warn("Couldn't download beatmap set")
		return
	}
	entry.InfoWithFields("Beatmap set downloaded", map[string]interface{}{"bytes": size})
}

// LogRateLimit logs rate limiting events
func LogRateLimit(l Logger, endpoint string, retryAfter time.Duration) {
	l.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogRound logs the end-of-round totals
func LogRound(l Logger, iteration int, players, candidates, downloaded, failed int, elapsed time.Duration) {
	l.InfoWithFields("Round complete", map[string]interface{}{
		"iteration":  iteration,
		"players":    players,
		"candidates": candidates,
		"downloaded": downloaded,
		"failed":     failed,
		"elapsed":    elapsed,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(settings) > 0 {
		entry = entry.WithFields(settings)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(string)                                     {}
func (n *nopLogger) Info(string)                                      {}
func (n *nopLogger) Warn(string)                                      {}
func (n *nopLogger) Error(string)                                     {}
func (n *nopLogger) Fatal(string)                                     {}
func (n *nopLogger) WithField(string, interface{}) Logger             { return n }
func (n *nopLogger) WithFields(map[string]interface{}) Logger         { return n }
func (n *nopLogger) WithError(error) Logger                           { return n }
func (n *nopLogger) WithContext(context.Context) Logger               { return n }
func (n *nopLogger) DebugWithFields(string, map[string]interface{})   {}
func (n *nopLogger) InfoWithFields(string, map[string]interface{})    {}
func (n *nopLogger) WarnWithFields(string, map[string]interface{})    {}
func (n *nopLogger) ErrorWithFields(string, map[string]interface{})   {}
func (n *nopLogger) FatalWithFields(string, map[string]interface{})   {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                      { nop := zerolog.Nop(); return &nop }
