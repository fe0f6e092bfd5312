// Package logger provides the structured logging interface used across osufetch.
//
// It wraps zerolog. Console output is colourised unless logging.format is
// "json"; when logging.file is set every entry is also appended to that file.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("player", "mrekk").Info("recent scores found")
//	log.WithError(err).WarnWithFields("Couldn't download beatmap set", map[string]interface{}{
//	    "set_id": 1234,
//	})
//
// Tests use NewTestLogger to capture entries, or NewNopLogger to discard them.
package logger
