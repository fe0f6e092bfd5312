package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osufetch/pkg/config"
)

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: level, Format: "json"}, &buf)
	require.NoError(t, err)
	return l, &buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"console info", &config.LoggingConfig{Level: "info"}, false},
		{"json debug", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "osufetch.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn")

	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), `"message":"shown"`)
	assert.Contains(t, buf.String(), `"app":"osufetch"`)
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	child := l.WithField("player", "mrekk").WithFields(map[string]interface{}{
		"set_id":  1234,
		"failed":  true,
		"elapsed": 2 * time.Second,
	})
	child.Info("child")
	out := buf.String()
	assert.Contains(t, out, `"player":"mrekk"`)
	assert.Contains(t, out, `"set_id":1234`)
	assert.Contains(t, out, `"failed":true`)

	buf.Reset()
	l.Info("parent")
	assert.NotContains(t, buf.String(), "player")
}

func TestWithError(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("connection reset")).Error("download failed")
	assert.Contains(t, buf.String(), `"error":"connection reset"`)
}

func TestStructuredLogging(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.InfoWithFields("round complete", map[string]interface{}{
		"players":    []string{"a", "b"},
		"downloaded": 3,
		"cause":      errors.New("x"),
	})
	out := buf.String()
	assert.Contains(t, out, `"players":["a","b"]`)
	assert.Contains(t, out, `"downloaded":3`)
	assert.Contains(t, out, `"cause":"x"`)
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogDownload(tl, 42, "Blue Zenith", 1024, nil)
	LogDownload(tl, 43, "Freedom Dive", 0, errors.New("404"))
	LogRound(tl, 1, 3, 2, 1, 1, time.Second)
	LogComponentStart(tl, "watcher", map[string]interface{}{"players": 3})
	LogComponentStop(tl, "watcher", "interrupted")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "INFO", msgs[0].Level)
	assert.Equal(t, 42, msgs[0].Fields["set_id"])
	assert.Equal(t, "WARN", msgs[1].Level)
	assert.EqualError(t, msgs[1].Error, "404")
	assert.Equal(t, "watcher", msgs[3].Fields["component"])
	assert.Equal(t, 3, msgs[3].Fields["players"])
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("a", 1).WithError(errors.New("boom"))
	child.Warn("child")
	tl.Info("root")

	assert.True(t, tl.HasMessage("child"))
	assert.True(t, tl.HasMessageContaining("roo"))
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Nil(t, tl.GetMessagesByLevel("INFO")[0].Fields["a"])

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	t.Cleanup(func() { SetLogger(nil) })

	Info("hello")
	WithField("k", "v").Warn("with field")
	assert.True(t, tl.HasMessage("hello"))
	assert.True(t, tl.HasMessage("with field"))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
	assert.NotNil(t, l.GetZerolog())
}
