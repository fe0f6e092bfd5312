package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.chimu.moe", cfg.Mirror.BaseURL)
	assert.Equal(t, ".osz", cfg.Mirror.ArchiveExt)
	assert.Equal(t, 2*time.Second, cfg.Watch.PacingPerPlayer)
	assert.True(t, cfg.Watch.IncludeFails)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 15*time.Second, cfg.Osu.RequestTimeout)
	assert.Less(t, cfg.Osu.RequestTimeout, cfg.Download.DownloadTimeout)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Storage.DatabaseFile)

	require.NoError(t, cfg.Validate())
	// no players or credentials by default
	assert.Error(t, cfg.ValidateForWatch())
}

func TestDefaultDatabasePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "osufetch", "identities.json"), DefaultDatabasePath())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OSUFETCH_API_KEY", "key")
	t.Setenv("OSUFETCH_CLIENT_ID", "1234")
	t.Setenv("OSUFETCH_CLIENT_SECRET", "secret")
	t.Setenv("OSUFETCH_PLAYERS", "cookiezi, mrekk ,,whitecat")
	t.Setenv("OSUFETCH_PACING_PER_PLAYER", "1500ms")
	t.Setenv("OSUFETCH_CONCURRENT_DOWNLOADS", "5")
	t.Setenv("OSUFETCH_NEW_MAPS_DIR", "/tmp/maps")
	t.Setenv("OSUFETCH_METRICS_ENABLED", "TRUE")
	t.Setenv("OSUFETCH_LOG_LEVEL", "debug")
	t.Setenv("OSUFETCH_REQUEST_TIMEOUT", "20s")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "key", cfg.Osu.APIKey)
	assert.Equal(t, "1234", cfg.Osu.ClientID)
	assert.Equal(t, "secret", cfg.Osu.ClientSecret)
	assert.Equal(t, []string{"cookiezi", "mrekk", "whitecat"}, cfg.Watch.Players)
	assert.Equal(t, 1500*time.Millisecond, cfg.Watch.PacingPerPlayer)
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "/tmp/maps", cfg.Storage.NewMapsDirectory)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 20*time.Second, cfg.Osu.RequestTimeout)
	assert.NoError(t, cfg.ValidateForWatch())
}

func TestLoadFromEnvInvalidDuration(t *testing.T) {
	t.Setenv("OSUFETCH_PACING_PER_PLAYER", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PACING_PER_PLAYER")
	assert.Equal(t, 2*time.Second, cfg.Watch.PacingPerPlayer)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osufetch.yaml")
	content := `
watch:
  players: [rafis, vaxei]
  pacing_per_player: 1s
storage:
  songs_directory: /games/osu/Songs
download:
  concurrent_downloads: 2
osu:
  request_timeout: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, []string{"rafis", "vaxei"}, cfg.Watch.Players)
	assert.Equal(t, time.Second, cfg.Watch.PacingPerPlayer)
	assert.Equal(t, "/games/osu/Songs", cfg.Storage.SongsDirectory)
	assert.Equal(t, 2, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 10*time.Second, cfg.Osu.RequestTimeout)
	// untouched sections keep their defaults
	assert.Equal(t, "https://api.chimu.moe", cfg.Mirror.BaseURL)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("watch: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"relative mirror url", func(c *Config) { c.Mirror.BaseURL = "chimu.moe" }, true},
		{"archive ext without dot", func(c *Config) { c.Mirror.ArchiveExt = "osz" }, true},
		{"negative pacing", func(c *Config) { c.Watch.PacingPerPlayer = -time.Second }, true},
		{"zero pacing", func(c *Config) { c.Watch.PacingPerPlayer = 0 }, false},
		{"no request timeout", func(c *Config) { c.Osu.RequestTimeout = 0 }, true},
		{"no workers", func(c *Config) { c.Download.ConcurrentDownloads = 0 }, true},
		{"too many workers", func(c *Config) { c.Download.ConcurrentDownloads = 11 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"retry disabled ignores attempts", func(c *Config) {
			c.Retry.Enabled = false
			c.Retry.MaxAttempts = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"players":    []string{"a", "b"},
		"pacing":     3 * time.Second,
		"output":     "/out",
		"concurrent": 4,
		"log-level":  "warn",
		"metrics":    true,
		"songs-dir":  "",
	})

	assert.Equal(t, []string{"a", "b"}, cfg.Watch.Players)
	assert.Equal(t, 3*time.Second, cfg.Watch.PacingPerPlayer)
	assert.Equal(t, "/out", cfg.Storage.NewMapsDirectory)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "./Songs", cfg.Storage.SongsDirectory)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Watch.Players = []string{"btmc"}
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"btmc"}, decoded.Watch.Players)
	assert.Equal(t, cfg.Watch.PacingPerPlayer, decoded.Watch.PacingPerPlayer)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  concurrent_downloads: 2\nlogging:\n  level: error\n"), 0644))

	t.Setenv("HOME", dir)
	t.Setenv("OSUFETCH_CONCURRENT_DOWNLOADS", "4")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
