package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "OSUFETCH_"

// Config holds all configuration options for the beatmap fetcher
type Config struct {
	// osu! API credentials and endpoints
	Osu OsuConfig `yaml:"osu" json:"osu"`

	// Beatmap mirror the archives are downloaded from
	Mirror MirrorConfig `yaml:"mirror" json:"mirror"`

	// Players to watch and round pacing
	Watch WatchConfig `yaml:"watch" json:"watch"`

	// Local directories and the identity database
	Storage StorageConfig `yaml:"storage" json:"storage"`

	Download       DownloadConfig       `yaml:"download" json:"download"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" json:"rate_limit"`
	Retry          RetryConfig          `yaml:"retry" json:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
	Metrics        MetricsConfig        `yaml:"metrics" json:"metrics"`
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`
}

// OsuConfig holds osu! API configuration. APIKey authenticates v1 requests,
// ClientID/ClientSecret obtain a v2 client-credentials token.
type OsuConfig struct {
	APIKey       string `yaml:"api_key" json:"api_key"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	APIv1URL     string `yaml:"api_v1_url" json:"api_v1_url"`
	APIv2URL     string `yaml:"api_v2_url" json:"api_v2_url"`
	TokenURL     string `yaml:"token_url" json:"token_url"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`

	// RequestTimeout bounds a single API request; mirror downloads use
	// download.download_timeout
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// MirrorConfig holds beatmap mirror configuration
type MirrorConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	ArchiveExt string `yaml:"archive_ext" json:"archive_ext"`
}

// WatchConfig holds the watch list and pacing
type WatchConfig struct {
	Players          []string      `yaml:"players" json:"players"`
	PacingPerPlayer  time.Duration `yaml:"pacing_per_player" json:"pacing_per_player"`
	IncludeFails     bool          `yaml:"include_fails" json:"include_fails"`
	FetchConcurrency int           `yaml:"fetch_concurrency" json:"fetch_concurrency"`
}

// StorageConfig holds local paths
type StorageConfig struct {
	SongsDirectory   string `yaml:"songs_directory" json:"songs_directory"`
	NewMapsDirectory string `yaml:"new_maps_directory" json:"new_maps_directory"`
	DatabaseFile     string `yaml:"database_file" json:"database_file"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds retry settings for API calls
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// CircuitBreakerConfig holds circuit breaker settings shared by the API and mirror clients
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" json:"max_requests"`
	Interval         time.Duration `yaml:"interval" json:"interval"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" json:"failure_threshold"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Osu: OsuConfig{
			APIv1URL:  "https://osu.ppy.sh/api",
			APIv2URL:  "https://osu.ppy.sh/api/v2",
			TokenURL:  "https://osu.ppy.sh/oauth/token",
			UserAgent:      "osufetch/1.0",
			RequestTimeout: 15 * time.Second,
		},
		Mirror: MirrorConfig{
			BaseURL:    "https://api.chimu.moe",
			ArchiveExt: ".osz",
		},
		Watch: WatchConfig{
			PacingPerPlayer:  2 * time.Second,
			IncludeFails:     true,
			FetchConcurrency: 8,
		},
		Storage: StorageConfig{
			SongsDirectory:   "./Songs",
			NewMapsDirectory: "./beatmaps",
			DatabaseFile:     DefaultDatabasePath(),
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         5,
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxAttempts:  3,
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultDatabasePath returns the identity database location under the
// XDG data directory, falling back to ~/.local/share.
func DefaultDatabasePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "identities.json"
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "osufetch", "identities.json")
}

func getenv(name string) string {
	return os.Getenv(envPrefix + name)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := getenv("API_KEY"); v != "" {
		c.Osu.APIKey = v
	}
	if v := getenv("CLIENT_ID"); v != "" {
		c.Osu.ClientID = v
	}
	if v := getenv("CLIENT_SECRET"); v != "" {
		c.Osu.ClientSecret = v
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUEST_TIMEOUT: %w", envPrefix, err))
		} else {
			c.Osu.RequestTimeout = d
		}
	}
	if v := getenv("MIRROR_URL"); v != "" {
		c.Mirror.BaseURL = v
	}

	if v := getenv("PLAYERS"); v != "" {
		c.Watch.Players = splitList(v)
	}
	if v := getenv("PACING_PER_PLAYER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPACING_PER_PLAYER: %w", envPrefix, err))
		} else {
			c.Watch.PacingPerPlayer = d
		}
	}

	if v := getenv("SONGS_DIR"); v != "" {
		c.Storage.SongsDirectory = v
	}
	if v := getenv("NEW_MAPS_DIR"); v != "" {
		c.Storage.NewMapsDirectory = v
	}
	if v := getenv("DATABASE_FILE"); v != "" {
		c.Storage.DatabaseFile = v
	}

	if v := getenv("CONCURRENT_DOWNLOADS"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}
	if v := getenv("REQUESTS_PER_MINUTE"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if v := getenv("METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true"
	}
	if v := getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile returns the first existing config file in the standard
// locations, or "" if there is none.
func FindConfigFile() string {
	return (&Config{}).findConfigFile()
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"osufetch.yaml",
		"osufetch.yml",
		filepath.Join(home, ".config", "osufetch", "config.yaml"),
		filepath.Join(home, ".config", "osufetch", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is structurally valid. Credentials
// and the watch list are checked separately by ValidateForWatch since they
// may come from the credential store.
func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"osu.api_v1_url":  c.Osu.APIv1URL,
		"osu.api_v2_url":  c.Osu.APIv2URL,
		"osu.token_url":   c.Osu.TokenURL,
		"mirror.base_url": c.Mirror.BaseURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL", name))
		}
	}
	if !strings.HasPrefix(c.Mirror.ArchiveExt, ".") {
		errs = append(errs, errors.New("mirror.archive_ext must start with a dot"))
	}

	if c.Watch.PacingPerPlayer < 0 {
		errs = append(errs, errors.New("pacing per player cannot be negative"))
	}
	if c.Watch.FetchConcurrency <= 0 {
		errs = append(errs, errors.New("fetch concurrency must be positive"))
	}

	if c.Storage.NewMapsDirectory == "" {
		errs = append(errs, errors.New("new maps directory is required"))
	}
	if c.Storage.DatabaseFile == "" {
		errs = append(errs, errors.New("database file is required"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Osu.RequestTimeout <= 0 {
		errs = append(errs, errors.New("osu! API request timeout must be positive"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			errs = append(errs, errors.New("retry max attempts must be positive"))
		}
		if c.Retry.Multiplier < 1 {
			errs = append(errs, errors.New("retry multiplier must be at least 1"))
		}
	}

	if c.CircuitBreaker.FailureThreshold == 0 {
		errs = append(errs, errors.New("circuit breaker failure threshold must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		errs = append(errs, errors.New("invalid log format"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateForWatch checks what the watch loop needs on top of Validate
func (c *Config) ValidateForWatch() error {
	var errs []error

	if len(c.Watch.Players) == 0 {
		errs = append(errs, errors.New("at least one player to watch is required"))
	}
	if c.Osu.APIKey == "" {
		errs = append(errs, errors.New("osu! API key is required"))
	}
	if c.Osu.ClientID == "" || c.Osu.ClientSecret == "" {
		errs = append(errs, errors.New("osu! OAuth client id and secret are required"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if players, ok := flags["players"].([]string); ok && len(players) > 0 {
		c.Watch.Players = players
	}
	if pacing, ok := flags["pacing"].(time.Duration); ok && pacing > 0 {
		c.Watch.PacingPerPlayer = pacing
	}
	if dir, ok := flags["songs-dir"].(string); ok && dir != "" {
		c.Storage.SongsDirectory = dir
	}
	if dir, ok := flags["output"].(string); ok && dir != "" {
		c.Storage.NewMapsDirectory = dir
	}
	if db, ok := flags["database"].(string); ok && db != "" {
		c.Storage.DatabaseFile = db
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if enabled, ok := flags["metrics"].(bool); ok && enabled {
		c.Metrics.Enabled = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".osufetch.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
