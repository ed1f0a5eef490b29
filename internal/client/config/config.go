package config

import "time"

// Config holds runtime settings for the sync daemon.
type Config struct {
	ServerID  string
	ServerURL string
	APIKey    string
	DBPath    string

	SyncInterval time.Duration
	// Backoff of whole failed passes.
	RetryBase time.Duration
	RetryCap  time.Duration
	RetryMax  uint64

	OpMaxAttempts int
	HTTPTimeout   time.Duration

	LogLevel string
	LogFile  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerID = "default"
	c.ServerURL = "http://127.0.0.1:8080"
	c.DBPath = "data/autoledger.db"
	c.SyncInterval = 6 * time.Hour
	c.RetryBase = 30 * time.Second
	c.RetryCap = 10 * time.Minute
	c.RetryMax = 5
	c.OpMaxAttempts = 5
	c.HTTPTimeout = 30 * time.Second
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
