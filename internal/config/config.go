// Package config holds runtime settings for the moneta engine and its CLI
// shell. Values are layered: defaults, then an optional JSON file, then
// command-line flags, with later sources taking precedence.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the moneta store engine.
//
// Fields:
//   - DataDir: directory containing the encrypted store files.
//   - DebounceWindow: how long the change-feed reducer waits for a burst of
//     change notifications to settle before rebuilding the cache.
//   - SyncRoot: filesystem root used by the filesystem sync provider.
//   - SyncBucket: S3 bucket name used by the cloud sync provider.
type Config struct {
	DataDir        string
	DebounceWindow time.Duration
	SyncRoot       string
	SyncBucket     string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserConfigDir()
	if err != nil {
		home = "."
	}
	c.DataDir = filepath.Join(home, "moneta")
	c.DebounceWindow = 5 * time.Millisecond
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
