package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mkarpenko/moneta/internal/flagx"
	"github.com/mkarpenko/moneta/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the debounce window either as a string
// like "5ms" or as integer nanoseconds.
type JsonConfig struct {
	DataDir        string         `json:"data_dir"`
	DebounceWindow timex.Duration `json:"debounce_window"`
	SyncRoot       string         `json:"sync_root"`
	SyncBucket     string         `json:"sync_bucket"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags; if absent, nothing is loaded.
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.DebounceWindow.Duration > 0 {
		cfg.DebounceWindow = time.Duration(jc.DebounceWindow.Duration)
	}
	if jc.SyncRoot != "" {
		cfg.SyncRoot = jc.SyncRoot
	}
	if jc.SyncBucket != "" {
		cfg.SyncBucket = jc.SyncBucket
	}
}
