package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 5*time.Millisecond, cfg.DebounceWindow)
}

func TestLoadConfigJSONOverlay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(file, []byte(
		`{"data_dir":"/tmp/moneta-test","debounce_window":"20ms","sync_root":"/tmp/sync"}`), 0o660))

	orig := os.Args
	defer func() { os.Args = orig }()
	os.Args = []string{"cmd", "-c", file}

	cfg := LoadConfig()
	assert.Equal(t, "/tmp/moneta-test", cfg.DataDir)
	assert.Equal(t, 20*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, "/tmp/sync", cfg.SyncRoot)
}

func TestLoadConfigFlagsOverrideJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"data_dir":"/from/json"}`), 0o660))

	orig := os.Args
	defer func() { os.Args = orig }()
	os.Args = []string{"cmd", "-c", file, "-d", "/from/flag", "-w", "7"}

	cfg := LoadConfig()
	assert.Equal(t, "/from/flag", cfg.DataDir)
	assert.Equal(t, 7*time.Millisecond, cfg.DebounceWindow)
}
