package config

import (
	"flag"
	"os"
	"time"

	"github.com/mkarpenko/moneta/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   data directory holding the encrypted store files
//	-w int      debounce window for cache rebuilds, in milliseconds
//	-s string   filesystem sync root
//	-b string   S3 bucket for cloud sync
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-w", "-s", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory for encrypted stores")
	debounceMs := fs.Int("w", int(cfg.DebounceWindow.Milliseconds()), "debounce window (in milliseconds)")
	fs.StringVar(&cfg.SyncRoot, "s", cfg.SyncRoot, "filesystem sync root")
	fs.StringVar(&cfg.SyncBucket, "b", cfg.SyncBucket, "S3 bucket for cloud sync")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.DebounceWindow = time.Duration(*debounceMs) * time.Millisecond
}
