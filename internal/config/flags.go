package config

import (
	"flag"
	"os"
	"time"

	"github.com/mkravtsov/cropsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-f string   path of the local database file
//	-a string   base URL of the backend server
//	-d string   device identifier stamped on local mutations
//	-i int      online check interval in seconds
//	-b int      sync batch limit
//	-r int      per-entry retry ceiling
//	-t int      remote request timeout in seconds
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-f", "-a", "-d", "-i", "-b", "-r", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "path of the local database file")
	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "base URL of the backend server")
	fs.StringVar(&cfg.DeviceID, "d", cfg.DeviceID, "device identifier")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.IntVar(&cfg.SyncBatchLimit, "b", cfg.SyncBatchLimit, "max outbox entries per sync pass")
	fs.IntVar(&cfg.MaxRetries, "r", cfg.MaxRetries, "per-entry retry ceiling")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "remote request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
