package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/autoledger/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered with flagx.FilterArgs first so that -c/-config and flags of other
// components do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-u", "-k", "-d", "-i", "-t", "-m", "-r", "-l", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerID, "s", cfg.ServerID, "server profile id")
	fs.StringVar(&cfg.ServerURL, "u", cfg.ServerURL, "base URL of the expense server")
	fs.StringVar(&cfg.APIKey, "k", cfg.APIKey, "API key")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "path of the local database")
	fs.DurationVar(&cfg.SyncInterval, "i", cfg.SyncInterval, "periodic sync interval")
	fs.DurationVar(&cfg.HTTPTimeout, "t", cfg.HTTPTimeout, "timeout of a single remote call")
	fs.IntVar(&cfg.OpMaxAttempts, "m", cfg.OpMaxAttempts, "attempt ceiling of a queued operation")
	fs.Uint64Var(&cfg.RetryMax, "r", cfg.RetryMax, "retries of a failed sync pass")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFile, "f", cfg.LogFile, "log file (stdout when empty)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
