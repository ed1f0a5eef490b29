// Package config loads runtime configuration for the sync daemon.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-s string     server profile id
//	-u string     base URL of the expense server
//	-k string     API key sent in the x-api-key header
//	-d string     path of the local SQLite database
//	-i duration   periodic sync interval
//	-t duration   timeout of a single remote call
//	-m int        attempt ceiling of a queued operation
//	-r int        retries of a failed sync pass
//	-l string     log level (debug, info, warn, error)
//	-f string     log file; empty logs to stdout
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "6h" or integer
// nanoseconds. Keys missing from the file keep their previous value.
//
//	{
//	  "server_id": "home",
//	  "server_url": "https://ledger.example.com",
//	  "api_key": "...",
//	  "db_path": "data/autoledger.db",
//	  "sync_interval": "6h",
//	  "retry_base": "30s",
//	  "retry_cap": "10m",
//	  "retry_max": 5,
//	  "op_max_attempts": 5,
//	  "http_timeout": "30s",
//	  "log_level": "info",
//	  "log_file": "logs/syncd.log"
//	}
package config
