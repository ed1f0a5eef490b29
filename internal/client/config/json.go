package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/autoledger/internal/flagx"
	"github.com/dmitrijs2005/autoledger/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell a missing key from an explicit zero.
type JsonConfig struct {
	ServerID      *string         `json:"server_id"`
	ServerURL     *string         `json:"server_url"`
	APIKey        *string         `json:"api_key"`
	DBPath        *string         `json:"db_path"`
	SyncInterval  *timex.Duration `json:"sync_interval"`
	RetryBase     *timex.Duration `json:"retry_base"`
	RetryCap      *timex.Duration `json:"retry_cap"`
	RetryMax      *uint64         `json:"retry_max"`
	OpMaxAttempts *int            `json:"op_max_attempts"`
	HTTPTimeout   *timex.Duration `json:"http_timeout"`
	LogLevel      *string         `json:"log_level"`
	LogFile       *string         `json:"log_file"`
}

// parseJson overlays cfg with the JSON file named by -c or -config. It
// panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerID, jc.ServerID)
	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.APIKey, jc.APIKey)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFile, jc.LogFile)

	if jc.SyncInterval != nil {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.RetryBase != nil {
		cfg.RetryBase = jc.RetryBase.Duration
	}
	if jc.RetryCap != nil {
		cfg.RetryCap = jc.RetryCap.Duration
	}
	if jc.HTTPTimeout != nil {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
	if jc.RetryMax != nil {
		cfg.RetryMax = *jc.RetryMax
	}
	if jc.OpMaxAttempts != nil {
		cfg.OpMaxAttempts = *jc.OpMaxAttempts
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
