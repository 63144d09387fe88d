// Package config decodes the settings a client may pass in the
// initializationOptions of its initialize request.
package config

import (
	"encoding/json"
	"fmt"
)

// Config holds the server-shell's tunable behavior. Every field has a
// default, so an initialize request with no initializationOptions at all
// (or one that only sets some fields) still produces a usable Config.
type Config struct {
	// LongLineThreshold is the line length, in bytes, at or above which
	// the idle diagnostics scan reports a line as too long.
	LongLineThreshold int `json:"long_line_threshold"`

	// IdleIntervalMS is how long the event loop waits for readable
	// activity before running an idle diagnostics scan.
	IdleIntervalMS int `json:"idle_interval_ms"`
}

var defaultConfig = Config{
	LongLineThreshold: 120,
	IdleIntervalMS:    50,
}

// Load decodes v (typically the raw initializationOptions value from an
// initialize request, already unmarshaled into an any) onto a copy of
// defaultConfig, so only the fields v actually sets override the
// defaults.
func Load(v any) (Config, error) {
	cfg := defaultConfig

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("config: marshal source: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal into Config: %w", err)
	}

	return cfg, nil
}
