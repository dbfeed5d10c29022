// internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MinPollMs is the floor for the watch poll cadence.
const MinPollMs = 200

// Load reads the bridge configuration from a YAML file and applies
// defaults. An empty path loads pure defaults; a missing file at a
// non-empty path is an error (the operator asked for a config that
// is not there).
func Load(path string) (*Bridge, error) {
	var cfg Bridge
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Bridge) {
	home, _ := os.UserHomeDir()
	codexDir := filepath.Join(home, ".codex")

	if cfg.Paths.SessionRoot == "" {
		cfg.Paths.SessionRoot = filepath.Join(codexDir, "sessions")
	}
	if cfg.Paths.Manifest == "" {
		cfg.Paths.Manifest = filepath.Join(codexDir, "hookbridge", "manifest.json")
	}
	if cfg.Paths.Lock == "" {
		cfg.Paths.Lock = filepath.Join(codexDir, "hookbridge", "watch.lock")
	}
	if cfg.Paths.DebugLog == "" {
		cfg.Paths.DebugLog = filepath.Join(codexDir, "hookbridge", "debug.jsonl")
	}

	if cfg.Watch.PollMs <= 0 {
		cfg.Watch.PollMs = 1000
	} else if cfg.Watch.PollMs < MinPollMs {
		cfg.Watch.PollMs = MinPollMs
	}
	if cfg.Watch.Maintenance == "" {
		cfg.Watch.Maintenance = "0 0 3 * * *" // daily, 03:00
	}

	if cfg.Dedup.TTLMs <= 0 {
		cfg.Dedup.TTLMs = 30000
	}
	if cfg.Dedup.Capacity <= 0 {
		cfg.Dedup.Capacity = 4096
	}

	if cfg.Hooks.DefaultTimeoutSec <= 0 {
		cfg.Hooks.DefaultTimeoutSec = 10
	}

	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(codexDir, "hookbridge", "history.db")
	}
	if cfg.History.RetentionDays <= 0 {
		cfg.History.RetentionDays = 30
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
