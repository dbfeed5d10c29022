// internal/config/types.go
package config

// Bridge is the global bridge configuration loaded from config.yaml.
// The hook manifest is a separate JSON document; this file only carries
// operational settings.
type Bridge struct {
	Paths   PathsConfig   `yaml:"paths"`
	Watch   WatchConfig   `yaml:"watch"`
	Dedup   DedupConfig   `yaml:"dedup"`
	Hooks   HooksConfig   `yaml:"hooks"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

type PathsConfig struct {
	SessionRoot string `yaml:"session_root"` // root of the JSONL session logs
	Manifest    string `yaml:"manifest"`     // hook manifest JSON
	Lock        string `yaml:"lock"`         // watch lock file
	DebugLog    string `yaml:"debug_log"`    // NDJSON trace
	ProjectRoot string `yaml:"project_root"` // overrides the manifest's projectRoot
}

type WatchConfig struct {
	PollMs      int    `yaml:"poll_ms"`     // poll cadence, floor 200
	UseNotify   *bool  `yaml:"use_notify"`  // fsnotify wake acceleration, default on
	Maintenance string `yaml:"maintenance"` // cron expression for retention upkeep
}

type DedupConfig struct {
	TTLMs    int `yaml:"ttl_ms"`
	Capacity int `yaml:"capacity"`
}

type HooksConfig struct {
	DefaultTimeoutSec float64 `yaml:"default_timeout_seconds"`
}

type HistoryConfig struct {
	Enabled       *bool  `yaml:"enabled"` // default on
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HistoryEnabled resolves the tri-state enabled flag, defaulting to on.
func (c *Bridge) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// NotifyEnabled resolves the tri-state fsnotify flag, defaulting to on.
func (c *Bridge) NotifyEnabled() bool {
	return c.Watch.UseNotify == nil || *c.Watch.UseNotify
}
