// Package config parses mnemos.toml store configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up in the store directory.
const FileName = "mnemos.toml"

// logLevels are the accepted values of log.level.
var logLevels = []string{"debug", "info", "warn", "error"}

// triggerNames are the compression triggers that can be tuned.
var triggerNames = []string{"critical_pressure", "high_pressure_aged", "discovery_preservation", "routine_maintenance"}

// Config is the top-level mnemos.toml configuration.
type Config struct {
	Store      StoreConfig      `toml:"store"`
	Compaction CompactionConfig `toml:"compaction"`
	Pressure   PressureConfig   `toml:"pressure"`
	Relevance  RelevanceConfig  `toml:"relevance"`
	Log        LogConfig        `toml:"log"`
}

// StoreConfig overrides where the log lives and how many snapshots are kept.
type StoreConfig struct {
	Dir             string `toml:"dir"`
	Name            string `toml:"name"`
	BackupRetention int    `toml:"backup_retention"` // log snapshots to keep; 0 = unlimited
}

// CompactionConfig controls manual compression.
type CompactionConfig struct {
	KeepRecent int `toml:"keep_recent"`
}

// PressureConfig controls automatic compression after writes.
type PressureConfig struct {
	Enabled  bool                     `toml:"enabled"`
	Triggers map[string]TriggerConfig `toml:"triggers"`
}

// TriggerConfig tunes one named trigger. Zero keeps the built-in value.
type TriggerConfig struct {
	KeepRecent int `toml:"keep_recent"`
	Priority   int `toml:"priority"`
}

// RelevanceConfig holds the surfacing and momentum thresholds.
type RelevanceConfig struct {
	SurfaceThreshold  float64 `toml:"surface_threshold"`
	MaxSurfaced       int     `toml:"max_surfaced"`
	MomentumThreshold float64 `toml:"momentum_threshold"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level string `toml:"level"`
}

// SlogLevel maps Level onto a slog level. Unknown values mean warn.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if strings.ContainsAny(c.Store.Name, `/\`) {
		errs = append(errs, fmt.Errorf("store.name must be a file name, not a path"))
	}
	if c.Store.BackupRetention < 0 {
		errs = append(errs, fmt.Errorf("store.backup_retention must be >= 0 (0 = unlimited)"))
	}

	if c.Compaction.KeepRecent < 1 {
		errs = append(errs, fmt.Errorf("compaction.keep_recent must be >= 1"))
	}

	for name, t := range c.Pressure.Triggers {
		if !slices.Contains(triggerNames, name) {
			errs = append(errs, fmt.Errorf("pressure.triggers.%s is not a known trigger (one of %s)", name, strings.Join(triggerNames, ", ")))
		}
		if t.KeepRecent < 0 {
			errs = append(errs, fmt.Errorf("pressure.triggers.%s.keep_recent must be >= 0", name))
		}
		if t.Priority < 0 {
			errs = append(errs, fmt.Errorf("pressure.triggers.%s.priority must be >= 0", name))
		}
	}

	if c.Relevance.SurfaceThreshold < 0 || c.Relevance.SurfaceThreshold > 1 {
		errs = append(errs, fmt.Errorf("relevance.surface_threshold must be between 0 and 1"))
	}
	if c.Relevance.MomentumThreshold < 0 || c.Relevance.MomentumThreshold > 1 {
		errs = append(errs, fmt.Errorf("relevance.momentum_threshold must be between 0 and 1"))
	}
	if c.Relevance.MaxSurfaced < 0 {
		errs = append(errs, fmt.Errorf("relevance.max_surfaced must be >= 0 (0 = unlimited)"))
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of %s", strings.Join(logLevels, ", ")))
	}

	return errors.Join(errs...)
}

// Defaults returns a Config with the built-in tuning.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			BackupRetention: 20,
		},
		Compaction: CompactionConfig{
			KeepRecent: 15,
		},
		Pressure: PressureConfig{
			Enabled: true,
		},
		Relevance: RelevanceConfig{
			SurfaceThreshold:  0.4,
			MaxSurfaced:       5,
			MomentumThreshold: 0.3,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load reads the config file at path on top of Defaults. Returns an error
// if the file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, joinKeys(keys))
	}

	return &cfg, nil
}

// LoadDir reads mnemos.toml from dir, falling back to Defaults when the
// directory has none.
func LoadDir(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Defaults()
		return &cfg, nil
	}
	return Load(path)
}

// joinKeys formats a slice of key names for display.
func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

// InitFile writes a default mnemos.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists at %s", FileName, path)
	}

	content := `# mnemos.toml - findings log configuration
# Lives next to the log it configures.

[store]
dir = ""               # move the log elsewhere (empty = this directory)
name = ""              # log base name (empty = memory, global or custom)
backup_retention = 20  # log snapshots to keep; 0 = unlimited

[compaction]
keep_recent = 15  # records always kept by "mnemos compress"

[pressure]
enabled = true  # compress automatically after writes when a trigger fires

# [pressure.triggers.critical_pressure]
# keep_recent = 20
# priority = 100

[relevance]
surface_threshold = 0.4   # minimum score for "mnemos surface"
max_surfaced = 5
momentum_threshold = 0.3  # minimum window similarity for "mnemos suggest"

[log]
level = "warn"  # debug, info, warn or error
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
