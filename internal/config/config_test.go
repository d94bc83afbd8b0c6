package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gogit "github.com/go-git/go-git/v5"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"store.dir", cfg.Store.Dir, ""},
		{"store.name", cfg.Store.Name, ""},
		{"store.backup_retention", cfg.Store.BackupRetention, 20},
		{"compaction.keep_recent", cfg.Compaction.KeepRecent, 15},
		{"pressure.enabled", cfg.Pressure.Enabled, true},
		{"relevance.surface_threshold", cfg.Relevance.SurfaceThreshold, 0.4},
		{"relevance.max_surfaced", cfg.Relevance.MaxSurfaced, 5},
		{"relevance.momentum_threshold", cfg.Relevance.MomentumThreshold, 0.3},
		{"log.level", cfg.Log.Level, "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
[store]
dir = "elsewhere"
name = "notes"
backup_retention = 3

[compaction]
keep_recent = 40

[pressure]
enabled = false
[pressure.triggers.critical_pressure]
keep_recent = 50
priority = 10

[relevance]
surface_threshold = 0.5
max_surfaced = 8
momentum_threshold = 0.25

[log]
level = "debug"
`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}

		tests := []struct {
			name string
			got  any
			want any
		}{
			{"store.dir", cfg.Store.Dir, "elsewhere"},
			{"store.name", cfg.Store.Name, "notes"},
			{"store.backup_retention", cfg.Store.BackupRetention, 3},
			{"compaction.keep_recent", cfg.Compaction.KeepRecent, 40},
			{"pressure.enabled", cfg.Pressure.Enabled, false},
			{"trigger keep_recent", cfg.Pressure.Triggers["critical_pressure"].KeepRecent, 50},
			{"trigger priority", cfg.Pressure.Triggers["critical_pressure"].Priority, 10},
			{"relevance.surface_threshold", cfg.Relevance.SurfaceThreshold, 0.5},
			{"relevance.max_surfaced", cfg.Relevance.MaxSurfaced, 8},
			{"relevance.momentum_threshold", cfg.Relevance.MomentumThreshold, 0.25},
			{"log.level", cfg.Log.Level, "debug"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.got != tt.want {
					t.Errorf("got %v, want %v", tt.got, tt.want)
				}
			})
		}
	})

	t.Run("partial config uses defaults", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
[compaction]
keep_recent = 30
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Compaction.KeepRecent != 30 {
			t.Errorf("compaction.keep_recent: got %d, want %d", cfg.Compaction.KeepRecent, 30)
		}
		if !cfg.Pressure.Enabled {
			t.Error("pressure.enabled: got false, want true (default)")
		}
		if cfg.Store.BackupRetention != 20 {
			t.Errorf("store.backup_retention: got %d, want %d (default)", cfg.Store.BackupRetention, 20)
		}
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
[compaction]
keep_recnet = 30
`)
		_, err := Load(path)
		if err == nil {
			t.Fatal("expected error for unknown key")
		}
		if !strings.Contains(err.Error(), "compaction.keep_recnet") {
			t.Errorf("error should name the key: %v", err)
		}
	})

	t.Run("missing file returns error", func(t *testing.T) {
		if _, err := Load("/nonexistent/mnemos.toml"); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("invalid toml returns error", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "not valid [[[ toml")
		if _, err := Load(path); err == nil {
			t.Error("expected error for invalid TOML")
		}
	})
}

func TestLoadDir(t *testing.T) {
	t.Run("missing file gives defaults", func(t *testing.T) {
		cfg, err := LoadDir(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Compaction.KeepRecent != 15 {
			t.Errorf("keep_recent: got %d, want 15", cfg.Compaction.KeepRecent)
		}
	})

	t.Run("reads mnemos.toml", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "[log]\nlevel = \"info\"\n")
		cfg, err := LoadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Log.Level != "info" {
			t.Errorf("log.level: got %q, want %q", cfg.Log.Level, "info")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"name with separator", func(c *Config) { c.Store.Name = "a/b" }, "store.name"},
		{"negative retention", func(c *Config) { c.Store.BackupRetention = -1 }, "store.backup_retention"},
		{"zero keep_recent", func(c *Config) { c.Compaction.KeepRecent = 0 }, "compaction.keep_recent"},
		{"unknown trigger", func(c *Config) {
			c.Pressure.Triggers = map[string]TriggerConfig{"panic_mode": {}}
		}, "pressure.triggers.panic_mode"},
		{"negative trigger keep", func(c *Config) {
			c.Pressure.Triggers = map[string]TriggerConfig{"critical_pressure": {KeepRecent: -2}}
		}, "keep_recent must be >= 0"},
		{"threshold above one", func(c *Config) { c.Relevance.SurfaceThreshold = 1.5 }, "relevance.surface_threshold"},
		{"negative momentum threshold", func(c *Config) { c.Relevance.MomentumThreshold = -0.1 }, "relevance.momentum_threshold"},
		{"negative max_surfaced", func(c *Config) { c.Relevance.MaxSurfaced = -1 }, "relevance.max_surfaced"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	t.Run("joins every problem", func(t *testing.T) {
		cfg := Defaults()
		cfg.Store.BackupRetention = -1
		cfg.Log.Level = "loud"
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected validation error")
		}
		if got := len(strings.Split(err.Error(), "\n")); got != 2 {
			t.Errorf("got %d problems, want 2: %v", got, err)
		}
	})

	t.Run("log level is case-insensitive", func(t *testing.T) {
		cfg := Defaults()
		cfg.Log.Level = "DEBUG"
		if err := cfg.Validate(); err != nil {
			t.Error(err)
		}
	})
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelWarn},
		{"trace", slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := (LogConfig{Level: tt.level}).SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestInitFile(t *testing.T) {
	t.Run("creates mnemos.toml", func(t *testing.T) {
		dir := t.TempDir()
		path, err := InitFile(dir)
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(path) != FileName {
			t.Errorf("expected %s, got %s", FileName, filepath.Base(path))
		}

		// the template must load and validate
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("generated file is not valid: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("generated file does not validate: %v", err)
		}
		if cfg.Compaction.KeepRecent != 15 {
			t.Errorf("keep_recent: got %d, want 15", cfg.Compaction.KeepRecent)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "")
		if _, err := InitFile(dir); err == nil {
			t.Error("expected error when mnemos.toml exists")
		}
	})
}

func TestLocate(t *testing.T) {
	t.Run("MNEMOS_HOME wins", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(HomeEnv, home)

		loc, err := Locate(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		want := Location{Dir: home, Name: "custom", Scope: ScopeCustom}
		if loc != want {
			t.Errorf("got %+v, want %+v", loc, want)
		}
		if loc.Path() != filepath.Join(home, "custom.jsonl") {
			t.Errorf("path: got %q", loc.Path())
		}
	})

	t.Run("repository root", func(t *testing.T) {
		t.Setenv(HomeEnv, "")
		repo, err := filepath.EvalSymlinks(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := gogit.PlainInit(repo, false); err != nil {
			t.Fatal(err)
		}
		nested := filepath.Join(repo, "cmd", "tool")
		if err := os.MkdirAll(nested, 0755); err != nil {
			t.Fatal(err)
		}

		loc, err := Locate(nested)
		if err != nil {
			t.Fatal(err)
		}
		want := Location{Dir: filepath.Join(repo, ".mnemos"), Name: "memory", Scope: ScopeProject}
		if loc != want {
			t.Errorf("got %+v, want %+v", loc, want)
		}
	})
}

func TestApply(t *testing.T) {
	base := Location{Dir: "/work/.mnemos", Name: "memory", Scope: ScopeProject}

	tests := []struct {
		name  string
		store StoreConfig
		want  Location
	}{
		{"no overrides", StoreConfig{}, base},
		{"absolute dir", StoreConfig{Dir: "/srv/notes"}, Location{Dir: "/srv/notes", Name: "memory", Scope: ScopeProject}},
		{"relative dir", StoreConfig{Dir: "team"}, Location{Dir: filepath.Join("/work/.mnemos", "team"), Name: "memory", Scope: ScopeProject}},
		{"name", StoreConfig{Name: "notes"}, Location{Dir: "/work/.mnemos", Name: "notes", Scope: ScopeProject}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Store.Dir = tt.store.Dir
			cfg.Store.Name = tt.store.Name
			if got := cfg.Apply(base); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	t.Run("applies overrides", func(t *testing.T) {
		writeConfig(t, home, "[store]\nname = \"team\"\n")
		loc, cfg, err := Resolve(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if loc.Name != "team" || loc.Dir != home {
			t.Errorf("got %+v", loc)
		}
		if cfg.Store.Name != "team" {
			t.Errorf("store.name: got %q", cfg.Store.Name)
		}
	})

	t.Run("invalid config is reported", func(t *testing.T) {
		writeConfig(t, home, "[compaction]\nkeep_recent = 0\n")
		if _, _, err := Resolve(t.TempDir()); err == nil {
			t.Error("expected validation error")
		}
	})
}
