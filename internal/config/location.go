package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/git"
)

// HomeEnv names the environment variable that pins the store directory.
const HomeEnv = "MNEMOS_HOME"

// Scope says how a Location was chosen; it doubles as the log base name.
type Scope string

const (
	ScopeCustom  Scope = "custom" // from MNEMOS_HOME
	ScopeProject Scope = "memory" // <repository root>/.mnemos
	ScopeGlobal  Scope = "global" // ~/.mnemos
)

// Location is where a findings log lives.
type Location struct {
	Dir   string
	Name  string
	Scope Scope
}

// Path returns the log file path.
func (l Location) Path() string { return filepath.Join(l.Dir, l.Name+".jsonl") }

// ConfigPath returns the mnemos.toml path for the location.
func (l Location) ConfigPath() string { return filepath.Join(l.Dir, FileName) }

// Locate picks the store directory for an invocation from cwd: MNEMOS_HOME
// when set, else .mnemos at the root of the enclosing repository, else
// ~/.mnemos.
func Locate(cwd string) (Location, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return Location{Dir: home, Name: string(ScopeCustom), Scope: ScopeCustom}, nil
	}

	root, err := git.Root(cwd)
	switch {
	case err == nil:
		return Location{Dir: filepath.Join(root, ".mnemos"), Name: string(ScopeProject), Scope: ScopeProject}, nil
	case !errors.Is(err, git.ErrNotRepository):
		return Location{}, fmt.Errorf("config: locate store: %w", err)
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return Location{}, fmt.Errorf("config: locate store: %w", err)
	}
	return Location{Dir: filepath.Join(userHome, ".mnemos"), Name: string(ScopeGlobal), Scope: ScopeGlobal}, nil
}

// Apply returns l with the store.dir and store.name overrides of c.
func (c *Config) Apply(l Location) Location {
	if c.Store.Dir != "" {
		dir := c.Store.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(l.Dir, dir)
		}
		l.Dir = dir
	}
	if c.Store.Name != "" {
		l.Name = c.Store.Name
	}
	return l
}

// Resolve locates the store for cwd, loads its mnemos.toml, validates it,
// and applies its overrides.
func Resolve(cwd string) (Location, *Config, error) {
	loc, err := Locate(cwd)
	if err != nil {
		return Location{}, nil, err
	}
	cfg, err := LoadDir(loc.Dir)
	if err != nil {
		return Location{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return Location{}, nil, fmt.Errorf("config: %s: %w", loc.ConfigPath(), err)
	}
	return cfg.Apply(loc), cfg, nil
}
