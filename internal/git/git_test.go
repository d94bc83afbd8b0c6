package git

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
)

// initTestRepo creates an empty repository in a temporary directory and
// returns its path with symlinks resolved.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gogit.PlainInit(dir, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	return dir
}

func TestRoot(t *testing.T) {
	repo := initTestRepo(t)
	nested := filepath.Join(repo, "internal", "pkg")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		dir  string
	}{
		{"top level", repo},
		{"nested directory", nested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Root(tt.dir)
			if err != nil {
				t.Fatal(err)
			}
			if got != repo {
				t.Errorf("got %q, want %q", got, repo)
			}
		})
	}
}

func TestRoot_NotRepository(t *testing.T) {
	dir := t.TempDir()
	if _, err := Root(dir); !errors.Is(err, ErrNotRepository) {
		t.Skipf("temp dir is inside a repository or unreadable: %v", err)
	}
	if IsRepository(dir) {
		t.Error("IsRepository = true outside a repository")
	}
}

func TestRoot_Bare(t *testing.T) {
	dir := t.TempDir()
	if _, err := gogit.PlainInit(dir, true); err != nil {
		t.Fatal(err)
	}
	if _, err := Root(dir); !errors.Is(err, ErrNotRepository) {
		t.Errorf("got %v, want ErrNotRepository", err)
	}
}
