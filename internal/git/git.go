// Package git locates the repository a mnemos invocation runs in, so each
// project can keep its findings next to its code.
package git

import (
	"errors"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
)

// ErrNotRepository is returned when no repository encloses the directory.
var ErrNotRepository = errors.New("git: not a repository")

// Root returns the top-level worktree directory of the repository that
// contains dir, walking up through parent directories. Bare repositories
// have no worktree and are reported as ErrNotRepository.
func Root(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("git: resolve %s: %w", dir, err)
	}

	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return "", ErrNotRepository
	}
	if err != nil {
		return "", fmt.Errorf("git: open %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if errors.Is(err, gogit.ErrIsBareRepository) {
		return "", ErrNotRepository
	}
	if err != nil {
		return "", fmt.Errorf("git: worktree: %w", err)
	}
	return wt.Filesystem.Root(), nil
}

// IsRepository reports whether dir lies inside a repository worktree.
func IsRepository(dir string) bool {
	_, err := Root(dir)
	return err == nil
}
