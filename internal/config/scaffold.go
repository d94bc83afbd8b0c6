package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// gitignoreEntries keep the store's side files out of version control. The
// log itself is meant to be committed.
var gitignoreEntries = []string{
	"*.backup_*.jsonl",
	"deleted_backup_*.jsonl",
	"compressed_*.archived.jsonl",
}

// ScaffoldStore creates the store directory with a mnemos.toml and a
// .gitignore covering backups. Files that already exist are left untouched,
// except that missing .gitignore entries are appended. Returns the list of
// created or updated paths.
func ScaffoldStore(dir string) ([]string, error) {
	var created []string

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return created, fmt.Errorf("scaffold: create %s: %w", dir, mkErr)
		}
		created = append(created, dir)
	}

	tomlPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir); initErr != nil {
			return created, initErr
		}
		created = append(created, tomlPath)
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return created, fmt.Errorf("scaffold: read %s: %w", gitignorePath, err)
	}
	content := string(existing)
	var missing []string
	for _, entry := range gitignoreEntries {
		if !strings.Contains(content, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) > 0 {
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		content += strings.Join(missing, "\n") + "\n"
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}
