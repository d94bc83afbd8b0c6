// Package store persists findings to an append-only JSONL log. One store
// instance is opened per mnemos invocation by internal/journal. The log is
// only ever rewritten as a whole, by internal/compaction, after a backup.
package store

import (
	"errors"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

// ErrUnavailable is wrapped by every error caused by the backing directory
// or file being impossible to create or write.
var ErrUnavailable = errors.New("store: unavailable")

// Writer mutates the log.
type Writer interface {
	Append(r finding.Record) error
	Rewrite(records []finding.Record) error
	RemoveLast() (bool, error)
}

// Reader reads the log back. Malformed lines are skipped, never returned
// as errors.
type Reader interface {
	LoadAll() ([]finding.Record, error)
	Load(limit int) ([]finding.Record, error)
}

// Store combines Writer and Reader with the file-level helpers compaction
// needs.
type Store interface {
	Writer
	Reader
	Path() string
	Dir() string
	Snapshot(dst string) error
}
