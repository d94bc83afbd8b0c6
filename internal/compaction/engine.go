// Package compaction rewrites a findings log to keep it bounded. Every
// operation takes a backup or archive of what it removes before the log is
// rewritten, and reports no-op outcomes as a Status rather than an error.
package compaction

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/retention"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/store"
)

const (
	compressedPrefix = "compressed_"
	archivedSuffix   = ".archived.jsonl"
)

// Engine runs compaction operations against one store.
type Engine struct {
	store           store.Store
	name            string
	backupRetention int
	now             func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackupRetention keeps at most n log snapshots after each operation.
// Zero keeps them all.
func WithBackupRetention(n int) Option {
	return func(e *Engine) { e.backupRetention = n }
}

// WithClock replaces the wall clock used for compression ids and side-file
// names.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine for s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		name:  strings.TrimSuffix(filepath.Base(s.Path()), ".jsonl"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CompressReversible replaces every old, unprotected record with one
// semantic summary and moves the originals to compressed_<id>.jsonl. The
// last keepRecent records and every protected record stay in the log.
func (e *Engine) CompressReversible(keepRecent int) (CompressResult, error) {
	records, err := e.store.LoadAll()
	if err != nil {
		return CompressResult{}, fmt.Errorf("compaction: load: %w", err)
	}
	if len(records) <= keepRecent {
		return CompressResult{Status: StatusNoCompressionNeeded, Count: len(records)}, nil
	}

	p := retention.Classify(records, keepRecent)

	id, archivePath, err := e.writeCompressionArchive(p, len(records))
	if err != nil {
		return CompressResult{}, err
	}

	summary := retention.Summarize(p.Compress, len(p.Old))
	summary.CompressionID = id
	summary.CompressedArchive = archivePath
	summary.RecoveryNote = fmt.Sprintf("Full details recoverable with: mnemos decompress %d", id)

	out := make([]finding.Record, 0, 1+len(p.Preserve)+len(p.Recent))
	out = append(out, finding.New(summary))
	out = append(out, p.Preserve...)
	out = append(out, p.Recent...)

	backup := e.sidePath(fmt.Sprintf("%s.backup_%d.jsonl", e.name, id))
	if err := e.rewrite(backup, out); err != nil {
		os.Remove(archivePath)
		return CompressResult{}, err
	}

	slog.Info("compaction: compressed", "id", id, "from", len(records), "to", len(out))
	return CompressResult{
		Status:                  StatusCompressed,
		OriginalCount:           len(records),
		CompressedCount:         len(out),
		PreservedDiscoveries:    p.Preserved(finding.KindDiscovery),
		PreservedPatterns:       p.Preserved(finding.KindPattern, finding.KindPrinciple),
		PreservedCriticalIssues: p.CriticalIssues(),
		CompressedRoutine:       len(p.Compress),
		CompressionID:           id,
		Archive:                 archivePath,
		Backup:                  backup,
	}, nil
}

// writeCompressionArchive picks a fresh compression id and writes the
// archive for it. Ids start at the current Unix second and move forward
// past any id already used by a live or consumed archive.
func (e *Engine) writeCompressionArchive(p retention.Partition, total int) (int64, string, error) {
	id := e.now().Unix()
	for {
		if e.compressionIDTaken(id) {
			id++
			continue
		}
		meta := &finding.CompressionMetadata{
			Header:          finding.Stamp(finding.KindCompressionMetadata),
			CompressionID:   id,
			CompressedCount: len(p.Compress),
			Trigger:         fmt.Sprintf("Compressed when memory exceeded %d entries", total),
			RecoveryCommand: fmt.Sprintf("mnemos decompress %d", id),
		}
		records := append([]finding.Record{finding.New(meta)}, p.Compress...)

		path := e.archivePath(id)
		err := store.Create(path, records)
		if errors.Is(err, os.ErrExist) {
			id++
			continue
		}
		if err != nil {
			return 0, "", fmt.Errorf("compaction: write archive: %w", err)
		}
		return id, path, nil
	}
}

func (e *Engine) compressionIDTaken(id int64) bool {
	for _, p := range []string{e.archivePath(id), e.consumedPath(id)} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

func (e *Engine) archivePath(id int64) string {
	return e.sidePath(fmt.Sprintf("%s%d.jsonl", compressedPrefix, id))
}

func (e *Engine) consumedPath(id int64) string {
	return e.sidePath(fmt.Sprintf("%s%d%s", compressedPrefix, id, archivedSuffix))
}

func (e *Engine) sidePath(name string) string {
	return filepath.Join(e.store.Dir(), name)
}

// Decompress reverses the compression with the given id. The archived
// records are placed first, followed by the current log minus the summary
// that referenced them. The archive is then renamed so it cannot be replayed.
func (e *Engine) Decompress(id int64) (DecompressResult, error) {
	res := DecompressResult{CompressionID: id}
	path := e.archivePath(id)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		res.Status = StatusArchiveNotFound
		return res, nil
	} else if err != nil {
		return res, fmt.Errorf("compaction: stat archive: %w", err)
	}

	archived, err := store.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("compaction: read archive: %w", err)
	}
	var recovered []finding.Record
	haveMeta := false
	for _, r := range archived {
		if r.Kind() == finding.KindCompressionMetadata {
			haveMeta = true
			continue
		}
		recovered = append(recovered, r)
	}
	if !haveMeta {
		res.Status = StatusInvalidArchive
		return res, nil
	}

	current, err := e.store.LoadAll()
	if err != nil {
		return res, fmt.Errorf("compaction: load: %w", err)
	}
	kept := make([]finding.Record, 0, len(current))
	removed := false
	for _, r := range current {
		if s, ok := r.Finding.(*finding.SemanticSummary); ok && s.CompressionID == id {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	if !removed {
		res.Status = StatusSummaryNotFound
		return res, nil
	}

	out := append(recovered, kept...)
	backup := e.sidePath(fmt.Sprintf("%s.backup_decompress_%d.jsonl", e.name, id))
	if err := e.rewrite(backup, out); err != nil {
		return res, err
	}

	moved := e.consumedPath(id)
	if err := os.Rename(path, moved); err != nil {
		return res, fmt.Errorf("compaction: retire archive: %w", err)
	}

	slog.Info("compaction: decompressed", "id", id, "recovered", len(recovered))
	res.Status = StatusDecompressed
	res.Recovered = len(recovered)
	res.Total = len(out)
	res.Backup = backup
	res.ArchiveMoved = moved
	return res, nil
}

// Archive moves matching records out of the log into archive_<ts>.jsonl.
// A record matches when filter occurs in its serialized form or, when
// olderThanHours > 0, unconditionally: records carry only a time of day, so
// age cannot be judged. Protected records never move.
func (e *Engine) Archive(filter string, olderThanHours int) (ArchiveResult, error) {
	records, err := e.store.LoadAll()
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("compaction: load: %w", err)
	}
	if len(records) == 0 {
		return ArchiveResult{Status: StatusNoFindings}, nil
	}

	var byAge retention.Matcher
	if olderThanHours > 0 {
		byAge = retention.Everything()
	}
	candidates, remaining := retention.Select(records, retention.Any(byAge, retention.Contains(filter)))
	if len(candidates) == 0 {
		return ArchiveResult{Status: StatusNoCandidates, Remaining: len(records)}, nil
	}

	file, ts, err := e.createStamped("archive_%d.jsonl", candidates)
	if err != nil {
		return ArchiveResult{}, err
	}
	backup := e.sidePath(fmt.Sprintf("%s.backup_archive_%d.jsonl", e.name, ts))
	if err := e.rewrite(backup, remaining); err != nil {
		os.Remove(file)
		return ArchiveResult{}, err
	}

	slog.Info("compaction: archived", "count", len(candidates), "file", file)
	return ArchiveResult{
		Status:    StatusArchived,
		Archived:  len(candidates),
		Remaining: len(remaining),
		File:      file,
		Backup:    backup,
	}, nil
}

// Delete permanently drops records matching filter or whose id is in ids.
// The dropped records are first written to deleted_backup_<ts>.jsonl.
// Protected records are never deleted.
func (e *Engine) Delete(filter string, ids []string) (DeleteResult, error) {
	records, err := e.store.LoadAll()
	if err != nil {
		return DeleteResult{}, fmt.Errorf("compaction: load: %w", err)
	}
	if len(records) == 0 {
		return DeleteResult{Status: StatusNoFindings}, nil
	}

	candidates, remaining := retention.Select(records, retention.Any(retention.IDs(ids...), retention.Contains(filter)))
	if len(candidates) == 0 {
		return DeleteResult{Status: StatusNoMatches, Remaining: len(records)}, nil
	}

	backup, _, err := e.createStamped("deleted_backup_%d.jsonl", candidates)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := e.store.Rewrite(remaining); err != nil {
		return DeleteResult{}, fmt.Errorf("compaction: rewrite: %w", err)
	}

	slog.Info("compaction: deleted", "count", len(candidates), "backup", backup)
	return DeleteResult{
		Status:    StatusDeleted,
		Deleted:   len(candidates),
		Remaining: len(remaining),
		Backup:    backup,
	}, nil
}

// ListArchives returns the compression archives that can still be
// decompressed, newest id first. Files whose header cannot be read are
// skipped.
func (e *Engine) ListArchives() ([]ArchiveInfo, error) {
	names, err := store.Match(e.store.Dir(), compressedPrefix+"*.jsonl")
	if err != nil {
		return nil, fmt.Errorf("compaction: list: %w", err)
	}

	var out []ArchiveInfo
	for _, name := range names {
		if strings.HasSuffix(name, archivedSuffix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, compressedPrefix), ".jsonl"), 10, 64)
		if err != nil {
			continue
		}
		path := e.sidePath(name)
		head, err := store.ReadFirst(path)
		if err != nil {
			slog.Debug("compaction: unreadable archive", "path", path, "err", err)
			continue
		}
		meta, ok := head.Finding.(*finding.CompressionMetadata)
		if !ok {
			continue
		}
		out = append(out, ArchiveInfo{
			CompressionID:   id,
			Timestamp:       meta.Timestamp,
			CompressedCount: meta.CompressedCount,
			Path:            path,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompressionID > out[j].CompressionID })
	return out, nil
}

// rewrite snapshots the log to backup, replaces it with records, and prunes
// old snapshots. Unparsable lines are not carried into the new log; the snapshot is the
// only copy left of them until retention prunes it.
func (e *Engine) rewrite(backup string, records []finding.Record) error {
	if n, err := store.Malformed(e.store.Path()); err != nil {
		slog.Debug("compaction: count unparsable lines", "err", err)
	} else if n > 0 {
		slog.Warn("compaction: rewrite drops unparsable lines", "count", n, "backup", backup)
	}
	if err := e.store.Snapshot(backup); err != nil {
		return fmt.Errorf("compaction: backup: %w", err)
	}
	if err := e.store.Rewrite(records); err != nil {
		return fmt.Errorf("compaction: rewrite: %w", err)
	}
	if err := store.EnforceRetention(e.store.Dir(), e.name+".backup_*.jsonl", e.backupRetention); err != nil {
		slog.Warn("compaction: backup retention", "err", err)
	}
	return nil
}

// createStamped writes records to a new side file named by layout and the
// current Unix second, moving forward one second while the name is taken.
func (e *Engine) createStamped(layout string, records []finding.Record) (string, int64, error) {
	ts := e.now().Unix()
	for {
		path := e.sidePath(fmt.Sprintf(layout, ts))
		err := store.Create(path, records)
		if errors.Is(err, os.ErrExist) {
			ts++
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("compaction: write %s: %w", filepath.Base(path), err)
		}
		return path, ts, nil
	}
}
