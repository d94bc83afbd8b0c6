package compaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/store"
)

func fixedClock() func() time.Time {
	t := time.Unix(1_700_000_000, 0)
	return func() time.Time { return t }
}

func newEngine(t *testing.T, records ...finding.Finding) (*Engine, *store.JSONL) {
	t.Helper()
	s := store.NewJSONL(t.TempDir(), "memory")
	for _, f := range records {
		require.NoError(t, s.Append(finding.New(f)))
	}
	return New(s, WithClock(fixedClock())), s
}

// sixtyRecordLog has 5 discoveries spread through the old section and
// observations everywhere else.
func sixtyRecordLog() []finding.Finding {
	var out []finding.Finding
	for i := 0; i < 60; i++ {
		if i%9 == 0 && i < 45 {
			out = append(out, finding.NewDiscovery(fmt.Sprintf("discovery %d", i), "", ""))
			continue
		}
		out = append(out, finding.NewObservation(fmt.Sprintf("observation %d", i), ""))
	}
	return out
}

func lines(t *testing.T, records []finding.Record) []string {
	t.Helper()
	out := make([]string, 0, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		out = append(out, string(b))
	}
	sort.Strings(out)
	return out
}

func TestCompressScenario(t *testing.T) {
	e, s := newEngine(t, sixtyRecordLog()...)

	res, err := e.CompressReversible(15)
	require.NoError(t, err)

	assert.Equal(t, StatusCompressed, res.Status)
	assert.Equal(t, 60, res.OriginalCount)
	assert.Equal(t, 5, res.PreservedDiscoveries)
	assert.Equal(t, 21, res.CompressedCount)
	assert.Equal(t, 40, res.CompressedRoutine)
	assert.Equal(t, int64(1_700_000_000), res.CompressionID)
	assert.FileExists(t, res.Archive)
	assert.FileExists(t, res.Backup)

	after, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, after, 21)
	summary, ok := after[0].Finding.(*finding.SemanticSummary)
	require.True(t, ok, "first record should be the summary, got %T", after[0].Finding)
	assert.Equal(t, res.CompressionID, summary.CompressionID)
	assert.Equal(t, 40, summary.ObservationPatterns)
	for _, r := range after[1:6] {
		assert.Equal(t, finding.KindDiscovery, r.Kind())
	}
}

func TestCompressNoopLeavesFileByteIdentical(t *testing.T) {
	e, s := newEngine(t,
		finding.NewObservation("a", ""),
		finding.NewInsight("b", ""),
		finding.NewIssue("c", "x/y", ""),
	)
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	for _, keep := range []int{3, 15} {
		res, err := e.CompressReversible(keep)
		require.NoError(t, err)
		assert.Equal(t, StatusNoCompressionNeeded, res.Status)
		assert.Equal(t, 3, res.Count)
	}

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no side files expected")
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	fs := sixtyRecordLog()
	fs = append(fs,
		finding.NewIssue("routine", "db/conn.go", ""),
		finding.NewIssue("fatal", "db/conn.go", finding.SeverityCritical),
		finding.NewPrinciple("fail fast", ""),
	)
	// push the issues and principle into the old section
	fs = append(fs[len(fs)-3:], fs[:len(fs)-3]...)
	e, s := newEngine(t, fs...)

	// a record with a field this version does not model must survive
	raw := `{"id":"feedbeef","timestamp":"01:02:03","type":"observation","what":"extra","context":"","tags":["x"]}`
	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(raw + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, s.Append(finding.New(finding.NewObservation("tail", ""))))

	before, err := s.LoadAll()
	require.NoError(t, err)

	comp, err := e.CompressReversible(5)
	require.NoError(t, err)
	require.Equal(t, StatusCompressed, comp.Status)
	assert.Equal(t, 1, comp.PreservedCriticalIssues)
	assert.Equal(t, 1, comp.PreservedPatterns)

	dec, err := e.Decompress(comp.CompressionID)
	require.NoError(t, err)
	require.Equal(t, StatusDecompressed, dec.Status)
	assert.Equal(t, comp.CompressedRoutine, dec.Recovered)
	assert.NoFileExists(t, comp.Archive)
	assert.FileExists(t, dec.ArchiveMoved)

	after, err := s.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, lines(t, before), lines(t, after))

	again, err := e.Decompress(comp.CompressionID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchiveNotFound, again.Status)
}

func TestRewriteWarnsAboutUnparsableLines(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	e, s := newEngine(t, sixtyRecordLog()...)
	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	comp, err := e.CompressReversible(10)
	require.NoError(t, err)
	require.Equal(t, StatusCompressed, comp.Status)

	assert.Contains(t, logs.String(), "compaction: rewrite drops unparsable lines")
	assert.Contains(t, logs.String(), "count=1")

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "{not json"), "rewritten log keeps only parsed records")

	backup, err := os.ReadFile(comp.Backup)
	require.NoError(t, err)
	assert.Contains(t, string(backup), "{not json")

	logs.Reset()
	_, err = e.Decompress(comp.CompressionID)
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "unparsable", "nothing left to drop after the first rewrite")
}

func TestDecompressMissingArchive(t *testing.T) {
	e, s := newEngine(t, finding.NewObservation("a", ""))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	res, err := e.Decompress(999)
	require.NoError(t, err)
	assert.Equal(t, StatusArchiveNotFound, res.Status)
	assert.Equal(t, int64(999), res.CompressionID)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDecompressInvalidArchive(t *testing.T) {
	e, s := newEngine(t, finding.NewObservation("a", ""))
	path := filepath.Join(s.Dir(), "compressed_42.jsonl")
	require.NoError(t, store.Create(path, []finding.Record{finding.New(finding.NewObservation("orphan", ""))}))

	res, err := e.Decompress(42)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalidArchive, res.Status)
	assert.FileExists(t, path)
}

func TestDecompressSummaryNotFound(t *testing.T) {
	e, s := newEngine(t, sixtyRecordLog()...)
	comp, err := e.CompressReversible(15)
	require.NoError(t, err)

	// drop the summary so the archive no longer has a home
	records, err := s.LoadAll()
	require.NoError(t, err)
	require.NoError(t, s.Rewrite(records[1:]))

	res, err := e.Decompress(comp.CompressionID)
	require.NoError(t, err)
	assert.Equal(t, StatusSummaryNotFound, res.Status)
	assert.FileExists(t, comp.Archive)
}

func TestCompressionIDsAdvancePastExistingArchives(t *testing.T) {
	e, _ := newEngine(t, sixtyRecordLog()...)

	first, err := e.CompressReversible(15)
	require.NoError(t, err)
	second, err := e.CompressReversible(5)
	require.NoError(t, err)
	require.Equal(t, StatusCompressed, second.Status)
	assert.Equal(t, first.CompressionID+1, second.CompressionID)

	list, err := e.ListArchives()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.CompressionID, list[0].CompressionID)
	assert.Equal(t, first.CompressionID, list[1].CompressionID)
	assert.Equal(t, 40, list[1].CompressedCount)
}

func TestListArchivesSkipsBrokenAndConsumed(t *testing.T) {
	e, s := newEngine(t, sixtyRecordLog()...)
	comp, err := e.CompressReversible(15)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "compressed_7.jsonl"), []byte("not json\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "compressed_abc.jsonl"), []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "compressed_8.archived.jsonl"), []byte("{}\n"), 0644))

	list, err := e.ListArchives()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, comp.CompressionID, list[0].CompressionID)
}

func TestArchive(t *testing.T) {
	e, s := newEngine(t,
		finding.NewObservation("Redis latency spike", ""),
		finding.NewDiscovery("redis pool exhausted", "", ""),
		finding.NewIssue("redis crash", "cache/redis.go", finding.SeverityCritical),
		finding.NewObservation("disk fine", ""),
	)

	res, err := e.Archive("REDIS", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, res.Status)
	assert.Equal(t, 1, res.Archived)
	assert.Equal(t, 3, res.Remaining)
	assert.FileExists(t, res.File)
	assert.FileExists(t, res.Backup)

	moved, err := store.ReadFile(res.File)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "Redis latency spike", moved[0].Content())

	left, err := s.LoadAll()
	require.NoError(t, err)
	assert.Len(t, left, 3)

	none, err := e.Archive("nothing-matches", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusNoCandidates, none.Status)

	all, err := e.Archive("", 24)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, all.Status)
	assert.Equal(t, 1, all.Archived, "only the unprotected observation moves")
	assert.NotEqual(t, res.File, all.File)
}

func TestArchiveEmptyStore(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Archive("x", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusNoFindings, res.Status)
}

func TestDelete(t *testing.T) {
	keep := finding.NewObservation("keep me", "")
	drop := finding.NewObservation("drop me", "")
	pattern := finding.NewPattern("drop the pattern", "")
	e, s := newEngine(t, keep, drop, pattern, finding.NewInsight("temporary hack", ""))

	res, err := e.Delete("hack", []string{drop.ID, pattern.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, res.Status)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, "deleted_backup_1700000000.jsonl", filepath.Base(res.Backup))

	backup, err := store.ReadFile(res.Backup)
	require.NoError(t, err)
	assert.Len(t, backup, 2)

	left, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, keep.ID, left[0].ID())
	assert.Equal(t, pattern.ID, left[1].ID())

	none, err := e.Delete("", []string{"nope"})
	require.NoError(t, err)
	assert.Equal(t, StatusNoMatches, none.Status)

	second, err := e.Delete("keep", nil)
	require.NoError(t, err)
	assert.Equal(t, "deleted_backup_1700000001.jsonl", filepath.Base(second.Backup))
}

func TestBackupRetention(t *testing.T) {
	s := store.NewJSONL(t.TempDir(), "memory")
	for _, f := range sixtyRecordLog() {
		require.NoError(t, s.Append(finding.New(f)))
	}
	e := New(s, WithClock(fixedClock()), WithBackupRetention(2))

	for _, keep := range []int{40, 30, 20, 10} {
		res, err := e.CompressReversible(keep)
		require.NoError(t, err)
		require.Equal(t, StatusCompressed, res.Status)
	}

	backups, err := store.Match(s.Dir(), "memory.backup_*.jsonl")
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}
