package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gobwas/glob"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

// maxLine bounds a single record. Longer lines are treated as malformed.
const maxLine = 4 << 20

// JSONL is a Store backed by one JSONL file. Each line is a serialized
// finding.Record. The file is synced after every Append.
//
// The directory is created lazily on the first write. There is no
// cross-process locking: one writer process at a time is assumed.
type JSONL struct {
	mu   sync.Mutex
	dir  string
	path string
}

// NewJSONL returns a store for <dir>/<name>.jsonl. Nothing is touched on
// disk until the first write.
func NewJSONL(dir, name string) *JSONL {
	return &JSONL{dir: dir, path: filepath.Join(dir, name+".jsonl")}
}

// Path returns the log file path.
func (j *JSONL) Path() string { return j.path }

// Dir returns the directory holding the log and its side files.
func (j *JSONL) Dir() string { return j.dir }

func (j *JSONL) ensureDir() error {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("%w: mkdir %q: %w", ErrUnavailable, j.dir, err)
	}
	return nil
}

// Append serializes r as one JSON line, writes it, and syncs.
func (j *JSONL) Append(r finding.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.ensureDir(); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: open %q: %w", ErrUnavailable, j.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: write: %w", ErrUnavailable, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	return nil
}

// LoadAll returns every well-formed record in insertion order. A missing
// log yields an empty slice.
func (j *JSONL) LoadAll() ([]finding.Record, error) {
	return j.Load(0)
}

// Load returns the last limit records (all when limit <= 0).
func (j *JSONL) Load(limit int) ([]finding.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := ReadFile(j.path)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Rewrite replaces the whole log with records. The new content is written
// to a temporary file in the same directory and renamed over the log, so
// readers never observe a partially written file. Callers take a backup
// first.
func (j *JSONL) Rewrite(records []finding.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.ensureDir(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(j.dir, "."+filepath.Base(j.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", ErrUnavailable, err)
	}
	if writeErr := writeRecords(tmp, records); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: rewrite: %w", writeErr)
	}
	if syncErr := tmp.Sync(); syncErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: sync: %w", syncErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: close temp: %w", closeErr)
	}
	if renameErr := os.Rename(tmp.Name(), j.path); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: finalize rewrite: %w", renameErr)
	}
	return nil
}

// RemoveLast drops the final record line. It returns false when the log is
// missing or empty.
func (j *JSONL) RemoveLast() (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_RDWR, 0644)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: open %q: %w", j.path, err)
	}
	defer f.Close()

	idx, err := buildLineIndex(f)
	if err != nil {
		return false, fmt.Errorf("store: index: %w", err)
	}
	last, ok := idx.last()
	if !ok {
		return false, nil
	}
	if err := f.Truncate(last.start); err != nil {
		return false, fmt.Errorf("store: truncate: %w", err)
	}
	return true, nil
}

// Snapshot copies the current log byte for byte to dst. A missing log
// produces an empty snapshot.
func (j *JSONL) Snapshot(dst string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.ensureDir(); err != nil {
		return err
	}
	data, err := os.ReadFile(j.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: read %q: %w", j.path, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("%w: write snapshot %q: %w", ErrUnavailable, dst, err)
	}
	return nil
}

// ReadFile decodes every well-formed record in path. Malformed and
// oversized lines are logged at debug level and skipped. A missing file
// yields nil, nil.
func ReadFile(path string) ([]finding.Record, error) {
	records, _, err := scanFile(path)
	return records, err
}

// Malformed counts the non-empty lines of path that ReadFile skips.
func Malformed(path string) (int, error) {
	_, skipped, err := scanFile(path)
	return skipped, err
}

func scanFile(path string) ([]finding.Record, int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("store: open %q: %w", path, err)
	}
	defer f.Close()

	var records []finding.Record
	br := bufio.NewReaderSize(f, 64*1024)
	n, skipped := 0, 0
	for {
		raw, tooLong, err := readLine(br)
		if err != nil && err != io.EOF {
			return records, skipped, fmt.Errorf("store: read %q: %w", path, err)
		}
		if err == io.EOF && len(raw) == 0 && !tooLong {
			return records, skipped, nil
		}
		n++
		switch line := bytes.TrimSpace(raw); {
		case tooLong:
			skipped++
			slog.Debug("store: skipping oversized line", "path", path, "line", n, "limit", maxLine)
		case len(line) > 0:
			r, decErr := finding.Decode(line)
			if decErr != nil {
				skipped++
				slog.Debug("store: skipping malformed line", "path", path, "line", n, "err", decErr)
				break
			}
			records = append(records, r)
		}
		if err == io.EOF {
			return records, skipped, nil
		}
	}
}

// readLine returns the next line without its newline. A line longer than
// maxLine is consumed to its end and reported as tooLong with no content.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		var chunk []byte
		chunk, err = br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLine+1 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if tooLong {
			return nil, true, err
		}
		return bytes.TrimSuffix(line, []byte("\n")), false, err
	}
}

// ReadFirst decodes the first non-empty line of path. Unlike ReadFile it
// does not skip a malformed line: the error is returned.
func ReadFirst(path string) (finding.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return finding.Record{}, fmt.Errorf("store: open %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		return finding.Decode(line)
	}
	if err := sc.Err(); err != nil {
		return finding.Record{}, fmt.Errorf("store: scan %q: %w", path, err)
	}
	return finding.Record{}, fmt.Errorf("store: %q: %w", path, io.ErrUnexpectedEOF)
}

// Create writes records to a new file at path. It fails with an error
// matching os.ErrExist when path is already taken, so side archives are
// never overwritten.
func Create(path string, records []finding.Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return fmt.Errorf("%w: create %q: %w", ErrUnavailable, path, err)
	}
	if writeErr := writeRecords(f, records); writeErr != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("store: write %q: %w", path, writeErr)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close %q: %w", path, err)
	}
	return nil
}

func writeRecords(w io.Writer, records []finding.Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		bw.Write(data)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Match returns the names of regular files in dir matching pattern (a
// gobwas/glob expression), sorted by name. A missing dir yields nil.
func Match(dir, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("store: pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read dir %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && g.Match(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// EnforceRetention removes the oldest files in dir matching pattern,
// keeping at most maxKeep. Age is judged by modification time, then name.
// maxKeep <= 0 keeps everything.
func EnforceRetention(dir, pattern string, maxKeep int) error {
	if maxKeep <= 0 {
		return nil
	}
	names, err := Match(dir, pattern)
	if err != nil {
		return err
	}
	toDelete := len(names) - maxKeep
	if toDelete <= 0 {
		return nil
	}

	type aged struct {
		name string
		mod  int64
	}
	files := make([]aged, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		files = append(files, aged{name: name, mod: info.ModTime().UnixNano()})
	}
	sort.SliceStable(files, func(a, b int) bool { return files[a].mod < files[b].mod })

	for i := 0; i < toDelete && i < len(files); i++ {
		path := filepath.Join(dir, files[i].name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: remove %q: %w", path, err)
		}
	}
	return nil
}
