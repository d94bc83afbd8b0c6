package compaction

// Status reports how a compaction operation ended. Only the final status of
// each operation means the log was rewritten; all others leave it untouched.
type Status string

const (
	StatusNoCompressionNeeded Status = "no_compression_needed"
	StatusCompressed          Status = "reversible_compression"

	StatusArchiveNotFound Status = "archive_not_found"
	StatusInvalidArchive  Status = "invalid_archive"
	StatusSummaryNotFound Status = "summary_not_found"
	StatusDecompressed    Status = "decompressed"

	StatusNoFindings   Status = "no_findings"
	StatusNoCandidates Status = "no_candidates"
	StatusArchived     Status = "archived"

	StatusNoMatches Status = "no_matches"
	StatusDeleted   Status = "deleted"
)

// CompressResult describes a reversible compression. CompressedCount is the
// size of the rewritten log: the summary plus every preserved and recent
// record.
type CompressResult struct {
	Status                  Status `json:"status" yaml:"status"`
	Count                   int    `json:"count,omitempty" yaml:"count,omitempty"`
	OriginalCount           int    `json:"original_count,omitempty" yaml:"original_count,omitempty"`
	CompressedCount         int    `json:"compressed_count,omitempty" yaml:"compressed_count,omitempty"`
	PreservedDiscoveries    int    `json:"preserved_discoveries" yaml:"preserved_discoveries"`
	PreservedPatterns       int    `json:"preserved_patterns" yaml:"preserved_patterns"`
	PreservedCriticalIssues int    `json:"preserved_critical_issues" yaml:"preserved_critical_issues"`
	CompressedRoutine       int    `json:"compressed_routine" yaml:"compressed_routine"`
	CompressionID           int64  `json:"compression_id,omitempty" yaml:"compression_id,omitempty"`
	Archive                 string `json:"compressed_archive,omitempty" yaml:"compressed_archive,omitempty"`
	Backup                  string `json:"backup_created,omitempty" yaml:"backup_created,omitempty"`
}

// DecompressResult describes a decompression attempt.
type DecompressResult struct {
	Status        Status `json:"status" yaml:"status"`
	CompressionID int64  `json:"compression_id" yaml:"compression_id"`
	Recovered     int    `json:"recovered_count,omitempty" yaml:"recovered_count,omitempty"`
	Total         int    `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	Backup        string `json:"backup_created,omitempty" yaml:"backup_created,omitempty"`
	ArchiveMoved  string `json:"compressed_archive_moved,omitempty" yaml:"compressed_archive_moved,omitempty"`
}

// ArchiveResult describes a permanent archival.
type ArchiveResult struct {
	Status    Status `json:"status" yaml:"status"`
	Archived  int    `json:"archived_count" yaml:"archived_count"`
	Remaining int    `json:"remaining_count" yaml:"remaining_count"`
	File      string `json:"archive_file,omitempty" yaml:"archive_file,omitempty"`
	Backup    string `json:"backup_created,omitempty" yaml:"backup_created,omitempty"`
}

// DeleteResult describes a deletion. Backup holds only the deleted records.
type DeleteResult struct {
	Status    Status `json:"status" yaml:"status"`
	Deleted   int    `json:"deleted_count" yaml:"deleted_count"`
	Remaining int    `json:"remaining_count" yaml:"remaining_count"`
	Backup    string `json:"backup_file,omitempty" yaml:"backup_file,omitempty"`
}

// ArchiveInfo describes one compression archive still available for
// decompression.
type ArchiveInfo struct {
	CompressionID   int64  `json:"compression_id" yaml:"compression_id"`
	Timestamp       string `json:"timestamp" yaml:"timestamp"`
	CompressedCount int    `json:"compressed_count" yaml:"compressed_count"`
	Path            string `json:"archive_path" yaml:"archive_path"`
}
