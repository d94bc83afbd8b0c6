// Package finding defines the records kept in a mnemos investigation log.
// Every log line is one record; its "type" field selects the variant.
package finding

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the variant of a record.
type Kind string

const (
	KindObservation         Kind = "observation"
	KindInsight             Kind = "insight"
	KindDiscovery           Kind = "discovery"
	KindIssue               Kind = "issue"
	KindResolved            Kind = "resolved"
	KindConsideration       Kind = "consideration"
	KindPattern             Kind = "pattern"
	KindPrinciple           Kind = "principle"
	KindAntipattern         Kind = "antipattern"
	KindThread              Kind = "thread"
	KindSemanticSummary     Kind = "semantic_summary"     // written by compaction only
	KindCompressionMetadata Kind = "compression_metadata" // archive header, written by compaction only
	KindMetaReflection      Kind = "meta_reflection"      // reflections log only
)

// SeverityCritical marks issues that compaction must never touch.
const SeverityCritical = "critical"

// ThreadStatus is the lifecycle state of an investigation thread.
type ThreadStatus string

const (
	ThreadActive    ThreadStatus = "active"
	ThreadCompleted ThreadStatus = "completed"
	ThreadAbandoned ThreadStatus = "abandoned"
)

// TimestampLayout is the wall-clock format stored in every record. Records
// carry no date.
const TimestampLayout = "15:04:05"

// now is replaced in tests.
var now = time.Now

// Header holds the fields shared by every record.
type Header struct {
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
	Type      Kind   `json:"type"`
}

// Meta returns the common header.
func (h Header) Meta() Header { return h }

func (Header) isFinding() {}

// Finding is implemented by every record variant in this package.
type Finding interface {
	Meta() Header
	isFinding()
}

// NewID returns a short random identifier (the first 8 hex digits of a v4 UUID).
func NewID() string {
	return uuid.NewString()[:8]
}

func newHeader(kind Kind) Header {
	return Header{ID: NewID(), Timestamp: now().Format(TimestampLayout), Type: kind}
}

// Observation records raw data: what was seen.
type Observation struct {
	Header
	What    string `json:"what"`
	Context string `json:"context"`
}

// Insight records what observations mean.
type Insight struct {
	Header
	Understanding string `json:"understanding"`
	Evidence      string `json:"evidence"`
}

// Discovery records a breakthrough.
type Discovery struct {
	Header
	Breakthrough string `json:"breakthrough"`
	Impact       string `json:"impact"`
	Solution     string `json:"solution"`
}

// Issue records a problem at a location.
type Issue struct {
	Header
	Problem  string `json:"problem"`
	Location string `json:"location"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
}

// Critical reports whether the issue has critical severity.
func (i *Issue) Critical() bool { return i.Severity == SeverityCritical }

// Resolved closes the Issue named by IssueID.
type Resolved struct {
	Header
	IssueID  string `json:"issue_id"`
	Solution string `json:"solution"`
}

// Consideration records an idea to evaluate later.
type Consideration struct {
	Header
	Idea    string `json:"idea"`
	Context string `json:"context"`
}

// Pattern records an architectural pattern.
type Pattern struct {
	Header
	Insight string `json:"insight"`
	Value   string `json:"value"`
}

// Principle records a design rule.
type Principle struct {
	Header
	Rule      string `json:"rule"`
	Rationale string `json:"rationale"`
}

// Antipattern records something to avoid.
type Antipattern struct {
	Header
	Problem string `json:"problem"`
	WhyBad  string `json:"why_bad"`
}

// Thread records a status change of a named investigation lane.
type Thread struct {
	Header
	Name   string       `json:"thread"`
	Status ThreadStatus `json:"status"`
}

// SemanticSummary stands in for the records removed by a reversible
// compression and points at the archive holding them.
type SemanticSummary struct {
	Header
	PeriodSummary       string       `json:"period_summary"`
	ObservationPatterns int          `json:"observation_patterns"`
	InsightPatterns     int          `json:"insight_patterns"`
	RoutineIssues       int          `json:"routine_issues"`
	TypeCounts          map[Kind]int `json:"type_counts,omitempty"`
	IssueHotspots       Hotspots     `json:"issue_hotspots"`
	KeyInsights         []string     `json:"key_insights"`
	Intelligence        string       `json:"compression_intelligence"`
	CompressionID       int64        `json:"compression_id,omitempty"`
	CompressedArchive   string       `json:"compressed_archive,omitempty"`
	RecoveryNote        string       `json:"recovery_note,omitempty"`
}

// CompressionMetadata is the first line of a compression archive.
type CompressionMetadata struct {
	Header
	CompressionID   int64  `json:"compression_id"`
	CompressedCount int    `json:"compressed_count"`
	Trigger         string `json:"compression_trigger"`
	RecoveryCommand string `json:"recovery_command"`
}

// MetaReflection is an entry of the reflections log.
type MetaReflection struct {
	Header
	FindingsAnalyzed        int      `json:"findings_analyzed"`
	IssueHotspots           Hotspots `json:"issue_hotspots"`
	CompletedInvestigations int      `json:"completed_investigations"`
	PatternInsights         []string `json:"pattern_insights"`
}

// Unknown holds a record whose type this version does not recognise.
// Fields contains every key of the original object.
type Unknown struct {
	Header
	Fields map[string]any `json:"-"`
}

// NewObservation builds an observation with a fresh id and timestamp.
func NewObservation(what, context string) *Observation {
	return &Observation{Header: newHeader(KindObservation), What: what, Context: context}
}

// NewInsight builds an insight.
func NewInsight(understanding, evidence string) *Insight {
	return &Insight{Header: newHeader(KindInsight), Understanding: understanding, Evidence: evidence}
}

// NewDiscovery builds a discovery.
func NewDiscovery(breakthrough, impact, solution string) *Discovery {
	return &Discovery{Header: newHeader(KindDiscovery), Breakthrough: breakthrough, Impact: impact, Solution: solution}
}

// NewIssue builds an open issue. An empty severity becomes "medium".
func NewIssue(problem, location, severity string) *Issue {
	if severity == "" {
		severity = "medium"
	}
	return &Issue{Header: newHeader(KindIssue), Problem: problem, Location: location, Severity: severity, Status: "open"}
}

// NewResolved builds a resolution for issueID.
func NewResolved(issueID, solution string) *Resolved {
	return &Resolved{Header: newHeader(KindResolved), IssueID: issueID, Solution: solution}
}

// NewConsideration builds a consideration.
func NewConsideration(idea, context string) *Consideration {
	return &Consideration{Header: newHeader(KindConsideration), Idea: idea, Context: context}
}

// NewPattern builds a pattern.
func NewPattern(insight, value string) *Pattern {
	return &Pattern{Header: newHeader(KindPattern), Insight: insight, Value: value}
}

// NewPrinciple builds a principle.
func NewPrinciple(rule, rationale string) *Principle {
	return &Principle{Header: newHeader(KindPrinciple), Rule: rule, Rationale: rationale}
}

// NewAntipattern builds an antipattern.
func NewAntipattern(problem, whyBad string) *Antipattern {
	return &Antipattern{Header: newHeader(KindAntipattern), Problem: problem, WhyBad: whyBad}
}

// NewThread builds a thread status record. Thread records carry no id.
func NewThread(name string, status ThreadStatus) *Thread {
	h := newHeader(KindThread)
	h.ID = ""
	return &Thread{Header: h, Name: name, Status: status}
}

// Stamp returns a header for synthetic records (summaries, archive headers,
// reflections), which carry no id.
func Stamp(kind Kind) Header {
	return Header{Timestamp: now().Format(TimestampLayout), Type: kind}
}

// Strategic reports whether kind is one of the long-lived knowledge kinds
// (discovery, pattern, principle).
func Strategic(kind Kind) bool {
	switch kind {
	case KindDiscovery, KindPattern, KindPrinciple:
		return true
	}
	return false
}

// ParseThreadStatus maps free text onto a ThreadStatus, defaulting to active.
func ParseThreadStatus(s string) ThreadStatus {
	switch ThreadStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ThreadCompleted:
		return ThreadCompleted
	case ThreadAbandoned:
		return ThreadAbandoned
	}
	return ThreadActive
}
