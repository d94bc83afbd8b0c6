// Package analysis derives session-level views of a findings log: the
// summary shown at the start of a session, open threads and issues, and the
// meta-reflections kept in a separate log.
package analysis

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/store"
)

// DefaultMinReflect is the fewest records Reflect will analyse.
const DefaultMinReflect = 10

const (
	summaryWindow   = 20
	reflectWindow   = 50
	reflectIssues   = 10
	reflectHotspots = 3
	reflectionDueAt = 10
)

// Reflect statuses.
const (
	StatusReflected        = "reflected"
	StatusInsufficientData = "insufficient_data"
)

// ReflectionLog is where meta-reflections are kept.
type ReflectionLog interface {
	Append(r finding.Record) error
	Load(limit int) ([]finding.Record, error)
}

// Analyzer reads the findings log and writes the reflections log.
type Analyzer struct {
	log         store.Reader
	reflections ReflectionLog
}

// New returns an Analyzer.
func New(log store.Reader, reflections ReflectionLog) *Analyzer {
	return &Analyzer{log: log, reflections: reflections}
}

// Summary is the compact state of an investigation.
type Summary struct {
	RecentIssues      int              `json:"recent_issues" yaml:"recent_issues"`
	RecentDiscoveries int              `json:"recent_discoveries" yaml:"recent_discoveries"`
	ActiveThreads     []string         `json:"active_threads" yaml:"active_threads"`
	ActiveIssues      []finding.Record `json:"active_issues" yaml:"active_issues"`
	LastDiscovery     *finding.Record  `json:"last_discovery" yaml:"last_discovery"`
	ReflectionDue     bool             `json:"reflection_due" yaml:"reflection_due"`
	TotalFindings     int              `json:"total_findings" yaml:"total_findings"`
	LastReflection    *finding.Record  `json:"last_reflection,omitempty" yaml:"last_reflection,omitempty"`
}

// Summarize counts issues and discoveries among the last 20 records and
// lists what is still open across the whole log. A reflection is due once
// ten or more of those 20 records are issues or discoveries.
func (a *Analyzer) Summarize() (Summary, error) {
	records, err := a.log.LoadAll()
	if err != nil {
		return Summary{}, fmt.Errorf("analysis: summarize: %w", err)
	}

	s := Summary{
		ActiveThreads: ActiveThreads(records),
		ActiveIssues:  ActiveIssues(records),
	}
	for _, r := range records[max(0, len(records)-summaryWindow):] {
		switch r.Kind() {
		case finding.KindIssue:
			s.RecentIssues++
		case finding.KindDiscovery:
			s.RecentDiscoveries++
			last := r
			s.LastDiscovery = &last
		}
	}
	s.TotalFindings = s.RecentIssues + s.RecentDiscoveries
	s.ReflectionDue = s.TotalFindings >= reflectionDueAt

	if a.reflections != nil {
		last, err := a.reflections.Load(1)
		if err != nil {
			slog.Warn("analysis: reading reflections", "err", err)
		} else if len(last) > 0 {
			s.LastReflection = &last[0]
		}
	}
	return s, nil
}

// ActiveThreads returns the names of threads whose latest status is active,
// most recently touched first.
func ActiveThreads(records []finding.Record) []string {
	type touch struct {
		status finding.ThreadStatus
		at     int
	}
	latest := make(map[string]touch)
	for i, r := range records {
		if th, ok := r.Finding.(*finding.Thread); ok {
			latest[th.Name] = touch{status: th.Status, at: i}
		}
	}

	names := []string{}
	for name, t := range latest {
		if t.status == finding.ThreadActive {
			names = append(names, name)
		}
	}
	slices.SortFunc(names, func(a, b string) int { return latest[b].at - latest[a].at })
	return names
}

// ActiveIssues returns every issue no resolution refers to, oldest first.
func ActiveIssues(records []finding.Record) []finding.Record {
	resolved := make(map[string]bool)
	for _, r := range records {
		if res, ok := r.Finding.(*finding.Resolved); ok {
			resolved[res.IssueID] = true
		}
	}
	out := []finding.Record{}
	for _, r := range records {
		if r.Kind() == finding.KindIssue && !resolved[r.ID()] {
			out = append(out, r)
		}
	}
	return out
}

// Reflection is the outcome of Reflect.
type Reflection struct {
	Status     string          `json:"status" yaml:"status"`
	Count      int             `json:"count" yaml:"count"`
	Reflection *finding.Record `json:"reflection,omitempty" yaml:"reflection,omitempty"`
}

// Reflect looks for patterns across the last 50 records and appends the
// result to the reflections log. Fewer than minFindings records yields
// StatusInsufficientData and writes nothing.
func (a *Analyzer) Reflect(minFindings int) (Reflection, error) {
	recent, err := a.log.Load(reflectWindow)
	if err != nil {
		return Reflection{}, fmt.Errorf("analysis: reflect: %w", err)
	}
	if len(recent) < minFindings {
		return Reflection{Status: StatusInsufficientData, Count: len(recent)}, nil
	}

	var issues []*finding.Issue
	discoveries := 0
	outcomes := make(map[string]finding.ThreadStatus)
	for _, r := range recent {
		switch f := r.Finding.(type) {
		case *finding.Issue:
			issues = append(issues, f)
		case *finding.Discovery:
			discoveries++
		case *finding.Thread:
			outcomes[f.Name] = f.Status
		}
	}

	var locations []string
	for _, iss := range issues[max(0, len(issues)-reflectIssues):] {
		locations = append(locations, iss.Location)
	}
	ranked := finding.RankHotspots(locations, 0)

	completed := 0
	for _, status := range outcomes {
		if status == finding.ThreadCompleted {
			completed++
		}
	}

	meta := &finding.MetaReflection{
		Header:                  finding.Stamp(finding.KindMetaReflection),
		FindingsAnalyzed:        len(recent),
		IssueHotspots:           ranked[:min(len(ranked), reflectHotspots)],
		CompletedInvestigations: completed,
		PatternInsights:         patternInsights(issues, discoveries, ranked),
	}
	if meta.IssueHotspots == nil {
		meta.IssueHotspots = finding.Hotspots{}
	}
	rec := finding.New(meta)
	if a.reflections != nil {
		if err := a.reflections.Append(rec); err != nil {
			return Reflection{}, fmt.Errorf("analysis: reflect: %w", err)
		}
	}
	slog.Info("analysis: reflected", "findings", len(recent), "insights", len(meta.PatternInsights))
	return Reflection{Status: StatusReflected, Count: len(recent), Reflection: &rec}, nil
}

func patternInsights(issues []*finding.Issue, discoveries int, hotspots finding.Hotspots) []string {
	var out []string
	if len(hotspots) > 0 && hotspots[0].Count >= 2 {
		out = append(out, fmt.Sprintf("Issue hotspot detected: %s module (%d issues)", hotspots[0].Module, hotspots[0].Count))
	}
	if discoveries >= 3 {
		out = append(out, fmt.Sprintf("High discovery rate: %d discoveries recently", discoveries))
	}
	critical := 0
	for _, iss := range issues {
		if iss.Critical() {
			critical++
		}
	}
	if critical >= 2 {
		out = append(out, "Multiple critical issues suggest systemic problems")
	}
	if len(out) == 0 {
		out = []string{"No clear patterns detected yet"}
	}
	return out
}
