// Package retention decides which records of a log may be compacted. It is
// pure: nothing here touches storage.
package retention

import (
	"fmt"
	"strings"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

// DefaultKeepRecent is the number of trailing records a compression keeps
// verbatim when the caller does not say otherwise.
const DefaultKeepRecent = 15

const intelligence = "Preserved discoveries, patterns, principles. Compressed routine observations."

// Partition splits a log for compression. Recent and Old cover the input;
// Preserve and Compress cover Old. All slices keep insertion order.
type Partition struct {
	Recent   []finding.Record
	Old      []finding.Record
	Preserve []finding.Record
	Compress []finding.Record
}

// Classify partitions records into the last keepRecent records and the rest,
// then splits the rest into protected and compressible records.
func Classify(records []finding.Record, keepRecent int) Partition {
	if keepRecent < 0 {
		keepRecent = 0
	}
	split := len(records) - keepRecent
	if split < 0 {
		split = 0
	}

	p := Partition{
		Recent: records[split:],
		Old:    records[:split],
	}
	for _, r := range p.Old {
		if r.Protected() {
			p.Preserve = append(p.Preserve, r)
		} else {
			p.Compress = append(p.Compress, r)
		}
	}
	return p
}

// Preserved counts the preserved records of the given kinds.
func (p Partition) Preserved(kinds ...finding.Kind) int {
	n := 0
	for _, r := range p.Preserve {
		for _, k := range kinds {
			if r.Kind() == k {
				n++
				break
			}
		}
	}
	return n
}

// CriticalIssues counts the preserved critical issues.
func (p Partition) CriticalIssues() int {
	return p.Preserved(finding.KindIssue)
}

// Summarize builds the semantic summary standing in for compress, which was
// taken from totalOld old records.
func Summarize(compress []finding.Record, totalOld int) *finding.SemanticSummary {
	s := &finding.SemanticSummary{
		Header:        finding.Stamp(finding.KindSemanticSummary),
		PeriodSummary: fmt.Sprintf("Compressed %d routine findings from %d total", len(compress), totalOld),
		TypeCounts:    make(map[finding.Kind]int),
		KeyInsights:   []string{},
		IssueHotspots: finding.Hotspots{},
		Intelligence:  intelligence,
	}

	var locations, insights []string
	for _, r := range compress {
		s.TypeCounts[r.Kind()]++
		switch f := r.Finding.(type) {
		case *finding.Observation:
			s.ObservationPatterns++
		case *finding.Insight:
			s.InsightPatterns++
			insights = append(insights, f.Understanding)
		case *finding.Issue:
			s.RoutineIssues++
			locations = append(locations, f.Location)
		}
	}

	if spots := finding.RankHotspots(locations, 3); len(spots) > 0 {
		s.IssueHotspots = spots
	}
	if len(insights) > 3 {
		insights = insights[len(insights)-3:]
	}
	s.KeyInsights = append(s.KeyInsights, insights...)
	return s
}

// Matcher selects records for archive or delete.
type Matcher func(finding.Record) bool

// Contains matches records whose lower-cased serialized form contains
// filter, case-insensitively. An empty filter matches nothing.
func Contains(filter string) Matcher {
	needle := strings.ToLower(filter)
	return func(r finding.Record) bool {
		return needle != "" && strings.Contains(r.Text(), needle)
	}
}

// IDs matches records whose id is in ids.
func IDs(ids ...string) Matcher {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return func(r finding.Record) bool {
		_, ok := set[r.ID()]
		return ok
	}
}

// Everything matches every record.
func Everything() Matcher {
	return func(finding.Record) bool { return true }
}

// Any matches when at least one of ms matches. Nil matchers are ignored.
func Any(ms ...Matcher) Matcher {
	return func(r finding.Record) bool {
		for _, m := range ms {
			if m != nil && m(r) {
				return true
			}
		}
		return false
	}
}

// Select splits records into candidates and remaining. A record is a
// candidate when match accepts it and it is not protected; the protection
// check runs last and overrides any match.
func Select(records []finding.Record, match Matcher) (candidates, remaining []finding.Record) {
	for _, r := range records {
		if match != nil && match(r) && !r.Protected() {
			candidates = append(candidates, r)
			continue
		}
		remaining = append(remaining, r)
	}
	return candidates, remaining
}
