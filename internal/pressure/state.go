// Package pressure watches the size and shape of a findings log and decides
// when it should be compressed.
package pressure

import (
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

// Level is a coarse bucket of log size.
type Level string

const (
	Low      Level = "low"      // < 50 records
	Medium   Level = "medium"   // 50-99
	High     Level = "high"     // 100-199
	Critical Level = "critical" // >= 200
)

// LevelFor buckets a record count.
func LevelFor(total int) Level {
	switch {
	case total < 50:
		return Low
	case total < 100:
		return Medium
	case total < 200:
		return High
	default:
		return Critical
	}
}

// ageHoursPerRecord converts a record count into an age estimate. Records
// carry only a time of day, so real age cannot be computed.
const ageHoursPerRecord = 0.1

// State summarises a log for trigger evaluation.
type State struct {
	Total            int     `json:"total_entries" yaml:"total_entries"`
	Recent           int     `json:"recent_entries" yaml:"recent_entries"`
	Discoveries      int     `json:"discoveries" yaml:"discoveries"`
	Patterns         int     `json:"patterns" yaml:"patterns"`
	UnresolvedIssues int     `json:"unresolved_issues" yaml:"unresolved_issues"`
	AgeHours         float64 `json:"memory_age_hours" yaml:"memory_age_hours"`
	// LastCompactionHours is nil when the log shows no sign of a previous
	// compaction.
	LastCompactionHours *float64 `json:"last_compression_hours" yaml:"last_compression_hours"`
}

// Level returns the pressure level for s.Total.
func (s State) Level() Level { return LevelFor(s.Total) }

// Measure derives a State from the full log.
func Measure(records []finding.Record) State {
	s := State{Total: len(records)}
	if s.Total == 0 {
		return s
	}
	s.Recent = min(20, s.Total)
	s.AgeHours = float64(s.Total) * ageHoursPerRecord

	resolved := make(map[string]bool)
	for _, r := range records {
		if res, ok := r.Finding.(*finding.Resolved); ok {
			resolved[res.IssueID] = true
		}
	}

	for _, r := range records {
		switch r.Kind() {
		case finding.KindDiscovery:
			s.Discoveries++
		case finding.KindPattern, finding.KindPrinciple:
			s.Patterns++
		case finding.KindIssue:
			if !resolved[r.ID()] {
				s.UnresolvedIssues++
			}
		case finding.KindSemanticSummary:
			// A summary only says a compaction happened, not when.
			h := 1.0
			s.LastCompactionHours = &h
		}
	}
	return s
}
