package relevance

import (
	"slices"
	"strings"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

// Breadcrumbs suggests terms that tend to come up after term. The log is cut
// into five-record windows; each record contributes the first two keywords
// of its headline, and every window with more than one distinct term is a
// sequence. Terms that follow term within a sequence are counted.
func (e *Engine) Breadcrumbs(records []finding.Record, term string, limit int) []string {
	query := Normalize(strings.TrimSpace(term))
	if query == "" || limit <= 0 {
		return nil
	}

	c := newCounter()
	for _, win := range windows(records, windowSize) {
		var terms []string
		seen := make(set)
		for _, r := range win {
			for _, kw := range e.kw.firstN(r.Headline(), 2) {
				if _, dup := seen[kw]; !dup {
					seen[kw] = struct{}{}
					terms = append(terms, kw)
				}
			}
		}
		if len(terms) < 2 {
			continue
		}
		at := slices.Index(terms, query)
		if at < 0 {
			continue
		}
		for _, next := range terms[at+1:] {
			c.add(next)
		}
	}
	return c.mostCommon(limit)
}

// Flow is a recurring sequence of record types.
type Flow struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Count   int    `json:"count" yaml:"count"`
	Example []Step `json:"example" yaml:"example"`
}

// Flows returns the limit most common type sequences over five-record
// windows, each with its most recent occurrence as the example.
func (e *Engine) Flows(records []finding.Record, limit int) []Flow {
	c := newCounter()
	latest := make(map[string][]finding.Record)
	for _, win := range windows(records, windowSize) {
		if len(win) < 2 {
			continue
		}
		chain := typeChain(win)
		c.add(chain)
		latest[chain] = win
	}

	var out []Flow
	for _, chain := range c.mostCommon(limit) {
		out = append(out, Flow{Pattern: chain, Count: c.counts[chain], Example: steps(latest[chain])})
	}
	return out
}

// Success is a run of records that ended in a discovery or a resolution.
type Success struct {
	Pattern  string `json:"pattern" yaml:"pattern"`
	Outcome  Step   `json:"outcome" yaml:"outcome"`
	Sequence []Step `json:"sequence" yaml:"sequence"`
}

const (
	successLookback = 5
	successKeep     = 5
)

// SuccessfulPatterns returns the five most recent runs (up to five records
// before an outcome, plus the outcome) that led to a discovery or
// resolution.
func (e *Engine) SuccessfulPatterns(records []finding.Record) []Success {
	var out []Success
	for i, r := range records {
		if k := r.Kind(); k != finding.KindDiscovery && k != finding.KindResolved {
			continue
		}
		seq := records[max(0, i-successLookback) : i+1]
		if len(seq) < 2 {
			continue
		}
		out = append(out, Success{Pattern: typeChain(seq), Outcome: stepOf(r), Sequence: steps(seq)})
	}
	if len(out) > successKeep {
		out = out[len(out)-successKeep:]
	}
	return out
}

// IssueRef is a short view of an issue.
type IssueRef struct {
	ID        string `json:"id" yaml:"id"`
	Problem   string `json:"problem" yaml:"problem"`
	Severity  string `json:"severity" yaml:"severity"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// Cluster groups the issues reported at one location.
type Cluster struct {
	Location   string         `json:"location" yaml:"location"`
	IssueCount int            `json:"issue_count" yaml:"issue_count"`
	Recent     []IssueRef     `json:"recent_issues" yaml:"recent_issues"`
	Severity   map[string]int `json:"severity_distribution" yaml:"severity_distribution"`
}

// Hotspots groups issues by exact location and returns the limit busiest
// locations, ties in first-seen order.
func (e *Engine) Hotspots(records []finding.Record, limit int) []Cluster {
	c := newCounter()
	issues := make(map[string][]*finding.Issue)
	for _, r := range records {
		iss, ok := r.Finding.(*finding.Issue)
		if !ok {
			continue
		}
		loc := iss.Location
		if loc == "" {
			loc = "unknown"
		}
		c.add(loc)
		issues[loc] = append(issues[loc], iss)
	}

	var out []Cluster
	for _, loc := range c.mostCommon(limit) {
		list := issues[loc]
		cl := Cluster{Location: loc, IssueCount: len(list), Severity: make(map[string]int)}
		for _, iss := range list {
			sev := iss.Severity
			if sev == "" {
				sev = "medium"
			}
			cl.Severity[sev]++
		}
		for _, iss := range list[max(0, len(list)-3):] {
			cl.Recent = append(cl.Recent, IssueRef{ID: iss.ID, Problem: iss.Problem, Severity: iss.Severity, Timestamp: iss.Timestamp})
		}
		out = append(out, cl)
	}
	return out
}
