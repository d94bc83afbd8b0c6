package relevance

import (
	"fmt"
	"slices"
	"strings"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

// Surface statuses.
const (
	StatusNoMemory         = "no_memory"
	StatusSurfaced         = "surfaced"
	StatusNoRelevantMemory = "no_relevant_memory"
)

const (
	minSurfaceHistory = 5
	surfaceSkipRecent = 3
	surfaceThemes     = 5
	maxReasons        = 3
)

// Score weights.
const (
	wRecentType = 0.3
	wComplement = 0.2
	wKeywords   = 0.4
	wThemes     = 0.5
	wLinkage    = 0.6
	wStrategic  = 0.2
	wExplicit   = 0.7
)

// complements lists, per type, the types that usually follow it.
var complements = map[finding.Kind][]finding.Kind{
	finding.KindObservation: {finding.KindInsight, finding.KindDiscovery},
	finding.KindInsight:     {finding.KindDiscovery, finding.KindPattern},
	finding.KindIssue:       {finding.KindResolved, finding.KindDiscovery},
}

// Context is what the current investigation looks like.
type Context struct {
	RecentTypes   []finding.Kind `json:"recent_types" yaml:"recent_types"`
	Keywords      []string       `json:"keywords" yaml:"keywords"`
	Themes        []string       `json:"themes" yaml:"themes"`
	ActiveIssues  int            `json:"active_issues" yaml:"active_issues"`
	Momentum      string         `json:"investigation_momentum,omitempty" yaml:"investigation_momentum,omitempty"`
	ExplicitFocus string         `json:"explicit_focus,omitempty" yaml:"explicit_focus,omitempty"`

	activeIssueWords []set
	explicitWords    set
}

// Surfaced is one historical record judged relevant.
type Surfaced struct {
	Record  finding.Record `json:"entry" yaml:"entry"`
	Score   float64        `json:"relevance_score" yaml:"relevance_score"`
	Reasons []string       `json:"relevance_reasons" yaml:"relevance_reasons"`
}

// SurfaceResult is the outcome of Surface.
type SurfaceResult struct {
	Status     string     `json:"status" yaml:"status"`
	Context    *Context   `json:"context_analysis,omitempty" yaml:"context_analysis,omitempty"`
	Findings   []Surfaced `json:"relevant_findings" yaml:"relevant_findings"`
	Insights   []string   `json:"proactive_insights" yaml:"proactive_insights"`
	Confidence float64    `json:"surfacing_confidence" yaml:"surfacing_confidence"`
}

// Surface finds historical records relevant to the current investigation.
// The context is inferred from the last recent records, sharpened by
// explicit when given. Semantic summaries are ignored. Fewer than five
// records yields StatusNoMemory.
func (e *Engine) Surface(all []finding.Record, explicit string, recent int) SurfaceResult {
	records := make([]finding.Record, 0, len(all))
	for _, r := range all {
		if r.Kind() != finding.KindSemanticSummary {
			records = append(records, r)
		}
	}
	if len(records) < minSurfaceHistory {
		return SurfaceResult{Status: StatusNoMemory, Findings: []Surfaced{}, Insights: []string{}}
	}

	ctx := e.contextOf(records, explicit, recent)

	var found []Surfaced
	if len(records) > surfaceSkipRecent {
		for _, r := range records[:len(records)-surfaceSkipRecent] {
			score, reasons := e.score(r, ctx)
			if score > e.surfaceThreshold {
				found = append(found, Surfaced{Record: r, Score: score, Reasons: reasons})
			}
		}
	}
	slices.SortStableFunc(found, func(a, b Surfaced) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	res := SurfaceResult{
		Status:     StatusNoRelevantMemory,
		Context:    ctx,
		Findings:   found,
		Insights:   proactiveInsights(found, ctx),
		Confidence: confidence(found),
	}
	if len(found) > 0 {
		res.Status = StatusSurfaced
	}
	if e.maxSurfaced > 0 && len(res.Findings) > e.maxSurfaced {
		res.Findings = res.Findings[:e.maxSurfaced]
	}
	if res.Findings == nil {
		res.Findings = []Surfaced{}
	}
	return res
}

func (e *Engine) contextOf(records []finding.Record, explicit string, recent int) *Context {
	if recent <= 0 || recent > len(records) {
		recent = len(records)
	}
	ctx := &Context{RecentTypes: []finding.Kind{}, Keywords: []string{}, Themes: []string{}, ExplicitFocus: explicit}

	c := newCounter()
	for _, r := range records[len(records)-recent:] {
		ctx.RecentTypes = append(ctx.RecentTypes, r.Kind())
		for _, kw := range e.kw.Keywords(r.Content()) {
			c.add(kw)
		}
	}
	for _, kw := range c.mostCommon(surfaceThemes) {
		if c.counts[kw] > 1 {
			ctx.Themes = append(ctx.Themes, kw)
		}
	}
	ctx.Keywords = append(ctx.Keywords, c.order[:min(len(c.order), maxKeywords)]...)

	resolved := make(map[string]bool)
	for _, r := range records {
		if res, ok := r.Finding.(*finding.Resolved); ok {
			resolved[res.IssueID] = true
		}
	}
	for _, r := range records {
		if iss, ok := r.Finding.(*finding.Issue); ok && !resolved[iss.ID] {
			ctx.ActiveIssues++
			ctx.activeIssueWords = append(ctx.activeIssueWords, setOf(e.kw.Keywords(iss.Problem)...))
		}
	}

	if len(ctx.RecentTypes) >= 2 {
		kinds := make([]string, len(ctx.RecentTypes))
		for i, k := range ctx.RecentTypes {
			kinds[i] = string(k)
		}
		ctx.Momentum = strings.Join(kinds, arrow)
	}
	if explicit != "" {
		ctx.explicitWords = setOf(e.kw.Keywords(explicit)...)
	}
	return ctx
}

// score rates r against ctx, capped at 1, and explains the rating with at
// most three reasons.
func (e *Engine) score(r finding.Record, ctx *Context) (float64, []string) {
	var score float64
	var reasons []string
	kind := r.Kind()
	words := setOf(e.kw.Keywords(r.Content())...)

	if slices.Contains(ctx.RecentTypes, kind) {
		score += wRecentType
		reasons = append(reasons, fmt.Sprintf("Same type (%s) in recent investigation", kind))
	}
	for _, comp := range complements[kind] {
		if slices.Contains(ctx.RecentTypes, comp) {
			score += wComplement
			break
		}
	}

	if len(words) > 0 && len(ctx.Keywords) > 0 {
		score += wKeywords * float64(words.intersects(setOf(ctx.Keywords...))) / float64(len(ctx.Keywords))
	}
	if len(words) > 0 && len(ctx.Themes) > 0 {
		var shared []string
		for _, th := range ctx.Themes {
			if _, ok := words[th]; ok {
				shared = append(shared, th)
			}
		}
		score += wThemes * float64(len(shared)) / float64(len(ctx.Themes))
		if len(shared) > 0 {
			reasons = append(reasons, "Shares themes: "+strings.Join(shared[:min(2, len(shared))], ", "))
		}
	}

	if kind == finding.KindResolved {
		for _, issueWords := range ctx.activeIssueWords {
			if words.intersects(issueWords) > 0 {
				score += wLinkage
				reasons = append(reasons, "Previous resolution pattern for active issues")
				break
			}
		}
	}

	if finding.Strategic(kind) {
		score += wStrategic
		reasons = append(reasons, fmt.Sprintf("Strategic %s from investigation history", kind))
	}

	if len(ctx.explicitWords) > 0 && words.intersects(ctx.explicitWords) > 0 {
		score += wExplicit
		reasons = append(reasons, "Matches current investigation focus")
	}

	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	return min(score, 1.0), reasons
}

func proactiveInsights(found []Surfaced, ctx *Context) []string {
	out := []string{}
	if len(found) == 0 {
		return out
	}
	counts := make(map[finding.Kind]int)
	for _, f := range found {
		counts[f.Record.Kind()]++
	}
	if counts[finding.KindResolved] > 1 && ctx.ActiveIssues > 0 {
		out = append(out, "Historical resolutions available for similar active issues")
	}
	if counts[finding.KindDiscovery] > 2 {
		out = append(out, "Multiple relevant discoveries: potential pattern synthesis opportunity")
	}
	if counts[finding.KindPattern] > 0 {
		out = append(out, "Architectural patterns relevant to current investigation")
	}

	has := func(k finding.Kind) bool { return slices.Contains(ctx.RecentTypes, k) }
	if ctx.Momentum != "" {
		switch {
		case has(finding.KindObservation) && !has(finding.KindInsight):
			out = append(out, "Consider capturing insights from recent observations")
		case has(finding.KindInsight) && !has(finding.KindDiscovery):
			out = append(out, "Insights gathered: potential breakthrough synthesis point")
		}
	}
	return out
}

// confidence is mean(score) + min(n/5, 0.2), capped at 1.
func confidence(found []Surfaced) float64 {
	if len(found) == 0 {
		return 0
	}
	var sum float64
	for _, f := range found {
		sum += f.Score
	}
	mean := sum / float64(len(found))
	return min(mean+min(float64(len(found))/5, 0.2), 1.0)
}
