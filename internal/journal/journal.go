// Package journal is the single entry point to a findings log. It wires the
// store, compaction, pressure monitoring, relevance and analysis together
// from one resolved location and configuration, and returns structured
// results for the CLI to render.
package journal

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/analysis"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/compaction"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/config"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/pressure"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/relevance"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/store"
)

const (
	momentumRecent = 3
	momentumLimit  = 3
	flowLimit      = 3
	hotspotLimit   = 5
	breadcrumbMax  = 3
)

// Journal is an open findings log.
type Journal struct {
	loc       config.Location
	cfg       config.Config
	log       *store.JSONL
	compactor *compaction.Engine
	monitor   *pressure.Monitor
	relevance *relevance.Engine
	analyzer  *analysis.Analyzer
}

// Option configures a Journal.
type Option func(*options)

type options struct {
	compaction []compaction.Option
}

// WithCompactionOptions passes options through to the compaction engine.
func WithCompactionOptions(opts ...compaction.Option) Option {
	return func(o *options) { o.compaction = append(o.compaction, opts...) }
}

// Open wires a Journal for the log at loc. Nothing is written until the
// first mutation.
func Open(loc config.Location, cfg *config.Config, opts ...Option) *Journal {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := store.NewJSONL(loc.Dir, loc.Name)
	reflections := store.NewJSONL(loc.Dir, loc.Name+"_reflections")

	engine := compaction.New(log, append([]compaction.Option{
		compaction.WithBackupRetention(cfg.Store.BackupRetention),
	}, o.compaction...)...)

	overrides := make(map[string]pressure.Override, len(cfg.Pressure.Triggers))
	for name, t := range cfg.Pressure.Triggers {
		overrides[name] = pressure.Override{KeepRecent: t.KeepRecent, Priority: t.Priority}
	}

	return &Journal{
		loc:       loc,
		cfg:       *cfg,
		log:       log,
		compactor: engine,
		monitor: pressure.New(log, engine,
			pressure.WithOverrides(overrides),
			pressure.WithEnabled(cfg.Pressure.Enabled),
		),
		relevance: relevance.New(
			relevance.WithSurfaceThreshold(cfg.Relevance.SurfaceThreshold),
			relevance.WithMaxSurfaced(cfg.Relevance.MaxSurfaced),
			relevance.WithMomentumThreshold(cfg.Relevance.MomentumThreshold),
		),
		analyzer: analysis.New(log, reflections),
	}
}

// Location returns where the log lives.
func (j *Journal) Location() config.Location { return j.loc }

// Path returns the log file path.
func (j *Journal) Path() string { return j.log.Path() }

// AppendResult reports a write and what the post-write pressure check did.
type AppendResult struct {
	ID       string          `json:"id,omitempty" yaml:"id,omitempty"`
	Type     finding.Kind    `json:"type" yaml:"type"`
	Pressure pressure.Result `json:"memory_management" yaml:"memory_management"`
}

// append writes f and runs the pressure check. A failed check never fails
// the write.
func (j *Journal) append(f finding.Finding) (AppendResult, error) {
	rec := finding.New(f)
	if err := j.log.Append(rec); err != nil {
		return AppendResult{}, fmt.Errorf("journal: append %s: %w", rec.Kind(), err)
	}
	slog.Debug("journal: appended", "type", rec.Kind(), "id", rec.ID())

	res := AppendResult{ID: rec.ID(), Type: rec.Kind(), Pressure: j.monitor.AfterWrite()}
	switch {
	case res.Pressure.Status == pressure.StatusCompressionFailed:
		slog.Warn("journal: auto-compression failed", "err", res.Pressure.Error)
	case res.Pressure.Compressed():
		slog.Info("journal: auto-compressed", "trigger", res.Pressure.Trigger, "archive", res.Pressure.Archive)
	}
	return res, nil
}

// Observe logs what was seen.
func (j *Journal) Observe(what, context string) (AppendResult, error) {
	return j.append(finding.NewObservation(what, context))
}

// Insight logs what observations mean.
func (j *Journal) Insight(understanding, evidence string) (AppendResult, error) {
	return j.append(finding.NewInsight(understanding, evidence))
}

// Discover logs a breakthrough.
func (j *Journal) Discover(breakthrough, impact, solution string) (AppendResult, error) {
	return j.append(finding.NewDiscovery(breakthrough, impact, solution))
}

// Issue logs a problem.
func (j *Journal) Issue(problem, location, severity string) (AppendResult, error) {
	return j.append(finding.NewIssue(problem, location, severity))
}

// Resolve closes the issue with the given id. The id is not checked against
// the log.
func (j *Journal) Resolve(issueID, solution string) (AppendResult, error) {
	return j.append(finding.NewResolved(issueID, solution))
}

// Consider logs an idea to evaluate later.
func (j *Journal) Consider(idea, context string) (AppendResult, error) {
	return j.append(finding.NewConsideration(idea, context))
}

// Pattern logs an architectural pattern.
func (j *Journal) Pattern(insight, value string) (AppendResult, error) {
	return j.append(finding.NewPattern(insight, value))
}

// Principle logs a design rule.
func (j *Journal) Principle(rule, rationale string) (AppendResult, error) {
	return j.append(finding.NewPrinciple(rule, rationale))
}

// Antipattern logs something to avoid.
func (j *Journal) Antipattern(problem, whyBad string) (AppendResult, error) {
	return j.append(finding.NewAntipattern(problem, whyBad))
}

// Thread records a status change of a named investigation thread.
func (j *Journal) Thread(name string, status finding.ThreadStatus) (AppendResult, error) {
	return j.append(finding.NewThread(name, status))
}

// Undo removes the last record. It reports false when the log is empty.
func (j *Journal) Undo() (bool, error) {
	ok, err := j.log.RemoveLast()
	if err != nil {
		return false, fmt.Errorf("journal: undo: %w", err)
	}
	return ok, nil
}

// SearchResult holds the matches of Search, oldest first.
type SearchResult struct {
	Term        string           `json:"term" yaml:"term"`
	Results     []finding.Record `json:"results" yaml:"results"`
	Breadcrumbs []string         `json:"related_terms,omitempty" yaml:"related_terms,omitempty"`
}

// Search returns the last limit records (all when limit <= 0) in which term
// occurs, ignoring case, in any string field other than the id. A non-empty
// kind restricts the search to that type. When anything matches, terms that
// usually follow term in the log are suggested as breadcrumbs.
func (j *Journal) Search(term string, kind finding.Kind, limit int) (SearchResult, error) {
	records, err := j.log.LoadAll()
	if err != nil {
		return SearchResult{}, fmt.Errorf("journal: search: %w", err)
	}

	needle := strings.ToLower(term)
	res := SearchResult{Term: term, Results: []finding.Record{}}
	for _, r := range records {
		if kind != "" && r.Kind() != kind {
			continue
		}
		for _, s := range r.Strings() {
			if strings.Contains(strings.ToLower(s), needle) {
				res.Results = append(res.Results, r)
				break
			}
		}
	}
	if limit > 0 && len(res.Results) > limit {
		res.Results = res.Results[len(res.Results)-limit:]
	}
	if len(res.Results) > 0 {
		res.Breadcrumbs = j.relevance.Breadcrumbs(records, term, breadcrumbMax)
	}
	return res, nil
}

// Summarize returns the session overview.
func (j *Journal) Summarize() (analysis.Summary, error) {
	return j.analyzer.Summarize()
}

// Reflect runs a meta-reflection over recent records.
func (j *Journal) Reflect() (analysis.Reflection, error) {
	return j.analyzer.Reflect(analysis.DefaultMinReflect)
}

// Compress runs a reversible compression keeping the last keepRecent
// records; keepRecent <= 0 uses the configured default.
func (j *Journal) Compress(keepRecent int) (compaction.CompressResult, error) {
	if keepRecent <= 0 {
		keepRecent = j.cfg.Compaction.KeepRecent
	}
	return j.compactor.CompressReversible(keepRecent)
}

// AutoCompress runs the pressure check now. With force set it compresses
// even when no trigger fires.
func (j *Journal) AutoCompress(force bool) pressure.Result {
	return j.monitor.AutoCompress(force)
}

// Decompress reverses the compression with the given id.
func (j *Journal) Decompress(id int64) (compaction.DecompressResult, error) {
	return j.compactor.Decompress(id)
}

// ListArchives lists the compressions that can still be reversed.
func (j *Journal) ListArchives() ([]compaction.ArchiveInfo, error) {
	return j.compactor.ListArchives()
}

// Archive moves matching records to a permanent archive file.
func (j *Journal) Archive(filter string, olderThanHours int) (compaction.ArchiveResult, error) {
	return j.compactor.Archive(filter, olderThanHours)
}

// Delete drops matching records after writing them to a backup file.
func (j *Journal) Delete(filter string, ids []string) (compaction.DeleteResult, error) {
	return j.compactor.Delete(filter, ids)
}

// Health reports the memory pressure of the log.
func (j *Journal) Health() (pressure.Report, error) {
	return j.monitor.Status()
}

// MomentumReport is what the recent records suggest doing next.
type MomentumReport struct {
	Focus       relevance.Focus        `json:"current_focus" yaml:"current_focus"`
	Suggestions []relevance.Suggestion `json:"suggestions" yaml:"suggestions"`
	Flows       []relevance.Flow       `json:"flows" yaml:"flows"`
}

// Momentum suggests next steps from what followed similar contexts.
func (j *Journal) Momentum() (MomentumReport, error) {
	records, err := j.log.LoadAll()
	if err != nil {
		return MomentumReport{}, fmt.Errorf("journal: momentum: %w", err)
	}
	rep := MomentumReport{
		Focus:       j.relevance.FocusOf(records[max(0, len(records)-momentumRecent):]),
		Suggestions: j.relevance.Momentum(records, momentumRecent, momentumLimit),
		Flows:       j.relevance.Flows(records, flowLimit),
	}
	if rep.Suggestions == nil {
		rep.Suggestions = []relevance.Suggestion{}
	}
	if rep.Flows == nil {
		rep.Flows = []relevance.Flow{}
	}
	return rep, nil
}

// Surface returns historical records relevant to the current investigation,
// optionally sharpened by an explicit context.
func (j *Journal) Surface(context string) (relevance.SurfaceResult, error) {
	records, err := j.log.LoadAll()
	if err != nil {
		return relevance.SurfaceResult{}, fmt.Errorf("journal: surface: %w", err)
	}
	return j.relevance.Surface(records, context, momentumRecent), nil
}

// Flows returns the most common record-type sequences.
func (j *Journal) Flows(limit int) ([]relevance.Flow, error) {
	records, err := j.log.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("journal: flows: %w", err)
	}
	return j.relevance.Flows(records, limit), nil
}

// Breadcrumbs returns terms that tend to follow term.
func (j *Journal) Breadcrumbs(term string, limit int) ([]string, error) {
	records, err := j.log.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("journal: breadcrumbs: %w", err)
	}
	return j.relevance.Breadcrumbs(records, term, limit), nil
}

// Hotspots returns the locations with the most issues.
func (j *Journal) Hotspots(limit int) ([]relevance.Cluster, error) {
	records, err := j.log.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("journal: hotspots: %w", err)
	}
	return j.relevance.Hotspots(records, limit), nil
}

// SuccessfulPatterns returns recent runs that ended in a discovery or a
// resolution.
func (j *Journal) SuccessfulPatterns() ([]relevance.Success, error) {
	records, err := j.log.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("journal: successful patterns: %w", err)
	}
	return j.relevance.SuccessfulPatterns(records), nil
}

// PatternReport gathers the investigation patterns of the log.
type PatternReport struct {
	Flows      []relevance.Flow    `json:"flows" yaml:"flows"`
	Hotspots   []relevance.Cluster `json:"locations" yaml:"locations"`
	Successful []relevance.Success `json:"successful" yaml:"successful"`
}

// Patterns returns flows, hotspots and successful runs in one pass over the
// log.
func (j *Journal) Patterns() (PatternReport, error) {
	records, err := j.log.LoadAll()
	if err != nil {
		return PatternReport{}, fmt.Errorf("journal: patterns: %w", err)
	}
	return PatternReport{
		Flows:      j.relevance.Flows(records, flowLimit),
		Hotspots:   j.relevance.Hotspots(records, hotspotLimit),
		Successful: j.relevance.SuccessfulPatterns(records),
	}, nil
}
