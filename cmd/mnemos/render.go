package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/analysis"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/compaction"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/config"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/journal"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/pressure"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/relevance"
)

var (
	colorWhite  = lipgloss.Color("#FAFAFA")
	colorGray   = lipgloss.Color("#888888")
	colorBlue   = lipgloss.Color("#5B9BD5")
	colorGreen  = lipgloss.Color("#6BCB77")
	colorYellow = lipgloss.Color("#FFD93D")
	colorRed    = lipgloss.Color("#FF6B6B")
	colorOrange = lipgloss.Color("#FFA54F")
	colorAccent = lipgloss.Color("#7D56F4")
)

var (
	headingStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)
)

// kindStyle returns the style a record type is labelled with.
func kindStyle(kind finding.Kind) lipgloss.Style {
	switch kind {
	case finding.KindObservation, finding.KindThread:
		return lipgloss.NewStyle().Foreground(colorBlue)
	case finding.KindInsight, finding.KindConsideration:
		return lipgloss.NewStyle().Foreground(colorYellow)
	case finding.KindDiscovery, finding.KindPattern, finding.KindPrinciple, finding.KindResolved:
		return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	case finding.KindIssue, finding.KindAntipattern:
		return lipgloss.NewStyle().Foreground(colorRed)
	case finding.KindSemanticSummary:
		return lipgloss.NewStyle().Foreground(colorOrange)
	default:
		return infoStyle
	}
}

// pressureStyle colours a pressure level.
func pressureStyle(l pressure.Level) lipgloss.Style {
	switch l {
	case pressure.Low:
		return okStyle
	case pressure.Medium:
		return warnStyle
	case pressure.High:
		return lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	default:
		return errorStyle
	}
}

func heading(title string) string {
	return headingStyle.Render(title) + "\n" + dimStyle.Render(strings.Repeat("─", lipgloss.Width(title)))
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

const lineWidth = 80

// formatRecord renders a record as one line: time, type, id, main text.
func formatRecord(r finding.Record) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("[" + r.Timestamp() + "]"))
	b.WriteString(" ")
	b.WriteString(kindStyle(r.Kind()).Render(fmt.Sprintf("%-13s", r.Kind())))
	if id := r.ID(); id != "" {
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(id))
	}
	text := r.Content()
	switch f := r.Finding.(type) {
	case *finding.Issue:
		text = fmt.Sprintf("%s @ %s (%s)", f.Problem, f.Location, f.Severity)
	case *finding.Resolved:
		text = fmt.Sprintf("%s: %s", f.IssueID, f.Solution)
	case *finding.Thread:
		text = fmt.Sprintf("%s (%s)", f.Name, f.Status)
	}
	if text != "" {
		b.WriteString("  ")
		b.WriteString(truncate(text, lineWidth))
	}
	return b.String()
}

// formatPressure describes what the post-write check did, or "" when it
// did nothing worth reporting.
func formatPressure(p pressure.Result) string {
	switch {
	case p.Compressed():
		return warnStyle.Render(fmt.Sprintf("auto-compressed %d → %d findings (%s, %s pressure), undo with: mnemos decompress %d",
			p.OriginalCount, p.CompressedCount, p.Trigger, p.Pressure, p.CompressionID))
	case p.Status == pressure.StatusCompressionFailed:
		return errorStyle.Render("auto-compression failed: " + p.Error)
	}
	return ""
}

func formatAppend(res journal.AppendResult) string {
	line := okStyle.Render("logged") + " " + kindStyle(res.Type).Render(string(res.Type)) + " " + res.ID
	if p := formatPressure(res.Pressure); p != "" {
		line += "\n" + p
	}
	return line
}

func formatChain(results []journal.AppendResult) string {
	lines := make([]string, 0, len(results)+1)
	lines = append(lines, okStyle.Render(fmt.Sprintf("logged %d findings", len(results))))
	for _, res := range results {
		lines = append(lines, fmt.Sprintf("  %s %s", kindStyle(res.Type).Render(fmt.Sprintf("%-13s", res.Type)), res.ID))
		if p := formatPressure(res.Pressure); p != "" {
			lines = append(lines, "  "+p)
		}
	}
	return strings.Join(lines, "\n")
}

func formatSearch(res journal.SearchResult) string {
	if len(res.Results) == 0 {
		return dimStyle.Render(fmt.Sprintf("No findings match %q", res.Term))
	}
	lines := []string{heading(fmt.Sprintf("Search: %q (%d)", res.Term, len(res.Results)))}
	for _, r := range res.Results {
		lines = append(lines, formatRecord(r))
	}
	if len(res.Breadcrumbs) > 0 {
		lines = append(lines, "", dimStyle.Render("related: ")+strings.Join(res.Breadcrumbs, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatSummary(s analysis.Summary) string {
	if s.TotalFindings == 0 {
		return dimStyle.Render(`No findings yet. Start with: mnemos o "what you see"`)
	}

	lines := []string{heading(fmt.Sprintf("Investigation (%d findings)", s.TotalFindings))}
	lines = append(lines, fmt.Sprintf("recent: %d issues, %d discoveries", s.RecentIssues, s.RecentDiscoveries))

	if len(s.ActiveThreads) > 0 {
		lines = append(lines, "threads: "+strings.Join(s.ActiveThreads, ", "))
	}
	if len(s.ActiveIssues) > 0 {
		lines = append(lines, "", headingStyle.Render(fmt.Sprintf("Open issues (%d)", len(s.ActiveIssues))))
		for _, r := range s.ActiveIssues {
			lines = append(lines, "  "+formatRecord(r))
		}
	}
	if s.LastDiscovery != nil {
		lines = append(lines, "", headingStyle.Render("Last discovery"), "  "+formatRecord(*s.LastDiscovery))
	}
	if s.LastReflection != nil {
		if meta, ok := s.LastReflection.Finding.(*finding.MetaReflection); ok {
			lines = append(lines, "", dimStyle.Render(fmt.Sprintf("last reflection at %s over %d findings", meta.Timestamp, meta.FindingsAnalyzed)))
		}
	}
	if s.ReflectionDue {
		lines = append(lines, warnStyle.Render("reflection due: mnemos reflect"))
	}
	return strings.Join(lines, "\n")
}

func formatSteps(steps []relevance.Step) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = kindStyle(s.Type).Render(string(s.Type)) + " " + truncate(s.Content, 40)
	}
	return strings.Join(parts, dimStyle.Render(" → "))
}

func formatMomentum(m journal.MomentumReport) string {
	lines := []string{heading("Momentum")}
	if len(m.Focus.Keywords) > 0 {
		lines = append(lines, dimStyle.Render("focus: ")+strings.Join(m.Focus.Keywords, ", "))
	}
	if len(m.Suggestions) == 0 {
		lines = append(lines, dimStyle.Render("Not enough history for suggestions yet. Keep logging."))
	}
	for i, s := range m.Suggestions {
		lines = append(lines,
			fmt.Sprintf("%d. %s %s", i+1, okStyle.Render(truncate(s.Action, lineWidth)),
				dimStyle.Render(fmt.Sprintf("(%.0f%% of %d)", s.SuccessRate*100, s.Frequency))),
			dimStyle.Render("   after "+s.Trigger),
		)
	}
	if len(m.Flows) > 0 {
		lines = append(lines, "", headingStyle.Render("Common flows"))
		for _, f := range m.Flows {
			lines = append(lines, fmt.Sprintf("  %dx %s", f.Count, f.Pattern))
		}
	}
	return strings.Join(lines, "\n")
}

func formatSurface(r relevance.SurfaceResult) string {
	switch r.Status {
	case relevance.StatusNoMemory:
		return dimStyle.Render("Not enough findings to surface anything yet.")
	case relevance.StatusNoRelevantMemory:
		return dimStyle.Render("Nothing in memory looks relevant right now.")
	}

	lines := []string{heading(fmt.Sprintf("Relevant memory (confidence %.0f%%)", r.Confidence*100))}
	if r.Context != nil && len(r.Context.Keywords) > 0 {
		lines = append(lines, dimStyle.Render("context: ")+strings.Join(r.Context.Keywords, ", "))
	}
	for _, f := range r.Findings {
		lines = append(lines,
			fmt.Sprintf("%s %s", warnStyle.Render(fmt.Sprintf("%.2f", f.Score)), formatRecord(f.Record)),
			dimStyle.Render("     "+strings.Join(f.Reasons, "; ")),
		)
	}
	for _, in := range r.Insights {
		lines = append(lines, infoStyle.Render("• "+in))
	}
	return strings.Join(lines, "\n")
}

func formatPatterns(p journal.PatternReport) string {
	if len(p.Flows) == 0 && len(p.Hotspots) == 0 && len(p.Successful) == 0 {
		return dimStyle.Render("No patterns yet.")
	}
	var lines []string
	if len(p.Flows) > 0 {
		lines = append(lines, heading("Investigation flows"))
		for _, f := range p.Flows {
			lines = append(lines, fmt.Sprintf("  %dx %s", f.Count, f.Pattern))
		}
	}
	if len(p.Hotspots) > 0 {
		if lines != nil {
			lines = append(lines, "")
		}
		lines = append(lines, heading("Issue hotspots"))
		for _, c := range p.Hotspots {
			lines = append(lines, fmt.Sprintf("  %-30s %s", c.Location, errorStyle.Render(fmt.Sprintf("%d issues", c.IssueCount))))
		}
	}
	if len(p.Successful) > 0 {
		if lines != nil {
			lines = append(lines, "")
		}
		lines = append(lines, heading("Runs that paid off"))
		for _, s := range p.Successful {
			lines = append(lines, "  "+formatSteps(s.Sequence[max(0, len(s.Sequence)-3):]))
		}
	}
	return strings.Join(lines, "\n")
}

func formatReflection(r analysis.Reflection) string {
	if r.Status == analysis.StatusInsufficientData {
		return dimStyle.Render(fmt.Sprintf("Only %d findings; reflection needs at least %d.", r.Count, analysis.DefaultMinReflect))
	}
	lines := []string{heading(fmt.Sprintf("Reflection over %d findings", r.Count))}
	if r.Reflection == nil {
		return lines[0]
	}
	meta, ok := r.Reflection.Finding.(*finding.MetaReflection)
	if !ok {
		return lines[0]
	}
	if len(meta.IssueHotspots) > 0 {
		spots := make([]string, len(meta.IssueHotspots))
		for i, h := range meta.IssueHotspots {
			spots[i] = fmt.Sprintf("%s (%d)", h.Module, h.Count)
		}
		lines = append(lines, "hotspots: "+strings.Join(spots, ", "))
	}
	lines = append(lines, fmt.Sprintf("completed threads: %d", meta.CompletedInvestigations))
	for _, in := range meta.PatternInsights {
		lines = append(lines, infoStyle.Render("• "+in))
	}
	return strings.Join(lines, "\n")
}

func formatCompress(r compaction.CompressResult) string {
	if r.Status != compaction.StatusCompressed {
		return dimStyle.Render(fmt.Sprintf("No compression needed (%d findings).", r.Count))
	}
	return strings.Join([]string{
		okStyle.Render(fmt.Sprintf("Compressed %d → %d findings", r.OriginalCount, r.CompressedCount)),
		fmt.Sprintf("  kept %d discoveries, %d patterns, %d critical issues; summarised %d routine",
			r.PreservedDiscoveries, r.PreservedPatterns, r.PreservedCriticalIssues, r.CompressedRoutine),
		dimStyle.Render(fmt.Sprintf("  archive %s, backup %s", r.Archive, r.Backup)),
		dimStyle.Render(fmt.Sprintf("  undo with: mnemos decompress %d", r.CompressionID)),
	}, "\n")
}

func formatDecompress(r compaction.DecompressResult) string {
	switch r.Status {
	case compaction.StatusDecompressed:
		return okStyle.Render(fmt.Sprintf("Restored %d findings from compression %d (%d total)", r.Recovered, r.CompressionID, r.Total))
	case compaction.StatusArchiveNotFound:
		return errorStyle.Render(fmt.Sprintf("No archive for compression %d.", r.CompressionID))
	case compaction.StatusSummaryNotFound:
		return errorStyle.Render(fmt.Sprintf("The summary of compression %d is no longer in the log.", r.CompressionID))
	default:
		return errorStyle.Render(fmt.Sprintf("Compression %d: %s", r.CompressionID, r.Status))
	}
}

func formatArchives(list []compaction.ArchiveInfo) string {
	if len(list) == 0 {
		return dimStyle.Render("No compressions to reverse.")
	}
	lines := []string{heading("Compressions")}
	for _, a := range list {
		lines = append(lines, fmt.Sprintf("  %-12d %s  %3d findings  %s", a.CompressionID, a.Timestamp, a.CompressedCount, dimStyle.Render(a.Path)))
	}
	return strings.Join(lines, "\n")
}

func formatArchive(r compaction.ArchiveResult) string {
	if r.Status != compaction.StatusArchived {
		return dimStyle.Render("Nothing to archive.")
	}
	return okStyle.Render(fmt.Sprintf("Archived %d findings, %d remain", r.Archived, r.Remaining)) + "\n" +
		dimStyle.Render(fmt.Sprintf("  archive %s, backup %s", r.File, r.Backup))
}

func formatDelete(r compaction.DeleteResult) string {
	if r.Status != compaction.StatusDeleted {
		return dimStyle.Render("Nothing to delete.")
	}
	return okStyle.Render(fmt.Sprintf("Deleted %d findings, %d remain", r.Deleted, r.Remaining)) + "\n" +
		dimStyle.Render("  backup "+r.Backup)
}

func formatHealth(rep pressure.Report) string {
	st := rep.State
	status := okStyle.Render(rep.Health)
	if !rep.Healthy() {
		status = warnStyle.Render(rep.Health)
	}
	lines := []string{
		heading("Memory health"),
		fmt.Sprintf("status:      %s", status),
		fmt.Sprintf("pressure:    %s", pressureStyle(rep.Pressure).Render(string(rep.Pressure))),
		fmt.Sprintf("findings:    %d total, %d recent", st.Total, st.Recent),
		fmt.Sprintf("strategic:   %d discoveries, %d patterns", st.Discoveries, st.Patterns),
		fmt.Sprintf("open issues: %d", st.UnresolvedIssues),
		fmt.Sprintf("age:         %.1fh", st.AgeHours),
	}
	if st.LastCompactionHours != nil {
		lines = append(lines, fmt.Sprintf("compressed:  %.1fh ago", *st.LastCompactionHours))
	}
	if rec := rep.Recommendation; rec.ShouldCompress {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("recommend:   compress, keeping %d (%s)", rec.KeepRecent, rec.TriggerName)))
	} else {
		lines = append(lines, dimStyle.Render("recommend:   nothing to do"))
	}
	return strings.Join(lines, "\n")
}

func formatUndo(ok bool) string {
	if ok {
		return okStyle.Render("Removed the last finding.")
	}
	return dimStyle.Render("Nothing to undo.")
}

func formatScaffold(loc config.Location, created []string) string {
	if len(created) == 0 {
		return dimStyle.Render(fmt.Sprintf("%s is already set up.", loc.Dir))
	}
	lines := []string{okStyle.Render(fmt.Sprintf("Initialised %s store in %s", loc.Scope, loc.Dir))}
	for _, p := range created {
		lines = append(lines, "  created "+p)
	}
	return strings.Join(lines, "\n")
}

func formatOverview(o overview) string {
	return strings.Join([]string{
		formatSummary(o.Summary),
		"",
		formatMomentum(o.Momentum),
		"",
		headingStyle.Render("Commands"),
		dimStyle.Render(`  mnemos o "observation"    mnemos i "insight"    mnemos d "discovery"`),
		dimStyle.Render(`  mnemos x "problem"        mnemos r <id> "fix"   mnemos search "term"`),
	}, "\n")
}
