package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/store"
)

func newAnalyzer(t *testing.T, records ...finding.Record) (*Analyzer, *store.JSONL) {
	t.Helper()
	dir := t.TempDir()
	log := store.NewJSONL(dir, "memory")
	for _, r := range records {
		require.NoError(t, log.Append(r))
	}
	reflections := store.NewJSONL(dir, "memory_reflections")
	return New(log, reflections), reflections
}

func issueWithID(id, problem, location, severity string) finding.Record {
	iss := finding.NewIssue(problem, location, severity)
	iss.ID = id
	return finding.New(iss)
}

func thread(name string, status finding.ThreadStatus) finding.Record {
	return finding.New(finding.NewThread(name, status))
}

func TestActiveIssuesAfterResolve(t *testing.T) {
	records := []finding.Record{
		issueWithID("abc123", "race in scheduler", "sched/run.go", "high"),
		issueWithID("def456", "slow query", "db/q.go", ""),
		finding.New(finding.NewResolved("abc123", "lock the queue")),
	}
	got := ActiveIssues(records)
	require.Len(t, got, 1)
	assert.Equal(t, "def456", got[0].ID())

	assert.Empty(t, ActiveIssues(nil))
}

func TestActiveThreads(t *testing.T) {
	records := []finding.Record{
		thread("auth", finding.ThreadActive),
		thread("cache", finding.ThreadActive),
		thread("dns", finding.ThreadActive),
		thread("cache", finding.ThreadCompleted),
		thread("auth", finding.ThreadActive),
		thread("dns", finding.ThreadAbandoned),
		thread("dns", finding.ThreadActive),
	}
	assert.Equal(t, []string{"dns", "auth"}, ActiveThreads(records))
	assert.Empty(t, ActiveThreads(nil))
}

func TestSummarize(t *testing.T) {
	var records []finding.Record
	for i := 0; i < 25; i++ {
		records = append(records, finding.New(finding.NewObservation(fmt.Sprintf("old %d", i), "")))
	}
	records = append(records,
		issueWithID("abc123", "leak", "db/pool.go", "high"),
		finding.New(finding.NewDiscovery("pool never shrinks", "memory", "")),
		finding.New(finding.NewResolved("abc123", "cap idle conns")),
		thread("pool", finding.ThreadActive),
		finding.New(finding.NewDiscovery("idle timeout ignored", "", "")),
	)
	a, _ := newAnalyzer(t, records...)

	s, err := a.Summarize()
	require.NoError(t, err)
	assert.Equal(t, 1, s.RecentIssues)
	assert.Equal(t, 2, s.RecentDiscoveries)
	assert.Equal(t, 3, s.TotalFindings)
	assert.False(t, s.ReflectionDue)
	assert.Equal(t, []string{"pool"}, s.ActiveThreads)
	assert.Empty(t, s.ActiveIssues)
	require.NotNil(t, s.LastDiscovery)
	assert.Equal(t, "idle timeout ignored", s.LastDiscovery.Content())
	assert.Nil(t, s.LastReflection)
}

func TestSummarizeEmptyStore(t *testing.T) {
	a, _ := newAnalyzer(t)
	s, err := a.Summarize()
	require.NoError(t, err)
	assert.Zero(t, s.TotalFindings)
	assert.Nil(t, s.LastDiscovery)
	assert.Empty(t, s.ActiveThreads)
}

func TestSummarizeReflectionDue(t *testing.T) {
	var records []finding.Record
	for i := 0; i < 10; i++ {
		records = append(records, issueWithID(fmt.Sprintf("i%d", i), "flaky", "ci/run.sh", ""))
	}
	a, _ := newAnalyzer(t, records...)
	s, err := a.Summarize()
	require.NoError(t, err)
	assert.True(t, s.ReflectionDue)
	assert.Len(t, s.ActiveIssues, 10)
}

func TestReflectInsufficientData(t *testing.T) {
	a, reflections := newAnalyzer(t, finding.New(finding.NewObservation("one", "")))
	got, err := a.Reflect(DefaultMinReflect)
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficientData, got.Status)
	assert.Equal(t, 1, got.Count)

	logged, err := reflections.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, logged)
}

func TestReflect(t *testing.T) {
	records := []finding.Record{
		issueWithID("a", "panic", "api/h.go", finding.SeverityCritical),
		issueWithID("b", "nil map", "api/m.go", finding.SeverityCritical),
		issueWithID("c", "slow", "db/q.go", ""),
		finding.New(finding.NewDiscovery("one", "", "")),
		finding.New(finding.NewDiscovery("two", "", "")),
		finding.New(finding.NewDiscovery("three", "", "")),
		thread("api", finding.ThreadActive),
		thread("api", finding.ThreadCompleted),
		thread("db", finding.ThreadActive),
		finding.New(finding.NewObservation("filler", "")),
	}
	a, reflections := newAnalyzer(t, records...)

	got, err := a.Reflect(DefaultMinReflect)
	require.NoError(t, err)
	assert.Equal(t, StatusReflected, got.Status)
	require.NotNil(t, got.Reflection)

	meta, ok := got.Reflection.Finding.(*finding.MetaReflection)
	require.True(t, ok)
	assert.Equal(t, 10, meta.FindingsAnalyzed)
	assert.Equal(t, finding.Hotspots{{Module: "api", Count: 2}, {Module: "db", Count: 1}}, meta.IssueHotspots)
	assert.Equal(t, 1, meta.CompletedInvestigations)
	assert.Equal(t, []string{
		"Issue hotspot detected: api module (2 issues)",
		"High discovery rate: 3 discoveries recently",
		"Multiple critical issues suggest systemic problems",
	}, meta.PatternInsights)

	logged, err := reflections.LoadAll()
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, finding.KindMetaReflection, logged[0].Kind())

	s, err := a.Summarize()
	require.NoError(t, err)
	require.NotNil(t, s.LastReflection)
	assert.Equal(t, finding.KindMetaReflection, s.LastReflection.Kind())
}

func TestReflectNoPatterns(t *testing.T) {
	var records []finding.Record
	for i := 0; i < 12; i++ {
		records = append(records, finding.New(finding.NewObservation("quiet", "")))
	}
	a, _ := newAnalyzer(t, records...)
	got, err := a.Reflect(DefaultMinReflect)
	require.NoError(t, err)
	meta := got.Reflection.Finding.(*finding.MetaReflection)
	assert.Equal(t, []string{"No clear patterns detected yet"}, meta.PatternInsights)
	assert.Empty(t, meta.IssueHotspots)
}
