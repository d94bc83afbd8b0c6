package retention

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

func randomLog(rng *rand.Rand, n int) []finding.Record {
	out := make([]finding.Record, 0, n)
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("entry %d", i)
		var f finding.Finding
		switch rng.Intn(9) {
		case 0:
			f = finding.NewObservation(text, "")
		case 1:
			f = finding.NewInsight(text, "")
		case 2:
			f = finding.NewDiscovery(text, "", "")
		case 3:
			f = finding.NewIssue(text, "svc/handler.go", "medium")
		case 4:
			f = finding.NewIssue(text, "svc/handler.go", finding.SeverityCritical)
		case 5:
			f = finding.NewPattern(text, "")
		case 6:
			f = finding.NewPrinciple(text, "")
		case 7:
			f = finding.NewResolved("abc", text)
		default:
			f = finding.NewThread(text, finding.ThreadActive)
		}
		out = append(out, finding.New(f))
	}
	return out
}

func ids(records []finding.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID() + "|" + r.Content()
	}
	return out
}

func TestClassifyPartitionsOldDisjointly(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		records := randomLog(rng, rng.Intn(80))
		keep := rng.Intn(30)
		p := Classify(records, keep)

		require.Equal(t, len(records), len(p.Recent)+len(p.Old))
		require.ElementsMatch(t, ids(p.Old), append(ids(p.Preserve), ids(p.Compress)...))

		seen := make(map[string]bool)
		for _, k := range ids(p.Preserve) {
			seen[k] = true
		}
		for _, k := range ids(p.Compress) {
			assert.False(t, seen[k], "record %s in both preserve and compress", k)
		}
		for _, r := range p.Compress {
			assert.False(t, r.Protected(), "protected %s in compress set", r.Kind())
		}
	}
}

func TestClassifyKeepsRecentTail(t *testing.T) {
	records := randomLog(rand.New(rand.NewSource(1)), 10)
	p := Classify(records, 4)
	assert.Equal(t, ids(records[6:]), ids(p.Recent))
	assert.Len(t, p.Old, 6)

	all := Classify(records, 20)
	assert.Len(t, all.Recent, 10)
	assert.Empty(t, all.Old)
}

func TestSummarize(t *testing.T) {
	compress := []finding.Record{
		finding.New(finding.NewObservation("o1", "")),
		finding.New(finding.NewInsight("first", "")),
		finding.New(finding.NewIssue("a", "db/pool.go", "")),
		finding.New(finding.NewInsight("second", "")),
		finding.New(finding.NewIssue("b", "api/x.go", "")),
		finding.New(finding.NewInsight("third", "")),
		finding.New(finding.NewIssue("c", "db/tx.go", "")),
		finding.New(finding.NewInsight("fourth", "")),
		finding.New(finding.NewIssue("d", "", "")),
		finding.New(finding.NewIssue("e", "cli", "")),
	}
	s := Summarize(compress, 14)

	assert.Equal(t, finding.KindSemanticSummary, s.Type)
	assert.Empty(t, s.ID)
	assert.Equal(t, "Compressed 10 routine findings from 14 total", s.PeriodSummary)
	assert.Equal(t, 1, s.ObservationPatterns)
	assert.Equal(t, 4, s.InsightPatterns)
	assert.Equal(t, 5, s.RoutineIssues)
	assert.Equal(t, 5, s.TypeCounts[finding.KindIssue])
	assert.Equal(t, []string{"second", "third", "fourth"}, s.KeyInsights)
	assert.Equal(t, finding.Hotspots{{Module: "db", Count: 2}, {Module: "api", Count: 1}, {Module: "unknown", Count: 1}}, s.IssueHotspots)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 0)
	assert.Empty(t, s.KeyInsights)
	assert.Empty(t, s.IssueHotspots)
}

func TestSelectNeverYieldsProtected(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	records := randomLog(rng, 200)

	for name, m := range map[string]Matcher{
		"everything": Everything(),
		"filter":     Contains("ENTRY"),
		"ids":        IDs(records[3].ID(), records[50].ID(), records[120].ID()),
	} {
		t.Run(name, func(t *testing.T) {
			candidates, remaining := Select(records, m)
			assert.Equal(t, len(records), len(candidates)+len(remaining))
			for _, r := range candidates {
				assert.False(t, r.Protected(), "protected %s selected", r.Kind())
			}
		})
	}
}

func TestSelectFilterAndIDs(t *testing.T) {
	a := finding.New(finding.NewObservation("Redis timeout", ""))
	b := finding.New(finding.NewObservation("disk full", ""))
	c := finding.New(finding.NewDiscovery("redis is fine", "", ""))
	records := []finding.Record{a, b, c}

	got, rest := Select(records, Contains("redis"))
	assert.Equal(t, ids([]finding.Record{a}), ids(got))
	assert.Len(t, rest, 2)

	got, _ = Select(records, Any(IDs(b.ID()), Contains("")))
	assert.Equal(t, ids([]finding.Record{b}), ids(got))

	got, _ = Select(records, nil)
	assert.Empty(t, got)
}
