package relevance

import (
	"fmt"
	"slices"
	"strings"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

const (
	momentumWindow    = 3
	typeWeight        = 0.7
	keywordWeight     = 0.3
	nextActionWords   = 6
	focusKeywords     = 3
	windowKeywords    = 2
	momentumThemeSize = 3
)

// Focus is what the most recent records are about.
type Focus struct {
	Types    []finding.Kind `json:"types" yaml:"types"`
	Keywords []string       `json:"keywords" yaml:"keywords"`
	Themes   []string       `json:"themes" yaml:"themes"`
}

// Suggestion is a next step that followed contexts similar to the current
// focus. SuccessRate is Successes / Frequency.
type Suggestion struct {
	Action      string  `json:"suggestion" yaml:"suggestion"`
	SuccessRate float64 `json:"confidence" yaml:"confidence"`
	Frequency   int     `json:"frequency" yaml:"frequency"`
	Successes   int     `json:"successes" yaml:"successes"`
	Trigger     string  `json:"trigger_pattern" yaml:"trigger_pattern"`
	Rationale   string  `json:"rationale" yaml:"rationale"`
}

// FocusOf extracts the focus of records: their types, the first three
// keywords of each headline, and up to three keywords that repeat.
func (e *Engine) FocusOf(records []finding.Record) Focus {
	f := Focus{Types: []finding.Kind{}, Keywords: []string{}, Themes: []string{}}
	c := newCounter()
	for _, r := range records {
		f.Types = append(f.Types, r.Kind())
		for _, kw := range e.kw.firstN(r.Headline(), focusKeywords) {
			f.Keywords = append(f.Keywords, kw)
			c.add(kw)
		}
	}
	for _, kw := range c.mostCommon(momentumThemeSize) {
		if c.counts[kw] > 1 {
			f.Themes = append(f.Themes, kw)
		}
	}
	return f
}

// Momentum suggests what to investigate next. The focus of the last recent
// records is compared against every earlier three-record window; when a
// window is similar enough, the headline of the record that followed it is
// a candidate action. Candidates are ranked by success rate, then by
// frequency, ties in first-seen order. Fewer than recent records yields nil.
func (e *Engine) Momentum(records []finding.Record, recent, limit int) []Suggestion {
	if recent <= 0 || len(records) < recent {
		return nil
	}
	focus := e.FocusOf(records[len(records)-recent:])
	focusTypes := kindSet(focus.Types)
	focusWords := setOf(focus.Keywords...)

	var order []string
	buckets := make(map[string]*Suggestion)

	for i := 0; i < len(records)-4; i++ {
		win := records[i : i+momentumWindow]
		next := records[i+momentumWindow]

		types := make([]finding.Kind, len(win))
		var words []string
		for j, r := range win {
			types[j] = r.Kind()
			words = append(words, e.kw.firstN(r.Headline(), windowKeywords)...)
		}
		sim := typeWeight*jaccard(kindSet(types), focusTypes) + keywordWeight*jaccard(setOf(words...), focusWords)
		if sim <= e.momentumThreshold {
			continue
		}

		action := nextAction(next)
		if action == "" {
			continue
		}
		b, ok := buckets[action]
		if !ok {
			b = &Suggestion{Action: action, Trigger: typeChain(win)}
			buckets[action] = b
			order = append(order, action)
		}
		b.Frequency++
		if successful(next.Kind()) {
			b.Successes++
		}
	}

	out := make([]Suggestion, 0, len(order))
	for _, action := range order {
		s := *buckets[action]
		s.SuccessRate = float64(s.Successes) / float64(s.Frequency)
		s.Rationale = fmt.Sprintf("You typically investigate '%s' after %s", s.Action, s.Trigger)
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int {
		switch {
		case a.SuccessRate != b.SuccessRate:
			if a.SuccessRate > b.SuccessRate {
				return -1
			}
			return 1
		default:
			return b.Frequency - a.Frequency
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// nextAction is the first six words of an observation, insight, discovery,
// or issue headline.
func nextAction(r finding.Record) string {
	words := strings.Fields(r.Headline())
	if len(words) > nextActionWords {
		words = words[:nextActionWords]
	}
	return strings.Join(words, " ")
}

func successful(k finding.Kind) bool {
	switch k {
	case finding.KindDiscovery, finding.KindResolved, finding.KindInsight:
		return true
	}
	return false
}

func kindSet(kinds []finding.Kind) set {
	s := make(set, len(kinds))
	for _, k := range kinds {
		s[string(k)] = struct{}{}
	}
	return s
}
