package relevance

import (
	"strings"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
)

const (
	windowSize     = 5
	contentPreview = 50
	arrow          = " → "
)

// Engine holds the tunables of every relevance query. Queries are pure
// functions of the records passed in.
type Engine struct {
	kw                *Extractor
	surfaceThreshold  float64
	maxSurfaced       int
	momentumThreshold float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSurfaceThreshold sets the minimum score for a surfaced record.
func WithSurfaceThreshold(v float64) Option {
	return func(e *Engine) { e.surfaceThreshold = v }
}

// WithMaxSurfaced caps the number of surfaced records.
func WithMaxSurfaced(n int) Option {
	return func(e *Engine) { e.maxSurfaced = n }
}

// WithMomentumThreshold sets the minimum window similarity for momentum.
func WithMomentumThreshold(v float64) Option {
	return func(e *Engine) { e.momentumThreshold = v }
}

// WithExtractor shares a keyword extractor (and its cache) between engines.
func WithExtractor(x *Extractor) Option {
	return func(e *Engine) { e.kw = x }
}

// New returns an Engine with the default thresholds.
func New(opts ...Option) *Engine {
	e := &Engine{
		kw:                NewExtractor(cacheSize),
		surfaceThreshold:  0.4,
		maxSurfaced:       5,
		momentumThreshold: 0.3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Keywords extracts keywords with the engine's cache.
func (e *Engine) Keywords(text string) []string {
	return e.kw.Keywords(text)
}

// Step is a short view of one record inside a sequence.
type Step struct {
	Type    finding.Kind `json:"type" yaml:"type"`
	Content string       `json:"content" yaml:"content"`
}

func stepOf(r finding.Record) Step {
	return Step{Type: r.Kind(), Content: preview(r.Content(), contentPreview)}
}

func steps(records []finding.Record) []Step {
	out := make([]Step, len(records))
	for i, r := range records {
		out[i] = stepOf(r)
	}
	return out
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func typeChain(records []finding.Record) string {
	kinds := make([]string, len(records))
	for i, r := range records {
		kinds[i] = string(r.Kind())
	}
	return strings.Join(kinds, arrow)
}

// windows cuts records into consecutive, non-overlapping groups of size;
// the last group may be shorter.
func windows(records []finding.Record, size int) [][]finding.Record {
	var out [][]finding.Record
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}
