// Package relevance ranks log records by lexical similarity to the current
// line of investigation. There is no semantic model: everything is built on
// keyword overlap and record-type sequences.
package relevance

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	maxKeywords      = 10
	minKeywordLength = 4
	punctuation      = `.,!?()[]{}";:`
	cacheSize        = 4096
)

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "have": {}, "will": {}, "from": {},
	"they": {}, "been": {}, "were": {}, "said": {}, "each": {}, "which": {},
	"their": {}, "time": {}, "would": {}, "there": {}, "could": {}, "other": {},
	"more": {}, "very": {}, "what": {}, "know": {}, "just": {}, "first": {},
	"into": {}, "over": {}, "think": {}, "also": {}, "your": {}, "work": {},
	"life": {}, "only": {}, "when": {}, "come": {}, "like": {}, "make": {},
	"well": {}, "even": {}, "back": {}, "good": {}, "much": {}, "take": {},
	"find": {},
}

// Extractor pulls keywords out of free text and memoises the result.
type Extractor struct {
	cache *lru.Cache[string, []string]
}

// NewExtractor returns an Extractor caching up to size texts. size <= 0
// disables the cache.
func NewExtractor(size int) *Extractor {
	e := &Extractor{}
	if size > 0 {
		// lru.New only fails for a non-positive size.
		e.cache, _ = lru.New[string, []string](size)
	}
	return e
}

// Normalize folds text to NFKC and lower case.
func Normalize(text string) string {
	return cases.Lower(language.Und).String(norm.NFKC.String(text))
}

// Keywords returns up to 10 keywords of text in order of appearance:
// alphabetic words longer than three letters, stripped of surrounding
// punctuation, that are not stop words. Duplicates are kept.
func (e *Extractor) Keywords(text string) []string {
	if text == "" {
		return nil
	}
	if e.cache != nil {
		if kw, ok := e.cache.Get(text); ok {
			return slices.Clone(kw)
		}
	}

	var out []string
	for _, word := range strings.Fields(Normalize(text)) {
		word = strings.Trim(word, punctuation)
		if utf8.RuneCountInString(word) < minKeywordLength || !alphabetic(word) {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		out = append(out, word)
		if len(out) == maxKeywords {
			break
		}
	}

	if e.cache != nil {
		e.cache.Add(text, out)
	}
	return slices.Clone(out)
}

func alphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// firstN returns at most n leading keywords of text.
func (e *Extractor) firstN(text string, n int) []string {
	kw := e.Keywords(text)
	if len(kw) > n {
		kw = kw[:n]
	}
	return kw
}

// counter counts strings and remembers first-seen order, so ties rank
// deterministically.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(s string) {
	if _, ok := c.counts[s]; !ok {
		c.order = append(c.order, s)
	}
	c.counts[s]++
}

// mostCommon returns up to n keys by count descending, ties in first-seen
// order. n <= 0 returns all keys.
func (c *counter) mostCommon(n int) []string {
	keys := slices.Clone(c.order)
	slices.SortStableFunc(keys, func(a, b string) int { return c.counts[b] - c.counts[a] })
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

type set map[string]struct{}

func setOf(items ...string) set {
	s := make(set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s set) intersects(o set) int {
	n := 0
	for k := range s {
		if _, ok := o[k]; ok {
			n++
		}
	}
	return n
}

// jaccard is |a ∩ b| / max(|a ∪ b|, 1).
func jaccard(a, b set) float64 {
	inter := a.intersects(b)
	union := len(a) + len(b) - inter
	return float64(inter) / float64(max(union, 1))
}
