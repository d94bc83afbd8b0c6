package finding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one line of a log. A decoded record keeps its original bytes so
// that a rewrite reproduces it exactly, including fields this version does
// not model.
type Record struct {
	Finding
	raw json.RawMessage
}

// New wraps a freshly built finding.
func New(f Finding) Record {
	return Record{Finding: f}
}

// Decode parses one log line.
func Decode(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// ID returns the record id ("" for threads and synthetic records).
func (r Record) ID() string { return r.Meta().ID }

// Kind returns the record type.
func (r Record) Kind() Kind { return r.Meta().Type }

// Timestamp returns the stored wall-clock time.
func (r Record) Timestamp() string { return r.Meta().Timestamp }

// MarshalJSON emits the original bytes for decoded records.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	if r.Finding == nil {
		return nil, fmt.Errorf("finding: marshal empty record")
	}
	return json.Marshal(r.Finding)
}

// UnmarshalJSON selects the variant from the "type" field. Unrecognised
// types decode into *Unknown.
func (r *Record) UnmarshalJSON(data []byte) error {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("finding: decode: %w", err)
	}

	f := variant(head.Type)
	if u, ok := f.(*Unknown); ok {
		if err := json.Unmarshal(data, &u.Header); err != nil {
			return fmt.Errorf("finding: decode %q: %w", head.Type, err)
		}
		if err := json.Unmarshal(data, &u.Fields); err != nil {
			return fmt.Errorf("finding: decode %q: %w", head.Type, err)
		}
	} else if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("finding: decode %q: %w", head.Type, err)
	}

	r.Finding = f
	r.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

func variant(kind Kind) Finding {
	switch kind {
	case KindObservation:
		return &Observation{}
	case KindInsight:
		return &Insight{}
	case KindDiscovery:
		return &Discovery{}
	case KindIssue:
		return &Issue{}
	case KindResolved:
		return &Resolved{}
	case KindConsideration:
		return &Consideration{}
	case KindPattern:
		return &Pattern{}
	case KindPrinciple:
		return &Principle{}
	case KindAntipattern:
		return &Antipattern{}
	case KindThread:
		return &Thread{}
	case KindSemanticSummary:
		return &SemanticSummary{}
	case KindCompressionMetadata:
		return &CompressionMetadata{}
	case KindMetaReflection:
		return &MetaReflection{}
	default:
		return &Unknown{}
	}
}

// MarshalJSON re-emits every captured field.
func (u *Unknown) MarshalJSON() ([]byte, error) {
	if u.Fields != nil {
		return json.Marshal(u.Fields)
	}
	return json.Marshal(u.Header)
}

// Content returns the main free-text field of the record, or "" when the
// variant has none.
func (r Record) Content() string {
	switch f := r.Finding.(type) {
	case *Observation:
		return f.What
	case *Insight:
		return f.Understanding
	case *Discovery:
		return f.Breakthrough
	case *Issue:
		return f.Problem
	case *Antipattern:
		return f.Problem
	case *Consideration:
		return f.Idea
	case *Pattern:
		return f.Insight
	case *Principle:
		return f.Rule
	case *Resolved:
		return f.Solution
	case *Thread:
		return f.Name
	}
	return ""
}

// Headline returns the investigation narrative of the record: what was
// observed, understood, found, or went wrong. Other kinds return "".
func (r Record) Headline() string {
	switch f := r.Finding.(type) {
	case *Observation:
		return f.What
	case *Insight:
		return f.Understanding
	case *Discovery:
		return f.Breakthrough
	case *Issue:
		return f.Problem
	}
	return ""
}

// Text returns the lower-cased serialized record.
func (r Record) Text() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return ""
	}
	return strings.ToLower(string(b))
}

// Strings returns every string-valued field except the id.
func (r Record) Strings() []string {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil
	}
	out := make([]string, 0, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && k != "id" {
			out = append(out, s)
		}
	}
	return out
}

// Protected reports whether compaction must leave the record in the main
// log: discoveries, patterns, principles, and critical issues.
func (r Record) Protected() bool {
	if Strategic(r.Kind()) {
		return true
	}
	if iss, ok := r.Finding.(*Issue); ok {
		return iss.Critical()
	}
	return false
}
