package finding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Hotspot counts issues under one location prefix.
type Hotspot struct {
	Module string `json:"module" yaml:"module"`
	Count  int    `json:"count" yaml:"count"`
}

// Hotspots is an ordered module → count table. It serialises as a JSON
// object whose keys keep their rank order.
type Hotspots []Hotspot

// Module returns the part of location before the first "/", or the whole
// location when it has none.
func Module(location string) string {
	if location == "" {
		return "unknown"
	}
	if i := strings.Index(location, "/"); i >= 0 {
		return location[:i]
	}
	return location
}

// RankHotspots groups locations by Module and returns the top n by count,
// ties broken by first appearance. n <= 0 returns every module.
func RankHotspots(locations []string, n int) Hotspots {
	index := make(map[string]int)
	var out Hotspots
	for _, loc := range locations {
		m := Module(loc)
		if i, ok := index[m]; ok {
			out[i].Count++
			continue
		}
		index[m] = len(out)
		out = append(out, Hotspot{Module: m, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// MarshalJSON writes the table as an object in rank order.
func (h Hotspots) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, spot := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(spot.Module)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", spot.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping key order.
func (h *Hotspots) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*h = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("finding: hotspots: expected object")
	}
	var out Hotspots
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("finding: hotspots %q: %w", key, err)
		}
		out = append(out, Hotspot{Module: key, Count: count})
	}
	*h = out
	return nil
}
