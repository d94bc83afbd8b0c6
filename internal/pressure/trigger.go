package pressure

import "sort"

// Trigger is one rule of the compression policy. Higher Priority wins.
type Trigger struct {
	Name        string
	Description string
	Priority    int
	KeepRecent  int
	Condition   func(State) bool
}

// Override replaces the tunable parts of a named trigger. Zero fields leave
// the default in place.
type Override struct {
	KeepRecent int
	Priority   int
}

// DefaultTriggers returns the built-in trigger table.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Name:        "critical_pressure",
			Description: "Emergency compression at >200 entries",
			Priority:    100,
			KeepRecent:  20,
			Condition:   func(s State) bool { return s.Level() == Critical },
		},
		{
			Name:        "high_pressure_aged",
			Description: "High memory pressure with aged content",
			Priority:    80,
			KeepRecent:  25,
			Condition:   func(s State) bool { return s.Level() == High && s.AgeHours > 2 },
		},
		{
			Name:        "discovery_preservation",
			Description: "Compress to preserve discovery patterns",
			Priority:    60,
			KeepRecent:  35,
			Condition:   func(s State) bool { return s.Discoveries > 10 && s.Total > 60 },
		},
		{
			Name:        "routine_maintenance",
			Description: "Routine maintenance compression",
			Priority:    40,
			KeepRecent:  30,
			Condition: func(s State) bool {
				return s.Total > 75 && s.LastCompactionHours != nil && *s.LastCompactionHours > 4
			},
		},
	}
}

// ApplyOverrides returns a copy of triggers with overrides applied by name.
// Unknown names are ignored.
func ApplyOverrides(triggers []Trigger, overrides map[string]Override) []Trigger {
	out := make([]Trigger, len(triggers))
	copy(out, triggers)
	for i := range out {
		o, ok := overrides[out[i].Name]
		if !ok {
			continue
		}
		if o.KeepRecent > 0 {
			out[i].KeepRecent = o.KeepRecent
		}
		if o.Priority > 0 {
			out[i].Priority = o.Priority
		}
	}
	return out
}

// Evaluate returns the highest-priority trigger whose condition holds for s.
// Equal priorities keep table order.
func Evaluate(s State, triggers []Trigger) (Trigger, bool) {
	ordered := make([]Trigger, len(triggers))
	copy(ordered, triggers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	for _, t := range ordered {
		if t.Condition != nil && t.Condition(s) {
			return t, true
		}
	}
	return Trigger{}, false
}
