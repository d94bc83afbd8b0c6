package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/journal"
)

// chainKinds maps the prefixes accepted in "type:content" arguments.
var chainKinds = map[string]finding.Kind{
	"o":             finding.KindObservation,
	"obs":           finding.KindObservation,
	"observation":   finding.KindObservation,
	"i":             finding.KindInsight,
	"insight":       finding.KindInsight,
	"d":             finding.KindDiscovery,
	"discovery":     finding.KindDiscovery,
	"x":             finding.KindIssue,
	"issue":         finding.KindIssue,
	"c":             finding.KindConsideration,
	"consideration": finding.KindConsideration,
	"pattern":       finding.KindPattern,
	"principle":     finding.KindPrinciple,
	"antipattern":   finding.KindAntipattern,
}

// chainItem is one parsed "type:content" argument.
type chainItem struct {
	Kind    finding.Kind
	Content string
}

// parseChain parses every argument before anything is written, so a typo
// in the last item leaves the log untouched.
func parseChain(args []string) ([]chainItem, error) {
	items := make([]chainItem, 0, len(args))
	for _, arg := range args {
		prefix, content, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("unknown command %q (chained findings look like o:\"what you saw\")", arg)
		}
		kind, known := chainKinds[strings.ToLower(prefix)]
		if !known {
			return nil, fmt.Errorf("unknown finding type %q in %q", prefix, arg)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return nil, fmt.Errorf("empty %s in %q", kind, arg)
		}
		items = append(items, chainItem{Kind: kind, Content: content})
	}
	return items, nil
}

// appendItem writes one chained finding. Chained issues have no location.
func appendItem(j *journal.Journal, it chainItem) (journal.AppendResult, error) {
	switch it.Kind {
	case finding.KindObservation:
		return j.Observe(it.Content, "")
	case finding.KindInsight:
		return j.Insight(it.Content, "")
	case finding.KindDiscovery:
		return j.Discover(it.Content, "", "")
	case finding.KindIssue:
		return j.Issue(it.Content, unknownLocation, "")
	case finding.KindConsideration:
		return j.Consider(it.Content, "")
	case finding.KindPattern:
		return j.Pattern(it.Content, "")
	case finding.KindPrinciple:
		return j.Principle(it.Content, "")
	case finding.KindAntipattern:
		return j.Antipattern(it.Content, "")
	}
	return journal.AppendResult{}, fmt.Errorf("cannot chain %s", it.Kind)
}

// logChain handles "mnemos o:foo i:bar".
func logChain(cmd *cobra.Command, args []string) error {
	items, err := parseChain(args)
	if err != nil {
		return err
	}
	j, err := openJournal(cmd)
	if err != nil {
		return err
	}

	results := make([]journal.AppendResult, 0, len(items))
	for _, it := range items {
		res, err := appendItem(j, it)
		if err != nil {
			return err
		}
		results = append(results, res)
	}
	return emit(cmd, results, func() string { return formatChain(results) })
}
