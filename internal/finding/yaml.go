package finding

import (
	"gopkg.in/yaml.v3"
)

// MarshalYAML renders the record with the same keys, in the same order, as
// its JSON line.
func (r Record) MarshalYAML() (any, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	node := doc.Content[0]
	blockStyle(node)
	return node, nil
}

// blockStyle drops the flow and quoting styles inherited from JSON so the
// encoder picks its defaults.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
