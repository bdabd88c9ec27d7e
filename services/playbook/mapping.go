package playbook

import "gopkg.in/yaml.v3"

// Mapping is an insertion-ordered key/value set. Plain map types randomize
// key order on marshal, which would break document determinism.
type Mapping []Entry

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value any
}

// forced marks a value that must serialize as a quoted YAML string even when
// it would otherwise parse as a number or boolean ("2048", "no").
type forced string

// KV returns an entry whose value serializes with default typing.
func KV(key string, value any) Entry {
	return Entry{Key: key, Value: value}
}

// Str returns an entry whose value is forced to an explicit string scalar.
func Str(key, value string) Entry {
	return Entry{Key: key, Value: forced(value)}
}

// M builds a Mapping from entries in order.
func M(entries ...Entry) Mapping {
	return Mapping(entries)
}

// MarshalYAML renders the mapping as a YAML map preserving entry order.
func (m Mapping) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range m {
		value, err := valueNode(e.Value)
		if err != nil {
			return nil, err
		}
		appendPair(node, e.Key, value)
	}
	return node, nil
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalarNode(key), value)
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func valueNode(v any) (*yaml.Node, error) {
	switch tv := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case forced:
		return &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Style: yaml.DoubleQuotedStyle,
			Value: string(tv),
		}, nil
	case Mapping:
		marshalled, err := tv.MarshalYAML()
		if err != nil {
			return nil, err
		}
		return marshalled.(*yaml.Node), nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(v); err != nil {
			return nil, err
		}
		return node, nil
	}
}
