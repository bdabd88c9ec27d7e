// Package playbook renders the automation documents handed to the job
// execution service. Documents are ordered YAML structures; rendering the
// same input twice yields byte-identical output.
package playbook

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Playbook is an ordered sequence of plays.
type Playbook []Play

// Play targets a host group (or localhost) with an ordered list of tasks and
// optional handlers fired by task notifications.
type Play struct {
	Name        string  `yaml:"name"`
	Hosts       string  `yaml:"hosts"`
	GatherFacts bool    `yaml:"gather_facts"`
	Become      bool    `yaml:"become,omitempty"`
	Vars        Mapping `yaml:"vars,omitempty"`
	Tasks       []Task  `yaml:"tasks"`
	Handlers    []Task  `yaml:"handlers,omitempty"`
}

// Task is a single named action. Module holds the fully qualified module
// identifier and Params its argument mapping; both render under the task name
// in declaration order.
type Task struct {
	Name       string
	Module     string
	Params     any
	DelegateTo string
	Register   string
	When       string
	Notify     []string
}

// MarshalYAML renders the task with its module key inline, preserving the
// conventional ansible ordering of name, module, then control keywords.
func (t Task) MarshalYAML() (any, error) {
	if t.Module == "" {
		return nil, fmt.Errorf("task %q has no module", t.Name)
	}

	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	appendPair(node, "name", scalarNode(t.Name))

	params, err := valueNode(t.Params)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", t.Name, err)
	}
	appendPair(node, t.Module, params)

	if t.DelegateTo != "" {
		appendPair(node, "delegate_to", scalarNode(t.DelegateTo))
	}
	if t.Register != "" {
		appendPair(node, "register", scalarNode(t.Register))
	}
	if t.When != "" {
		appendPair(node, "when", scalarNode(t.When))
	}
	if len(t.Notify) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, n := range t.Notify {
			seq.Content = append(seq.Content, scalarNode(n))
		}
		appendPair(node, "notify", seq)
	}

	return node, nil
}

// Marshal serializes the playbook with two-space indentation.
func (p Playbook) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode([]Play(p)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
