package frontmatter

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Metadata is an ordered top-level mapping backed by YAML nodes. It tracks
// which keys were changed so Encode can leave the rest untouched.
type Metadata struct {
	keys     []string
	values   map[string]*yaml.Node
	keyNodes map[string]*yaml.Node
	dirty    map[string]bool
	removed  map[string]bool
}

// NewMetadata returns an empty mapping.
func NewMetadata() *Metadata {
	return &Metadata{
		values:   map[string]*yaml.Node{},
		keyNodes: map[string]*yaml.Node{},
		dirty:    map[string]bool{},
		removed:  map[string]bool{},
	}
}

func (m *Metadata) add(keyNode, value *yaml.Node) {
	m.keys = append(m.keys, keyNode.Value)
	m.values[keyNode.Value] = value
	m.keyNodes[keyNode.Value] = keyNode
}

// Keys returns the keys in document order.
func (m *Metadata) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len reports the number of keys.
func (m *Metadata) Len() int {
	return len(m.keys)
}

// Has reports whether key is present.
func (m *Metadata) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Node returns the value node for key, or nil. Callers that mutate the node
// must pass it back through SetNode.
func (m *Metadata) Node(key string) *yaml.Node {
	return m.values[key]
}

// Decode decodes the value for key into out. A missing key leaves out
// untouched and returns false.
func (m *Metadata) Decode(key string, out any) (bool, error) {
	node, ok := m.values[key]
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set encodes value and stores it under key. New keys are appended.
func (m *Metadata) Set(key string, value any) error {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.SetNode(key, &node)
	return nil
}

// SetNode stores node under key. New keys are appended.
func (m *Metadata) SetNode(key string, node *yaml.Node) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = node
	m.dirty[key] = true
	delete(m.removed, key)
}

// Delete removes key and reports whether it was present.
func (m *Metadata) Delete(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	delete(m.dirty, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	m.removed[key] = true
	return true
}

// Map decodes every value into a generic map.
func (m *Metadata) Map() (map[string]any, error) {
	out := make(map[string]any, len(m.keys))
	for _, key := range m.keys {
		var value any
		if err := m.values[key].Decode(&value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

// Changed reports whether any key was set or deleted since decoding.
func (m *Metadata) Changed() bool {
	return len(m.dirty) > 0 || len(m.removed) > 0
}

func (m *Metadata) keyNode(key string) *yaml.Node {
	if node, ok := m.keyNodes[key]; ok {
		return node
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}
