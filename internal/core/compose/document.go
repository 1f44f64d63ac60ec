// Package compose contains pure functions for working with Docker Compose documents.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	keyServices = "services"
	keyVolumes  = "volumes"
	keySource   = "source"

	tagString = "!!str"
	tagNull   = "!!null"
	tagMerge  = "!!merge"
)

// =============================================================================
// Document
// =============================================================================

// Document is a parsed compose document backed by an ordered YAML node tree.
// Key order, comments, anchors and scalar styles survive a parse/marshal cycle.
type Document struct {
	node *yaml.Node
}

// ParseDocument parses compose YAML into a Document.
func ParseDocument(content []byte) (*Document, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyInput
	}

	var node yaml.Node
	if err := yaml.Unmarshal(content, &node); err != nil {
		return nil, NewParseError("", "invalid YAML syntax: "+err.Error(), ErrInvalidYAML)
	}
	if node.Kind == 0 {
		// Comments only
		return nil, ErrEmptyInput
	}

	return NewDocument(&node)
}

// NewDocument wraps an already-parsed node. A bare mapping node is accepted and
// wrapped in a document node. The node is not copied.
func NewDocument(node *yaml.Node) (*Document, error) {
	if node == nil {
		return nil, ErrEmptyInput
	}
	if node.Kind != yaml.DocumentNode {
		node = &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{node}}
	}
	return &Document{node: node}, nil
}

// Node returns the underlying document node.
func (d *Document) Node() *yaml.Node {
	return d.node
}

// Marshal serializes the document back to YAML.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy of the document. Aliases in the copy point at the
// copied anchors.
func (d *Document) Clone() *Document {
	return &Document{node: cloneNode(d.node, make(map[*yaml.Node]*yaml.Node))}
}

// ServiceNames returns the service names in declaration order.
func (d *Document) ServiceNames() []string {
	return mappingKeys(d.field(keyServices))
}

// VolumeNames returns the top-level volume names in declaration order.
func (d *Document) VolumeNames() []string {
	return mappingKeys(d.field(keyVolumes))
}

// root returns the top-level node, or nil for an empty document.
func (d *Document) root() *yaml.Node {
	if d.node == nil || len(d.node.Content) == 0 {
		return nil
	}
	return resolve(d.node.Content[0])
}

func (d *Document) field(key string) *yaml.Node {
	root := d.root()
	if root == nil || root.Kind != yaml.MappingNode {
		return nil
	}
	idx := findKey(root, key)
	if idx < 0 {
		return nil
	}
	return resolve(root.Content[idx+1])
}

// =============================================================================
// Node Helpers
// =============================================================================

func cloneNode(n *yaml.Node, seen map[*yaml.Node]*yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if c, ok := seen[n]; ok {
		return c
	}
	c := *n
	seen[n] = &c
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child, seen)
		}
	}
	if n.Alias != nil {
		c.Alias = cloneNode(n.Alias, seen)
	}
	return &c
}

// resolve follows alias nodes to their anchored target.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == tagNull)
}

func isString(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == tagString
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == tagMerge
}

// findKey returns the index of an explicit key in a mapping node, or -1.
// Keys inherited through merge keys are not considered.
func findKey(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		k := resolve(m.Content[i])
		if k.Kind == yaml.ScalarNode && k.Value == key && !isMergeKey(k) {
			return i
		}
	}
	return -1
}

// findMerged looks key up in the mappings merged into m via "<<", honoring
// merge precedence (earlier sources win, nested merges included). It returns
// the value and the mapping that declares it.
func findMerged(m *yaml.Node, key string) (value, owner *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if !isMergeKey(m.Content[i]) {
			continue
		}
		for _, src := range mergeSources(m.Content[i+1]) {
			if idx := findKey(src, key); idx >= 0 {
				return src.Content[idx+1], src
			}
			if v, o := findMerged(src, key); v != nil {
				return v, o
			}
		}
	}
	return nil, nil
}

// mergedPairs returns the key and value nodes m inherits through "<<" without
// declaring them itself, flattened in merge precedence order.
func mergedPairs(m *yaml.Node) []*yaml.Node {
	seen := make(map[string]bool)
	for _, k := range mappingKeys(m) {
		seen[k] = true
	}
	var pairs []*yaml.Node
	var walk func(m *yaml.Node)
	walk = func(m *yaml.Node) {
		for i := 0; i+1 < len(m.Content); i += 2 {
			if !isMergeKey(resolve(m.Content[i])) {
				continue
			}
			for _, src := range mergeSources(m.Content[i+1]) {
				for j := 0; j+1 < len(src.Content); j += 2 {
					k := resolve(src.Content[j])
					if k.Kind != yaml.ScalarNode || isMergeKey(k) || seen[k.Value] {
						continue
					}
					seen[k.Value] = true
					pairs = append(pairs, src.Content[j], src.Content[j+1])
				}
				walk(src)
			}
		}
	}
	walk(m)
	return pairs
}

func mergeSources(v *yaml.Node) []*yaml.Node {
	v = resolve(v)
	if v == nil {
		return nil
	}
	switch v.Kind {
	case yaml.MappingNode:
		return []*yaml.Node{v}
	case yaml.SequenceNode:
		var out []*yaml.Node
		for _, item := range v.Content {
			if src := resolve(item); src != nil && src.Kind == yaml.MappingNode {
				out = append(out, src)
			}
		}
		return out
	}
	return nil
}

func mappingKeys(m *yaml.Node) []string {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		if k := resolve(m.Content[i]); !isMergeKey(k) {
			keys = append(keys, k.Value)
		}
	}
	return keys
}

// shallowCopy copies a node and its child slice; children are shared.
func shallowCopy(n *yaml.Node) *yaml.Node {
	c := *n
	if n.Content != nil {
		c.Content = append([]*yaml.Node(nil), n.Content...)
	}
	return &c
}
