// Package frontmatter splits Markdown documents into a YAML metadata block
// and a body, and reconstructs them without disturbing key order.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Metadata is the document's structured preamble. It wraps the parsed YAML
// mapping node so that serialization preserves key order and scalar styles.
// The zero value is an empty metadata block.
type Metadata struct {
	node *yaml.Node // mapping node, nil when empty
}

// Document is the result of splitting a Markdown file.
type Document struct {
	Meta Metadata
	Body string
}

// Split separates YAML frontmatter (between leading --- fences) from the
// Markdown body. If no frontmatter block exists, or the YAML is malformed,
// the entire content is returned as body with empty metadata.
func Split(data []byte) Document {
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return Document{Body: string(data)}
	}

	// Find end delimiter.
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter, treat everything as body.
		return Document{Body: string(data)}
	}

	yamlBlock := rest[:idx]
	// Body starts after the closing delimiter line. Only the single newline
	// that terminates the fence is consumed, so bodies round-trip exactly.
	body := string(rest[idx+1+len(delim):])
	switch {
	case strings.HasPrefix(body, "\r\n"):
		body = body[2:]
	case strings.HasPrefix(body, "\n"):
		body = body[1:]
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(yamlBlock, &doc); err != nil {
		// Invalid YAML, recover by returning the whole input as body.
		return Document{Body: string(data)}
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return Document{Body: string(data)}
	}

	return Document{Meta: Metadata{node: doc.Content[0]}, Body: body}
}

// Join serializes metadata back under the --- fence convention immediately
// followed by body. Empty metadata returns body unchanged.
func Join(meta Metadata, body string) ([]byte, error) {
	if meta.IsEmpty() {
		return []byte(body), nil
	}

	var buf bytes.Buffer
	buf.WriteString(delim)
	buf.WriteByte('\n')

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta.node); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("frontmatter: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("frontmatter: encode: %w", err)
	}

	buf.WriteString(delim)
	buf.WriteByte('\n')
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// IsEmpty reports whether the metadata block has no fields.
func (m Metadata) IsEmpty() bool {
	return m.node == nil || len(m.node.Content) == 0
}

// Keys returns the top-level field names in document order.
func (m Metadata) Keys() []string {
	if m.IsEmpty() {
		return nil
	}
	out := make([]string, 0, len(m.node.Content)/2)
	for i := 0; i+1 < len(m.node.Content); i += 2 {
		out = append(out, m.node.Content[i].Value)
	}
	return out
}

// Get decodes the value of a top-level field into a plain Go value
// (string, int, bool, []any, map[string]any, ...).
func (m Metadata) Get(key string) (any, bool) {
	if m.IsEmpty() {
		return nil, false
	}
	for i := 0; i+1 < len(m.node.Content); i += 2 {
		if m.node.Content[i].Value == key {
			var v any
			if err := m.node.Content[i+1].Decode(&v); err != nil {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

// Map decodes the whole metadata block into a plain map. Returns nil when
// the block is empty. Key order is not preserved; use Keys for ordering.
func (m Metadata) Map() map[string]any {
	if m.IsEmpty() {
		return nil
	}
	out := make(map[string]any, len(m.node.Content)/2)
	if err := m.node.Decode(&out); err != nil {
		return nil
	}
	return out
}

// WalkStrings visits every string scalar in the metadata block, including
// strings nested in sequences and mappings. Mapping keys are not visited.
func (m Metadata) WalkStrings(fn func(s string)) {
	if m.IsEmpty() {
		return
	}
	walkNode(m.node, func(n *yaml.Node) bool {
		fn(n.Value)
		return false
	})
}

// RewriteStrings applies fn to every string scalar in the metadata block.
// When fn returns a replacement and true, the scalar is updated in place.
// Returns true if any value changed.
func (m Metadata) RewriteStrings(fn func(s string) (string, bool)) bool {
	if m.IsEmpty() {
		return false
	}
	return walkNode(m.node, func(n *yaml.Node) bool {
		repl, ok := fn(n.Value)
		if !ok || repl == n.Value {
			return false
		}
		n.Value = repl
		n.Style = 0
		return true
	})
}

// walkNode recurses over value nodes, calling visit on string scalars.
// Returns true if any visit reported a change.
func walkNode(n *yaml.Node, visit func(*yaml.Node) bool) bool {
	changed := false
	switch n.Kind {
	case yaml.MappingNode:
		// Content alternates key, value; only values are walked.
		for i := 0; i+1 < len(n.Content); i += 2 {
			if walkNode(n.Content[i+1], visit) {
				changed = true
			}
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, c := range n.Content {
			if walkNode(c, visit) {
				changed = true
			}
		}
	case yaml.ScalarNode:
		if n.Tag == "!!str" {
			if visit(n) {
				changed = true
			}
		}
	}
	return changed
}

// FromMap builds a Metadata block from a plain map with keys sorted
// lexicographically. Intended for tests and generated metadata.
func FromMap(fields map[string]any) (Metadata, error) {
	if len(fields) == 0 {
		return Metadata{}, nil
	}
	node, err := encodeAny(fields)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{node: node}, nil
}

// Set adds or replaces a top-level field. New fields are appended at the end.
func (m *Metadata) Set(key string, value any) error {
	valNode, err := encodeAny(value)
	if err != nil {
		return err
	}
	if m.node == nil {
		m.node = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	for i := 0; i+1 < len(m.node.Content); i += 2 {
		if m.node.Content[i].Value == key {
			m.node.Content[i+1] = valNode
			return nil
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	m.node.Content = append(m.node.Content, keyNode, valNode)
	return nil
}

// encodeAny converts a Go value into a yaml.Node via the yaml encoder, so
// all scalar types get canonical tags.
func encodeAny(v any) (*yaml.Node, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, fmt.Errorf("frontmatter: encode value: %w", err)
	}
	return &node, nil
}
