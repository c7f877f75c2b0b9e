// Package frontmatter renders the structured header block prepended to
// every indexed document body.
package frontmatter

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiter fences a front-matter block.
const Delimiter = "---\n"

// Header is an ordered list of key/value pairs. Order is preserved in the
// rendered output so a human reads the most important fields first.
type Header struct {
	keys   []string
	values map[string]string
}

// NewHeader creates an empty header.
func NewHeader() *Header {
	return &Header{values: make(map[string]string)}
}

// Set adds or replaces a field, keeping first-set order.
func (h *Header) Set(key, value string) *Header {
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
	return h
}

// Get returns the value for a key, or the empty string.
func (h *Header) Get(key string) string {
	return h.values[key]
}

// Len returns the number of fields.
func (h *Header) Len() int {
	return len(h.keys)
}

// Each visits the fields in insertion order.
func (h *Header) Each(fn func(key, value string)) {
	for _, key := range h.keys {
		fn(key, h.values[key])
	}
}

// render emits the fields as a YAML mapping, one "Key: value" line per
// field in insertion order. Values that need quoting or escaping are
// handled by the YAML encoder.
func (h *Header) render() string {
	var b strings.Builder
	for _, key := range h.keys {
		node := yaml.Node{Kind: yaml.MappingNode}
		node.Content = []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: key},
			{Kind: yaml.ScalarNode, Value: h.values[key]},
		}
		line, err := yaml.Marshal(&node)
		if err != nil {
			// A scalar mapping cannot fail to marshal; fall back raw.
			b.WriteString(key + ": " + h.values[key] + "\n")
			continue
		}
		b.Write(line)
	}
	return b.String()
}

// Prepend renders the header in front of body. If the body already starts
// with a front-matter delimiter the new fields are merged in front of the
// existing block instead of nesting delimiters.
func (h *Header) Prepend(body string) string {
	if h.Len() == 0 {
		return body
	}

	if rest, ok := strings.CutPrefix(body, Delimiter); ok {
		return Delimiter + h.render() + rest
	}
	return Delimiter + h.render() + Delimiter + "\n" + body
}
