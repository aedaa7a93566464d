package appledesc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// MarshalJSON renders scalars as strings (flags as booleans), sequences as
// arrays and mappings as objects in key order. Invalid UTF-8 kept by
// PreserveNonASCII is replaced by U+FFFD here, as encoding/json does.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValueJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON renders a node as {"name", "metadata", "children"}.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeNodeJSON(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON renders the forest as an object keyed by root name.
func (f *Forest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, root := range f.Roots() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, root.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeNodeJSON(&buf, root); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteJSONL writes one JSON object per root node.
func WriteJSONL(w io.Writer, f *Forest) error {
	bw := bufio.NewWriter(w)
	for _, root := range f.Roots() {
		var buf bytes.Buffer
		if err := writeNodeJSON(&buf, root); err != nil {
			return err
		}
		buf.WriteByte('\n')
		if _, err := bw.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeValueJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValueJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case KindMapping:
		return writeMappingJSON(buf, v.m)
	default:
		if v.flag {
			buf.WriteString(v.text)
			return nil
		}
		return writeJSONString(buf, v.text)
	}
}

func writeMappingJSON(buf *bytes.Buffer, m *Mapping) error {
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(buf, e.Key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValueJSON(buf, e.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeNodeJSON(buf *bytes.Buffer, n *Node) error {
	buf.WriteString(`{"name":`)
	if err := writeJSONString(buf, n.Name); err != nil {
		return err
	}
	buf.WriteString(`,"metadata":`)
	if err := writeMappingJSON(buf, n.Metadata); err != nil {
		return err
	}
	buf.WriteString(`,"children":[`)
	for i, c := range n.Children {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeNodeJSON(buf, c); err != nil {
			return err
		}
	}
	buf.WriteString("]}")
	return nil
}

// writeJSONString encodes s without HTML escaping, so "<class X>" stays
// readable.
func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
	return nil
}

// MarshalYAML returns a yaml.Node so mapping order survives.
func (v Value) MarshalYAML() (interface{}, error) {
	return valueYAML(v), nil
}

// MarshalYAML renders a node with name, metadata and children keys.
func (n *Node) MarshalYAML() (interface{}, error) {
	return nodeYAML(n), nil
}

// MarshalYAML renders the forest as a mapping keyed by root name.
func (f *Forest) MarshalYAML() (interface{}, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, root := range f.Roots() {
		out.Content = append(out.Content, yamlString(root.Name), nodeYAML(root))
	}
	return out, nil
}

func valueYAML(v Value) *yaml.Node {
	switch v.kind {
	case KindSequence:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.items {
			out.Content = append(out.Content, valueYAML(item))
		}
		return out
	case KindMapping:
		return mappingYAML(v.m)
	default:
		if v.flag {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v.text}
		}
		return yamlString(v.text)
	}
}

func mappingYAML(m *Mapping) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range m.Entries() {
		out.Content = append(out.Content, yamlString(e.Key), valueYAML(e.Value))
	}
	return out
}

func nodeYAML(n *Node) *yaml.Node {
	children := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, c := range n.Children {
		children.Content = append(children.Content, nodeYAML(c))
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			yamlString("name"), yamlString(n.Name),
			yamlString("metadata"), mappingYAML(n.Metadata),
			yamlString("children"), children,
		},
	}
}

func yamlString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
