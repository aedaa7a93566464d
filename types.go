// Package appledesc decodes Apple's description text format (the output of
// -description / debugDescription style dumps such as ioreg) into structured
// values, and indented +-o node dumps into forests of named nodes.
package appledesc

// Kind identifies which case of the Value union is populated.
type Kind uint8

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a decoded description value: a scalar, an ordered sequence or an
// ordered mapping. The zero Value is the empty scalar.
type Value struct {
	kind  Kind
	text  string
	flag  bool
	items []Value
	m     *Mapping
}

// Scalar returns a scalar value holding text.
func Scalar(text string) Value {
	return Value{kind: KindScalar, text: text}
}

// Flag returns the scalar produced by a key that had no value.
func Flag(set bool) Value {
	if set {
		return Value{kind: KindScalar, text: "true", flag: true}
	}
	return Value{kind: KindScalar, text: "false", flag: true}
}

// Sequence returns a sequence of items.
func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, items: items}
}

// MappingValue wraps m in a Value.
func MappingValue(m *Mapping) Value {
	if m == nil {
		m = NewMapping()
	}
	return Value{kind: KindMapping, m: m}
}

// Kind reports which case v holds.
func (v Value) Kind() Kind { return v.kind }

// Text returns the scalar text, or "" for containers.
func (v Value) Text() string { return v.text }

// IsFlag reports whether v is a boolean flag scalar.
func (v Value) IsFlag() bool { return v.kind == KindScalar && v.flag }

// Items returns the elements of a sequence.
func (v Value) Items() []Value { return v.items }

// Mapping returns the mapping of a mapping value, or nil.
func (v Value) Mapping() *Mapping {
	if v.kind != KindMapping {
		return nil
	}
	return v.m
}

// Len returns the number of elements or entries, or the text length of a scalar.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.items)
	case KindMapping:
		return v.m.Len()
	default:
		return len(v.text)
	}
}

// Equal reports deep equality, including mapping key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.text == o.text && v.flag == o.flag
	case KindSequence:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	default:
		return v.m.Equal(o.m)
	}
}

// isSentinel reports whether v is a flag or the empty string.
func (v Value) isSentinel() bool {
	return v.kind == KindScalar && (v.flag || v.text == "")
}

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value Value
}

// Mapping is an ordered string-keyed map.
type Mapping struct {
	entries []Entry
	index   map[string]int
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[string]int)}
}

// Set stores val under key. An existing key keeps its position and the
// method reports true.
func (m *Mapping) Set(key string, val Value) bool {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = val
		return true
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: val})
	return false
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	i, ok := m.index[key]
	if !ok {
		return Value{}, false
	}
	return m.entries[i].Value, true
}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns the entries in insertion order. The slice must not be modified.
func (m *Mapping) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

// Equal reports whether both mappings hold equal entries in the same order.
func (m *Mapping) Equal(o *Mapping) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, e := range m.Entries() {
		oe := o.entries[i]
		if e.Key != oe.Key || !e.Value.Equal(oe.Value) {
			return false
		}
	}
	return true
}

// Node is one entry of an indented +-o dump.
type Node struct {
	Name     string
	Depth    int // nesting level, 0 for forest roots
	Column   int // byte offset of the sigil on its line
	Line     int
	Metadata *Mapping
	Children []*Node
}

// Forest maps root node names to nodes, in dump order.
type Forest struct {
	names []string
	nodes map[string]*Node
}

// NewForest returns an empty forest.
func NewForest() *Forest {
	return &Forest{nodes: make(map[string]*Node)}
}

// Add stores n under its name and reports whether it replaced a root.
func (f *Forest) Add(n *Node) bool {
	if _, ok := f.nodes[n.Name]; ok {
		f.nodes[n.Name] = n
		return true
	}
	f.names = append(f.names, n.Name)
	f.nodes[n.Name] = n
	return false
}

// Get returns the root called name.
func (f *Forest) Get(name string) (*Node, bool) {
	n, ok := f.nodes[name]
	return n, ok
}

// Names returns the root names in dump order.
func (f *Forest) Names() []string {
	return append([]string(nil), f.names...)
}

// Roots returns the root nodes in dump order.
func (f *Forest) Roots() []*Node {
	roots := make([]*Node, len(f.names))
	for i, name := range f.names {
		roots[i] = f.nodes[name]
	}
	return roots
}

// Len returns the number of roots.
func (f *Forest) Len() int { return len(f.names) }
