package appledesc

import (
	"fmt"
	"strconv"
	"strings"
)

// MergeStrategy controls how body metadata is combined with header metadata.
type MergeStrategy uint8

const (
	// MergeReplace lets the later value win outright.
	MergeReplace MergeStrategy = iota
	// MergeDeep merges nested mappings key by key and appends sequences.
	MergeDeep
)

// ParseMergeStrategy accepts "replace" or "deep".
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return MergeReplace, nil
	case "deep":
		return MergeDeep, nil
	default:
		return 0, fmt.Errorf("unknown merge strategy %q", s)
	}
}

// MergeMetadata stores v under key in dst. It reports whether an earlier
// value was lost in the process.
func MergeMetadata(dst *Mapping, key string, v Value, strategy MergeStrategy) bool {
	existing, ok := dst.Get(key)
	if !ok {
		dst.Set(key, v)
		return false
	}
	if strategy == MergeReplace {
		dst.Set(key, v)
		return true
	}
	merged, lost := mergeValues(existing, v)
	dst.Set(key, merged)
	return lost
}

func mergeValues(base, overlay Value) (Value, bool) {
	switch {
	case base.kind == KindMapping && overlay.kind == KindMapping:
		out := NewMapping()
		for _, e := range base.m.entries {
			out.Set(e.Key, e.Value)
		}
		lost := false
		for _, e := range overlay.m.entries {
			if MergeMetadata(out, e.Key, e.Value, MergeDeep) {
				lost = true
			}
		}
		return MappingValue(out), lost
	case base.kind == KindSequence && overlay.kind == KindSequence:
		items := make([]Value, 0, len(base.items)+len(overlay.items))
		items = append(items, base.items...)
		return Sequence(append(items, overlay.items...)...), false
	default:
		return overlay, !base.Equal(overlay)
	}
}

// Path looks up a dotted path such as "props.list[1].name" below v. Mapping
// keys may themselves contain dots ("com.apple.x"); the shortest key that
// exists wins.
func (v Value) Path(path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	return v.walk(strings.Split(path, "."))
}

func (v Value) walk(parts []string) (Value, bool) {
	if len(parts) == 0 {
		return v, true
	}
	if v.kind != KindMapping {
		return Value{}, false
	}
	for n := 1; n <= len(parts); n++ {
		key, indexes, err := splitIndexes(strings.Join(parts[:n], "."))
		if err != nil {
			return Value{}, false
		}
		child, ok := v.m.Get(key)
		if !ok {
			continue
		}
		if child, ok = child.index(indexes); !ok {
			return Value{}, false
		}
		if found, ok := child.walk(parts[n:]); ok {
			return found, true
		}
	}
	return Value{}, false
}

func (v Value) index(indexes []int) (Value, bool) {
	for _, i := range indexes {
		if v.kind != KindSequence || i < 0 || i >= len(v.items) {
			return Value{}, false
		}
		v = v.items[i]
	}
	return v, true
}

// splitIndexes splits "key[1][2]" into "key" and [1 2].
func splitIndexes(seg string) (string, []int, error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 || !strings.HasSuffix(seg, "]") {
		return seg, nil, nil
	}
	key := seg[:open]
	var out []int
	for _, part := range strings.Split(seg[open+1:len(seg)-1], "][") {
		i, err := strconv.Atoi(part)
		if err != nil {
			return "", nil, fmt.Errorf("invalid index %q", part)
		}
		out = append(out, i)
	}
	return key, out, nil
}

// Lookup resolves a dotted path inside the node's metadata.
func (n *Node) Lookup(path string) (Value, bool) {
	return MappingValue(n.Metadata).Path(path)
}

// Select returns the nodes reached by a slash-separated name path. A "*"
// segment matches any node at that level; "**" matches any number of levels,
// including none. A trailing "**" selects every descendant. Each node is
// returned once, in the order it is first reached.
func Select(f *Forest, path string) []*Node {
	var parts []string
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "**" && len(parts) > 0 && parts[len(parts)-1] == "**" {
			continue
		}
		parts = append(parts, seg)
	}

	sel := &selection{parts: parts, seen: map[*Node]bool{}, visited: map[visit]bool{}}
	for _, root := range f.Roots() {
		sel.walk(root, 0)
	}
	return sel.out
}

type visit struct {
	n *Node
	i int
}

type selection struct {
	parts   []string
	out     []*Node
	seen    map[*Node]bool
	visited map[visit]bool
}

func (s *selection) add(n *Node) {
	if !s.seen[n] {
		s.seen[n] = true
		s.out = append(s.out, n)
	}
}

// walk matches parts[i:] starting at n. Each (node, segment) pair is
// expanded at most once.
func (s *selection) walk(n *Node, i int) {
	if i >= len(s.parts) || s.visited[visit{n, i}] {
		return
	}
	s.visited[visit{n, i}] = true

	seg, last := s.parts[i], i == len(s.parts)-1
	if seg == "**" {
		if last {
			s.add(n)
		} else {
			s.walk(n, i+1)
		}
		for _, c := range n.Children {
			s.walk(c, i)
		}
		return
	}
	if seg != "*" && seg != n.Name {
		return
	}
	if last {
		s.add(n)
		return
	}
	for _, c := range n.Children {
		s.walk(c, i+1)
	}
}
