package appledesc

import "strings"

// MatchKind names the grammar a detected span matched. The order of the
// constants is the tie-break priority when two spans have equal length.
type MatchKind uint8

const (
	MatchQuoted MatchKind = iota
	MatchAngleMapping
	MatchCurlyMapping
	MatchList
	MatchBracketString
)

// String returns the grammar name.
func (k MatchKind) String() string {
	switch k {
	case MatchQuoted:
		return "quoted"
	case MatchAngleMapping:
		return "angle-mapping"
	case MatchCurlyMapping:
		return "curly-mapping"
	case MatchList:
		return "list"
	case MatchBracketString:
		return "bracket-string"
	default:
		return "unknown"
	}
}

// Class is the coarse shape a match decodes to.
type Class uint8

const (
	ClassString Class = iota
	ClassMapping
	ClassList
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassMapping:
		return "mapping"
	case ClassList:
		return "list"
	default:
		return "string"
	}
}

// Match is a bracketed or quoted span found by Detect. Start and End are byte
// offsets of the opening and one past the closing delimiter.
type Match struct {
	Kind  MatchKind
	Open  byte
	Start int
	End   int
	Inner string
}

// Class reports whether the span reads as a mapping, a list or opaque text.
func (m Match) Class() Class {
	switch m.Kind {
	case MatchAngleMapping, MatchCurlyMapping:
		return ClassMapping
	case MatchList:
		return ClassList
	default:
		return ClassString
	}
}

// Len returns the length of the outer span.
func (m Match) Len() int { return m.End - m.Start }

// Detect returns the innermost span of fragment matching one of the known
// grammars. ok is false when the fragment has no balanced span, in which
// case the whole fragment is opaque text.
func Detect(fragment string) (m Match, ok bool) {
	idx := buildSpanIndex(fragment)
	for i, p := range idx.partner {
		if p < 0 {
			continue
		}
		c := classify(fragment, i, p)
		if !ok || c.Len() < m.Len() || (c.Len() == m.Len() && c.Kind < m.Kind) {
			m, ok = c, true
		}
	}
	return m, ok
}

// classify builds the match for the span opened at i and closed at p.
func classify(s string, i, p int) Match {
	inner := s[i+1 : p]
	return Match{Kind: classifyInner(s[i], inner), Open: s[i], Start: i, End: p + 1, Inner: inner}
}

// classifyInner picks the grammar of a span from its opener and the text
// between the delimiters.
func classifyInner(open byte, inner string) MatchKind {
	switch open {
	case '"', '\'':
		return MatchQuoted
	case '<':
		if strings.Contains(inner, ",") || len(strings.Fields(inner)) > 1 {
			return MatchAngleMapping
		}
	case '{':
		if strings.ContainsAny(inner, "=:") {
			return MatchCurlyMapping
		}
	default:
		if strings.Contains(inner, ",") {
			return MatchList
		}
	}
	return MatchBracketString
}

// spanIndex records, for every opening delimiter that has a partner, the
// offset of that partner. All other offsets hold -1.
type spanIndex struct {
	partner []int
}

func closerOf(open byte) byte {
	switch open {
	case '<':
		return '>'
	case '{':
		return '}'
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return open
	}
}

func isQuote(c byte) bool { return c == '"' || c == '\'' }

// buildSpanIndex pairs delimiters in two linear passes. Quotes pair with the
// next identical quote and hide everything between them. Brackets pair only
// with their own kind; unmatched ones stay unpaired.
func buildSpanIndex(s string) spanIndex {
	partner := make([]int, len(s))
	for i := range partner {
		partner[i] = -1
	}

	for i := 0; i < len(s); i++ {
		if !isQuote(s[i]) {
			continue
		}
		j := strings.IndexByte(s[i+1:], s[i])
		if j < 0 {
			continue
		}
		partner[i] = i + 1 + j
		i += 1 + j
	}

	var stacks [4][]int
	slot := func(c byte) int {
		switch c {
		case '<', '>':
			return 0
		case '{', '}':
			return 1
		case '(', ')':
			return 2
		default:
			return 3
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\'':
			if partner[i] >= 0 {
				i = partner[i]
			}
		case '<', '{', '(', '[':
			k := slot(c)
			stacks[k] = append(stacks[k], i)
		case '>', '}', ')', ']':
			k := slot(c)
			if n := len(stacks[k]); n > 0 {
				partner[stacks[k][n-1]] = i
				stacks[k] = stacks[k][:n-1]
			}
		}
	}
	return spanIndex{partner: partner}
}

// nested reports whether every bracket opener in s has a partner and no two
// spans cross.
func (idx spanIndex) nested(s string) bool {
	var ends []int
	for i := 0; i < len(s); i++ {
		for len(ends) > 0 && ends[len(ends)-1] < i {
			ends = ends[:len(ends)-1]
		}
		p := idx.partner[i]
		switch s[i] {
		case '"', '\'':
			if p < 0 {
				continue
			}
			if len(ends) > 0 && p > ends[len(ends)-1] {
				return false
			}
			i = p
		case '<', '{', '(', '[':
			if p < 0 || (len(ends) > 0 && p > ends[len(ends)-1]) {
				return false
			}
			ends = append(ends, p)
		}
	}
	return true
}
