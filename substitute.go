package appledesc

import (
	"strconv"
	"strings"
)

// tagDelim brackets the placeholder tokens of the substitute strategy.
// Fragments that already contain it are decoded with the stack strategy.
const tagDelim = "\x00"

// substitution holds the values decoded so far in one decodeSubstitute call.
// Tag n stands for vals[n], whose source text is raws[n].
type substitution struct {
	vals []Value
	raws []string
	r    *reporter
}

func (st *substitution) tag(v Value, raw string) string {
	n := len(st.vals)
	st.vals = append(st.vals, v)
	st.raws = append(st.raws, raw)
	return tagDelim + strconv.Itoa(n) + tagDelim
}

// openSpan is a bracket span whose closer has not been reached yet. text
// holds its inner text with every closed child already replaced by a tag.
type openSpan struct {
	start int
	end   int
	text  strings.Builder
}

// decodeSubstitute replaces spans by tags holding their decoded values,
// innermost first, in a single pass over s. The caller guarantees that
// every bracket opener in idx has a partner and that no spans cross.
func decodeSubstitute(s string, idx spanIndex, r *reporter) Value {
	st := &substitution{r: r}
	stack := []*openSpan{{start: -1, end: -1}}

	for i := 0; i < len(s); i++ {
		top := stack[len(stack)-1]
		p := idx.partner[i]
		switch {
		case p > i && isQuote(s[i]):
			raw := s[i : p+1]
			m := Match{Kind: MatchQuoted, Open: s[i], Start: i, End: p + 1, Inner: s[i+1 : p]}
			top.text.WriteString(st.tag(st.decodeMatch(m, raw), raw))
			i = p
		case p > i:
			stack = append(stack, &openSpan{start: i, end: p})
		case i == top.end:
			stack = stack[:len(stack)-1]
			open, inner := s[top.start], top.text.String()
			m := Match{Kind: classifyInner(open, inner), Open: open, Start: top.start, End: i + 1, Inner: inner}
			raw := s[top.start : i+1]
			stack[len(stack)-1].text.WriteString(st.tag(st.decodeMatch(m, raw), raw))
		default:
			top.text.WriteByte(s[i])
		}
	}
	return st.resolve(stack[0].text.String(), 0)
}

func (st *substitution) decodeMatch(m Match, raw string) Value {
	switch m.Kind {
	case MatchQuoted:
		return Scalar(st.expand(m.Inner, false))
	case MatchAngleMapping, MatchCurlyMapping:
		return canonMapping(st.entries(m), raw)
	case MatchList:
		parts := strings.Split(m.Inner, ",")
		if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
			parts = parts[:len(parts)-1]
		}
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = st.resolve(p, m.Start)
		}
		return canonList(items, raw, true)
	default:
		inner := strings.TrimSpace(m.Inner)
		switch m.Open {
		case '(', '[':
			if inner == "" {
				return Sequence()
			}
			if n, ok := singleTag(inner); ok && st.vals[n].kind != KindScalar {
				return st.vals[n]
			}
		case '<', '{':
			if inner == "" {
				return MappingValue(NewMapping())
			}
		}
		return Scalar(raw)
	}
}

func (st *substitution) entries(m Match) *Mapping {
	angle := m.Kind == MatchAngleMapping
	var parts []string
	if angle {
		parts = strings.Split(m.Inner, ",")
	} else {
		parts = strings.FieldsFunc(m.Inner, func(r rune) bool { return r == ',' || r == ';' })
	}

	out := NewMapping()
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var key, val string
		sawSep := false
		if angle {
			if i := strings.IndexAny(part, " \t\r\n"); i >= 0 {
				key, val = part[:i], part[i+1:]
			} else {
				key = part
			}
		} else {
			if i := strings.IndexAny(part, "=:"); i >= 0 {
				key, val, sawSep = part[:i], part[i+1:], true
			} else {
				key = part
			}
		}
		key = strings.TrimSpace(st.expand(key, true))

		var v Value
		switch {
		case strings.TrimSpace(val) != "":
			v = st.resolve(val, m.Start)
		case sawSep:
			v = Scalar("")
		default:
			key, v = flagFor(key)
		}
		if out.Set(key, v) {
			st.r.report(DuplicateKey, m.Start, "key "+quoteDetail(key)+" repeated")
		}
	}
	return out
}

// resolve turns text that may contain tags into a value. A lone tag yields
// its value; otherwise the text is flattened to a scalar.
func (st *substitution) resolve(text string, at int) Value {
	text = strings.TrimSpace(text)
	if n, ok := singleTag(text); ok {
		return st.vals[n]
	}
	for _, n := range tagsIn(text) {
		if st.vals[n].kind != KindScalar {
			st.r.report(AdjacentAnomalousData, at, quoteDetail(st.raws[n])+" touches surrounding text")
		}
	}
	return Scalar(st.expand(text, true))
}

// expand replaces every tag in text. With flatten set, scalar tags become
// their decoded text; otherwise every tag becomes its source text.
func (st *substitution) expand(text string, flatten bool) string {
	if !strings.Contains(text, tagDelim) {
		return text
	}
	var b strings.Builder
	for {
		i := strings.Index(text, tagDelim)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		j := strings.Index(text[i+1:], tagDelim)
		if j < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:i])
		n, err := strconv.Atoi(text[i+1 : i+1+j])
		switch {
		case err != nil || n >= len(st.vals):
			b.WriteString(text[i : i+j+2])
		case flatten && st.vals[n].kind == KindScalar:
			b.WriteString(st.vals[n].text)
		default:
			b.WriteString(st.raws[n])
		}
		text = text[i+j+2:]
	}
}

func singleTag(text string) (int, bool) {
	if len(text) < 3 || !strings.HasPrefix(text, tagDelim) || !strings.HasSuffix(text, tagDelim) {
		return 0, false
	}
	n, err := strconv.Atoi(text[1 : len(text)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func tagsIn(text string) []int {
	var out []int
	for {
		i := strings.Index(text, tagDelim)
		if i < 0 {
			return out
		}
		j := strings.Index(text[i+1:], tagDelim)
		if j < 0 {
			return out
		}
		if n, err := strconv.Atoi(text[i+1 : i+1+j]); err == nil {
			out = append(out, n)
		}
		text = text[i+j+2:]
	}
}
