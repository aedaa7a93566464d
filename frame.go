package appledesc

import "strings"

type frameKind uint8

const (
	frameString frameKind = iota // bottom sink, one per decode call
	frameQuoted
	frameAngle
	frameCurly
	frameParen
	frameBracket
)

func (k frameKind) String() string {
	switch k {
	case frameString:
		return "string"
	case frameQuoted:
		return "quoted string"
	case frameAngle:
		return "angle mapping"
	case frameCurly:
		return "curly mapping"
	case frameParen:
		return "paren list"
	case frameBracket:
		return "bracket list"
	default:
		return "unknown"
	}
}

func frameKindOf(open byte) (frameKind, bool) {
	switch open {
	case '"', '\'':
		return frameQuoted, true
	case '<':
		return frameAngle, true
	case '{':
		return frameCurly, true
	case '(':
		return frameParen, true
	case '[':
		return frameBracket, true
	default:
		return 0, false
	}
}

// frame is one open structure on the decode stack. Only the fields of its
// kind are used.
type frame struct {
	kind    frameKind
	start   int
	closeAt int // offset of the partner delimiter, -1 for the sink

	// unterminated frames had no partner; they end where their parent ends
	unterminated bool

	// quoted
	buf strings.Builder

	// string sink and lists
	cur   chunk
	items []Value

	// mappings
	m       *Mapping
	key     chunk
	val     chunk
	inValue bool
	sawSep  bool // key separator in mappings, any comma in lists
}

func newFrame(kind frameKind, start, closeAt int) *frame {
	f := &frame{kind: kind, start: start, closeAt: closeAt}
	if kind == frameAngle || kind == frameCurly {
		f.m = NewMapping()
	}
	return f
}

func (f *frame) isMapping() bool { return f.kind == frameAngle || f.kind == frameCurly }

// accepts reports whether open may start a nested frame here. Mapping keys
// only nest quoted strings.
func (f *frame) accepts(open byte) bool {
	switch f.kind {
	case frameQuoted:
		return false
	case frameAngle, frameCurly:
		return f.inValue || isQuote(open)
	default:
		return true
	}
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

// handleChar consumes s, which is a single byte of the fragment at offset at.
func (f *frame) handleChar(s string, at int, r *reporter) {
	c := s[0]
	switch f.kind {
	case frameQuoted:
		f.buf.WriteString(s)
	case frameString:
		f.cur.writeString(s, at, r)
	case frameParen, frameBracket:
		if c == ',' {
			f.sawSep = true
			f.endElement(false)
			return
		}
		f.cur.writeString(s, at, r)
	case frameAngle:
		switch {
		case c == ',':
			f.endEntry(at, r)
		case !f.inValue && isBlank(c):
			if !f.key.blank() {
				f.inValue = true
			}
		default:
			f.active().writeString(s, at, r)
		}
	case frameCurly:
		switch {
		case c == ',' || c == ';':
			f.endEntry(at, r)
		case !f.inValue && (c == '=' || c == ':'):
			f.inValue, f.sawSep = true, true
		default:
			f.active().writeString(s, at, r)
		}
	}
}

func (f *frame) active() *chunk {
	if f.inValue {
		return &f.val
	}
	return &f.key
}

// addStruct feeds a closed child frame's value into this frame.
func (f *frame) addStruct(v Value, raw string, at int, r *reporter) {
	switch f.kind {
	case frameQuoted:
		f.buf.WriteString(raw)
	case frameAngle, frameCurly:
		f.active().addValue(v, raw, at, r)
	default:
		f.cur.addValue(v, raw, at, r)
	}
}

func (f *frame) endElement(final bool) {
	if final && f.cur.blank() {
		f.cur.reset()
		return
	}
	f.items = append(f.items, f.cur.result())
	f.cur.reset()
}

func (f *frame) endEntry(at int, r *reporter) {
	defer func() {
		f.key.reset()
		f.val.reset()
		f.inValue, f.sawSep = false, false
	}()
	key := f.key.result().Text()
	if key == "" && f.val.blank() {
		return
	}
	var v Value
	switch {
	case !f.val.blank():
		v = f.val.result()
	case f.sawSep:
		v = Scalar("")
	default:
		key, v = flagFor(key)
	}
	if f.m.Set(key, v) {
		r.report(DuplicateKey, at, "key "+quoteDetail(key)+" repeated in "+f.kind.String())
	}
}

// close finalizes pending content and applies the canonical rules. raw is
// the source text of the frame including its delimiters.
func (f *frame) close(raw string, at int, r *reporter) Value {
	switch f.kind {
	case frameQuoted:
		return Scalar(f.buf.String())
	case frameString:
		return f.cur.result()
	case frameAngle, frameCurly:
		f.endEntry(at, r)
		return canonMapping(f.m, raw)
	default:
		f.endElement(true)
		return canonList(f.items, raw, f.sawSep)
	}
}
