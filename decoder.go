package appledesc

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NonASCIIPolicy selects what happens to bytes outside ASCII.
type NonASCIIPolicy uint8

const (
	// PreserveNonASCII keeps every byte as found, invalid UTF-8 included.
	PreserveNonASCII NonASCIIPolicy = iota
	// ReplaceNonASCII turns each non-ASCII rune, and each byte that is not
	// valid UTF-8, into ReplacementMarker before decoding.
	ReplaceNonASCII
)

// ReplacementMarker is substituted for non-ASCII input under ReplaceNonASCII.
const ReplacementMarker = "\uFFFD"

// ParseNonASCIIPolicy accepts "preserve" or "replace".
func ParseNonASCIIPolicy(s string) (NonASCIIPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preserve":
		return PreserveNonASCII, nil
	case "replace":
		return ReplaceNonASCII, nil
	default:
		return 0, fmt.Errorf("unknown non-ASCII policy %q", s)
	}
}

// Strategy selects the inline decoding algorithm.
type Strategy uint8

const (
	// StrategyStack runs the character-level frame stack.
	StrategyStack Strategy = iota
	// StrategySubstitute decodes spans innermost first and replaces each by
	// a placeholder tag. Fragments with unpartnered or crossed brackets fall
	// back to the stack.
	StrategySubstitute
)

func (s Strategy) String() string {
	if s == StrategySubstitute {
		return "substitute"
	}
	return "stack"
}

// ParseStrategy accepts "stack" or "substitute".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stack":
		return StrategyStack, nil
	case "substitute":
		return StrategySubstitute, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", s)
	}
}

// Decoder turns description fragments into Values. Configure it before
// first use; Decode itself keeps all state on the call and is safe for
// concurrent use.
type Decoder struct {
	logger    *slog.Logger
	onAnomaly func(Anomaly)
	nonASCII  NonASCIIPolicy
	strategy  Strategy
}

// NewDecoder creates a Decoder with default configuration.
func NewDecoder() *Decoder {
	return &Decoder{logger: slog.Default()}
}

// WithLogger sets the logger that receives anomaly warnings. nil silences it.
func (d *Decoder) WithLogger(l *slog.Logger) *Decoder {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	d.logger = l
	return d
}

// WithAnomalyHandler registers fn to be called for every absorbed anomaly.
func (d *Decoder) WithAnomalyHandler(fn func(Anomaly)) *Decoder {
	d.onAnomaly = fn
	return d
}

// WithNonASCIIPolicy configures non-ASCII handling.
func (d *Decoder) WithNonASCIIPolicy(p NonASCIIPolicy) *Decoder {
	d.nonASCII = p
	return d
}

// WithStrategy configures the decoding algorithm.
func (d *Decoder) WithStrategy(s Strategy) *Decoder {
	d.strategy = s
	return d
}

var defaultDecoder = NewDecoder()

// DecodeFragment decodes text with the default Decoder.
func DecodeFragment(text string) Value {
	return defaultDecoder.Decode(text)
}

// Decode decodes one fragment. It never fails: malformed input degrades to
// text and is reported as anomalies.
func (d *Decoder) Decode(fragment string) Value {
	return d.decode(fragment, &reporter{logger: d.logger, handler: d.onAnomaly})
}

func (d *Decoder) decode(fragment string, r *reporter) Value {
	if d.nonASCII == ReplaceNonASCII {
		fragment = replaceNonASCII(fragment)
	}
	idx := buildSpanIndex(fragment)
	if d.strategy == StrategySubstitute && !strings.Contains(fragment, tagDelim) && idx.nested(fragment) {
		return decodeSubstitute(fragment, idx, r)
	}
	return decodeStack(fragment, idx, r)
}

// decodeStack walks the fragment once, byte by byte. Structural delimiters
// are all ASCII, so multi-byte runes pass through untouched.
//
// An accepted opener with a partner closes exactly there. A bracket opener
// without one still opens a frame; it is force-closed when its parent's
// closer or the end of input arrives. Unpartnered quotes stay text.
func decodeStack(s string, idx spanIndex, r *reporter) Value {
	stack := []*frame{newFrame(frameString, 0, -1)}

	for i := 0; i < len(s); i++ {
		top := stack[len(stack)-1]
		if i == top.closeAt {
			for top.unterminated {
				stack = forceClose(stack, s[top.start:i], i, r)
				top = stack[len(stack)-1]
			}
			stack = stack[:len(stack)-1]
			raw := s[top.start : i+1]
			stack[len(stack)-1].addStruct(top.close(raw, i, r), raw, i, r)
			continue
		}
		if kind, ok := frameKindOf(s[i]); ok && top.accepts(s[i]) {
			if p := idx.partner[i]; p > i {
				stack = append(stack, newFrame(kind, i, p))
				continue
			}
			if !isQuote(s[i]) {
				f := newFrame(kind, i, top.closeAt)
				f.unterminated = true
				stack = append(stack, f)
				continue
			}
		}
		top.handleChar(s[i:i+1], i, r)
	}

	for len(stack) > 1 {
		stack = forceClose(stack, s[stack[len(stack)-1].start:], len(s), r)
	}
	return stack[0].close(s, len(s), r)
}

// forceClose pops a frame that never saw its closer and hands what it
// collected to the parent. An empty container falls back to its text.
func forceClose(stack []*frame, raw string, at int, r *reporter) []*frame {
	top := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	r.report(UnterminatedStructure, at, top.kind.String()+" opened at "+strconv.Itoa(top.start)+" never closed")
	v := top.close(raw, at, r)
	if v.kind != KindScalar && v.Len() == 0 {
		v = Scalar(raw)
	}
	stack[len(stack)-1].addStruct(v, raw, at, r)
	return stack
}

func replaceNonASCII(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] < utf8.RuneSelf {
			b.WriteByte(s[i])
			i++
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		b.WriteString(ReplacementMarker)
		i += size
	}
	return b.String()
}
