package appledesc

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
)

// Sigil starts every node header line of an indented dump.
const Sigil = "+-o"

// HeaderKey holds a node header that did not decode to a mapping.
const HeaderKey = "_header"

// DefaultMaxDepth bounds node nesting in decoded forests.
const DefaultMaxDepth = 256

// TreeDecoder turns +-o node dumps (ioreg style) into forests. Like Decoder,
// it holds only configuration; each call owns its cursor and work stack.
type TreeDecoder struct {
	decoder     *Decoder
	logger      *slog.Logger
	onAnomaly   func(Anomaly)
	maxDepth    int
	maxLineSize int
	merge       MergeStrategy
}

// NewTreeDecoder creates a TreeDecoder with default configuration.
func NewTreeDecoder() *TreeDecoder {
	return &TreeDecoder{
		decoder:     NewDecoder(),
		logger:      slog.Default(),
		maxDepth:    DefaultMaxDepth,
		maxLineSize: DefaultMaxLineSize,
	}
}

// WithDecoder sets the inline decoder used for headers and body values. Its
// strategy and non-ASCII policy apply; anomalies are reported through the
// TreeDecoder's own logger and handler.
func (t *TreeDecoder) WithDecoder(d *Decoder) *TreeDecoder {
	t.decoder = d
	return t
}

// WithLogger sets the logger for anomalies and decoding diagnostics. nil
// silences it.
func (t *TreeDecoder) WithLogger(l *slog.Logger) *TreeDecoder {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	t.logger = l
	return t
}

// WithAnomalyHandler registers fn to be called for every absorbed anomaly.
func (t *TreeDecoder) WithAnomalyHandler(fn func(Anomaly)) *TreeDecoder {
	t.onAnomaly = fn
	return t
}

// WithMaxDepth bounds nesting; n < 1 removes the bound.
func (t *TreeDecoder) WithMaxDepth(n int) *TreeDecoder {
	t.maxDepth = n
	return t
}

// WithMaxLineSize sets the longest line Parse accepts from a reader.
func (t *TreeDecoder) WithMaxLineSize(n int) *TreeDecoder {
	t.maxLineSize = n
	return t
}

// WithMergeStrategy sets how body lines combine with header metadata.
func (t *TreeDecoder) WithMergeStrategy(s MergeStrategy) *TreeDecoder {
	t.merge = s
	return t
}

// DecodeTree decodes lines with the default TreeDecoder.
func DecodeTree(lines []string) (*Forest, error) {
	return NewTreeDecoder().DecodeLines(lines)
}

// DecodeLines decodes a dump held in memory.
func (t *TreeDecoder) DecodeLines(lines []string) (*Forest, error) {
	return t.decode(NewLineScanner(lines))
}

// Parse decodes a dump read from r.
func (t *TreeDecoder) Parse(r io.Reader) (*Forest, error) {
	sc := newScannerSize(r, t.maxLineSize)
	forest, err := t.decode(sc)
	if err != nil {
		return nil, err
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", sc.lineNum+1, err)
	}
	return forest, nil
}

func (t *TreeDecoder) decode(sc *Scanner) (*Forest, error) {
	st := &treeState{
		t:      t,
		sc:     sc,
		r:      &reporter{logger: t.logger, handler: t.onAnomaly},
		forest: NewForest(),
	}
	if err := st.run(); err != nil {
		return nil, err
	}
	t.logger.Debug("appledesc: tree decoded", "roots", st.forest.Len(), "anomalies", st.r.count)
	return st.forest, nil
}

// bodyEntry is one key of a node body, with its raw value text.
type bodyEntry struct {
	key  string
	line int
	text strings.Builder
}

// openNode is a node on the work stack whose body or children are still
// being read.
type openNode struct {
	node   *Node
	parent *Node // node the entry was attached to, nil for roots
	body   []*bodyEntry
}

type treeState struct {
	t      *TreeDecoder
	sc     *Scanner
	r      *reporter
	forest *Forest
	stack  []*openNode
}

func (st *treeState) run() error {
	// The first line of substance must be a node header.
	for {
		n, line, ok := st.sc.NextLine()
		if !ok {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if sigilColumn(line) < 0 {
			return fmt.Errorf("line %d: %w", n, ErrMalformedFraming)
		}
		st.sc.Unread()
		break
	}

	for {
		n, line, ok := st.sc.NextLine()
		if !ok {
			break
		}
		col := sigilColumn(line)
		// Everything at or right of this column that is still open is a
		// leaf or finished branch by now.
		for len(st.stack) > 0 && st.top().node.Column >= col {
			st.seal()
		}
		on := st.open(n, col, line)
		st.readBody(on)
	}

	for len(st.stack) > 0 {
		st.seal()
	}
	return nil
}

func (st *treeState) top() *openNode { return st.stack[len(st.stack)-1] }

// open creates the node for a header line and attaches it to its parent.
func (st *treeState) open(lineNum, col int, line string) *openNode {
	name, fragment := splitHeader(line[col+len(Sigil):])
	node := &Node{Name: name, Column: col, Line: lineNum, Metadata: NewMapping()}
	if fragment != "" {
		st.r.line = lineNum
		v := st.t.decoder.decode(fragment, st.r)
		if m := v.Mapping(); m != nil {
			node.Metadata = m
		} else if v.Len() > 0 {
			node.Metadata.Set(HeaderKey, v)
		}
	}

	on := &openNode{node: node}
	if len(st.stack) > 0 {
		parent := st.top()
		on.parent = parent.node
		node.Depth = parent.node.Depth + 1
		if st.t.maxDepth > 0 && node.Depth >= st.t.maxDepth {
			st.r.line = lineNum
			st.r.report(DepthLimit, col, fmt.Sprintf("node %s nested below depth %d", quoteDetail(name), st.t.maxDepth))
			on.parent = parent.parent
			node.Depth = parent.node.Depth
		}
	}

	if on.parent == nil {
		if st.forest.Add(node) {
			st.r.line = lineNum
			st.r.report(DuplicateKey, col, "root node "+quoteDetail(name)+" repeated")
		}
	} else {
		on.parent.Children = append(on.parent.Children, node)
	}
	st.stack = append(st.stack, on)
	return on
}

// readBody consumes body lines up to, not including, the next header line.
func (st *treeState) readBody(on *openNode) {
	for {
		n, line, ok := st.sc.NextLine()
		if !ok {
			return
		}
		if sigilColumn(line) >= 0 {
			st.sc.Unread()
			return
		}
		st.bodyLine(on, n, line)
	}
}

func (st *treeState) bodyLine(on *openNode, n int, line string) {
	content := strings.TrimRight(strings.TrimLeft(line, " \t|"), " \t")
	switch content {
	case "", "{", "}":
		return
	}
	if i := delimiterIndex(content); i > 0 {
		if key := unquote(strings.TrimSpace(content[:i])); key != "" {
			e := &bodyEntry{key: key, line: n}
			e.text.WriteString(strings.TrimSpace(content[i+1:]))
			on.body = append(on.body, e)
			return
		}
	}
	if len(on.body) == 0 {
		st.t.logger.Debug("appledesc: body line without key ignored", "line", n, "node", on.node.Name)
		return
	}
	on.body[len(on.body)-1].text.WriteString(strings.TrimSpace(content))
}

// seal decodes the body of the top node and pops it. Nothing touches the
// node afterwards.
func (st *treeState) seal() {
	on := st.top()
	st.stack = st.stack[:len(st.stack)-1]
	for _, e := range on.body {
		st.r.line = e.line
		v := st.t.decoder.decode(e.text.String(), st.r)
		if MergeMetadata(on.node.Metadata, e.key, v, st.t.merge) {
			st.r.report(DuplicateKey, 0, "key "+quoteDetail(e.key)+" of node "+quoteDetail(on.node.Name)+" overwritten")
		}
	}
}

// sigilColumn returns the offset of the sigil when only filler precedes it,
// or -1 when line is not a node header.
func sigilColumn(line string) int {
	i := strings.Index(line, Sigil)
	if i < 0 {
		return -1
	}
	for j := 0; j < i; j++ {
		switch line[j] {
		case ' ', '\t', '|':
		default:
			return -1
		}
	}
	return i
}

// splitHeader separates the node name from the trailing description
// fragment: the first bracketed span that runs to the end of the line.
func splitHeader(rest string) (name, fragment string) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", ""
	}
	idx := buildSpanIndex(rest)
	last := len(rest) - 1
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '<', '{', '(':
			if idx.partner[i] == last {
				return strings.TrimSpace(rest[:i]), rest[i:]
			}
		}
	}
	return rest, ""
}

// delimiterIndex returns the offset of the first '=' or ':' outside quotes.
func delimiterIndex(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case isQuote(c):
			quote = c
		case c == '=' || c == ':':
			return i
		}
	}
	return -1
}

func unquote(s string) string {
	if len(s) >= 2 && isQuote(s[0]) && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
