package appledesc

import "strings"

// chunk accumulates one key, value or list element. It holds either text or
// a single decoded container; anything touching a held container turns the
// chunk back into text.
type chunk struct {
	text    strings.Builder
	held    bool
	val     Value
	raw     string
	pending strings.Builder // whitespace seen after the held container
}

func (c *chunk) blank() bool {
	return !c.held && strings.TrimSpace(c.text.String()) == ""
}

func (c *chunk) writeString(s string, at int, r *reporter) {
	if c.held {
		if strings.TrimSpace(s) == "" {
			c.pending.WriteString(s)
			return
		}
		r.report(AdjacentAnomalousData, at, "text "+quoteDetail(s)+" follows "+quoteDetail(c.raw))
		c.degrade()
	}
	c.text.WriteString(s)
}

// addValue feeds a closed structure into the chunk. Scalars merge as text.
func (c *chunk) addValue(v Value, raw string, at int, r *reporter) {
	if v.kind == KindScalar {
		c.writeString(v.text, at, r)
		return
	}
	if c.blank() {
		c.text.Reset()
		c.held, c.val, c.raw = true, v, raw
		return
	}
	r.report(AdjacentAnomalousData, at, quoteDetail(raw)+" touches "+quoteDetail(c.currentText()))
	if c.held {
		c.degrade()
	}
	c.text.WriteString(raw)
}

// degrade replaces the held container by its source text.
func (c *chunk) degrade() {
	c.text.WriteString(c.raw)
	c.text.WriteString(c.pending.String())
	c.pending.Reset()
	c.held, c.val, c.raw = false, Value{}, ""
}

func (c *chunk) currentText() string {
	if c.held {
		return c.raw
	}
	return strings.TrimSpace(c.text.String())
}

func (c *chunk) result() Value {
	if c.held {
		return c.val
	}
	return Scalar(strings.TrimSpace(c.text.String()))
}

func (c *chunk) reset() {
	c.text.Reset()
	c.pending.Reset()
	c.held, c.val, c.raw = false, Value{}, ""
}

// quoteDetail shortens s for log output.
func quoteDetail(s string) string {
	const max = 40
	if len(s) > max {
		s = s[:max] + "..."
	}
	return "\"" + s + "\""
}
