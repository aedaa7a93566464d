package appledesc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrMalformedFraming is returned when the tree decoder is handed input whose
// first line is not a node header.
var ErrMalformedFraming = errors.New("expected a +-o node header")

// AnomalyKind classifies recoverable input problems.
type AnomalyKind uint8

const (
	// UnterminatedStructure: the fragment ended with structures still open.
	UnterminatedStructure AnomalyKind = iota + 1
	// AdjacentAnomalousData: text touched a closed structure with no separator.
	AdjacentAnomalousData
	// DuplicateKey: a key repeated at the same level; the later value won.
	DuplicateKey
	// DepthLimit: a node nested deeper than the configured maximum was
	// attached to its deepest permitted ancestor.
	DepthLimit
)

// String returns the anomaly name.
func (k AnomalyKind) String() string {
	switch k {
	case UnterminatedStructure:
		return "unterminated structure"
	case AdjacentAnomalousData:
		return "adjacent anomalous data"
	case DuplicateKey:
		return "duplicate key"
	case DepthLimit:
		return "depth limit"
	default:
		return "unknown anomaly"
	}
}

// Anomaly describes malformed input that was absorbed. Line is set when the
// input came through the tree decoder; Offset is a byte offset within the
// fragment being decoded.
type Anomaly struct {
	Kind   AnomalyKind
	Line   int
	Offset int
	Detail string
}

func (a Anomaly) Error() string {
	if a.Line > 0 {
		return fmt.Sprintf("line %d: %s at %d: %s", a.Line, a.Kind, a.Offset, a.Detail)
	}
	return fmt.Sprintf("%s at %d: %s", a.Kind, a.Offset, a.Detail)
}

// reporter routes anomalies to the logger and the optional handler.
type reporter struct {
	logger  *slog.Logger
	handler func(Anomaly)
	line    int
	count   int
}

func (r *reporter) report(kind AnomalyKind, offset int, detail string) {
	r.count++
	a := Anomaly{Kind: kind, Line: r.line, Offset: offset, Detail: detail}
	if r.logger != nil && r.logger.Enabled(context.Background(), slog.LevelWarn) {
		r.logger.Warn("appledesc: anomaly absorbed",
			"kind", kind.String(),
			"line", r.line,
			"offset", offset,
			"detail", detail)
	}
	if r.handler != nil {
		r.handler(a)
	}
}
