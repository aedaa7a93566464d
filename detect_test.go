package appledesc

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  MatchKind
		class Class
		start int
		end   int
		inner string
	}{
		{"angle mapping", "<key val, k2 v2>", MatchAngleMapping, ClassMapping, 0, 16, "key val, k2 v2"},
		{"angle with spaces only", "<a b>", MatchAngleMapping, ClassMapping, 0, 5, "a b"},
		{"angle single token", "<IOService>", MatchBracketString, ClassString, 0, 11, "IOService"},
		{"curly mapping", "{a=1}", MatchCurlyMapping, ClassMapping, 0, 5, "a=1"},
		{"curly without separator", "{abc}", MatchBracketString, ClassString, 0, 5, "abc"},
		{"list", "x (a, b) y", MatchList, ClassList, 2, 8, "a, b"},
		{"bracket list", "[1, 2]", MatchList, ClassList, 0, 6, "1, 2"},
		{"bracket string", "[hello world]", MatchBracketString, ClassString, 0, 13, "hello world"},
		{"quote is innermost", `<k "v">`, MatchQuoted, ClassString, 3, 6, "v"},
		{"single quotes", "'a b'", MatchQuoted, ClassString, 0, 5, "a b"},
		{"tie goes to angle", "(a <b) c>)", MatchAngleMapping, ClassMapping, 3, 9, "b) c"},
		{"unmatched outer paren", "((a, b)", MatchList, ClassList, 1, 7, "a, b"},
		{"innermost wins", "<k (a, b)>", MatchList, ClassList, 3, 9, "a, b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Detect(tt.input)
			if !ok {
				t.Fatalf("Detect(%q) found nothing", tt.input)
			}
			if m.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, m.Kind)
			}
			if m.Class() != tt.class {
				t.Errorf("Expected class %s, got %s", tt.class, m.Class())
			}
			if m.Start != tt.start || m.End != tt.end {
				t.Errorf("Expected span [%d:%d], got [%d:%d]", tt.start, tt.end, m.Start, m.End)
			}
			if m.Inner != tt.inner {
				t.Errorf("Expected inner %q, got %q", tt.inner, m.Inner)
			}
			if m.Open != tt.input[tt.start] {
				t.Errorf("Expected opener %q, got %q", tt.input[tt.start], m.Open)
			}
		})
	}
}

func TestDetect_NoSpan(t *testing.T) {
	for _, input := range []string{"", "plain text", "a < b", "x) (y", `say "hi`} {
		if m, ok := Detect(input); ok {
			t.Errorf("Detect(%q): expected no span, got %s at [%d:%d]", input, m.Kind, m.Start, m.End)
		}
	}
}

func TestBuildSpanIndex_QuotesHideBrackets(t *testing.T) {
	s := `("a)b", c)`
	idx := buildSpanIndex(s)

	if got := idx.partner[0]; got != len(s)-1 {
		t.Errorf("Expected outer paren to close at %d, got %d", len(s)-1, got)
	}
	if got := idx.partner[1]; got != 5 {
		t.Errorf("Expected quote to close at 5, got %d", got)
	}
	for i := 2; i < 5; i++ {
		if idx.partner[i] != -1 {
			t.Errorf("Expected offset %d inside quotes to be unpaired, got %d", i, idx.partner[i])
		}
	}
}
