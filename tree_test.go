package appledesc

import (
	"bufio"
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const hierarchyDump = `+-o Root node  <class IORegistryEntry, id 0x100000100, retain 10>
  {
    "IOKitBuildVersion" = "Darwin Kernel Version 20.6.0"
    "IONVRAM-SYNCNOW" = Yes
  }

  +-o Node 2  <class IOPlatformExpertDevice, id 0x100000110, registered, matched, active, busy 0 (1 ms), retain 30>
    {
      "compatible" = <"iMac20,1">
      "IOPlatformArgs" = (0x0, 0x1)
    }

    +-o Node 3  <class AppleACPIPlatformExpert, id 0x100000111, retain 12>
    | {
    |   "name" = "node three"
    | }
    |
    | +-o Leaf 1  <class IOResources, id 0x10000010d, retain 5>
    | |   {
    | |     "IOKit" = "IOService"
    | |   }
    | |
    | +-o Leaf 2  <class IOUserResources, retain 4>
    |     {
    |       "prop" = value aaaa
    |       bbbb
    |       cccc
    |       dddd
    |     }
    |
    +-o Leaf 3  <class AppleSMC, retain 7>
    |   {
    |     "version" = 2
    |   }
    |
    +-o Leaf 4  <class AppleACPIEC, retain 3>
        {
          "status" = {enabled = Yes; cpus = (0, 1)}
        }
`

func quietTree(kinds *[]AnomalyKind) *TreeDecoder {
	return NewTreeDecoder().WithLogger(nil).WithAnomalyHandler(func(a Anomaly) {
		*kinds = append(*kinds, a.Kind)
	})
}

func childNames(n *Node) []string {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Name
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expectMeta(t *testing.T, n *Node, key string, want Value) {
	t.Helper()
	got, ok := n.Metadata.Get(key)
	if !ok {
		t.Errorf("%s: expected metadata key %q, keys are %v", n.Name, key, n.Metadata.Keys())
		return
	}
	if !got.Equal(want) {
		t.Errorf("%s: expected %s = %s, got %s", n.Name, key, mustJSON(t, want), mustJSON(t, got))
	}
}

func TestDecodeTree_Hierarchy(t *testing.T) {
	var kinds []AnomalyKind
	forest, err := quietTree(&kinds).DecodeLines(strings.Split(hierarchyDump, "\n"))
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	if len(kinds) != 0 {
		t.Errorf("Expected no anomalies, got %v", kinds)
	}

	if !equalStrings(forest.Names(), []string{"Root node"}) {
		t.Fatalf("Expected a single root, got %v", forest.Names())
	}
	root, _ := forest.Get("Root node")
	if !equalStrings(childNames(root), []string{"Node 2"}) {
		t.Fatalf("Expected Root node children [Node 2], got %v", childNames(root))
	}
	node2 := root.Children[0]
	if !equalStrings(childNames(node2), []string{"Node 3", "Leaf 3", "Leaf 4"}) {
		t.Fatalf("Expected Node 2 children [Node 3 Leaf 3 Leaf 4], got %v", childNames(node2))
	}
	node3 := node2.Children[0]
	if !equalStrings(childNames(node3), []string{"Leaf 1", "Leaf 2"}) {
		t.Fatalf("Expected Node 3 children [Leaf 1 Leaf 2], got %v", childNames(node3))
	}
	for _, leaf := range append(append([]*Node{}, node3.Children...), node2.Children[1:]...) {
		if len(leaf.Children) != 0 {
			t.Errorf("Expected %s to be a leaf, got children %v", leaf.Name, childNames(leaf))
		}
	}

	expectMeta(t, root, "class", Scalar("IORegistryEntry"))
	expectMeta(t, root, "retain", Scalar("10"))
	expectMeta(t, root, "IOKitBuildVersion", Scalar("Darwin Kernel Version 20.6.0"))
	expectMeta(t, root, "IONVRAM-SYNCNOW", Scalar("Yes"))
	if got := root.Metadata.Keys(); !equalStrings(got, []string{"class", "id", "retain", "IOKitBuildVersion", "IONVRAM-SYNCNOW"}) {
		t.Errorf("Expected header keys before body keys, got %v", got)
	}

	expectMeta(t, node2, "registered", Flag(true))
	expectMeta(t, node2, "busy", Scalar("0 (1 ms)"))
	expectMeta(t, node2, "compatible", Scalar(`<"iMac20,1">`))
	expectMeta(t, node2, "IOPlatformArgs", scalars("0x0", "0x1"))

	expectMeta(t, node3, "name", Scalar("node three"))
	expectMeta(t, node3.Children[0], "IOKit", Scalar("IOService"))
	expectMeta(t, node3.Children[1], "prop", Scalar("value aaaabbbbccccdddd"))
	expectMeta(t, node2.Children[1], "version", Scalar("2"))
	expectMeta(t, node2.Children[2], "status", mapping("enabled", Scalar("Yes"), "cpus", scalars("0", "1")))

	depths := map[string]int{"Root node": 0, "Node 2": 1, "Node 3": 2, "Leaf 1": 3, "Leaf 3": 2}
	for _, n := range []*Node{root, node2, node3, node3.Children[0], node2.Children[1]} {
		if n.Depth != depths[n.Name] {
			t.Errorf("Expected %s at depth %d, got %d", n.Name, depths[n.Name], n.Depth)
		}
	}
	if node3.Line != 13 {
		t.Errorf("Expected Node 3 on line 13, got %d", node3.Line)
	}
}

func TestDecodeTree_LeafDoesNotConsumeSibling(t *testing.T) {
	lines := []string{
		"+-o A",
		"  a = 1",
		"+-o B",
		"  b = 2",
	}
	forest, err := NewTreeDecoder().WithLogger(nil).DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	if !equalStrings(forest.Names(), []string{"A", "B"}) {
		t.Fatalf("Expected roots [A B], got %v", forest.Names())
	}
	a, _ := forest.Get("A")
	b, _ := forest.Get("B")
	if len(a.Children) != 0 {
		t.Errorf("Expected A to be a leaf, got %v", childNames(a))
	}
	expectMeta(t, a, "a", Scalar("1"))
	expectMeta(t, b, "b", Scalar("2"))
	if _, ok := a.Metadata.Get("b"); ok {
		t.Error("Expected B's body to stay out of A")
	}
}

func TestDecodeTree_ContinuationLines(t *testing.T) {
	lines := []string{
		"+-o Node",
		"  key = value aaaa",
		"bbbb",
		"cccc",
		"dddd",
		"",
	}
	forest, err := NewTreeDecoder().WithLogger(nil).DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	n, _ := forest.Get("Node")
	expectMeta(t, n, "key", Scalar("value aaaabbbbccccdddd"))
}

func TestDecodeTree_MalformedFraming(t *testing.T) {
	_, err := DecodeTree([]string{"", "not a header", "+-o A"})
	if err == nil {
		t.Fatal("Expected error for input without a leading header")
	}
	if !errors.Is(err, ErrMalformedFraming) {
		t.Errorf("Expected ErrMalformedFraming, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "line 2:") {
		t.Errorf("Expected error to name line 2, got %q", err.Error())
	}
}

func TestDecodeTree_Empty(t *testing.T) {
	forest, err := NewTreeDecoder().WithLogger(nil).DecodeLines([]string{"", "   "})
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	if forest.Len() != 0 {
		t.Errorf("Expected empty forest, got %v", forest.Names())
	}
}

func TestDecodeTree_NonMappingHeader(t *testing.T) {
	forest, err := NewTreeDecoder().WithLogger(nil).DecodeLines([]string{"+-o Thing (hello world)"})
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	n, ok := forest.Get("Thing")
	if !ok {
		t.Fatalf("Expected root Thing, got %v", forest.Names())
	}
	expectMeta(t, n, HeaderKey, Scalar("(hello world)"))
}

func TestDecodeTree_NameWithoutFragment(t *testing.T) {
	forest, err := NewTreeDecoder().WithLogger(nil).DecodeLines([]string{"+-o IOService <unbalanced"})
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	n, ok := forest.Get("IOService <unbalanced")
	if !ok {
		t.Fatalf("Expected the whole header as the name, got %v", forest.Names())
	}
	if n.Metadata.Len() != 0 {
		t.Errorf("Expected empty metadata, got %v", n.Metadata.Keys())
	}
}

func TestDecodeTree_MaxDepth(t *testing.T) {
	var kinds []AnomalyKind
	lines := []string{
		"+-o A",
		"  +-o B",
		"    +-o C",
	}
	forest, err := quietTree(&kinds).WithMaxDepth(2).DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	a, _ := forest.Get("A")
	if !equalStrings(childNames(a), []string{"B", "C"}) {
		t.Fatalf("Expected C attached to A, got %v", childNames(a))
	}
	if c := a.Children[1]; c.Depth != 1 {
		t.Errorf("Expected C at depth 1, got %d", c.Depth)
	}
	if len(kinds) != 1 || kinds[0] != DepthLimit {
		t.Errorf("Expected one depth limit anomaly, got %v", kinds)
	}
}

func TestDecodeTree_DuplicateRoot(t *testing.T) {
	var kinds []AnomalyKind
	lines := []string{
		"+-o A",
		"  v = 1",
		"+-o A",
		"  v = 2",
	}
	forest, err := quietTree(&kinds).DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	if forest.Len() != 1 {
		t.Fatalf("Expected 1 root, got %d", forest.Len())
	}
	a, _ := forest.Get("A")
	expectMeta(t, a, "v", Scalar("2"))
	if len(kinds) != 1 || kinds[0] != DuplicateKey {
		t.Errorf("Expected one duplicate key anomaly, got %v", kinds)
	}
}

func TestDecodeTree_BodyOverridesHeader(t *testing.T) {
	var kinds []AnomalyKind
	lines := []string{
		"+-o A  <class X, retain 1>",
		"  retain = 2",
	}
	forest, err := quietTree(&kinds).DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	a, _ := forest.Get("A")
	expectMeta(t, a, "retain", Scalar("2"))
	if len(kinds) != 1 || kinds[0] != DuplicateKey {
		t.Errorf("Expected one duplicate key anomaly, got %v", kinds)
	}
}

func TestDecodeTree_DeepMerge(t *testing.T) {
	var kinds []AnomalyKind
	lines := []string{
		"+-o A  {props = {a = 1}}",
		"  props = {b = 2}",
	}
	forest, err := quietTree(&kinds).WithMergeStrategy(MergeDeep).DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	a, _ := forest.Get("A")
	expectMeta(t, a, "props", mapping("a", Scalar("1"), "b", Scalar("2")))
	if len(kinds) != 0 {
		t.Errorf("Expected no anomalies, got %v", kinds)
	}
}

func TestDecodeTree_AnomalyCarriesLine(t *testing.T) {
	var anomalies []Anomaly
	d := NewTreeDecoder().WithLogger(nil).WithAnomalyHandler(func(a Anomaly) {
		anomalies = append(anomalies, a)
	})
	lines := []string{
		"+-o A",
		"  ok = 1",
		"  bad = <a b>xyz",
	}
	if _, err := d.DecodeLines(lines); err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("Expected 1 anomaly, got %v", anomalies)
	}
	if anomalies[0].Line != 3 {
		t.Errorf("Expected anomaly on line 3, got %d", anomalies[0].Line)
	}
	if !strings.HasPrefix(anomalies[0].Error(), "line 3: adjacent anomalous data") {
		t.Errorf("Unexpected anomaly text %q", anomalies[0].Error())
	}
}

func TestDecodeTree_LogsAnomalyCount(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	lines := []string{
		"+-o A",
		"  ok = 1",
		"  bad = <a b>xyz",
	}
	if _, err := NewTreeDecoder().WithLogger(logger).DecodeLines(lines); err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `msg="appledesc: tree decoded" roots=1 anomalies=1`) {
		t.Errorf("Expected a summary with the anomaly count, got:\n%s", out)
	}
}

func TestParse_Reader(t *testing.T) {
	input := "+-o A  <class X>\r\n  +-o B\r\n    k = v\r\n"
	forest, err := NewTreeDecoder().WithLogger(nil).Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	a, ok := forest.Get("A")
	if !ok || len(a.Children) != 1 {
		t.Fatalf("Expected A with one child, got %v", forest.Names())
	}
	expectMeta(t, a, "class", Scalar("X"))
	expectMeta(t, a.Children[0], "k", Scalar("v"))
}

func TestParse_LineTooLong(t *testing.T) {
	input := "+-o A\n  k = " + strings.Repeat("x", bufio.MaxScanTokenSize+100) + "\n"
	_, err := NewTreeDecoder().WithLogger(nil).WithMaxLineSize(bufio.MaxScanTokenSize + 10).Parse(strings.NewReader(input))
	if err == nil {
		t.Fatal("Expected error for an oversized line")
	}
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("Expected bufio.ErrTooLong, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "line 2:") {
		t.Errorf("Expected error to name line 2, got %q", err.Error())
	}
}

func TestDecodeTree_SubstituteStrategy(t *testing.T) {
	lines := strings.Split(hierarchyDump, "\n")
	stack, err := NewTreeDecoder().WithLogger(nil).DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	d := NewDecoder().WithStrategy(StrategySubstitute)
	sub, err := NewTreeDecoder().WithLogger(nil).WithDecoder(d).DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines() failed: %v", err)
	}
	a, _ := stack.MarshalJSON()
	b, _ := sub.MarshalJSON()
	if string(a) != string(b) {
		t.Errorf("Expected both strategies to agree:\n%s\n%s", a, b)
	}
}
