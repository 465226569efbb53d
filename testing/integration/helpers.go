package integration

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/initz"
)

// Harness wraps a profiler with a synchronous journal and captured output.
// Provides verification helpers over the registry.
//
//nolint:govet // Field alignment optimized for test helper readability
type Harness struct {
	*initz.Profiler
	Journal *initz.Journal
	Clock   *clockz.FakeClock
	Hook    *logtest.Hook
	Output  *bytes.Buffer
	t       *testing.T
}

// NewHarness creates a profiler for testing. A nil clock uses the real clock.
func NewHarness(t *testing.T, clock *clockz.FakeClock, opts ...initz.Option) *Harness {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	journal := initz.NewJournal(1024)
	journal.SetSyncMode(true) // Deterministic recording for tests.

	out := &bytes.Buffer{}
	all := []initz.Option{
		initz.WithLogger(logger),
		initz.WithJournal(journal),
		initz.WithReportWriter(out),
	}
	if clock != nil {
		all = append(all, initz.WithClock(clock))
	}
	all = append(all, opts...)

	h := &Harness{
		Profiler: initz.New(all...),
		Journal:  journal,
		Clock:    clock,
		Hook:     hook,
		Output:   out,
		t:        t,
	}
	t.Cleanup(h.Close)
	return h
}

// Record returns the named record or fails the test.
func (h *Harness) Record(name string) initz.Record {
	h.t.Helper()
	r, ok := h.Registry().Lookup(name)
	if !ok {
		h.t.Fatalf("Record '%s' not found", name)
	}
	return r
}

// AssertParentChild verifies the parent link and the child list agree.
func (h *Harness) AssertParentChild(parentName, childName string) {
	h.t.Helper()
	parent := h.Record(parentName)
	child := h.Record(childName)

	if child.Parent != parentName {
		h.t.Errorf("Parent-child relationship broken: %s is not parent of %s. Child Parent=%s",
			parentName, childName, child.Parent)
	}

	found := false
	for _, c := range parent.Children {
		if c == childName {
			found = true
			break
		}
	}
	if !found {
		h.t.Errorf("Child '%s' missing from %s children %v", childName, parentName, parent.Children)
	}
}

// AssertSelfConsistent checks self == total - sum(child totals) for every
// finished record.
func (h *Harness) AssertSelfConsistent() {
	h.t.Helper()
	records := h.Registry().Snapshot()

	totals := make(map[string]int64, len(records))
	for _, r := range records {
		totals[r.Name] = int64(r.Total)
	}
	for _, r := range records {
		if !r.Ended() {
			continue
		}
		want := int64(r.Total)
		for _, c := range r.Children {
			want -= totals[c]
		}
		if int64(r.Self) != want {
			h.t.Errorf("Record %s: self %v, expected %v", r.Name, r.Self, want)
		}
	}
}

// Tree is a hierarchical view of records.
type Tree struct {
	Record   initz.Record
	Children []*Tree
}

// BuildTree constructs a forest from a flat record list.
func BuildTree(records []initz.Record) []*Tree {
	nodes := make(map[string]*Tree, len(records))
	for _, r := range records {
		nodes[r.Name] = &Tree{Record: r}
	}

	roots := make([]*Tree, 0)
	for _, r := range records {
		node := nodes[r.Name]
		if r.Parent == "" {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[r.Parent]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	return roots
}

// PrintTree formats a forest for debugging.
func PrintTree(trees []*Tree) string {
	var sb strings.Builder
	for _, tree := range trees {
		printTreeNode(&sb, tree, 0)
	}
	return sb.String()
}

func printTreeNode(sb *strings.Builder, node *Tree, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s%s (%dms, self %dms)\n",
		indent, node.Record.Name, node.Record.Total.Milliseconds(), node.Record.Self.Milliseconds())
	for _, child := range node.Children {
		printTreeNode(sb, child, depth+1)
	}
}
