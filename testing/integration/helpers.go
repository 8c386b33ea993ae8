package integration

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/haystack"
)

// MockCollector wraps a real collector with test utilities.
// Collection is synchronous so spans are visible as soon as they finish.
type MockCollector struct {
	*haystack.Collector
	t        *testing.T
	exported []*haystack.Span
	mu       sync.Mutex
}

// NewMockCollector creates a collector attached to tracer.
func NewMockCollector(t *testing.T, tracer *haystack.Tracer, bufferSize int) *MockCollector {
	t.Helper()
	collector := haystack.NewCollector(t.Name(), bufferSize)
	collector.SetSyncMode(true)
	tracer.AddCollector(collector)
	t.Cleanup(collector.Close)
	return &MockCollector{Collector: collector, t: t}
}

// GetAll returns every span collected so far without losing earlier ones.
func (m *MockCollector) GetAll() []*haystack.Span {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exported = append(m.exported, m.Collector.Export()...)
	all := make([]*haystack.Span, len(m.exported))
	copy(all, m.exported)
	return all
}

// WaitForSpans waits until at least expected spans were collected.
func (m *MockCollector) WaitForSpans(expected int, timeout time.Duration) []*haystack.Span {
	m.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		spans := m.GetAll()
		if len(spans) >= expected {
			return spans
		}
		if time.Now().After(deadline) {
			m.t.Errorf("timeout waiting for spans: expected %d, got %d", expected, len(spans))
			return spans
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// SpanNamed returns the first collected span with the operation name.
func (m *MockCollector) SpanNamed(name string) *haystack.Span {
	m.t.Helper()
	for _, span := range m.GetAll() {
		if span.OperationName() == name {
			return span
		}
	}
	m.t.Errorf("span named %q not found", name)
	return nil
}

// AssertParentChild verifies that child was started as a child of parent.
func (m *MockCollector) AssertParentChild(parent, child *haystack.Span) {
	m.t.Helper()
	if parent == nil || child == nil {
		m.t.Error("parent or child span missing")
		return
	}
	pc, cc := parent.Context(), child.Context()
	if cc.ParentID() != pc.SpanID() {
		m.t.Errorf("%s is not a child of %s: parent id %s, span id %s",
			child.OperationName(), parent.OperationName(), cc.ParentID(), pc.SpanID())
	}
	if cc.TraceID() != pc.TraceID() {
		m.t.Errorf("trace id mismatch: parent=%s child=%s", pc.TraceID(), cc.TraceID())
	}
}

// SpanTree is a hierarchical view of collected spans.
type SpanTree struct {
	Span     *haystack.Span
	Children []*SpanTree
}

// BuildSpanTree links spans by parent id. Spans whose parent was not
// collected become roots.
func BuildSpanTree(spans []*haystack.Span) []*SpanTree {
	nodes := make(map[string]*SpanTree, len(spans))
	for _, span := range spans {
		nodes[span.Context().SpanID()] = &SpanTree{Span: span}
	}

	var roots []*SpanTree
	for _, span := range spans {
		node := nodes[span.Context().SpanID()]
		if parent, ok := nodes[span.Context().ParentID()]; ok {
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}

	for _, node := range nodes {
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].Span.StartTime() < node.Children[j].Span.StartTime()
		})
	}
	return roots
}

// PrintSpanTree formats a span tree for debugging.
func PrintSpanTree(trees []*SpanTree) string {
	var sb strings.Builder
	for _, tree := range trees {
		printTreeNode(&sb, tree, 0)
	}
	return sb.String()
}

func printTreeNode(sb *strings.Builder, node *SpanTree, depth int) {
	duration, _ := node.Span.Duration()
	fmt.Fprintf(sb, "%s%s (%dus)\n", strings.Repeat("  ", depth), node.Span.OperationName(), duration)
	for _, child := range node.Children {
		printTreeNode(sb, child, depth+1)
	}
}
