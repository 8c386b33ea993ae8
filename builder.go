package haystack

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
)

// SpanBuilder collects the inputs for a new span.
// A builder is not safe for concurrent use; build one per span.
type SpanBuilder struct {
	tracer           *Tracer
	tags             map[string]any
	operationName    string
	references       []Reference
	startTime        int64
	hasStartTime     bool
	ignoreActiveSpan bool
}

// WithTag adds an initial tag. An empty key or nil value is ignored.
func (b *SpanBuilder) WithTag(key string, value any) *SpanBuilder {
	if key == "" || value == nil {
		return b
	}
	if b.tags == nil {
		b.tags = make(map[string]any)
	}
	b.tags[key] = value
	return b
}

// AsChildOf adds a CHILD_OF reference to parent.
func (b *SpanBuilder) AsChildOf(parent SpanContext) *SpanBuilder {
	return b.AddReference(ChildOf(parent))
}

// FollowsFrom adds a FOLLOWS_FROM reference to predecessor.
func (b *SpanBuilder) FollowsFrom(predecessor SpanContext) *SpanBuilder {
	return b.AddReference(FollowsFrom(predecessor))
}

// AddReference adds a reference. References to an empty context are ignored.
func (b *SpanBuilder) AddReference(ref Reference) *SpanBuilder {
	if ref.Context.IsZero() {
		return b
	}
	b.references = append(b.references, ref)
	return b
}

// WithStartTime overrides the start time, in microseconds.
func (b *SpanBuilder) WithStartTime(micros int64) *SpanBuilder {
	b.startTime = micros
	b.hasStartTime = true
	return b
}

// IgnoreActiveSpan stops the active span in the start context from
// becoming the implicit parent.
func (b *SpanBuilder) IgnoreActiveSpan() *SpanBuilder {
	b.ignoreActiveSpan = true
	return b
}

// Start creates the span. Without explicit references the span active in
// ctx, if any, becomes its CHILD_OF parent.
func (b *SpanBuilder) Start(ctx context.Context) *Span {
	t := b.tracer

	refs := b.references
	if len(refs) == 0 && !b.ignoreActiveSpan {
		if active := SpanFromContext(ctx); active != nil {
			refs = []Reference{ChildOf(active.Context())}
		}
	}

	var sc SpanContext
	if parent, ok := primaryParent(refs); ok {
		sc = NewSpanContext(parent.TraceID(), t.newSpanID(), parent.SpanID(), parent.baggage)
	} else {
		sc = NewSpanContext(t.newTraceID(), t.newSpanID(), "", nil)
	}

	start := b.startTime
	if !b.hasStartTime {
		start = t.clock.Now().UnixMicro()
	}

	span := NewSpan(t, b.operationName, sc, start, b.tags, refs)
	t.spanStarted()
	return span
}

// StartActive creates the span and activates it in a scope derived from ctx.
// With finishOnClose the span is finished when the scope closes.
func (b *SpanBuilder) StartActive(ctx context.Context, finishOnClose bool) (context.Context, *Scope) {
	return Activate(ctx, b.Start(ctx), finishOnClose)
}

// primaryParent picks the first CHILD_OF reference, else the first reference.
func primaryParent(refs []Reference) (SpanContext, bool) {
	for _, ref := range refs {
		if ref.Type == opentracing.ChildOfRef {
			return ref.Context, true
		}
	}
	if len(refs) > 0 {
		return refs[0].Context, true
	}
	return SpanContext{}, false
}
