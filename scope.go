package haystack

import (
	"context"
	"sync"
)

// activeSpanKeyType is a private type for context keys to avoid collisions.
type activeSpanKeyType struct{}

var activeSpanKey activeSpanKeyType

// ContextWithSpan returns a child of parent in which span is the active span.
func ContextWithSpan(parent context.Context, span *Span) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, activeSpanKey, span)
}

// SpanFromContext returns the active span of ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(activeSpanKey).(*Span)
	return span
}

// Scope marks a span as active within a context. Close deactivates it:
// callers continue with Parent, in which the previously active span (if
// any) is active again. Scopes nest naturally through the contexts they
// derive from.
//
// Use with defer so every exit path releases the scope:
//
//	ctx, scope := tracer.BuildSpan("work").StartActive(ctx, true)
//	defer scope.Close()
type Scope struct {
	span          *Span
	ctx           context.Context
	parent        context.Context
	closeErr      error
	once          sync.Once
	finishOnClose bool
}

func newScope(parent context.Context, span *Span, finishOnClose bool) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	return &Scope{
		span:          span,
		parent:        parent,
		ctx:           ContextWithSpan(parent, span),
		finishOnClose: finishOnClose,
	}
}

// Activate makes span the active span of a new scope derived from parent.
func Activate(parent context.Context, span *Span, finishOnClose bool) (context.Context, *Scope) {
	scope := newScope(parent, span, finishOnClose)
	return scope.ctx, scope
}

// Span returns the span this scope activates.
func (s *Scope) Span() *Span {
	return s.span
}

// Context returns the context in which the span is active.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Parent returns the context the scope was opened from.
func (s *Scope) Parent() context.Context {
	return s.parent
}

// Close deactivates the scope and, if it was opened with finishOnClose,
// finishes the span. Only the first call has any effect; later calls
// return the first call's result.
func (s *Scope) Close() error {
	s.once.Do(func() {
		if s.finishOnClose {
			s.closeErr = s.span.Finish()
		}
	})
	return s.closeErr
}
