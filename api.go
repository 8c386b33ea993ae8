// Package haystack is a distributed tracing client core: a thread-safe
// span state machine, scoped span activation through context.Context and
// text-map context propagation.
//
// Core Components:
//   - Tracer: builds spans, injects their context and hands finished spans
//     to handlers and collectors.
//   - Span: a timed unit of work that can be finished exactly once.
//   - SpanContext: immutable identity plus baggage.
//   - Scope: marks a span as active in a context and finishes it on Close.
//   - Collector: buffers finished spans for export.
//
// Basic Usage:
//
//	tracer := haystack.New("checkout")
//	defer tracer.Close()
//
//	ctx, scope := tracer.BuildSpan("charge-card").StartActive(ctx, true)
//	defer scope.Close()
//
//	scope.Span().SetTag("card.kind", "visa")
//
//	// Spans started from ctx become children of charge-card.
//	_, child := tracer.StartSpan(ctx, "fraud-check")
//	defer child.Finish()
//
// Lifecycle:
//
// A span is open until its first successful Finish. Every mutating call
// after that (Finish, SetTag, SetOperationName, SetBaggageItem, Log*)
// returns a *LifecycleError matching ErrSpanFinished, appends it to the
// span's Errors and leaves the span unchanged.
//
// Thread Safety:
//
// Tracer, Span and Collector are safe for concurrent use. A SpanBuilder
// belongs to one goroutine.
package haystack

import "github.com/opentracing/opentracing-go/ext"

// Standard tag keys.
var (
	TagComponent      = string(ext.Component)
	TagSpanKind       = string(ext.SpanKind)
	TagHTTPMethod     = string(ext.HTTPMethod)
	TagHTTPURL        = string(ext.HTTPUrl)
	TagHTTPStatusCode = string(ext.HTTPStatusCode)
	TagPeerHostname   = string(ext.PeerHostname)
	TagPeerPort       = string(ext.PeerPort)
	TagPeerIPv4       = string(ext.PeerHostIPv4)
	TagError          = string(ext.Error)
)

// SpanKindClient is the span.kind value for outbound calls.
var SpanKindClient = string(ext.SpanKindRPCClientEnum)
