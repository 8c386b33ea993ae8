package haystack

import opentracing "github.com/opentracing/opentracing-go"

// SpanContext is the propagated identity of a span plus its baggage.
// It is an immutable value: every mutation returns a new SpanContext.
type SpanContext struct {
	baggage  map[string]string
	traceID  string
	spanID   string
	parentID string
}

var _ opentracing.SpanContext = SpanContext{}

// NewSpanContext builds a SpanContext. The baggage map is copied.
func NewSpanContext(traceID, spanID, parentID string, baggage map[string]string) SpanContext {
	return SpanContext{
		traceID:  traceID,
		spanID:   spanID,
		parentID: parentID,
		baggage:  copyBaggage(baggage, 0),
	}
}

// TraceID returns the id shared by every span in the trace.
func (c SpanContext) TraceID() string { return c.traceID }

// SpanID returns the id of the span this context belongs to.
func (c SpanContext) SpanID() string { return c.spanID }

// ParentID returns the span id of the parent, or "" for a root span.
func (c SpanContext) ParentID() string { return c.parentID }

// WithBaggage returns a copy of c with key set to value.
// An empty key is ignored and c is returned unchanged.
func (c SpanContext) WithBaggage(key, value string) SpanContext {
	if key == "" {
		return c
	}
	next := c
	next.baggage = copyBaggage(c.baggage, 1)
	next.baggage[key] = value
	return next
}

// BaggageItem returns the baggage value stored under key.
func (c SpanContext) BaggageItem(key string) (string, bool) {
	v, ok := c.baggage[key]
	return v, ok
}

// Baggage returns a snapshot of all baggage items.
func (c SpanContext) Baggage() map[string]string {
	return copyBaggage(c.baggage, 0)
}

// ForeachBaggageItem calls handler for each baggage item until it returns false.
func (c SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {
	for k, v := range c.baggage {
		if !handler(k, v) {
			return
		}
	}
}

// Equal reports whether c and other identify the same span.
// Baggage is not part of identity.
func (c SpanContext) Equal(other SpanContext) bool {
	return c.traceID == other.traceID && c.spanID == other.spanID
}

// IsZero reports whether c carries no identity.
func (c SpanContext) IsZero() bool {
	return c.traceID == "" && c.spanID == ""
}

func copyBaggage(src map[string]string, extra int) map[string]string {
	if len(src) == 0 && extra == 0 {
		return nil
	}
	dst := make(map[string]string, len(src)+extra)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
