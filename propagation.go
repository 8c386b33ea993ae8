package haystack

import opentracing "github.com/opentracing/opentracing-go"

// Default carrier keys.
const (
	DefaultTraceIDKey    = "traceid"
	DefaultSpanIDKey     = "spanid"
	DefaultBaggagePrefix = "baggage-"
)

// PropagationKeys names the carrier entries written by Inject.
type PropagationKeys struct {
	TraceID       string `yaml:"trace_id"`
	SpanID        string `yaml:"span_id"`
	BaggagePrefix string `yaml:"baggage_prefix"`
}

// DefaultPropagationKeys returns traceid, spanid and the baggage- prefix.
func DefaultPropagationKeys() PropagationKeys {
	return PropagationKeys{
		TraceID:       DefaultTraceIDKey,
		SpanID:        DefaultSpanIDKey,
		BaggagePrefix: DefaultBaggagePrefix,
	}
}

func (k PropagationKeys) withDefaults() PropagationKeys {
	d := DefaultPropagationKeys()
	if k.TraceID == "" {
		k.TraceID = d.TraceID
	}
	if k.SpanID == "" {
		k.SpanID = d.SpanID
	}
	if k.BaggagePrefix == "" {
		k.BaggagePrefix = d.BaggagePrefix
	}
	return k
}

// Inject writes sc into carrier: one entry per baggage item under the
// baggage prefix, then the span id and the trace id.
//
// TextMap and HTTPHeaders formats are supported; the carrier must be an
// opentracing.TextMapWriter. Other formats return
// opentracing.ErrUnsupportedFormat, other carriers
// opentracing.ErrInvalidCarrier.
func (t *Tracer) Inject(sc SpanContext, format interface{}, carrier interface{}) error {
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
	default:
		return opentracing.ErrUnsupportedFormat
	}

	w, ok := carrier.(opentracing.TextMapWriter)
	if !ok {
		return opentracing.ErrInvalidCarrier
	}

	sc.ForeachBaggageItem(func(k, v string) bool {
		w.Set(t.keys.BaggagePrefix+k, v)
		return true
	})
	w.Set(t.keys.SpanID, sc.SpanID())
	w.Set(t.keys.TraceID, sc.TraceID())
	return nil
}
