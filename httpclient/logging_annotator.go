package httpclient

import (
	"context"
	"net/http"

	"github.com/zoobzio/haystack"
	"go.uber.org/zap"
)

// LoggingAnnotator writes each outbound call to a zap logger, tagged with
// the span's trace and span ids.
type LoggingAnnotator struct {
	logger *zap.Logger
}

// NewLoggingAnnotator returns an annotator logging to logger.
// A nil logger discards everything.
func NewLoggingAnnotator(logger *zap.Logger) *LoggingAnnotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingAnnotator{logger: logger}
}

func spanFields(span *haystack.Span) []zap.Field {
	sc := span.Context()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID()),
		zap.String("span_id", sc.SpanID()),
	}
}

// HandleRequest logs the request line at debug.
func (a *LoggingAnnotator) HandleRequest(_ context.Context, req *http.Request, span *haystack.Span) {
	ce := a.logger.Check(zap.DebugLevel, "outbound request")
	if ce == nil {
		return
	}
	fields := append(spanFields(span), zap.String("method", methodOf(req)))
	if req.URL != nil {
		fields = append(fields, zap.String("url", req.URL.String()))
	}
	ce.Write(fields...)
}

// HandleError logs the failure at warn.
func (a *LoggingAnnotator) HandleError(_ context.Context, req *http.Request, err error, span *haystack.Span) {
	fields := append(spanFields(span), zap.String("method", methodOf(req)), zap.Error(err))
	a.logger.Warn("outbound request failed", fields...)
}

// HandleResponse logs the status at debug. A nil response is skipped.
func (a *LoggingAnnotator) HandleResponse(_ context.Context, resp *http.Response, span *haystack.Span) {
	if resp == nil {
		return
	}
	if ce := a.logger.Check(zap.DebugLevel, "outbound response"); ce != nil {
		ce.Write(append(spanFields(span), zap.Int("status", resp.StatusCode))...)
	}
}
