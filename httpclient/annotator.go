package httpclient

import (
	"context"
	"net"
	"net/http"

	"github.com/zoobzio/haystack"
)

// Annotator observes one outbound call through three hooks.
//
// HandleRequest runs once after the span is active and the context is
// injected, before the request is sent. HandleError runs once when the
// call fails, before the failure reaches the caller. HandleResponse runs
// exactly once per call, last, with a nil response when none was
// produced.
//
// Panics inside an annotator are not contained by the pipeline.
//
//go:generate mockgen -source=annotator.go -destination=mock_annotator.go -package=httpclient
type Annotator interface {
	HandleRequest(ctx context.Context, req *http.Request, span *haystack.Span)
	HandleError(ctx context.Context, req *http.Request, err error, span *haystack.Span)
	HandleResponse(ctx context.Context, resp *http.Response, span *haystack.Span)
}

// DefaultAnnotator tags method, URL and peer on request, marks errors with
// the error tag and a log event, and tags the response status.
var DefaultAnnotator Annotator = defaultAnnotator{}

type defaultAnnotator struct{}

func (defaultAnnotator) HandleRequest(_ context.Context, req *http.Request, span *haystack.Span) {
	span.SetTag(haystack.TagHTTPMethod, methodOf(req))
	if req.URL == nil {
		return
	}
	span.SetTag(haystack.TagHTTPURL, req.URL.String())

	host := req.URL.Hostname()
	if host == "" {
		return
	}
	span.SetTag(haystack.TagPeerHostname, host)
	if port := portOf(req.URL); port > 0 {
		span.SetTag(haystack.TagPeerPort, port)
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		span.SetTag(haystack.TagPeerIPv4, ip.String())
	}
}

func (defaultAnnotator) HandleError(_ context.Context, _ *http.Request, err error, span *haystack.Span) {
	span.SetTag(haystack.TagError, true)
	if err != nil {
		span.LogEvent(err.Error())
	}
}

func (defaultAnnotator) HandleResponse(_ context.Context, resp *http.Response, span *haystack.Span) {
	if resp == nil || resp.StatusCode == 0 {
		return
	}
	span.SetTag(haystack.TagHTTPStatusCode, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		span.SetTag(haystack.TagError, true)
	}
}
