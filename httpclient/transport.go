package httpclient

import (
	"net/http"
)

// Transport is an http.RoundTripper that traces each round trip.
type Transport struct {
	exec *Exec
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps the base RoundTripper set by WithBase.
func NewTransport(tracer Tracer, opts ...Option) *Transport {
	o := buildOptions(opts)
	return &Transport{
		exec: NewExec(tracer, RoundTripperExecutor(o.base), opts...),
	}
}

// RoundTrip traces req. The span context is written into a clone, so the
// caller's request is left unmodified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)
	return t.exec.Execute(ctx, RouteFor(out), out)
}

// NewClient returns an *http.Client whose transport traces every request.
func NewClient(tracer Tracer, opts ...Option) *http.Client {
	return &http.Client{Transport: NewTransport(tracer, opts...)}
}
