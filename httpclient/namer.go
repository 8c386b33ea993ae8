package httpclient

import (
	"context"
	"net/http"
)

// Namer picks the operation name of the span created for a request.
// Implementations must be pure and must not panic on well-formed input.
type Namer interface {
	OperationName(ctx context.Context, route Route, req *http.Request) string
}

// NamerFunc adapts a function to Namer.
type NamerFunc func(ctx context.Context, route Route, req *http.Request) string

// OperationName calls f.
func (f NamerFunc) OperationName(ctx context.Context, route Route, req *http.Request) string {
	return f(ctx, route, req)
}

// DefaultNamer names spans "METHOD:scheme://host[:port]", or just "METHOD"
// when the route has no target host.
var DefaultNamer Namer = NamerFunc(defaultOperationName)

func defaultOperationName(_ context.Context, route Route, req *http.Request) string {
	method := methodOf(req)
	if route.HasTarget() {
		return method + ":" + route.TargetURI()
	}
	return method
}

func methodOf(req *http.Request) string {
	if req == nil || req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}
