// Package httpclient traces outbound HTTP calls.
//
// Exec decorates a single "execute one request" step: for every call it
// starts a client span as a child of the span active in the context,
// injects the span context into the request headers, drives the annotator
// pipeline and finishes the span, while returning the delegate's response
// and error untouched.
//
//	client := httpclient.NewClient(tracer)
//	resp, err := client.Do(req.WithContext(ctx))
package httpclient

import (
	"context"
	"fmt"
	"net/http"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/zoobzio/haystack"
	"go.uber.org/zap"
)

// ComponentName is the value of the component tag on client spans.
const ComponentName = "haystack-httpclient"

// Tracer is the subset of *haystack.Tracer the decorator needs.
type Tracer interface {
	BuildSpan(operationName string) *haystack.SpanBuilder
	Inject(sc haystack.SpanContext, format interface{}, carrier interface{}) error
}

// Executor sends one request to route and returns its response.
type Executor interface {
	Execute(ctx context.Context, route Route, req *http.Request) (*http.Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, route Route, req *http.Request) (*http.Response, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, route Route, req *http.Request) (*http.Response, error) {
	return f(ctx, route, req)
}

// RoundTripperExecutor sends requests through rt with ctx attached.
// A nil rt means http.DefaultTransport.
func RoundTripperExecutor(rt http.RoundTripper) Executor {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return ExecutorFunc(func(ctx context.Context, _ Route, req *http.Request) (*http.Response, error) {
		return rt.RoundTrip(req.WithContext(ctx))
	})
}

// Option configures Exec, Transport and NewClient.
type Option func(*options)

type options struct {
	namer         Namer
	annotators    []Annotator
	annotatorsSet bool
	logger        *zap.Logger
	base          http.RoundTripper
}

// WithNamer sets the operation namer. Defaults to DefaultNamer.
func WithNamer(n Namer) Option {
	return func(o *options) {
		if n != nil {
			o.namer = n
		}
	}
}

// WithAnnotators replaces the annotator pipeline. Defaults to
// DefaultAnnotator alone. Annotators run in the given order.
func WithAnnotators(annotators ...Annotator) Option {
	return func(o *options) {
		o.annotators = append([]Annotator(nil), annotators...)
		o.annotatorsSet = true
	}
}

// WithLogger sets the logger for decorator diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBase sets the RoundTripper a Transport delegates to.
// Defaults to http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

func buildOptions(opts []Option) options {
	o := options{
		namer:  DefaultNamer,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.annotatorsSet {
		o.annotators = []Annotator{DefaultAnnotator}
	}
	return o
}

// Exec traces every call made through its delegate.
// Safe for concurrent use; the annotator list is fixed at construction.
type Exec struct {
	tracer     Tracer
	delegate   Executor
	namer      Namer
	logger     *zap.Logger
	annotators []Annotator
}

// NewExec wraps delegate.
func NewExec(tracer Tracer, delegate Executor, opts ...Option) *Exec {
	o := buildOptions(opts)
	return &Exec{
		tracer:     tracer,
		delegate:   delegate,
		namer:      o.namer,
		logger:     o.logger,
		annotators: o.annotators,
	}
}

// Execute sends req through the delegate inside a client span.
//
// The span is a child of the span active in ctx. Its context is added to
// req's headers before anything is sent; baggage that cannot be sent as a
// header is skipped and logged. Whatever the delegate returns is returned
// unchanged; on error the error hooks run first. The response hooks run on
// every path with whatever response the delegate produced, then the span
// is finished. A panic in the delegate runs the same hooks and is
// re-raised with its original value.
func (e *Exec) Execute(ctx context.Context, route Route, req *http.Request) (resp *http.Response, err error) {
	if ctx == nil {
		ctx = req.Context()
	}

	name := e.namer.OperationName(ctx, route, req)
	ctx, scope := e.tracer.BuildSpan(name).
		WithTag(haystack.TagComponent, ComponentName).
		WithTag(haystack.TagSpanKind, haystack.SpanKindClient).
		StartActive(ctx, true)
	defer e.closeScope(scope)

	span := scope.Span()

	if req.Header == nil {
		req.Header = make(http.Header)
	}
	carrier := &skippingCarrier{header: req.Header}
	if injectErr := e.tracer.Inject(span.Context(), opentracing.HTTPHeaders, carrier); injectErr != nil {
		e.logger.Warn("inject span context", zap.String("operation", name), zap.Error(injectErr))
	}
	if len(carrier.skipped) > 0 {
		e.logger.Warn("skipped invalid propagation headers",
			zap.String("operation", name),
			zap.Strings("keys", carrier.skipped),
		)
	}

	defer func() {
		if r := recover(); r != nil {
			e.handleError(ctx, req, panicError(r), span)
			e.handleResponse(ctx, nil, span)
			panic(r)
		}
		e.handleResponse(ctx, resp, span)
	}()

	for _, a := range e.annotators {
		a.HandleRequest(ctx, req, span)
	}

	resp, err = e.delegate.Execute(ctx, route, req)
	if err != nil {
		e.handleError(ctx, req, err, span)
	}
	return resp, err
}

func (e *Exec) handleError(ctx context.Context, req *http.Request, err error, span *haystack.Span) {
	for _, a := range e.annotators {
		a.HandleError(ctx, req, err, span)
	}
}

func (e *Exec) handleResponse(ctx context.Context, resp *http.Response, span *haystack.Span) {
	for _, a := range e.annotators {
		a.HandleResponse(ctx, resp, span)
	}
}

func (e *Exec) closeScope(scope *haystack.Scope) {
	if err := scope.Close(); err != nil {
		e.logger.Warn("finish client span", zap.Error(err))
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
