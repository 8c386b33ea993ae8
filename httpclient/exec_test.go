package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/haystack"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu    sync.Mutex
	spans []*haystack.Span
}

func (r *recorder) record(span *haystack.Span) {
	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()
}

func (r *recorder) finished() []*haystack.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*haystack.Span(nil), r.spans...)
}

func newRecordingTracer(t *testing.T) (*haystack.Tracer, *recorder) {
	t.Helper()
	tracer := haystack.New("client-test")
	t.Cleanup(tracer.Close)
	rec := &recorder{}
	tracer.OnSpanComplete(rec.record)
	return tracer, rec
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func startParent(t *testing.T, tracer *haystack.Tracer) (context.Context, *haystack.Span) {
	t.Helper()
	ctx, parent := tracer.StartSpan(context.Background(), "parent")
	require.NoError(t, parent.SetBaggageItem("cookie-type", "chocolate"))
	return ctx, parent
}

func TestClientSuccess(t *testing.T) {
	var received http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tracer, rec := newRecordingTracer(t)
	ctx, parent := startParent(t, tracer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/cookies", nil)
	require.NoError(t, err)

	resp, err := NewClient(tracer).Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	spans := rec.finished()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.True(t, span.IsFinished())
	assert.False(t, parent.IsFinished())
	assert.Equal(t, "GET:"+srv.URL, span.OperationName())

	refs := span.References()
	require.Len(t, refs, 1)
	assert.Equal(t, opentracing.ChildOfRef, refs[0].Type)
	assert.True(t, refs[0].Context.Equal(parent.Context()))
	assert.Equal(t, parent.Context().TraceID(), span.Context().TraceID())

	tags := span.Tags()
	assert.Equal(t, ComponentName, tags[haystack.TagComponent])
	assert.Equal(t, haystack.SpanKindClient, tags[haystack.TagSpanKind])
	assert.Equal(t, http.MethodGet, tags[haystack.TagHTTPMethod])
	assert.Equal(t, srv.URL+"/cookies", tags[haystack.TagHTTPURL])
	assert.Equal(t, "127.0.0.1", tags[haystack.TagPeerHostname])
	assert.Equal(t, "127.0.0.1", tags[haystack.TagPeerIPv4])
	assert.Equal(t, http.StatusOK, tags[haystack.TagHTTPStatusCode])
	assert.NotContains(t, tags, haystack.TagError)

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	wantPort, err := strconv.Atoi(port)
	require.NoError(t, err)
	assert.Equal(t, wantPort, tags[haystack.TagPeerPort])

	require.NotNil(t, received)
	assert.Equal(t, span.Context().TraceID(), received.Get("traceid"))
	assert.Equal(t, span.Context().SpanID(), received.Get("spanid"))
	assert.Equal(t, "chocolate", received.Get("baggage-cookie-type"))
}

func TestClientDroppedConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer does not support hijacking")
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		_, _ = buf.WriteString("not http at all\r\n\r\n")
		_ = buf.Flush()
		_ = conn.Close()
	}))
	defer srv.Close()

	tracer, rec := newRecordingTracer(t)
	ctx, _ := startParent(t, tracer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := NewClient(tracer).Do(req)
	require.Error(t, err)
	assert.Nil(t, resp)

	spans := rec.finished()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.True(t, span.IsFinished())
	errTag, ok := span.Tag(haystack.TagError)
	require.True(t, ok)
	assert.Equal(t, true, errTag)
	assert.NotContains(t, span.Tags(), haystack.TagHTTPStatusCode)

	logs := span.Logs()
	require.Len(t, logs, 1)
	event, ok := logs[0].Event()
	require.True(t, ok)
	assert.NotEmpty(t, event)
	assert.Contains(t, err.Error(), event)
}

func TestClientErrorPassesThrough(t *testing.T) {
	errReset := errors.New("connection reset by peer")
	base := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errReset
	})

	tracer, rec := newRecordingTracer(t)
	req, err := http.NewRequest(http.MethodPost, "http://orders.internal/orders", nil)
	require.NoError(t, err)

	_, err = NewClient(tracer, WithBase(base)).Do(req)
	assert.ErrorIs(t, err, errReset)
	require.Len(t, rec.finished(), 1)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tracer, rec := newRecordingTracer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/missing", nil)
	require.NoError(t, err)

	resp, err := NewClient(tracer).Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	spans := rec.finished()
	require.Len(t, spans, 1)
	tags := spans[0].Tags()
	assert.Equal(t, http.StatusNotFound, tags[haystack.TagHTTPStatusCode])
	assert.Equal(t, true, tags[haystack.TagError])
	assert.Empty(t, spans[0].Logs())
	assert.Empty(t, spans[0].References())
}

func TestTransportSpanVisibleToBase(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	var active *haystack.Span
	base := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		active = haystack.SpanFromContext(req.Context())
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: req}, nil
	})

	req, err := http.NewRequest(http.MethodDelete, "https://api.example.com/items/7", nil)
	require.NoError(t, err)

	resp, err := NewTransport(tracer, WithBase(base)).RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	spans := rec.finished()
	require.Len(t, spans, 1)
	assert.Same(t, spans[0], active)
	assert.Equal(t, "DELETE:https://api.example.com", spans[0].OperationName())
	assert.Equal(t, 443, spans[0].Tags()[haystack.TagPeerPort])
	assert.NotContains(t, spans[0].Tags(), haystack.TagPeerIPv4)
}

func TestTransportLeavesCallerRequestUntouched(t *testing.T) {
	tracer, _ := newRecordingTracer(t)

	var sent *http.Request
	base := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		sent = req
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	})

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	_, err = NewTransport(tracer, WithBase(base)).RoundTrip(req)
	require.NoError(t, err)

	assert.Empty(t, req.Header.Get("traceid"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	require.NotNil(t, sent)
	assert.NotSame(t, req, sent)
	assert.NotEmpty(t, sent.Header.Get("traceid"))
	assert.Equal(t, "application/json", sent.Header.Get("Accept"))
}

func TestExecReturnsDelegateResultsUnchanged(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	want := &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody}
	exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
		return want, nil
	}))

	req, err := http.NewRequest(http.MethodPut, "http://example.com/x", nil)
	require.NoError(t, err)

	got, err := exec.Execute(context.Background(), RouteFor(req), req)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, http.StatusAccepted, rec.finished()[0].Tags()[haystack.TagHTTPStatusCode])

	errBoom := errors.New("boom")
	exec = NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
		return nil, errBoom
	}))
	got, err = exec.Execute(context.Background(), RouteFor(req), req)
	assert.Nil(t, got)
	assert.Same(t, errBoom, err)

	spans := rec.finished()
	require.Len(t, spans, 2)
	require.Len(t, spans[1].Logs(), 1)
	assert.Equal(t, map[string]any{haystack.LogFieldEvent: "boom"}, spans[1].Logs()[0].Fields())
}

func TestExecNilHeader(t *testing.T) {
	tracer, _ := newRecordingTracer(t)

	var sent http.Header
	exec := NewExec(tracer, ExecutorFunc(func(_ context.Context, _ Route, req *http.Request) (*http.Response, error) {
		sent = req.Header
		return nil, nil
	}))

	req := &http.Request{Method: http.MethodGet}
	_, err := exec.Execute(context.Background(), Route{}, req)
	require.NoError(t, err)
	assert.NotEmpty(t, sent.Get("traceid"))
	assert.NotEmpty(t, sent.Get("spanid"))
}

func TestExecHookOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockAnnotator(ctrl)
	second := NewMockAnnotator(ctrl)

	tracer, _ := newRecordingTracer(t)
	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}
		gomock.InOrder(
			first.EXPECT().HandleRequest(gomock.Any(), req, gomock.Any()),
			second.EXPECT().HandleRequest(gomock.Any(), req, gomock.Any()),
			first.EXPECT().HandleResponse(gomock.Any(), resp, gomock.Any()),
			second.EXPECT().HandleResponse(gomock.Any(), resp, gomock.Any()),
		)

		exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
			return resp, nil
		}), WithAnnotators(first, second))

		_, err := exec.Execute(context.Background(), RouteFor(req), req)
		require.NoError(t, err)
	})

	t.Run("error", func(t *testing.T) {
		errFail := errors.New("fail")
		gomock.InOrder(
			first.EXPECT().HandleRequest(gomock.Any(), req, gomock.Any()),
			second.EXPECT().HandleRequest(gomock.Any(), req, gomock.Any()),
			first.EXPECT().HandleError(gomock.Any(), req, errFail, gomock.Any()),
			second.EXPECT().HandleError(gomock.Any(), req, errFail, gomock.Any()),
			first.EXPECT().HandleResponse(gomock.Any(), gomock.Nil(), gomock.Any()),
			second.EXPECT().HandleResponse(gomock.Any(), gomock.Nil(), gomock.Any()),
		)

		exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
			return nil, errFail
		}), WithAnnotators(first, second))

		_, err := exec.Execute(context.Background(), RouteFor(req), req)
		assert.Same(t, errFail, err)
	})
}

func TestExecRequestHookSeesActiveSpanAndHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	annotator := NewMockAnnotator(ctrl)
	tracer, _ := newRecordingTracer(t)

	annotator.EXPECT().HandleRequest(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(ctx context.Context, req *http.Request, span *haystack.Span) {
			assert.Same(t, span, haystack.SpanFromContext(ctx))
			assert.False(t, span.IsFinished())
			assert.Equal(t, span.Context().SpanID(), req.Header.Get("spanid"))
		})
	annotator.EXPECT().HandleResponse(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, _ *http.Response, span *haystack.Span) {
			assert.False(t, span.IsFinished())
		})

	exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK}, nil
	}), WithAnnotators(annotator))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), RouteFor(req), req)
	require.NoError(t, err)
}

func TestExecDelegatePanic(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
		panic("boom")
	}))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = exec.Execute(context.Background(), RouteFor(req), req)
	})

	spans := rec.finished()
	require.Len(t, spans, 1)
	assert.True(t, spans[0].IsFinished())
	assert.Equal(t, true, spans[0].Tags()[haystack.TagError])
	require.Len(t, spans[0].Logs(), 1)
	event, _ := spans[0].Logs()[0].Event()
	assert.Equal(t, "panic: boom", event)
}

func TestExecEmptyPipeline(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusInternalServerError}, nil
	}), WithAnnotators())

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), RouteFor(req), req)
	require.NoError(t, err)

	tags := rec.finished()[0].Tags()
	assert.Equal(t, map[string]any{
		haystack.TagComponent: ComponentName,
		haystack.TagSpanKind:  haystack.SpanKindClient,
	}, tags)
}

func TestExecCustomNamer(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	namer := NamerFunc(func(_ context.Context, route Route, req *http.Request) string {
		return "call " + req.URL.Path
	})
	exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
		return nil, nil
	}), WithNamer(namer))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/orders", nil)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), RouteFor(req), req)
	require.NoError(t, err)

	assert.Equal(t, "call /orders", rec.finished()[0].OperationName())
}

func TestSiblingCallsShareParent(t *testing.T) {
	tracer, rec := newRecordingTracer(t)
	ctx, parent := startParent(t, tracer)

	exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK}, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
			if !assert.NoError(t, err) {
				return
			}
			_, err = exec.Execute(ctx, RouteFor(req), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	spans := rec.finished()
	require.Len(t, spans, 20)
	ids := make(map[string]bool)
	for _, span := range spans {
		assert.Equal(t, parent.Context().SpanID(), span.Context().ParentID())
		ids[span.Context().SpanID()] = true
	}
	assert.Len(t, ids, 20)
}

func TestClientSkipsUnsendableBaggage(t *testing.T) {
	var received http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tracer, rec := newRecordingTracer(t)
	ctx, parent := startParent(t, tracer)
	require.NoError(t, parent.SetBaggageItem("user id", "42"))
	require.NoError(t, parent.SetBaggageItem("note", "line\nbreak"))

	core, logs := observer.New(zap.WarnLevel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := NewClient(tracer, WithLogger(zap.New(core))).Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.NotNil(t, received)
	assert.Equal(t, "chocolate", received.Get("baggage-cookie-type"))
	assert.Empty(t, received.Get("baggage-note"))
	assert.NotEmpty(t, received.Get("traceid"))

	spans := rec.finished()
	require.Len(t, spans, 1)
	assert.NotContains(t, spans[0].Tags(), haystack.TagError)

	skipped := logs.FilterMessage("skipped invalid propagation headers").AllUntimed()
	require.Len(t, skipped, 1)
	assert.ElementsMatch(t, []any{"baggage-user id", "baggage-note"}, skipped[0].ContextMap()["keys"])
}

func TestExecResponseHooksSeePartialResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	annotator := NewMockAnnotator(ctrl)
	tracer, _ := newRecordingTracer(t)

	partial := &http.Response{StatusCode: http.StatusBadGateway, Body: http.NoBody}
	errTruncated := errors.New("body truncated")

	gomock.InOrder(
		annotator.EXPECT().HandleRequest(gomock.Any(), gomock.Any(), gomock.Any()),
		annotator.EXPECT().HandleError(gomock.Any(), gomock.Any(), errTruncated, gomock.Any()),
		annotator.EXPECT().HandleResponse(gomock.Any(), partial, gomock.Any()),
	)

	exec := NewExec(tracer, ExecutorFunc(func(context.Context, Route, *http.Request) (*http.Response, error) {
		return partial, errTruncated
	}), WithAnnotators(annotator))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	got, err := exec.Execute(context.Background(), RouteFor(req), req)
	assert.Same(t, partial, got)
	assert.Same(t, errTruncated, err)
}
