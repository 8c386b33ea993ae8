package benchmarks

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/zoobzio/haystack"
	"github.com/zoobzio/haystack/httpclient"
)

// BenchmarkSpanCreationRate measures raw span creation throughput.
func BenchmarkSpanCreationRate(b *testing.B) {
	tracer := haystack.New("rate-test")
	defer tracer.Close()

	ctx := context.Background()

	b.ResetTimer()
	start := time.Now()

	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, "rate-span")
		_ = span.Finish()
	}

	b.ReportMetric(float64(b.N)/time.Since(start).Seconds(), "spans/sec")
}

// BenchmarkSpanCreationRateParallel measures span creation from many
// goroutines at once.
func BenchmarkSpanCreationRateParallel(b *testing.B) {
	tracer := haystack.New("parallel-rate-test")
	defer tracer.Close()

	ctx := context.Background()
	var counter atomic.Int64

	b.ResetTimer()
	start := time.Now()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, span := tracer.StartSpan(ctx, "parallel-rate-span")
			_ = span.Finish()
			counter.Add(1)
		}
	})

	b.ReportMetric(float64(counter.Load())/time.Since(start).Seconds(), "spans/sec")
}

// BenchmarkTagOperationsParallel measures tag writes contending on one span.
func BenchmarkTagOperationsParallel(b *testing.B) {
	tracer := haystack.New("tag-test")
	defer tracer.Close()

	_, span := tracer.StartSpan(context.Background(), "tag-span")
	keys := make([]string, 16)
	for i := range keys {
		keys[i] = fmt.Sprintf("key.%d", i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = span.SetTag(keys[i%len(keys)], i)
			i++
		}
	})
}

// BenchmarkSpanHierarchy measures nested activation through scopes.
func BenchmarkSpanHierarchy(b *testing.B) {
	for _, depth := range []int{1, 5, 10} {
		b.Run(fmt.Sprintf("depth-%d", depth), func(b *testing.B) {
			tracer := haystack.New("hierarchy-test")
			defer tracer.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ctx := context.Background()
				scopes := make([]*haystack.Scope, 0, depth)
				for d := 0; d < depth; d++ {
					var scope *haystack.Scope
					ctx, scope = tracer.BuildSpan("level").StartActive(ctx, true)
					scopes = append(scopes, scope)
				}
				for d := len(scopes) - 1; d >= 0; d-- {
					_ = scopes[d].Close()
				}
			}
		})
	}
}

// BenchmarkInject measures writing a span context with baggage to headers.
func BenchmarkInject(b *testing.B) {
	tracer := haystack.New("inject-test")
	defer tracer.Close()

	_, span := tracer.StartSpan(context.Background(), "inject-span")
	_ = span.SetBaggageItem("tenant", "acme")
	_ = span.SetBaggageItem("region", "eu-west-1")
	sc := span.Context()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h := make(http.Header, 4)
		_ = tracer.Inject(sc, opentracing.HTTPHeaders, httpclient.HeaderCarrier(h))
	}
}

// BenchmarkExecOverhead measures the decorator around a delegate that
// returns immediately.
func BenchmarkExecOverhead(b *testing.B) {
	tracer := haystack.New("exec-test")
	defer tracer.Close()

	resp := &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}
	exec := httpclient.NewExec(tracer, httpclient.ExecutorFunc(
		func(context.Context, httpclient.Route, *http.Request) (*http.Response, error) {
			return resp, nil
		}))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/items", nil)
	if err != nil {
		b.Fatal(err)
	}
	route := httpclient.RouteFor(req)
	ctx, parent := tracer.StartSpan(context.Background(), "parent")
	defer func() { _ = parent.Finish() }()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out := req.Clone(ctx)
		if _, err := exec.Execute(ctx, route, out); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCollectorThroughput measures collecting finished spans.
func BenchmarkCollectorThroughput(b *testing.B) {
	tracer := haystack.New("collector-test")
	defer tracer.Close()

	collector := haystack.NewCollector("bench", 10000)
	defer collector.Close()
	tracer.AddCollector(collector)

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, "collected")
		_ = span.Finish()
		if i%1000 == 0 {
			collector.Export()
		}
	}
	b.ReportMetric(float64(collector.DroppedCount()), "dropped")
}
