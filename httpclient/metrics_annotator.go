package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/haystack"
)

const unknownMethod = "unknown"

// MetricsAnnotator counts outbound calls by method and status code, and
// failed calls by method.
type MetricsAnnotator struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetricsAnnotator creates unregistered counters under namespace.
func NewMetricsAnnotator(namespace string) *MetricsAnnotator {
	return &MetricsAnnotator{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "responses_total",
			Help:      "Outbound HTTP responses by method and status code.",
		}, []string{"method", "code"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "failures_total",
			Help:      "Outbound HTTP calls that produced no response.",
		}, []string{"method"}),
	}
}

// Register registers both counters with reg. When an identical counter is
// already registered, the annotator switches to it so counts keep landing
// in the registry.
func (a *MetricsAnnotator) Register(reg prometheus.Registerer) error {
	if err := registerVec(reg, &a.requests); err != nil {
		return err
	}
	return registerVec(reg, &a.failures)
}

func registerVec(reg prometheus.Registerer, vec **prometheus.CounterVec) error {
	err := reg.Register(*vec)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}
	existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
	if !ok {
		return fmt.Errorf("collector %T registered in place of a counter vec", are.ExistingCollector)
	}
	*vec = existing
	return nil
}

// HandleRequest does nothing; calls are counted once they complete.
func (*MetricsAnnotator) HandleRequest(context.Context, *http.Request, *haystack.Span) {}

// HandleError counts a failed call.
func (a *MetricsAnnotator) HandleError(_ context.Context, req *http.Request, _ error, _ *haystack.Span) {
	a.failures.WithLabelValues(methodOf(req)).Inc()
}

// HandleResponse counts a response. A nil response is skipped; a response
// that does not carry its request is counted under the "unknown" method.
func (a *MetricsAnnotator) HandleResponse(_ context.Context, resp *http.Response, _ *haystack.Span) {
	if resp == nil {
		return
	}
	method := unknownMethod
	if resp.Request != nil {
		method = methodOf(resp.Request)
	}
	a.requests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
}
