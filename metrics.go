package haystack

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments a Tracer updates.
type Metrics struct {
	SpansStarted  prometheus.Counter
	SpansFinished prometheus.Counter
	Violations    prometheus.Counter
	DroppedSpans  prometheus.Counter
	SpanDuration  prometheus.Histogram
}

// NewMetrics creates unregistered instruments under namespace, labelled
// with the service name.
func NewMetrics(namespace, serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}
	return &Metrics{
		SpansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "spans_started_total",
			Help:        "Spans started by the tracer.",
			ConstLabels: labels,
		}),
		SpansFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "spans_finished_total",
			Help:        "Spans finished successfully.",
			ConstLabels: labels,
		}),
		Violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "span_lifecycle_violations_total",
			Help:        "Mutating calls rejected because the span was already finished.",
			ConstLabels: labels,
		}),
		DroppedSpans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "spans_dropped_total",
			Help:        "Finished spans dropped because the async handler queue was full.",
			ConstLabels: labels,
		}),
		SpanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "span_duration_seconds",
			Help:        "Duration of finished spans.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

// Collectors returns every instrument, for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SpansStarted,
		m.SpansFinished,
		m.Violations,
		m.DroppedSpans,
		m.SpanDuration,
	}
}

// Register registers every instrument with reg. When an identical
// instrument is already registered, m switches to the registered one, so a
// second tracer sharing reg keeps reporting into the same series.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := registerOrReuse(reg, &m.SpansStarted); err != nil {
		return err
	}
	if err := registerOrReuse(reg, &m.SpansFinished); err != nil {
		return err
	}
	if err := registerOrReuse(reg, &m.Violations); err != nil {
		return err
	}
	if err := registerOrReuse(reg, &m.DroppedSpans); err != nil {
		return err
	}
	return registerOrReuse(reg, &m.SpanDuration)
}

func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("collector %T registered in place of %T", are.ExistingCollector, *c)
	}
	*c = existing
	return nil
}
