package haystack

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// SpanHandler is called when a span finishes. The span is immutable by
// then; use its getters to read it.
type SpanHandler func(span *Span)

type handlerEntry struct {
	handler SpanHandler
	id      uint64
	async   bool
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithClock sets the clock used for span and log timestamps.
func WithClock(clock clockz.Clock) Option {
	return func(t *Tracer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger sets the logger used for lifecycle diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracer) {
		if logger != nil {
			t.logger = logger
			t.loggerSet = true
		}
	}
}

// WithMetrics records span counters into m.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracer) {
		t.metrics = m
	}
}

// WithRegisterer sets where NewFromConfig registers the tracer's metrics
// when they are enabled. Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(t *Tracer) {
		t.registerer = reg
	}
}

// WithPropagation sets the carrier keys used by Inject.
func WithPropagation(keys PropagationKeys) Option {
	return func(t *Tracer) {
		t.keys = keys.withDefaults()
	}
}

// WithIDPoolSize sets how many ids are generated ahead of use.
func WithIDPoolSize(size int) Option {
	return func(t *Tracer) {
		if size > 0 {
			t.idPoolSize = size
		}
	}
}

// Tracer creates spans, propagates their context and hands finished spans
// to registered handlers.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	serviceName  string
	handlers     []handlerEntry
	panicHook    func(handlerID uint64, r interface{})
	workers      *workerPool
	traceIDPool  *IDPool
	spanIDPool   *IDPool
	clock        clockz.Clock
	logger       *zap.Logger
	loggerSet    bool
	metrics      *Metrics
	registerer   prometheus.Registerer
	keys         PropagationKeys
	idPoolSize   int
	handlersLock sync.RWMutex
	idPoolOnce   sync.Once
	nextID       atomic.Uint64
	droppedSpans atomic.Uint64
}

// New creates a tracer for the named service.
// Uses the real clock and a no-op logger unless options say otherwise.
func New(serviceName string, opts ...Option) *Tracer {
	t := &Tracer{
		serviceName: serviceName,
		handlers:    make([]handlerEntry, 0),
		clock:       clockz.RealClock,
		logger:      zap.NewNop(),
		keys:        DefaultPropagationKeys(),
		idPoolSize:  runtime.NumCPU() * 100,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ServiceName returns the service the tracer reports for.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// ensureIDPools initializes ID pools if not already created.
func (t *Tracer) ensureIDPools() {
	t.idPoolOnce.Do(func() {
		t.traceIDPool = NewIDPool(t.idPoolSize, uuid.NewString)
		t.spanIDPool = NewIDPool(t.idPoolSize, uuid.NewString)
	})
}

// OnSpanComplete registers a synchronous handler called when spans finish.
func (t *Tracer) OnSpanComplete(handler SpanHandler) uint64 {
	return t.registerHandler(handler, false)
}

// OnSpanCompleteAsync registers an asynchronous handler called when spans finish.
func (t *Tracer) OnSpanCompleteAsync(handler SpanHandler) uint64 {
	return t.registerHandler(handler, true)
}

// AddCollector feeds every finished span into c.
// The returned id can be passed to RemoveHandler.
func (t *Tracer) AddCollector(c *Collector) uint64 {
	if c == nil {
		return 0
	}
	return t.OnSpanComplete(c.Collect)
}

func (t *Tracer) registerHandler(handler SpanHandler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := t.nextID.Add(1)

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	t.handlers = append(t.handlers, handlerEntry{
		id:      id,
		handler: handler,
		async:   async,
	})

	return id
}

// RemoveHandler removes a handler by ID.
func (t *Tracer) RemoveHandler(id uint64) {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	for i, h := range t.handlers {
		if h.id == id {
			copy(t.handlers[i:], t.handlers[i+1:])
			t.handlers = t.handlers[:len(t.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (t *Tracer) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	t.handlersLock.Lock()
	t.panicHook = hook
	t.handlersLock.Unlock()
}

// BuildSpan starts describing a new span with the given operation name.
func (t *Tracer) BuildSpan(operationName string) *SpanBuilder {
	return &SpanBuilder{tracer: t, operationName: operationName}
}

// StartSpan starts a span as a child of the active span in ctx, if any,
// and returns a context in which the new span is active.
func (t *Tracer) StartSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	span := t.BuildSpan(operationName).Start(ctx)
	return ContextWithSpan(ctx, span), span
}

// ActiveSpan returns the span active in ctx, or nil.
func (*Tracer) ActiveSpan(ctx context.Context) *Span {
	return SpanFromContext(ctx)
}

func (t *Tracer) newTraceID() string {
	t.ensureIDPools()
	return t.traceIDPool.Get()
}

func (t *Tracer) newSpanID() string {
	t.ensureIDPools()
	return t.spanIDPool.Get()
}

func (t *Tracer) spanStarted() {
	if t.metrics != nil {
		t.metrics.SpansStarted.Inc()
	}
}

// collectSpan runs after a span's first successful finish.
func (t *Tracer) collectSpan(span *Span) {
	if t.metrics != nil {
		t.metrics.SpansFinished.Inc()
		if d, ok := span.Duration(); ok {
			t.metrics.SpanDuration.Observe(float64(d) / 1e6)
		}
	}
	if ce := t.logger.Check(zap.DebugLevel, "span finished"); ce != nil {
		sc := span.Context()
		ce.Write(
			zap.String("operation", span.OperationName()),
			zap.String("trace_id", sc.TraceID()),
			zap.String("span_id", sc.SpanID()),
		)
	}
	t.executeHandlers(span)
}

// reportViolation is called for every mutating call on a finished span.
func (t *Tracer) reportViolation(span *Span, err error) {
	if t.metrics != nil {
		t.metrics.Violations.Inc()
	}
	sc := span.Context()
	t.logger.Warn("span lifecycle violation",
		zap.String("operation", span.OperationName()),
		zap.String("trace_id", sc.TraceID()),
		zap.String("span_id", sc.SpanID()),
		zap.Error(err),
	)
}

// executeHandlers calls all registered handlers with the finished span.
func (t *Tracer) executeHandlers(span *Span) {
	t.handlersLock.RLock()
	if len(t.handlers) == 0 {
		t.handlersLock.RUnlock()
		return
	}

	handlers := make([]handlerEntry, len(t.handlers))
	copy(handlers, t.handlers)
	workers, hook := t.workers, t.panicHook
	t.handlersLock.RUnlock()

	for _, h := range handlers {
		if h.async {
			entry := h
			if workers != nil {
				workers.submit(func() {
					t.safeCall(entry, span, hook)
				})
			} else {
				go t.safeCall(entry, span, hook)
			}
		} else {
			t.safeCall(h, span, hook)
		}
	}
}

func (t *Tracer) safeCall(entry handlerEntry, span *Span, hook func(uint64, interface{})) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("span handler panicked",
				zap.Uint64("handler_id", entry.id),
				zap.Any("panic", r),
			)
			if hook != nil {
				hook(entry.id, r)
			}
		}
	}()
	entry.handler(span)
}

// EnableWorkerPool creates a bounded worker pool for async handlers.
func (t *Tracer) EnableWorkerPool(workers, queueSize int) error {
	if workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", workers)
	}
	if queueSize <= 0 {
		return fmt.Errorf("queueSize must be > 0, got %d", queueSize)
	}

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()
	if t.workers != nil {
		return errors.New("worker pool already enabled")
	}

	pool := &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &t.droppedSpans,
		metrics: t.metrics,
	}
	pool.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.run()
	}
	t.workers = pool

	return nil
}

// DroppedSpans returns the number of spans dropped due to full worker queue.
func (t *Tracer) DroppedSpans() uint64 {
	return t.droppedSpans.Load()
}

// Close shuts down the tracer gracefully and cleans up resources.
func (t *Tracer) Close() {
	t.handlersLock.Lock()
	t.handlers = nil
	workers := t.workers
	t.workers = nil
	t.handlersLock.Unlock()

	if workers != nil {
		workers.shutdown()
	}

	// Going through the once orders this with any concurrent first use.
	t.ensureIDPools()
	t.traceIDPool.Close()
	t.spanIDPool.Close()

	_ = t.logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
}

// workerPool manages a fixed number of workers for processing async handlers.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	metrics *Metrics
	wg      sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			return
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
		if w.metrics != nil {
			w.metrics.DroppedSpans.Inc()
		}
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}
