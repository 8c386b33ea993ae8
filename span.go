package haystack

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/clockz"
)

// Span is a timed unit of work. It is open from construction until the
// first successful Finish, after which every mutating call is rejected
// with a *LifecycleError that is also kept in Errors.
//
// Span is safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order groups lifecycle state apart from collections
type Span struct {
	tracer        *Tracer
	clock         clockz.Clock
	context       atomic.Pointer[SpanContext]
	operationName atomic.Pointer[string]
	startTime     onceCell[int64]
	endTime       onceCell[int64]
	duration      onceCell[int64]
	finished      atomic.Bool
	references    []Reference

	mu         sync.Mutex // Guards tags, logs, violations and the finished check.
	tags       map[string]any
	logs       []LogData
	violations []error
}

// NewSpan builds an open span. Times are microseconds since the Unix epoch.
// tracer may be nil, in which case the real clock is used and the finished
// span is not handed to any collector. tags and references are copied; a
// nil references slice yields an empty reference list.
func NewSpan(tracer *Tracer, operationName string, ctx SpanContext, startTime int64, tags map[string]any, references []Reference) *Span {
	s := &Span{
		tracer: tracer,
		clock:  clockz.RealClock,
		tags:   make(map[string]any, len(tags)),
	}
	if tracer != nil {
		s.clock = tracer.clock
	}
	s.operationName.Store(&operationName)
	s.context.Store(&ctx)
	s.startTime.Set(startTime)

	for k, v := range tags {
		if k == "" || v == nil {
			continue
		}
		s.tags[k] = v
	}

	s.references = make([]Reference, len(references))
	copy(s.references, references)

	return s
}

// mutate runs fn under the span lock if the span is still open.
// Otherwise it records and returns a violation built from op and format.
func (s *Span) mutate(fn func(), op, format string, args ...any) error {
	s.mu.Lock()
	if s.finished.Load() {
		err := &LifecycleError{
			Op:     op,
			Detail: fmt.Sprintf(format, args...),
			SpanID: s.Context().SpanID(),
		}
		s.violations = append(s.violations, err)
		s.mu.Unlock()

		if s.tracer != nil {
			s.tracer.reportViolation(s, err)
		}
		return err
	}
	fn()
	s.mu.Unlock()
	return nil
}

func (s *Span) now() int64 {
	return s.clock.Now().UnixMicro()
}

// Finish closes the span at the current clock time.
func (s *Span) Finish() error {
	return s.FinishAt(s.now())
}

// FinishAt closes the span at the given time. Only the first call
// succeeds; later calls are violations and leave end time and duration
// untouched.
func (s *Span) FinishAt(finishTime int64) error {
	err := s.mutate(func() {
		s.endTime.Set(finishTime)
		end, _ := s.endTime.Get()
		start, _ := s.startTime.Get()
		s.duration.Set(end - start)
		s.finished.CompareAndSwap(false, true)
	}, "finish", "finishing a prior finished span")
	if err != nil {
		return err
	}

	if s.tracer != nil {
		s.tracer.collectSpan(s)
	}
	return nil
}

// SetOperationName replaces the operation name.
func (s *Span) SetOperationName(name string) error {
	return s.mutate(func() {
		old := s.operationName.Load()
		s.operationName.CompareAndSwap(old, &name)
	}, "set operation name", "%s", name)
}

// SetTag upserts a tag. The value keeps its dynamic type.
// An empty key or nil value is ignored.
func (s *Span) SetTag(key string, value any) error {
	if key == "" || value == nil {
		return nil
	}
	return s.mutate(func() {
		s.tags[key] = value
	}, "set tag", "%s:%v", key, value)
}

// SetBaggageItem swaps the span context for one carrying key=value.
// An empty key is ignored.
func (s *Span) SetBaggageItem(key, value string) error {
	if key == "" {
		return nil
	}
	return s.mutate(func() {
		old := s.context.Load()
		next := old.WithBaggage(key, value)
		s.context.CompareAndSwap(old, &next)
	}, "set baggage", "%s:%s", key, value)
}

// Log appends a record stamped with the current clock time.
func (s *Span) Log(fields map[string]any) error {
	return s.LogAt(s.now(), fields)
}

// LogAt appends a record with an explicit timestamp.
// Empty fields are ignored.
func (s *Span) LogAt(timestamp int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return s.appendLog(NewLogData(timestamp, fields))
}

// LogEvent appends an event record stamped with the current clock time.
func (s *Span) LogEvent(event string) error {
	return s.LogEventWithPayloadAt(s.now(), event, nil)
}

// LogEventAt appends an event record with an explicit timestamp.
func (s *Span) LogEventAt(timestamp int64, event string) error {
	return s.LogEventWithPayloadAt(timestamp, event, nil)
}

// LogEventWithPayload appends an event record with a payload.
func (s *Span) LogEventWithPayload(event string, payload any) error {
	return s.LogEventWithPayloadAt(s.now(), event, payload)
}

// LogEventWithPayloadAt appends an event record with a payload and an
// explicit timestamp. An empty event name is ignored.
func (s *Span) LogEventWithPayloadAt(timestamp int64, event string, payload any) error {
	if event == "" {
		return nil
	}
	return s.appendLog(NewEventLogData(timestamp, event, payload))
}

func (s *Span) appendLog(entry LogData) error {
	return s.mutate(func() {
		s.logs = append(s.logs, entry)
	}, "log", "%d:%v", entry.Timestamp, entry.fields)
}

// Context returns the span's current context.
func (s *Span) Context() SpanContext {
	return *s.context.Load()
}

// BaggageItem returns the baggage value stored under key, or "".
func (s *Span) BaggageItem(key string) string {
	v, _ := s.Context().BaggageItem(key)
	return v
}

// OperationName returns the current operation name.
func (s *Span) OperationName() string {
	return *s.operationName.Load()
}

// StartTime returns the start time in microseconds.
func (s *Span) StartTime() int64 {
	v, _ := s.startTime.Get()
	return v
}

// EndTime returns the finish time, and false while the span is open.
func (s *Span) EndTime() (int64, bool) {
	return s.endTime.Get()
}

// Duration returns end minus start, and false while the span is open.
func (s *Span) Duration() (int64, bool) {
	return s.duration.Get()
}

// IsFinished reports whether Finish has succeeded.
func (s *Span) IsFinished() bool {
	return s.finished.Load()
}

// Tags returns a snapshot of the span's tags.
func (s *Span) Tags() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make(map[string]any, len(s.tags))
	for k, v := range s.tags {
		cp[k] = v
	}
	return cp
}

// Tag returns a single tag value.
func (s *Span) Tag(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.tags[key]
	return v, ok
}

// Logs returns a snapshot of the span's log records in append order.
func (s *Span) Logs() []LogData {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]LogData, len(s.logs))
	copy(cp, s.logs)
	return cp
}

// References returns a copy of the references fixed at construction.
func (s *Span) References() []Reference {
	cp := make([]Reference, len(s.references))
	copy(cp, s.references)
	return cp
}

// Errors returns the lifecycle violations recorded so far.
// Reading does not clear them.
func (s *Span) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]error, len(s.violations))
	copy(cp, s.violations)
	return cp
}

// Tracer returns the tracer that created the span, or nil.
func (s *Span) Tracer() *Tracer {
	return s.tracer
}

// ServiceName returns the owning tracer's service name.
func (s *Span) ServiceName() string {
	if s.tracer == nil {
		return ""
	}
	return s.tracer.serviceName
}
