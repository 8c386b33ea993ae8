package haystack

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector buffers finished spans until an exporter drains them.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Collector struct {
	spans        []*Span
	spansCh      chan *Span
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	name         string
	mu           sync.Mutex
	closeOnce    sync.Once
	closed       atomic.Bool
	syncMode     atomic.Bool
}

// NewCollector creates a collector whose intake queue holds bufferSize spans.
func NewCollector(name string, bufferSize int) *Collector {
	c := &Collector{
		name:    name,
		spans:   make([]*Span, 0, 8),
		spansCh: make(chan *Span, bufferSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.run()
	return c
}

// Name returns the collector's name.
func (c *Collector) Name() string {
	return c.name
}

func (c *Collector) run() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			for {
				select {
				case span := <-c.spansCh:
					c.buffer(span)
				default:
					return
				}
			}
		case span := <-c.spansCh:
			c.buffer(span)
		}
	}
}

// Close stops intake and drains queued spans into the buffer.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stopCh)
		select {
		case <-c.done:
		case <-time.After(100 * time.Millisecond):
		}
	})
}

// Collect queues a finished span. Open spans, nil spans and spans arriving
// while the queue is full or the collector is closed are dropped and
// counted.
func (c *Collector) Collect(span *Span) {
	if span == nil || !span.IsFinished() || c.closed.Load() {
		c.droppedCount.Add(1)
		return
	}

	if c.syncMode.Load() {
		c.buffer(span)
		return
	}

	select {
	case c.spansCh <- span:
	default:
		c.droppedCount.Add(1)
	}
}

func (c *Collector) buffer(span *Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, span)
}

// Export returns all buffered spans in arrival order and clears the buffer.
func (c *Collector) Export() []*Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == 0 {
		return nil
	}

	result := make([]*Span, len(c.spans))
	copy(result, c.spans)

	if cap(c.spans) > 256 && len(c.spans) < cap(c.spans)/8 {
		c.spans = make([]*Span, 0, cap(c.spans)/4)
	} else {
		clear(c.spans)
		c.spans = c.spans[:0]
	}

	return result
}

// Count returns the current number of buffered spans.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

// DroppedCount returns the total number of spans dropped.
func (c *Collector) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// SetSyncMode makes Collect buffer directly instead of going through the
// intake queue, so tests observe spans as soon as they finish.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode.Store(sync)
}

// Reset clears all buffered spans and the drop counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.spans)
	c.spans = c.spans[:0]
	c.droppedCount.Store(0)
}
