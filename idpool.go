package haystack

import "sync"

// IDPool hands out ids generated ahead of time by a background goroutine,
// keeping id generation off the span start path.
type IDPool struct {
	generate func() string
	ready    chan string
	done     chan struct{}
	stop     sync.Once
}

// NewIDPool starts a pool that keeps up to capacity ids ready.
func NewIDPool(capacity int, generate func() string) *IDPool {
	if capacity < 1 {
		capacity = 1
	}
	p := &IDPool{
		generate: generate,
		ready:    make(chan string, capacity),
		done:     make(chan struct{}),
	}
	go p.fill()
	return p
}

// Get returns a pre-generated id, or generates one inline when the pool
// is drained or closed.
func (p *IDPool) Get() string {
	select {
	case id := <-p.ready:
		return id
	default:
		return p.generate()
	}
}

func (p *IDPool) fill() {
	for {
		id := p.generate()
		select {
		case p.ready <- id:
		case <-p.done:
			return
		}
	}
}

// Close stops the background generator. Safe to call more than once.
func (p *IDPool) Close() {
	p.stop.Do(func() {
		close(p.done)
	})
}
