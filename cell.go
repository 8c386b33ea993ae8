package haystack

import "sync/atomic"

// onceCell holds a value that can be written exactly once.
// The zero value is an empty cell ready for use.
type onceCell[T any] struct {
	v atomic.Pointer[T]
}

// Set stores v if the cell is empty and reports whether it did.
// A false return means the cell already held a value, which is left as is.
func (c *onceCell[T]) Set(v T) bool {
	return c.v.CompareAndSwap(nil, &v)
}

// Get returns the stored value and whether one has been written.
func (c *onceCell[T]) Get() (T, bool) {
	p := c.v.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// IsSet reports whether the cell has been written.
func (c *onceCell[T]) IsSet() bool {
	return c.v.Load() != nil
}
