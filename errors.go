package haystack

import (
	"errors"
	"fmt"
)

// ErrSpanFinished is matched by every lifecycle violation.
var ErrSpanFinished = errors.New("haystack: span already finished")

// LifecycleError reports a mutating call made on a finished span.
// It is both returned to the caller and recorded on the span.
type LifecycleError struct {
	Op     string
	Detail string
	SpanID string
}

func (e *LifecycleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("haystack: %s on finished span %s", e.Op, e.SpanID)
	}
	return fmt.Sprintf("haystack: %s (%s) on finished span %s", e.Op, e.Detail, e.SpanID)
}

// Is makes errors.Is(err, ErrSpanFinished) hold for every LifecycleError.
func (e *LifecycleError) Is(target error) bool {
	return target == ErrSpanFinished
}
