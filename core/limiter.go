package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrModelCallLimit is returned once a run exceeds its model call budget.
var ErrModelCallLimit = errors.New("model call limit exceeded")

// ModelLimiter enforces a maximum number of model calls per run.
type ModelLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewModelLimiter creates a limiter. max == 0 allows unlimited calls.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Increment counts one call and fails once the budget is exhausted.
func (ml *ModelLimiter) Increment() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.count++
	if ml.max > 0 && ml.count > ml.max {
		return fmt.Errorf("%w: %d", ErrModelCallLimit, ml.max)
	}

	return nil
}

// Count returns the number of calls made so far.
func (ml *ModelLimiter) Count() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	return ml.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max == 0 {
		return -1
	}

	return ml.max - ml.count
}
