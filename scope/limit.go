package scope

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds concurrent tasks within a scope.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

// weightedLimiter adapts golang.org/x/sync/semaphore.Weighted (unit
// weight per task) to the Limiter interface.
type weightedLimiter struct {
	sem *semaphore.Weighted
}

func newLimiter(n int) Limiter {
	if n <= 0 {
		return nil
	}
	return &weightedLimiter{sem: semaphore.NewWeighted(int64(n))}
}

func (l *weightedLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *weightedLimiter) Release() {
	l.sem.Release(1)
}
