package scope

import "time"

// Sleep blocks for d, or until ctx is cancelled, whichever comes first.
// On cancellation it returns ctx.Err(), a *CancelTokenError or
// ErrScopeClosing depending on how ctx was cancelled.
func Sleep(ctx *Ctx, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithTimeout derives a child of parent that cancels itself after d,
// mirroring context.WithTimeout's ergonomics for callers that want a
// relative deadline baked into the context tree rather than layered on
// with Race/AwaitFor. The returned cancel func stops the timer and
// cancels the child immediately; like context.CancelFunc, calling it is
// required to release the timer promptly even when d hasn't elapsed.
func WithTimeout(parent *Ctx, d time.Duration) (*Ctx, func()) {
	child := Derive(parent)
	timer := time.AfterFunc(d, func() { child.Cancel() })
	return child, func() {
		timer.Stop()
		child.Cancel()
	}
}

// Race runs action and races it against a deadline of d, returning
// whichever fires first. A losing action is never interrupted: it keeps
// running in its own goroutine, so a caller whose action can leak
// (e.g. in tests) should make it respect ctx or another cancellation
// signal of its own.
func Race[T any](ctx *Ctx, d time.Duration, action func(ctx *Ctx) (T, error)) (value T, err error, timedOut bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	resCh := make(chan Result[T], 1)
	go func() {
		v, e := action(ctx)
		resCh <- Result[T]{Value: v, Err: e}
	}()

	select {
	case r := <-resCh:
		return r.Value, r.Err, false
	case <-timer.C:
		var zero T
		return zero, nil, true
	}
}
