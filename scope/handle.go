package scope

import (
	"context"
	"time"
)

type spawnKind int

const (
	kindFork spawnKind = iota
	kindForkTry
	kindAsync
)

// Handle is the awaitable result of a spawned task. Handles do not own
// their task's lifetime; the owning Scope does, so a Handle may be
// discarded without leaking: the scope's close protocol still forces the
// task to termination.
type Handle[T any] struct {
	id    uint64
	scope *Scope
	kind  spawnKind

	done   chan struct{}
	result Result[T]
}

// Result is a task's recorded outcome: either a value or an error, never
// both.
type Result[T any] struct {
	Value T
	Err   error
}

func newHandle[T any](id uint64, s *Scope, kind spawnKind) *Handle[T] {
	return &Handle[T]{id: id, scope: s, kind: kind, done: make(chan struct{})}
}

// ID returns the spawning scope's identity for this task, used to
// identify it in a ThreadFailedError.
func (h *Handle[T]) ID() uint64 { return h.id }

func (h *Handle[T]) fill(r Result[T]) {
	h.result = r
	close(h.done)
}

// Await blocks until the handle's slot is filled, returning its value. If
// the slot records a failure it is re-raised wrapped as a
// ThreadFailedError for Async tasks, or returned unwrapped for
// ForkTry tasks (whose captured failures are ordinary return values, not
// propagated exceptions).
//
// A Fork task that fails never fills its slot; Await instead unblocks
// once the owning scope begins its close protocol, returning
// ErrScopeClosing.
func (h *Handle[T]) Await() (T, error) {
	return h.AwaitContext(context.Background())
}

// AwaitContext is Await with an additional cancellation source.
func (h *Handle[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.interpret()
	default:
	}
	select {
	case <-h.done:
		return h.interpret()
	case <-h.scope.closingSig:
		var zero T
		return zero, ErrScopeClosing
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitFor races Await against duration d. It returns ok=false on timeout
// without affecting the underlying task, which keeps running: a timeout
// never forcibly interrupts a task.
func (h *Handle[T]) AwaitFor(d time.Duration) (value T, err error, ok bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.done:
		v, e := h.interpret()
		return v, e, true
	default:
	}
	select {
	case <-h.done:
		v, e := h.interpret()
		return v, e, true
	case <-h.scope.closingSig:
		var zero T
		return zero, ErrScopeClosing, true
	case <-timer.C:
		var zero T
		return zero, nil, false
	}
}

func (h *Handle[T]) interpret() (T, error) {
	r := h.result
	if r.Err == nil {
		return r.Value, nil
	}
	switch h.kind {
	case kindAsync:
		return r.Value, &ThreadFailedError{ID: h.id, Inner: r.Err}
	default: // kindForkTry (captured, in-category failure), returned raw
		return r.Value, r.Err
	}
}
