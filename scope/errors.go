package scope

import (
	"errors"
	"fmt"
)

// ErrScopeClosed is returned synchronously by Fork/Async/ForkTry when the
// scope has already closed; no new task may begin once closed.
var ErrScopeClosed = errors.New("scope: closed")

// ErrScopeClosing is the hard-close sentinel. A task observes it through
// its Ctx's Err() once the owning scope has begun closing; it is swallowed
// by the propagation path when expected (the scope that raised it is
// already closed) and surfaces to a blocked Await otherwise.
var ErrScopeClosing = errors.New("scope: closing")

// CancelTokenError is the error form of a soft cancellation, raised by
// Ctx.Err() (and thus by Sleep and any cooperative task) once a context
// has been cancelled. The scope machinery suppresses propagation of a
// CancelTokenError only when its Token matches the scope's own context's
// current cancel token; a token smuggled in from another subtree is not
// absorbed.
type CancelTokenError struct {
	Token Token
}

func (e *CancelTokenError) Error() string {
	return fmt.Sprintf("scope: cancelled (%s)", e.Token)
}

// ThreadFailedError is what a scope's owner observes when a Fork (or an
// out-of-category ForkTry) child fails. It identifies the failing child
// and carries its original error.
type ThreadFailedError struct {
	ID    uint64
	Inner error
}

func (e *ThreadFailedError) Error() string {
	return fmt.Sprintf("scope: task %d failed: %v", e.ID, e.Inner)
}

func (e *ThreadFailedError) Unwrap() error {
	return e.Inner
}

// PanicError wraps a recovered panic value as an error so it can flow
// through the same propagation policy as a returned error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("scope: panic: %v", e.Value)
}
