package scope

import (
	"errors"
	"time"
)

// Unmask is the capability passed to a ForkWithUnmask/AsyncWithUnmask
// task. In a host with true asynchronous interrupts it would temporarily
// restore interruptibility for the duration of the call; Go goroutines
// are cooperative by construction, so nothing is ever delivered to code
// that isn't itself selecting on a Ctx's Done() channel. "Masked" is
// already the permanent ambient state, so Unmask is a direct
// pass-through, kept only so the with-unmask variants exist for API
// parity with the explicit façade's public surface.
type Unmask func(func())

func directUnmask(f func()) { f() }

// Fork spawns a task owned by s whose failure propagates asynchronously
// to s's owner (the goroutine that called Scoped), via ThreadFailedError.
// A Fork task's handle slot is filled only on success; a failing Fork
// task leaves its handle unresolved until the scope begins closing.
func Fork[T any](s *Scope, fn func(ctx *Ctx) (T, error)) (*Handle[T], error) {
	return spawn[T](s, kindFork, nil, func(ctx *Ctx, _ Unmask) (T, error) {
		return fn(ctx)
	})
}

// ForkVoid is Fork for tasks with no result value.
func ForkVoid(s *Scope, fn func(ctx *Ctx) error) (*Handle[struct{}], error) {
	return Fork(s, func(ctx *Ctx) (struct{}, error) { return struct{}{}, fn(ctx) })
}

// ForkWithUnmask is Fork, additionally passing the task an Unmask
// capability (see Unmask's doc comment).
func ForkWithUnmask[T any](s *Scope, fn func(ctx *Ctx, unmask Unmask) (T, error)) (*Handle[T], error) {
	return spawn[T](s, kindFork, nil, fn)
}

// ForkWithUnmaskVoid is ForkWithUnmask for tasks with no result value.
func ForkWithUnmaskVoid(s *Scope, fn func(ctx *Ctx, unmask Unmask) error) (*Handle[struct{}], error) {
	return ForkWithUnmask(s, func(ctx *Ctx, u Unmask) (struct{}, error) { return struct{}{}, fn(ctx, u) })
}

// ForkTry is Fork, but a synchronous failure matched by recoverable is
// captured into the handle's slot instead of propagated. Await then
// returns it as a plain error rather than a ThreadFailedError. A failure
// recoverable rejects propagates exactly like Fork. A nil recoverable
// captures every failure.
func ForkTry[T any](s *Scope, recoverable func(error) bool, fn func(ctx *Ctx) (T, error)) (*Handle[T], error) {
	if recoverable == nil {
		recoverable = func(error) bool { return true }
	}
	return spawn[T](s, kindForkTry, recoverable, func(ctx *Ctx, _ Unmask) (T, error) {
		return fn(ctx)
	})
}

// Async spawns a task whose outcome, success or failure, is always
// placed in its handle's slot; it never propagates out-of-band. Observers
// must Await it to learn the result.
func Async[T any](s *Scope, fn func(ctx *Ctx) (T, error)) (*Handle[T], error) {
	return spawn[T](s, kindAsync, nil, func(ctx *Ctx, _ Unmask) (T, error) {
		return fn(ctx)
	})
}

// AsyncWithUnmask is Async, additionally passing the task an Unmask capability.
func AsyncWithUnmask[T any](s *Scope, fn func(ctx *Ctx, unmask Unmask) (T, error)) (*Handle[T], error) {
	return spawn[T](s, kindAsync, nil, fn)
}

// spawn authorizes a new task (bumping startingCount under the scope's
// lock, or failing synchronously with ErrScopeClosed if the scope is
// already closed), launches it, then registers it as running before the
// task body executes.
func spawn[T any](s *Scope, kind spawnKind, classify func(error) bool, fn func(ctx *Ctx, unmask Unmask) (T, error)) (*Handle[T], error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrScopeClosed
	}
	s.startingCount++
	id := s.nextChildID
	s.nextChildID++
	s.mu.Unlock()

	h := newHandle[T](id, s, kind)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if s.lim != nil {
			if err := s.lim.Acquire(s.ctx); err != nil {
				s.mu.Lock()
				s.startingCount--
				s.startCond.Broadcast()
				s.mu.Unlock()
				finishSpawn(s, id, kind, classify, h, Result[T]{Err: err})
				return
			}
			defer s.lim.Release()
		}

		s.mu.Lock()
		s.startingCount--
		s.running[id] = struct{}{}
		s.startCond.Broadcast()
		s.mu.Unlock()

		if s.obs != nil {
			s.obs.TaskStarted(s.ctx)
		}
		start := time.Now()
		res, panicked := runTask(s, fn)
		if s.obs != nil {
			s.obs.TaskFinished(s.ctx, time.Since(start), res.Err, panicked)
		}

		s.mu.Lock()
		delete(s.running, id)
		s.startCond.Broadcast()
		s.mu.Unlock()

		finishSpawn(s, id, kind, classify, h, res)
	}()

	return h, nil
}

func runTask[T any](s *Scope, fn func(ctx *Ctx, unmask Unmask) (T, error)) (res Result[T], panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if s.opts.PanicAsError {
				res = Result[T]{Err: &PanicError{Value: r}}
				return
			}
			panic(r)
		}
	}()
	v, err := fn(s.ctx, directUnmask)
	return Result[T]{Value: v, Err: err}, false
}

// finishSpawn applies the exception-propagation policy: a failure is
// either discarded as expected unwind, captured into the handle, or
// propagated to the scope's owner. Async is exempt from the
// cancellation-suppression checks below: its contract is that every
// outcome, however it arose, is always delivered through its handle (see
// Async's doc comment), so it always fills the slot instead.
func finishSpawn[T any](s *Scope, id uint64, kind spawnKind, classify func(error) bool, h *Handle[T], res Result[T]) {
	if res.Err == nil {
		h.fill(res)
		return
	}

	if kind == kindAsync {
		h.fill(res)
		return
	}

	if errors.Is(res.Err, ErrScopeClosing) {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			// Expected unwind: this task's own scope is already closing
			// and it is simply honoring the sentinel. Discard silently;
			// the handle slot is left unfilled.
			return
		}
	}

	if cte, ok := res.Err.(*CancelTokenError); ok {
		if tok, cancelled := s.ctx.Cancelled(); cancelled && tok == cte.Token {
			// The task honored a cancellation that originated from this
			// very scope's context, not a smuggled token from elsewhere.
			// Discard; do not propagate, do not fill the slot.
			return
		}
	}

	if kind == kindForkTry {
		if classify != nil && classify(res.Err) {
			h.fill(res)
			return
		}
	}
	s.propagateFailure(id, res.Err)
}
