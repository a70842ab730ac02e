package scope

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// Scenario 1: scoped(global, s → { fork_(s, () → throw A); wait(s) })
// terminates by raising thread-failed{_, A}.
func TestScenarioForkFailurePropagatesAsThreadFailed(t *testing.T) {
	t.Parallel()
	_, err := Scoped(Global(), func(s *Scope) (struct{}, error) {
		_, _ = ForkVoid(s, func(*Ctx) error { return errBoom })
		return struct{}{}, s.Wait()
	})
	var tfe *ThreadFailedError
	if !errors.As(err, &tfe) {
		t.Fatalf("expected ThreadFailedError, got %v (%T)", err, err)
	}
	if !errors.Is(tfe, errBoom) {
		t.Fatalf("expected wrapped errBoom, got %v", tfe.Inner)
	}
}

// Scenario 2: scoped(global, s → { t = fork(s, () → 7); await(t) }) returns 7.
func TestScenarioForkSuccessReturnsValue(t *testing.T) {
	t.Parallel()
	got, err := Scoped(Global(), func(s *Scope) (int, error) {
		h, ferr := Fork(s, func(*Ctx) (int, error) { return 7, nil })
		if ferr != nil {
			return 0, ferr
		}
		return h.Await()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

// Scenario 3: scoped(global, s → { fork_(s, sleep 1h); cancel_scope(s);
// wait_for(s, 1ms) }) returns within ~1ms with no exception.
func TestScenarioCancelThenWaitForReturnsQuietly(t *testing.T) {
	t.Parallel()
	start := time.Now()
	_, err := Scoped(Global(), func(s *Scope) (struct{}, error) {
		_, _ = ForkVoid(s, func(ctx *Ctx) error {
			return Sleep(ctx, time.Hour)
		})
		s.CancelScope()
		return struct{}{}, s.WaitFor(time.Millisecond)
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("expected prompt return, took %v", elapsed)
	}
}

// Scenario 4: scoped(global, s → { t = async(s, () → throw A); await(t) })
// re-raises thread-failed{_, A} to the awaiter only.
func TestScenarioAsyncFailureWrappedForAwaiterOnly(t *testing.T) {
	t.Parallel()
	_, err := Scoped(Global(), func(s *Scope) (struct{}, error) {
		h, _ := Async(s, func(*Ctx) (struct{}, error) { return struct{}{}, errBoom })
		_, awaitErr := h.Await()
		// The scope itself must not see this as a pending propagated
		// failure: Wait should succeed once the async task is drained.
		if waitErr := s.Wait(); waitErr != nil {
			t.Errorf("async failures must not propagate to the scope: %v", waitErr)
		}
		return struct{}{}, awaitErr
	})
	var tfe *ThreadFailedError
	if !errors.As(err, &tfe) {
		t.Fatalf("expected ThreadFailedError from Await, got %v (%T)", err, err)
	}
}

// Scenario 5: scoped(global, s → { t = fork_try<A>(s, () → throw A);
// await(t) }) returns the captured left(A).
func TestScenarioForkTryCapturesMatchingCategory(t *testing.T) {
	t.Parallel()
	isA := func(err error) bool { return errors.Is(err, errBoom) }
	_, err := Scoped(Global(), func(s *Scope) (struct{}, error) {
		h, _ := ForkTry(s, isA, func(*Ctx) (struct{}, error) { return struct{}{}, errBoom })
		_, awaitErr := h.Await()
		if !errors.Is(awaitErr, errBoom) {
			t.Fatalf("expected raw errBoom from Await, got %v", awaitErr)
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("expected no scope-level error, got %v", err)
	}
}

// Scenario 6: fork_try<A> failing with B != A propagates; scoped re-raises
// thread-failed{_, B}, and the await never completes (it blocks until
// scope close delivers ErrScopeClosing).
func TestScenarioForkTryOutOfCategoryPropagates(t *testing.T) {
	t.Parallel()
	errB := errors.New("B")
	isA := func(err error) bool { return errors.Is(err, errBoom) }
	var h *Handle[struct{}]
	_, err := Scoped(Global(), func(s *Scope) (struct{}, error) {
		var ferr error
		h, ferr = ForkTry(s, isA, func(*Ctx) (struct{}, error) { return struct{}{}, errB })
		if ferr != nil {
			return struct{}{}, ferr
		}
		return struct{}{}, s.Wait()
	})
	var tfe *ThreadFailedError
	if !errors.As(err, &tfe) {
		t.Fatalf("expected ThreadFailedError carrying B, got %v (%T)", err, err)
	}
	if !errors.Is(tfe, errB) {
		t.Fatalf("expected wrapped errB, got %v", tfe.Inner)
	}
	// By the time Scoped has returned, the scope has fully closed, so the
	// handle's Await, which never received a value since the failure was
	// out-of-category and propagated instead, must resolve now.
	if _, awaitErr := h.Await(); !errors.Is(awaitErr, ErrScopeClosing) {
		t.Fatalf("expected ErrScopeClosing once scope closes, got %v", awaitErr)
	}
}

func TestForkAfterCloseReturnsScopeClosed(t *testing.T) {
	t.Parallel()
	s := Open(Global())
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	_, err := Fork(s, func(*Ctx) (int, error) { return 0, nil })
	if !errors.Is(err, ErrScopeClosed) {
		t.Fatalf("expected ErrScopeClosed, got %v", err)
	}
}

func TestPanicConvertedToError(t *testing.T) {
	t.Parallel()
	_, err := Scoped(Global(), func(s *Scope) (struct{}, error) {
		_, _ = ForkVoid(s, func(*Ctx) error { panic("task-panic") })
		return struct{}{}, s.Wait()
	})
	var tfe *ThreadFailedError
	if !errors.As(err, &tfe) {
		t.Fatalf("expected ThreadFailedError, got %v", err)
	}
	var pe *PanicError
	if !errors.As(tfe.Inner, &pe) {
		t.Fatalf("expected PanicError inner, got %v", tfe.Inner)
	}
}

func TestBodyErrorTakesPrecedenceOverPendingChildFailure(t *testing.T) {
	t.Parallel()
	errBody := errors.New("body failed")
	_, err := Scoped(Global(), func(s *Scope) (struct{}, error) {
		_, _ = ForkVoid(s, func(*Ctx) error { return errBoom })
		_ = s.Wait() // drain the propagated failure internally...
		return struct{}{}, errBody
	})
	if !errors.Is(err, errBody) {
		t.Fatalf("expected body's own error to win, got %v", err)
	}
}
