package scope

import (
	"sync"
	"time"
)

// Option configures a Scope at construction time.
type Option func(*Options)

// Options holds optional settings for Scope construction.
type Options struct {
	// PanicAsError converts a panic inside the scope body or a spawned
	// task into an error when true; otherwise the panic is re-raised in
	// the goroutine that produced it (fatal for a task goroutine, exactly
	// as an unrecovered panic always is in Go).
	PanicAsError bool
	// Observer receives lifecycle events; if nil, hooks are skipped (near-zero overhead).
	Observer Observer
	// MaxConcurrency bounds concurrent tasks in a scope when > 0.
	MaxConcurrency int
}

func defaultOptions() Options { return Options{PanicAsError: true} }

// WithPanicAsError toggles converting panics into errors.
func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

// WithObserver attaches an observer for metrics/tracing hooks (nil = disabled).
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithMaxConcurrency limits the number of concurrent tasks in a scope (n>0).
func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// Observer receives lifecycle events for metrics/tracing.
type Observer interface {
	ScopeCreated(ctx *Ctx)
	ScopeCancelled(ctx *Ctx, cause error)
	ScopeClosed(ctx *Ctx, cause error)
	ScopeJoined(ctx *Ctx, wait time.Duration)
	TaskStarted(ctx *Ctx)
	TaskFinished(ctx *Ctx, dur time.Duration, err error, panicked bool)
}

// Scope owns the set of tasks spawned into it. It enforces that closed
// implies startingCount == 0, that a task id appears in running iff it
// has started and not yet recorded its result, and that closed only
// ever transitions false to true.
type Scope struct {
	ctx  *Ctx
	opts Options
	obs  Observer
	lim  Limiter

	mu            sync.Mutex
	startCond     *sync.Cond
	closed        bool
	startingCount int
	running       map[uint64]struct{}
	nextChildID   uint64
	wg            sync.WaitGroup

	failMu   sync.Mutex
	failErr  *ThreadFailedError
	failOnce sync.Once
	failSig  chan struct{}

	closingSig chan struct{}
	closeOnce  sync.Once
}

func newScope(parent *Ctx, optFns ...Option) *Scope {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	s := &Scope{
		ctx:        Derive(parent),
		opts:       o,
		obs:        o.Observer,
		running:    make(map[uint64]struct{}),
		failSig:    make(chan struct{}),
		closingSig: make(chan struct{}),
	}
	s.startCond = sync.NewCond(&s.mu)
	if o.MaxConcurrency > 0 {
		s.lim = newLimiter(o.MaxConcurrency)
	}
	if s.obs != nil {
		s.obs.ScopeCreated(s.ctx)
	}
	return s
}

// Context returns the scope's own context, derived from the context
// Scoped was opened against.
func (s *Scope) Context() *Ctx { return s.ctx }

// Open creates a Scope outside of Scoped's lexical open/close block. It
// exists for adapters, like interop/errgroup, that mimic an API which
// is not itself lexically scoped; the caller must call Close exactly
// once. Prefer Scoped for ordinary use: it is the only construct that
// gives the structured-concurrency guarantee of a scope's lifecycle.
func Open(parent *Ctx, optFns ...Option) *Scope {
	return newScope(parent, optFns...)
}

// Close runs the scope's close protocol on a Scope obtained via Open. It
// is idempotent.
func (s *Scope) Close() error {
	return closeScope(s)
}

// Scoped opens a fresh scope against parent, runs body, then closes the
// scope, guaranteeing every task body spawned has terminated before
// Scoped returns, on every exit path: normal return, a panic from body, a
// propagated task failure, or external cancellation of parent.
//
// If body itself fails (returns an error or panics with PanicAsError
// true), that failure takes precedence over any pending propagated task
// failure.
func Scoped[T any](parent *Ctx, body func(*Scope) (T, error), optFns ...Option) (T, error) {
	s := newScope(parent, optFns...)

	var bodyVal T
	var bodyErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if s.opts.PanicAsError {
					bodyErr = &PanicError{Value: r}
					return
				}
				closeScope(s)
				panic(r)
			}
		}()
		bodyVal, bodyErr = body(s)
	}()

	closeErr := closeScope(s)

	var zero T
	if bodyErr != nil {
		return zero, bodyErr
	}
	if pending := s.failure(); pending != nil {
		return zero, pending
	}
	if closeErr != nil {
		return zero, closeErr
	}
	return bodyVal, nil
}

// CancelScope issues a soft cancellation request against the scope's
// context: descendants may observe it and choose to unwind; it does not
// by itself terminate any task.
func (s *Scope) CancelScope() Token {
	tok := s.ctx.Cancel()
	if s.obs != nil {
		s.obs.ScopeCancelled(s.ctx, s.failure())
	}
	return tok
}

// Wait blocks until startingCount == 0 and running is empty, or until a
// propagated task failure is observed, whichever comes first. It does
// not close the scope.
func (s *Scope) Wait() error {
	start := time.Now()
	idle := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-s.failSig:
	}
	if s.obs != nil {
		s.obs.ScopeJoined(s.ctx, time.Since(start))
	}
	return s.failure()
}

// WaitFor: a negative duration degenerates to Wait; a zero duration
// cancels and immediately hard-closes; otherwise it cancels the scope's
// context and waits up to d for children to terminate gracefully before
// hard-closing the rest.
func (s *Scope) WaitFor(d time.Duration) error {
	if d < 0 {
		return s.Wait()
	}
	s.CancelScope()
	if d == 0 {
		return closeScope(s)
	}

	idle := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(idle)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-idle:
		return s.failure()
	case <-s.failSig:
		return s.failure()
	case <-timer.C:
		return closeScope(s)
	}
}

func (s *Scope) failure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.failErr == nil {
		return nil
	}
	return s.failErr
}

func (s *Scope) propagateFailure(id uint64, err error) {
	s.failOnce.Do(func() {
		s.failMu.Lock()
		s.failErr = &ThreadFailedError{ID: id, Inner: err}
		s.failMu.Unlock()
		close(s.failSig)
	})
}

// closeScope runs the scope's close protocol. Bookkeeping transitions
// happen under s.mu as single critical sections so no partial state is
// ever observable.
func closeScope(s *Scope) error {
	s.mu.Lock()
	for s.startingCount > 0 {
		s.startCond.Wait()
	}
	if s.closed {
		s.mu.Unlock()
		return s.failure()
	}
	s.closed = true
	s.mu.Unlock()

	// Deliver the hard-close sentinel to every live descendant at once.
	// The context tree's Done() is a one-shot broadcast, so a single
	// closeKill reaches every descendant without a per-target delivery
	// loop.
	s.closeOnce.Do(func() { close(s.closingSig) })
	s.ctx.closeKill()

	s.mu.Lock()
	for len(s.running) > 0 {
		s.startCond.Wait()
	}
	s.mu.Unlock()

	s.ctx.remove()
	cause := s.failure()
	if s.obs != nil {
		s.obs.ScopeClosed(s.ctx, cause)
	}
	return cause
}
