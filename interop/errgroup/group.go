// Package errgroup provides an adapter that mimics golang.org/x/sync/errgroup
// semantics using the scope library. It enables incremental migration
// without pulling errgroup into the core library.
package errgroup

import (
	"sync"

	"github.com/kvxio/conc/scope"
)

// Group is an errgroup-like wrapper over a scope.Scope: functions passed
// to Go are run via Async and tracked by hand, since real errgroup
// reports the first error regardless of its cause, including one that
// merely echoes a cancellation the group itself triggered, and Fork's
// built-in "don't propagate a task honoring this scope's own
// cancellation" policy (see scope.CancelTokenError's doc comment) would otherwise
// swallow exactly that case. The group's context is cancelled as soon as
// one function returns a non-nil error, matching errgroup.WithContext.
//
// A Group's Scope is opened via scope.Open rather than scope.Scoped: an
// errgroup has no lexical close point of its own (Wait is the only join
// point an errgroup user ever calls), so this is the one place the scope
// library's non-lexical escape hatch is exercised.
type Group struct {
	s   *scope.Scope
	ctx *scope.Ctx

	mu sync.Mutex
	hs []*scope.Handle[struct{}]
}

// WithContext creates a Group bound to ctx.
func WithContext(ctx *scope.Ctx) (*Group, *scope.Ctx) {
	s := scope.Open(ctx)
	return &Group{s: s, ctx: s.Context()}, s.Context()
}

// Go starts a function. It should return a non-nil error to signal failure.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	h, err := scope.Async(g.s, func(*scope.Ctx) (struct{}, error) {
		err := f()
		if err != nil {
			g.s.CancelScope()
		}
		return struct{}{}, err
	})
	if err != nil {
		return
	}
	g.mu.Lock()
	g.hs = append(g.hs, h)
	g.mu.Unlock()
}

// Wait blocks until all functions have returned, then closes the group's
// scope and returns the first non-nil error, if any, in the order the
// corresponding Go calls were made.
func (g *Group) Wait() error {
	g.mu.Lock()
	hs := g.hs
	g.mu.Unlock()

	var firstErr error
	for _, h := range hs {
		if _, err := h.Await(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = g.s.Close()
	return firstErr
}
