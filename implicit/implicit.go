// Package implicit approximates the ambient/implicit façade described
// alongside the explicit scope package: callers that do not want to
// thread a *scope.Ctx through every call can instead read and write a
// single package-level root. Go has no goroutine-local storage, so this
// is a process-root approximation rather than true per-goroutine ambient
// binding; see DESIGN.md for the tradeoff this records.
package implicit

import (
	"sync/atomic"
	"time"

	"github.com/kvxio/conc/scope"
)

var root atomic.Pointer[scope.Ctx]

func init() {
	g := scope.Global()
	root.Store(g)
}

// WithGlobalContext replaces the ambient root context used by every
// package-level helper below. It is meant to be called once, early
// (typically from main), before any goroutine starts using the implicit
// helpers concurrently.
func WithGlobalContext(ctx *scope.Ctx) {
	root.Store(ctx)
}

// Current returns the ambient root context.
func Current() *scope.Ctx {
	return root.Load()
}

// Cancel issues a soft cancellation against the ambient root. While the
// ambient root is still scope.Global() it is a no-op returning the zero
// Token, since the global root is never cancelled.
func Cancel() scope.Token {
	return Current().Cancel()
}

// Run opens a scope against the ambient root, runs body, and closes the
// scope before returning; the implicit-façade equivalent of scope.Scoped.
func Run[T any](body func(*scope.Scope) (T, error), opts ...scope.Option) (T, error) {
	return scope.Scoped(Current(), body, opts...)
}

// Fork spawns a task into s whose failure propagates to s's owner.
func Fork[T any](s *scope.Scope, fn func(ctx *scope.Ctx) (T, error)) (*scope.Handle[T], error) {
	return scope.Fork(s, fn)
}

// ForkVoid is Fork for tasks with no result value.
func ForkVoid(s *scope.Scope, fn func(ctx *scope.Ctx) error) (*scope.Handle[struct{}], error) {
	return scope.ForkVoid(s, fn)
}

// Async spawns a task whose outcome is always delivered through its handle.
func Async[T any](s *scope.Scope, fn func(ctx *scope.Ctx) (T, error)) (*scope.Handle[T], error) {
	return scope.Async(s, fn)
}

// Sleep blocks for d against the ambient root, or until it is cancelled.
func Sleep(d time.Duration) error {
	return scope.Sleep(Current(), d)
}
