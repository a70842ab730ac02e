package scope

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Ctx is a node in the cancellation tree. It implements context.Context so
// it interoperates with any stdlib or ecosystem function that accepts one,
// while additionally exposing the cancel-token identity a plain
// context.Context discards.
//
// children is a weak back-relation: the parent lists its children for
// push-down cancellation but does not own their lifetimes. A scope's
// close protocol, not the context tree, is what tears tasks down.
type Ctx struct {
	parent *Ctx

	mu       sync.Mutex
	children map[*Ctx]struct{}

	token   atomic.Pointer[Token]
	closing atomic.Bool
	done    chan struct{}
	closeOnce sync.Once
}

var globalCtx = &Ctx{done: make(chan struct{})}

// Global returns the uncancellable root context. All other contexts are,
// transitively, derived from it.
func Global() *Ctx { return globalCtx }

// Derive atomically creates a new child of parent and registers it in
// parent's children set. If parent is already cancelled (soft or hard),
// the child is born in that same state; it never observes a window where
// it appears live after its parent has already been marked.
func Derive(parent *Ctx) *Ctx {
	if parent == nil {
		parent = globalCtx
	}
	c := &Ctx{parent: parent, done: make(chan struct{})}

	parent.mu.Lock()
	if parent.isTerminal() {
		// parent already cancelled/closing: inherit immediately, no need
		// to register in children since propagate will never reach it.
		if tok := parent.token.Load(); tok != nil {
			c.token.Store(tok)
		}
		if parent.closing.Load() {
			c.closing.Store(true)
		}
		close(c.done)
		parent.mu.Unlock()
		return c
	}
	if parent.children == nil {
		parent.children = make(map[*Ctx]struct{})
	}
	parent.children[c] = struct{}{}
	parent.mu.Unlock()
	return c
}

func (c *Ctx) isTerminal() bool {
	return c.token.Load() != nil || c.closing.Load()
}

// Cancel mints a fresh token (unless already cancelled, in which case the
// existing token is returned unchanged; cancellation is idempotent) and
// pushes it down to every live descendant not already in a terminal state,
// under a single critical section per node. On the Global root it is a
// no-op returning the zero Token, since the root is never cancelled.
func (c *Ctx) Cancel() Token {
	if c == globalCtx {
		return Token{}
	}
	c.mu.Lock()
	if existing := c.token.Load(); existing != nil {
		tok := *existing
		c.mu.Unlock()
		return tok
	}
	if c.closing.Load() {
		// already hard-closing: treat as cancelled with a fresh token for
		// callers that only asked for a soft cancel, but do not re-walk
		// descendants (the close protocol already owns that).
		tok := newToken()
		c.token.Store(&tok)
		c.mu.Unlock()
		return tok
	}
	tok := newToken()
	c.token.Store(&tok)
	close(c.done)
	kids := c.children
	c.children = nil
	c.mu.Unlock()

	for kid := range kids {
		kid.propagate(tok)
	}
	return tok
}

func (c *Ctx) propagate(tok Token) {
	c.mu.Lock()
	if c.isTerminal() {
		c.mu.Unlock()
		return
	}
	c.token.Store(&tok)
	close(c.done)
	kids := c.children
	c.children = nil
	c.mu.Unlock()

	for kid := range kids {
		kid.propagate(tok)
	}
}

// closeKill marks c (and its live descendants) with the hard-close
// sentinel state. Unlike Cancel it does not mint a user-visible Token;
// Err() reports ErrScopeClosing for a node in this state, distinguishing
// a scope's hard kill from an ordinary soft cancellation.
func (c *Ctx) closeKill() {
	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		return
	}
	c.closing.Store(true)
	alreadyDone := c.token.Load() != nil
	kids := c.children
	c.children = nil
	c.mu.Unlock()

	if !alreadyDone {
		c.closeOnce.Do(func() { close(c.done) })
	}
	for kid := range kids {
		kid.propagateClose()
	}
}

func (c *Ctx) propagateClose() {
	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		return
	}
	c.closing.Store(true)
	alreadyDone := c.token.Load() != nil
	kids := c.children
	c.children = nil
	c.mu.Unlock()

	if !alreadyDone {
		c.closeOnce.Do(func() { close(c.done) })
	}
	for kid := range kids {
		kid.propagateClose()
	}
}

// remove deregisters c from its parent's children set. Called exactly
// once, by the scope that owns c, when that scope closes.
func (c *Ctx) remove() {
	if c.parent == nil {
		return
	}
	p := c.parent
	p.mu.Lock()
	delete(p.children, c)
	p.mu.Unlock()
}

// Cancelled performs a non-blocking read of this node's own cancel
// state: an O(1) check, since push-down cancellation already guarantees
// the token was written here directly.
func (c *Ctx) Cancelled() (Token, bool) {
	if tok := c.token.Load(); tok != nil {
		return *tok, true
	}
	return Token{}, false
}

// Done implements context.Context.
func (c *Ctx) Done() <-chan struct{} { return c.done }

// Err implements context.Context. A hard-closing node reports
// ErrScopeClosing; otherwise a cancelled node reports its CancelTokenError.
func (c *Ctx) Err() error {
	if c.closing.Load() {
		return ErrScopeClosing
	}
	if tok := c.token.Load(); tok != nil {
		return &CancelTokenError{Token: *tok}
	}
	return nil
}

// Deadline implements context.Context. Ctx carries no deadline of its own
// and reports none, even for a WithTimeout child: timeouts are enforced by
// WaitFor/Sleep/Race, or by WithTimeout's timer calling Cancel, rather than
// by a deadline recorded on the node.
func (c *Ctx) Deadline() (time.Time, bool) { return time.Time{}, false }

// Value implements context.Context. Ctx carries no values of its own.
func (c *Ctx) Value(key any) any { return nil }

var _ context.Context = (*Ctx)(nil)
