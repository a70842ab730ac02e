// Package scope provides structured-concurrency primitives for Go.
//
// A Scope owns the tasks spawned into it and guarantees that none of them
// outlives it: Scoped opens a scope, runs a body against it, and does not
// return until every task the body spawned has terminated, whether the
// body returned normally, panicked, or the scope was cancelled from
// outside. Cancellation is soft and propagates down a tree of Ctx nodes.
// A scope's hard close (run when Scoped's body returns, on Close, or when
// a WaitFor timeout expires) closes every remaining task's Done() channel
// with Err() reporting ErrScopeClosing, then waits for those tasks to
// return; a task that never checks its Ctx is not stopped. A failing Fork
// task does not close the scope itself: it records the failure, which
// unblocks Wait and WaitFor.
package scope
