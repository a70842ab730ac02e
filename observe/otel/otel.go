package otel

import (
	"time"

	"github.com/kvxio/conc/scope"
)

// Nop is a no-op implementation of the scope.Observer interface.
// It serves as a placeholder for an OpenTelemetry-backed observer without
// adding a hard dependency on the OpenTelemetry SDK to the core module.
type Nop struct{}

// NewNop returns a no-op observer.
func NewNop() *Nop { return &Nop{} }

// ScopeCreated is a no-op.
func (*Nop) ScopeCreated(*scope.Ctx) {}

// ScopeCancelled is a no-op.
func (*Nop) ScopeCancelled(*scope.Ctx, error) {}

// ScopeClosed is a no-op.
func (*Nop) ScopeClosed(*scope.Ctx, error) {}

// ScopeJoined is a no-op.
func (*Nop) ScopeJoined(*scope.Ctx, time.Duration) {}

// TaskStarted is a no-op.
func (*Nop) TaskStarted(*scope.Ctx) {}

// TaskFinished is a no-op.
func (*Nop) TaskFinished(*scope.Ctx, time.Duration, error, bool) {}

var _ scope.Observer = (*Nop)(nil)
