// Package otel provides an OpenTelemetry-shaped observer plugin for the
// scope library. Its only observer, Nop, implements every scope.Observer
// hook as a no-op; it emits no spans or span events.
package otel
