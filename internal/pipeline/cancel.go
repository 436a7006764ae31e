// Package pipeline implements the proxy's per-request interception
// controller (spec §4.H): request/response header normalization, the
// fast-304/skip-aux-resources short-circuits, the patchability and
// rechunking decisions, bounded buffering with streaming overflow
// pass-through, and priority-semaphore-gated dispatch into the HTML/image
// transform stages, plus the small concurrency primitives it is built
// from: a priority admission gate (internal/pipeline/semaphore) and the
// cancellation token below. Grounded throughout on
// original_source/src/proxy/mod.rs's handler and its request_ext.rs/
// response_ext.rs/parts_ext.rs/bytes_ext.rs extension-trait helpers.
package pipeline

import (
	"context"
	"sync"
	"time"
)

// CancelToken is a shareable, idempotent cancellation signal that also
// implements context.Context, so it can be handed directly to anything
// that takes one — in particular internal/pipeline/semaphore.Semaphore's
// Acquire. It is grounded on original_source/src/cancelation_token.rs's
// AtomicBool-backed token; Go has no Drop, so CancelGuard.Release is the
// explicit `defer`-driven substitute for the Rust guard's destructor, and
// the flag becomes a close-once channel so a blocked Acquire's select on
// Done() actually wakes up instead of needing to be polled.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns a fresh, not-yet-cancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel marks the token cancelled. Safe to call more than once or from
// multiple goroutines.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done implements context.Context: the returned channel closes once Cancel
// has been called.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}

// Err implements context.Context.
func (t *CancelToken) Err() error {
	if t.Cancelled() {
		return context.Canceled
	}
	return nil
}

// Deadline implements context.Context. A CancelToken never expires on its
// own — it is only ever cancelled explicitly, via Cancel/Release.
func (t *CancelToken) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

// Value implements context.Context. A CancelToken carries no values.
func (t *CancelToken) Value(key interface{}) interface{} {
	return nil
}

var _ context.Context = (*CancelToken)(nil)

// CancelGuard cancels its token exactly once when Release is called,
// standing in for the Rust original's Drop-triggered cancellation.
type CancelGuard struct {
	token    *CancelToken
	released bool
}

// NewGuard pairs a guard with t. Call Release (typically via defer) at the
// point the work t guards against is known to be finished, successfully or
// not, so stale background work tied to the same token stops promptly.
func NewGuard(t *CancelToken) *CancelGuard {
	return &CancelGuard{token: t}
}

// Release cancels the guard's token. Calling Release more than once is a
// no-op.
func (g *CancelGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.token.Cancel()
}
