// Package semaphore implements the proxy's transform work-admission gate
// (spec §4.H): a fixed pool of permits shared between two priority tiers, so
// that a large number of low-priority background recompressions can never
// starve the handful of high-priority transforms blocking an in-flight
// response. Grounded on original_source/src/highway_semaphore.rs, ported
// from its Mutex+VecDeque+oneshot design onto sync.Mutex and buffered
// channels.
package semaphore

import (
	"context"
	"fmt"
	"sync"
)

// Semaphore is a two-tier priority semaphore: Acquire(ctx, true) only blocks
// behind other high-priority waiters, while Acquire(ctx, false) also yields
// to any high-priority waiter already queued.
type Semaphore struct {
	mu        sync.Mutex
	available int
	highQueue []chan struct{}
	lowQueue  []chan struct{}
}

// New builds a Semaphore with permits available slots.
func New(permits int) *Semaphore {
	if permits < 0 {
		permits = 0
	}
	return &Semaphore{available: permits}
}

// Permit represents one held slot. Release must be called exactly once,
// typically via defer immediately after a successful Acquire.
type Permit struct {
	sem      *Semaphore
	released bool
}

// Acquire blocks until a permit is available or ctx is done. High-priority
// callers take a free permit immediately; low-priority callers do too, but
// only when no high-priority waiter is already queued ahead of them.
func (s *Semaphore) Acquire(ctx context.Context, highPriority bool) (*Permit, error) {
	s.mu.Lock()
	if s.available > 0 && (highPriority || len(s.highQueue) == 0) {
		s.available--
		s.mu.Unlock()
		return &Permit{sem: s}, nil
	}

	wait := make(chan struct{})
	if highPriority {
		s.highQueue = append(s.highQueue, wait)
	} else {
		s.lowQueue = append(s.lowQueue, wait)
	}
	s.mu.Unlock()

	select {
	case <-wait:
		return &Permit{sem: s}, nil
	case <-ctx.Done():
		return nil, s.cancelWait(wait, highPriority, ctx.Err())
	}
}

// cancelWait handles the race between a waiter's context expiring and a
// concurrent release already having granted it a permit. If the waiter is
// still queued, it's removed with no side effect. If it has already been
// popped (its channel closed) the erroneously-granted permit is handed back
// to the next waiter, mirroring the Rust original's rx.await Err-path logic.
func (s *Semaphore) cancelWait(wait chan struct{}, highPriority bool, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := &s.lowQueue
	if highPriority {
		queue = &s.highQueue
	}
	for i, ch := range *queue {
		if ch == wait {
			*queue = append((*queue)[:i], (*queue)[i+1:]...)
			return fmt.Errorf("semaphore: acquire canceled: %w", cause)
		}
	}

	select {
	case <-wait:
		// Already granted: give the permit back to the next waiter instead
		// of leaking it, since this caller is no longer around to use it.
		s.available++
		s.notifyNextLocked()
	default:
	}
	return fmt.Errorf("semaphore: acquire canceled: %w", cause)
}

// Release returns the permit to the pool, waking the next queued waiter (if
// any). Calling Release more than once is a no-op.
func (p *Permit) Release() {
	if p.released {
		return
	}
	p.released = true
	p.sem.mu.Lock()
	p.sem.available++
	p.sem.notifyNextLocked()
	p.sem.mu.Unlock()
}

// notifyNextLocked hands the just-freed slot to the oldest high-priority
// waiter, falling back to the oldest low-priority waiter. Must be called
// with the semaphore locked.
func (s *Semaphore) notifyNextLocked() {
	if len(s.highQueue) > 0 {
		next := s.highQueue[0]
		s.highQueue = s.highQueue[1:]
		s.available--
		close(next)
		return
	}
	if len(s.lowQueue) > 0 {
		next := s.lowQueue[0]
		s.lowQueue = s.lowQueue[1:]
		s.available--
		close(next)
		return
	}
}

// Available reports the current free-permit count, for metrics/diagnostics.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}
