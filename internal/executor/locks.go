package executor

import (
	"context"
	"sync"
)

// sessionLocks grants exclusive, non-blocking ownership of a session id.
// A second caller during an in-flight call gets an immediate refusal
// rather than queueing behind an opaque lock.
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{held: make(map[string]struct{})}
}

// tryAcquire claims the session, returning a release func, or false when
// another call already holds it.
func (l *sessionLocks) tryAcquire(id string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[id]; busy {
		return nil, false
	}
	l.held[id] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, id)
		l.mu.Unlock()
	}, true
}

// deviceLocks serializes device access at operation granularity. Unlike
// session ownership, callers block until the device frees up or their
// deadline expires; distinct sessions legitimately share one device.
type deviceLocks struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{sems: make(map[string]chan struct{})}
}

// acquire claims the device, blocking until it is free. The returned
// release func must be called exactly once.
func (l *deviceLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.sems[id]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[id] = sem
	}
	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
