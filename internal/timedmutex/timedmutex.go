// Package timedmutex provides a mutual-exclusion lock whose acquisition is
// bounded by a timeout.
//
// Lock never blocks longer than the configured timeout. On contention past
// the deadline it returns a KindResource error wrapping ErrTimeout instead of
// hanging or panicking. There is no poisoning: a holder that panics without
// unlocking leaves the mutex held and later callers time out.
package timedmutex

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/e7canasta/orion-player/internal/fault"
)

// DefaultTimeout is the acquisition bound used when none is configured.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is wrapped by every lock acquisition that exceeded its bound.
var ErrTimeout = errors.New("timedmutex: lock acquisition timed out")

// Mutex is a time-bounded mutual-exclusion lock.
// The zero value is not usable; call New.
type Mutex struct {
	name    string
	timeout time.Duration
	sem     *semaphore.Weighted
}

// New creates an unlocked mutex. name identifies the mutex in errors.
// A non-positive timeout selects DefaultTimeout.
func New(name string, timeout time.Duration) *Mutex {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Mutex{
		name:    name,
		timeout: timeout,
		sem:     semaphore.NewWeighted(1),
	}
}

// Timeout returns the acquisition bound.
func (m *Mutex) Timeout() time.Duration { return m.timeout }

// Lock acquires the mutex, waiting at most the configured timeout.
func (m *Mutex) Lock() error {
	if m.sem.TryAcquire(1) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.LockContext(ctx)
}

// LockContext acquires the mutex, waiting until ctx is done.
func (m *Mutex) LockContext(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return fault.Resource(m.name+".lock", ErrTimeout)
	}
	return nil
}

// TryLock acquires the mutex only if it is free.
func (m *Mutex) TryLock() bool {
	return m.sem.TryAcquire(1)
}

// Unlock releases the mutex. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	m.sem.Release(1)
}
