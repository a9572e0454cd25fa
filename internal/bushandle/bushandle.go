// Package bushandle holds the event bus of the active playback session.
//
// The streamer worker owns its pipeline and bus for the whole session. Other
// goroutines see the bus only through a Handle, which transfers ownership
// explicitly:
//
//	Set   worker registers the bus of a freshly built pipeline
//	Lock  a sender borrows the bus to post a message, then Unlocks
//	Take  worker removes the bus before releasing the pipeline
//
// After Take returns, no sender can still be posting to the old bus: posting
// happens under the lock, and Take acquires the same lock.
//
// Every operation is bounded by the handle's lock timeout and reports
// contention as a resource error instead of blocking.
package bushandle

import (
	"errors"
	"time"

	"github.com/e7canasta/orion-player/internal/engine"
	"github.com/e7canasta/orion-player/internal/fault"
	"github.com/e7canasta/orion-player/internal/timedmutex"
)

var (
	// ErrAlreadySet is returned by Set when a bus is already registered.
	ErrAlreadySet = errors.New("bushandle: bus already set")
	// ErrEmpty is returned when no bus is registered (no active session).
	ErrEmpty = errors.New("bushandle: no bus registered")
	// ErrNilBus is returned by Set for a nil bus.
	ErrNilBus = errors.New("bushandle: nil bus")
)

// Handle is a synchronized slot holding at most one bus.
type Handle struct {
	mu    *timedmutex.Mutex
	bus   engine.EventBus
	ready chan struct{} // closed while bus != nil
}

// New creates an empty handle whose operations wait at most lockTimeout.
func New(lockTimeout time.Duration) *Handle {
	return &Handle{
		mu:    timedmutex.New("bushandle", lockTimeout),
		ready: make(chan struct{}),
	}
}

// Set registers bus. It fails if a bus is already registered.
func (h *Handle) Set(bus engine.EventBus) error {
	if bus == nil {
		return fault.Resource("bushandle.set", ErrNilBus)
	}
	if err := h.mu.Lock(); err != nil {
		return err
	}
	defer h.mu.Unlock()

	if h.bus != nil {
		return fault.Resource("bushandle.set", ErrAlreadySet)
	}
	h.bus = bus
	close(h.ready)
	return nil
}

// Lock borrows the registered bus. The caller must Unlock the guard.
// If no bus is registered the lock is released and ErrEmpty is returned.
func (h *Handle) Lock() (*Guard, error) {
	if err := h.mu.Lock(); err != nil {
		return nil, err
	}
	if h.bus == nil {
		h.mu.Unlock()
		return nil, fault.Resource("bushandle.lock", ErrEmpty)
	}
	return &Guard{h: h, bus: h.bus}, nil
}

// Take removes and returns the registered bus.
// Taking from an empty handle returns ErrEmpty.
func (h *Handle) Take() (engine.EventBus, error) {
	if err := h.mu.Lock(); err != nil {
		return nil, err
	}
	defer h.mu.Unlock()

	if h.bus == nil {
		return nil, fault.Resource("bushandle.take", ErrEmpty)
	}
	bus := h.bus
	h.bus = nil
	h.ready = make(chan struct{})
	return bus, nil
}

// Ready returns a channel that is closed while a bus is registered.
// The channel reflects the state at call time: after a Take, callers must
// ask again.
func (h *Handle) Ready() (<-chan struct{}, error) {
	if err := h.mu.Lock(); err != nil {
		return nil, err
	}
	defer h.mu.Unlock()
	return h.ready, nil
}

// IsSet reports whether a bus is registered.
func (h *Handle) IsSet() (bool, error) {
	if err := h.mu.Lock(); err != nil {
		return false, err
	}
	defer h.mu.Unlock()
	return h.bus != nil, nil
}

// Guard is a borrowed bus. The handle stays locked until Unlock.
type Guard struct {
	h   *Handle
	bus engine.EventBus
}

// Bus returns the borrowed bus. It must not be used after Unlock.
func (g *Guard) Bus() engine.EventBus { return g.bus }

// Unlock returns the bus to the handle. Calling it twice is a no-op.
func (g *Guard) Unlock() {
	if g.h == nil {
		return
	}
	g.h.mu.Unlock()
	g.h = nil
	g.bus = nil
}
