// Package notifytest provides a recording notifier for tests.
package notifytest

import (
	"fmt"
	"sync"
	"time"

	"github.com/e7canasta/orion-player/internal/notify"
)

// Recorder stores every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
	wake   chan struct{}
}

var _ notify.Notifier = (*Recorder)(nil)

// New creates an empty recorder.
func New() *Recorder {
	return &Recorder{wake: make(chan struct{}, 1)}
}

// Fail makes Notify return err after recording the event.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Notify(ev notify.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	err := r.err
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded event kinds, skipping position ticks.
func (r *Recorder) Kinds() []notify.Kind {
	var out []notify.Kind
	for _, ev := range r.Events() {
		if ev.Kind == notify.KindPosition {
			continue
		}
		out = append(out, ev.Kind)
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind notify.Kind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// WaitFor waits until n events of kind were recorded and returns the n-th.
func (r *Recorder) WaitFor(kind notify.Kind, n int, timeout time.Duration) (notify.Event, error) {
	deadline := time.After(timeout)
	for {
		seen := 0
		for _, ev := range r.Events() {
			if ev.Kind != kind {
				continue
			}
			seen++
			if seen == n {
				return ev, nil
			}
		}

		select {
		case <-r.wake:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			return notify.Event{}, fmt.Errorf("notifytest: %s #%d not seen within %s (got %d)", kind, n, timeout, seen)
		}
	}
}
