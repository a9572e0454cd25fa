// Package notify carries playback telemetry out of the streamer loop.
//
// Notification is fire-and-forget: the loop logs a failed Notify and keeps
// playing. Implementations must not block the caller for long, since Notify
// runs on the streamer goroutine between bus polls.
package notify

import (
	"errors"
	"time"
)

// Kind identifies a telemetry event.
type Kind int

const (
	KindSessionStarted Kind = iota
	KindPosition
	KindPaused
	KindResumed
	KindSessionEnded
	KindError
)

// String returns the event name used in logs and MQTT topics
func (k Kind) String() string {
	switch k {
	case KindSessionStarted:
		return "session-started"
	case KindPosition:
		return "position"
	case KindPaused:
		return "paused"
	case KindResumed:
		return "resumed"
	case KindSessionEnded:
		return "session-ended"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one telemetry record of a playback session.
type Event struct {
	Kind      Kind
	SessionID string
	URI       string
	// Position and Duration are in nanoseconds. Duration is negative while
	// unknown.
	Position int64
	Duration int64
	// Reason is set for KindSessionEnded (stop, eos, error, next, shutdown)
	Reason string
	// Err is set for KindError
	Err error
	At  time.Time
}

// Notifier receives telemetry events.
type Notifier interface {
	Notify(ev Event) error
}

// Func adapts a function to Notifier.
type Func func(ev Event) error

func (f Func) Notify(ev Event) error { return f(ev) }

// Discard drops every event.
var Discard Notifier = Func(func(Event) error { return nil })

// Multi forwards every event to each notifier in order.
// A failing notifier does not stop delivery to the rest.
type Multi []Notifier

func (m Multi) Notify(ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
