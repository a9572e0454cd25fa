// Package engine defines the capability set the player needs from a native
// media-pipeline engine.
//
// The core never decodes or renders media itself. It only:
//
//   - initializes the engine and builds a pipeline for a URI (MediaEngine)
//   - drives the pipeline state and queries position/duration (Pipeline)
//   - posts application messages on, and pops events from, the pipeline's
//     bus (EventBus)
//
// Production code uses the GStreamer implementation in gstengine; tests use
// the scriptable fake in enginetest.
package engine

import "time"

// State is a pipeline state.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// MessageType is a bus message type. Types are bit flags so they can be
// combined into a pop filter.
type MessageType uint32

const (
	MessageStateChanged MessageType = 1 << iota
	MessageError
	MessageEOS
	MessageDurationChanged
	MessageApplication
)

// PlaybackMask is the filter the streamer loop polls with.
const PlaybackMask = MessageStateChanged | MessageError | MessageEOS |
	MessageDurationChanged | MessageApplication

// String returns the message type name
func (t MessageType) String() string {
	switch t {
	case MessageStateChanged:
		return "state-changed"
	case MessageError:
		return "error"
	case MessageEOS:
		return "eos"
	case MessageDurationChanged:
		return "duration-changed"
	case MessageApplication:
		return "application"
	default:
		return "other"
	}
}

// Structure is a named set of string fields, the engine-neutral form of an
// application message payload.
type Structure struct {
	Name   string
	Fields map[string]string
}

// Message is an event popped from a bus.
type Message struct {
	Type MessageType
	// Source names the element that emitted the message
	Source string

	// OldState and NewState are set for MessageStateChanged
	OldState State
	NewState State

	// Err and Debug are set for MessageError
	Err   error
	Debug string

	// Structure is set for MessageApplication
	Structure *Structure
}

// MediaEngine builds pipelines.
type MediaEngine interface {
	// Init prepares the engine. Safe to call more than once.
	Init() error
	// Build creates a pipeline for uri. The pipeline is not started.
	Build(uri string) (Pipeline, error)
}

// Pipeline is one live engine pipeline.
type Pipeline interface {
	// Bus returns the pipeline's event bus.
	Bus() EventBus
	// SetState requests a state transition.
	SetState(state State) error
	// QueryPosition returns the stream position in nanoseconds.
	QueryPosition() (int64, bool)
	// QueryDuration returns the stream duration in nanoseconds.
	QueryDuration() (int64, bool)
	// Release stops the pipeline and frees its resources. Idempotent.
	Release() error
}

// EventBus is a pipeline's event queue. It carries both engine events and
// application-posted messages. Implementations must be safe for concurrent
// Post and TimedPop.
type EventBus interface {
	// Post enqueues an application message built from s.
	Post(s Structure) error
	// TimedPop waits up to timeout for a message matching mask.
	// Returns nil when the timeout elapses.
	TimedPop(timeout time.Duration, mask MessageType) *Message
}
