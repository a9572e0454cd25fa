// Package fault defines the error taxonomy shared by the player packages.
//
// Every failure surfaced by the core carries one Kind:
//
//   - KindResource: lock timeout, handle already set or unexpectedly empty
//   - KindEngine: native engine call or pipeline state transition failure
//   - KindProtocol: unreadable or unexpected command message
//   - KindTimeout: a bounded wait was exceeded (e.g. worker join on shutdown)
//
// Errors are matched with errors.Is against the kind sentinels (ErrResource,
// ErrEngine, ...) and against whatever sentinel they wrap.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the recovery policy.
type Kind int

const (
	// KindResource indicates a synchronization or ownership failure
	KindResource Kind = iota
	// KindEngine indicates a failure reported by the media engine
	KindEngine
	// KindProtocol indicates a malformed or unexpected command message
	KindProtocol
	// KindTimeout indicates a bounded wait that expired
	KindTimeout
)

// Kind sentinels, matched through (*Error).Is.
var (
	ErrResource = errors.New("resource error")
	ErrEngine   = errors.New("engine error")
	ErrProtocol = errors.New("protocol error")
	ErrTimeout  = errors.New("timeout")
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindResource:
		return "resource"
	case KindEngine:
		return "engine"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindResource:
		return ErrResource
	case KindEngine:
		return ErrEngine
	case KindProtocol:
		return ErrProtocol
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

// Error is a classified failure of a named operation.
type Error struct {
	Kind Kind
	Op   string // e.g. "bushandle.take", "streamer.build"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New wraps err as a classified failure of op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Resource is shorthand for New(KindResource, op, err).
func Resource(op string, err error) error { return New(KindResource, op, err) }

// Engine is shorthand for New(KindEngine, op, err).
func Engine(op string, err error) error { return New(KindEngine, op, err) }

// Protocol is shorthand for New(KindProtocol, op, err).
func Protocol(op string, err error) error { return New(KindProtocol, op, err) }

// Timeout is shorthand for New(KindTimeout, op, err).
func Timeout(op string, err error) error { return New(KindTimeout, op, err) }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
