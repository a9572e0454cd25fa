package player

import (
	"errors"

	"github.com/e7canasta/orion-player/internal/fault"
	"github.com/e7canasta/orion-player/internal/pipe"
)

// Error kinds. Every error returned by the Coordinator matches at most one
// of them with errors.Is.
var (
	ErrResource = fault.ErrResource
	ErrEngine   = fault.ErrEngine
	ErrProtocol = fault.ErrProtocol
	ErrTimeout  = fault.ErrTimeout
)

var (
	// ErrNoSession is returned when a command cannot reach a worker.
	ErrNoSession = pipe.ErrNoSession
	// ErrEnded is returned by Play after End.
	ErrEnded = errors.New("player: coordinator ended")
	// ErrEmptyURI is returned by Play for an empty uri.
	ErrEmptyURI = errors.New("player: empty uri")
	// ErrShutdownTimeout is wrapped in the ErrTimeout returned by End.
	ErrShutdownTimeout = errors.New("player: worker did not stop in time")

	errWorkerExited = errors.New("player: worker exited")
)
