// Package pipe delivers playback commands to the running streamer worker.
//
// Commands are posted as application messages on the same engine bus the
// worker polls for pipeline events, so a command is observed in one total
// order with the engine's own events.
package pipe

import (
	"errors"
	"fmt"

	"github.com/e7canasta/orion-player/internal/bushandle"
	"github.com/e7canasta/orion-player/internal/command"
	"github.com/e7canasta/orion-player/internal/fault"
)

// ErrNoSession is returned when no pipeline bus is registered.
// It also matches fault.ErrResource.
var ErrNoSession = errors.New("pipe: no active session")

// CommandSink accepts commands for the active session.
type CommandSink interface {
	Send(cmd command.Command) error
}

// Pipe posts commands on the bus registered in a bushandle.Handle.
type Pipe struct {
	handle *bushandle.Handle
}

var _ CommandSink = (*Pipe)(nil)

// New creates a pipe bound to handle.
func New(handle *bushandle.Handle) *Pipe {
	return &Pipe{handle: handle}
}

// Send encodes cmd and posts it on the active bus.
func (p *Pipe) Send(cmd command.Command) error {
	s, err := command.Encode(cmd)
	if err != nil {
		return err
	}

	guard, err := p.handle.Lock()
	if err != nil {
		if errors.Is(err, bushandle.ErrEmpty) {
			return fault.Resource("pipe.send", fmt.Errorf("%w: %s", ErrNoSession, cmd))
		}
		return err
	}
	defer guard.Unlock()

	if err := guard.Bus().Post(s); err != nil {
		return fault.Engine("pipe.send", fmt.Errorf("post %s: %w", cmd, err))
	}
	return nil
}
