// Package command defines the playback commands exchanged between the
// coordinator and the streamer worker, and their bus encoding.
//
// Inside the player a command is always a Command value. It is turned into an
// engine.Structure only when posted on the bus, and decoded back right after
// the worker pops it:
//
//	APP_MSG, TITLE=Next, URI=file:///a.mp3
package command

import (
	"errors"
	"fmt"

	"github.com/e7canasta/orion-player/internal/engine"
	"github.com/e7canasta/orion-player/internal/fault"
)

// Kind is the command tag.
type Kind int

const (
	KindPlay Kind = iota + 1
	KindPause
	KindNext
	KindStop
	KindShutdown
)

// String returns the wire tag of the kind
func (k Kind) String() string {
	switch k {
	case KindPlay:
		return "Play"
	case KindPause:
		return "Pause"
	case KindNext:
		return "Next"
	case KindStop:
		return "Stop"
	case KindShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Command is an immutable playback command.
type Command struct {
	Kind Kind
	// URI is set for Play and Next
	URI string
}

func Play(uri string) Command { return Command{Kind: KindPlay, URI: uri} }
func Pause() Command          { return Command{Kind: KindPause} }
func Next(uri string) Command { return Command{Kind: KindNext, URI: uri} }
func Stop() Command           { return Command{Kind: KindStop} }
func Shutdown() Command       { return Command{Kind: KindShutdown} }

// HasURI reports whether the kind carries a URI.
func (k Kind) HasURI() bool { return k == KindPlay || k == KindNext }

func (c Command) String() string {
	if c.Kind.HasURI() {
		return fmt.Sprintf("%s(%s)", c.Kind, c.URI)
	}
	return c.Kind.String()
}

// Wire format of the application message.
const (
	MessageName = "APP_MSG"
	FieldTitle  = "TITLE"
	FieldURI    = "URI"
)

var (
	// ErrMessageName is returned for application messages not addressed to the player.
	ErrMessageName = errors.New("command: unexpected message name")
	// ErrUnknownTag is returned for a missing or unsupported TITLE.
	ErrUnknownTag = errors.New("command: unknown command tag")
	// ErrMissingURI is returned for Play/Next without a URI.
	ErrMissingURI = errors.New("command: missing uri")
)

// Encode converts c into its bus structure.
func Encode(c Command) (engine.Structure, error) {
	if c.Kind < KindPlay || c.Kind > KindShutdown {
		return engine.Structure{}, fault.Protocol("command.encode", ErrUnknownTag)
	}
	if c.Kind.HasURI() && c.URI == "" {
		return engine.Structure{}, fault.Protocol("command.encode", ErrMissingURI)
	}

	fields := map[string]string{FieldTitle: c.Kind.String()}
	if c.Kind.HasURI() {
		fields[FieldURI] = c.URI
	}
	return engine.Structure{Name: MessageName, Fields: fields}, nil
}

// Decode converts a bus structure back into a command.
// Every failure is a protocol error.
func Decode(s *engine.Structure) (Command, error) {
	if s == nil {
		return Command{}, fault.Protocol("command.decode", fmt.Errorf("%w: no structure", ErrMessageName))
	}
	if s.Name != MessageName {
		return Command{}, fault.Protocol("command.decode", fmt.Errorf("%w: %q", ErrMessageName, s.Name))
	}

	title, ok := s.Fields[FieldTitle]
	if !ok {
		return Command{}, fault.Protocol("command.decode", fmt.Errorf("%w: no %s field", ErrUnknownTag, FieldTitle))
	}

	kind, ok := parseKind(title)
	if !ok {
		return Command{}, fault.Protocol("command.decode", fmt.Errorf("%w: %q", ErrUnknownTag, title))
	}

	c := Command{Kind: kind}
	if kind.HasURI() {
		c.URI = s.Fields[FieldURI]
		if c.URI == "" {
			return Command{}, fault.Protocol("command.decode", fmt.Errorf("%w for %s", ErrMissingURI, kind))
		}
	}
	return c, nil
}

func parseKind(tag string) (Kind, bool) {
	for k := KindPlay; k <= KindShutdown; k++ {
		if k.String() == tag {
			return k, true
		}
	}
	return 0, false
}
