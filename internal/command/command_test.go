package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-player/internal/engine"
	"github.com/e7canasta/orion-player/internal/fault"
)

func TestEncodeDecode_Next(t *testing.T) {
	s, err := Encode(Next("file:///a.mp3"))
	require.NoError(t, err)

	assert.Equal(t, MessageName, s.Name)
	assert.Equal(t, "Next", s.Fields[FieldTitle])
	assert.Equal(t, "file:///a.mp3", s.Fields[FieldURI])

	got, err := Decode(&s)
	require.NoError(t, err)
	assert.Equal(t, Next("file:///a.mp3"), got)
}

func TestEncode_NoURIForBareCommands(t *testing.T) {
	for _, c := range []Command{Pause(), Stop(), Shutdown()} {
		t.Run(c.String(), func(t *testing.T) {
			s, err := Encode(c)
			require.NoError(t, err)
			_, hasURI := s.Fields[FieldURI]
			assert.False(t, hasURI)
			assert.Equal(t, c.Kind.String(), s.Fields[FieldTitle])
		})
	}
}

func TestEncode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"zero command", Command{}, ErrUnknownTag},
		{"play without uri", Play(""), ErrMissingURI},
		{"next without uri", Next(""), ErrMissingURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, fault.ErrProtocol)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		s    *engine.Structure
		want error
	}{
		{"nil structure", nil, ErrMessageName},
		{"foreign message", &engine.Structure{Name: "other", Fields: map[string]string{FieldTitle: "Stop"}}, ErrMessageName},
		{"no title", &engine.Structure{Name: MessageName, Fields: map[string]string{}}, ErrUnknownTag},
		{"unknown title", &engine.Structure{Name: MessageName, Fields: map[string]string{FieldTitle: "Rewind"}}, ErrUnknownTag},
		{"next without uri", &engine.Structure{Name: MessageName, Fields: map[string]string{FieldTitle: "Next"}}, ErrMissingURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.s)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, fault.ErrProtocol)
		})
	}
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "Play(file:///a.mp3)", Play("file:///a.mp3").String())
	assert.Equal(t, "Pause", Pause().String())
	assert.Equal(t, "Unknown", Kind(99).String())
}
