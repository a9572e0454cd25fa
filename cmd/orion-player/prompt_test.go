package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	player "github.com/e7canasta/orion-player"
	"github.com/e7canasta/orion-player/internal/notify"
)

func TestPrintStatus(t *testing.T) {
	tests := []struct {
		name  string
		state player.SessionState
		pos   notify.Event
		want  string
	}{
		{
			name:  "idle",
			state: player.SessionState{Phase: player.PhaseIdle},
			want:  "state: idle\n",
		},
		{
			name:  "unknown duration",
			state: player.SessionState{Phase: player.PhaseActive, URI: "file:///a.mp3", SessionID: "s1"},
			pos:   notify.Event{SessionID: "s1", Position: int64(3500 * time.Millisecond), Duration: -1},
			want:  "state: active\nuri: file:///a.mp3\nposition: 3s\n",
		},
		{
			name:  "known duration",
			state: player.SessionState{Phase: player.PhaseActive, URI: "file:///a.mp3", SessionID: "s1"},
			pos:   notify.Event{SessionID: "s1", Position: int64(61 * time.Second), Duration: int64(3 * time.Minute)},
			want:  "state: active\nuri: file:///a.mp3\nposition: 1m1s / 3m0s\n",
		},
		{
			name:  "stale sample from previous session",
			state: player.SessionState{Phase: player.PhaseActive, URI: "file:///b.mp3", SessionID: "s2"},
			pos:   notify.Event{SessionID: "s1", Position: int64(time.Second)},
			want:  "state: active\nuri: file:///b.mp3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printStatus(&buf, tt.state, tt.pos)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRootCmd_Version(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
}

func TestRootCmd_BadConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", "/nonexistent/player.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to read config file"))
}
