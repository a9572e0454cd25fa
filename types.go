package player

import (
	"time"

	"github.com/e7canasta/orion-player/internal/streamer"
	"github.com/e7canasta/orion-player/internal/timedmutex"
)

// Phase is the coarse player state
type Phase int

const (
	// PhaseIdle means no worker is running
	PhaseIdle Phase = iota
	// PhaseActive means a session is playing or paused
	PhaseActive
	// PhasePendingNext means a replacement uri was sent and the worker has
	// not started it yet
	PhasePendingNext
	// PhaseEnded is terminal
	PhaseEnded
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhasePendingNext:
		return "pending-next"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SessionState is a snapshot of the coordinator state
type SessionState struct {
	Phase Phase
	// URI is the playing uri (Active) or the requested one (PendingNext)
	URI string
	// SessionID identifies the live pipeline, empty between sessions
	SessionID string
}

// Stats contains coordinator statistics
type Stats struct {
	// WorkersSpawned is the number of worker goroutines started so far
	WorkersSpawned uint64
	// CommandsSent is the number of commands posted to a running worker
	CommandsSent uint64
	// Running reports whether a worker is alive
	Running bool
	// State is the current session state
	State SessionState
}

// Config contains coordinator timing configuration
type Config struct {
	// PollInterval bounds each bus poll of the worker (default 100ms)
	PollInterval time.Duration
	// LockTimeout bounds every internal lock acquisition (default 5s)
	LockTimeout time.Duration
	// ShutdownTimeout bounds End (default 5s)
	ShutdownTimeout time.Duration
	// HandoffTimeout bounds how long a command waits for a worker that is
	// between pipelines (default 5s)
	HandoffTimeout time.Duration
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:    streamer.DefaultPollInterval,
		LockTimeout:     timedmutex.DefaultTimeout,
		ShutdownTimeout: 5 * time.Second,
		HandoffTimeout:  5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = d.LockTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.HandoffTimeout <= 0 {
		c.HandoffTimeout = d.HandoffTimeout
	}
	return c
}
