package player

// Controller defines the command surface of the player
//
// Implementations must guarantee:
//   - Play never starts a second worker while one is alive
//   - Pause and Stop are no-ops while idle
//   - End is idempotent and bounded
//   - IsRunning and State never block
type Controller interface {
	// Play starts playing uri.
	//
	// With no worker running, a worker goroutine is spawned and builds the
	// pipeline for uri. Otherwise Next(uri) is sent to the running worker,
	// which tears down the current pipeline and relaunches on the same
	// goroutine.
	//
	// Returns ErrEnded after End and ErrEmptyURI for an empty uri.
	Play(uri string) error

	// Pause toggles between paused and playing.
	Pause() error

	// Stop ends the current session. The worker exits and the player
	// becomes idle.
	Stop() error

	// End shuts the player down permanently.
	//
	// It sends Shutdown to the worker and waits up to ShutdownTimeout for
	// it to exit. If the worker does not exit in time, its context is
	// cancelled and an ErrTimeout error is returned. Safe to call more than
	// once.
	End() error

	// IsRunning reports whether a worker goroutine is alive.
	IsRunning() bool

	// State returns the current session state.
	State() SessionState
}

var _ Controller = (*Coordinator)(nil)
