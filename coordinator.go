package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-player/internal/bushandle"
	"github.com/e7canasta/orion-player/internal/command"
	"github.com/e7canasta/orion-player/internal/engine"
	"github.com/e7canasta/orion-player/internal/fault"
	"github.com/e7canasta/orion-player/internal/notify"
	"github.com/e7canasta/orion-player/internal/pipe"
	"github.com/e7canasta/orion-player/internal/streamer"
	"github.com/e7canasta/orion-player/internal/timedmutex"
)

// worker is one streamer goroutine.
type worker struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{} // closed after the loop returned and state was updated
}

func (w *worker) exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Coordinator is the front object of the player. It is safe for concurrent
// use.
type Coordinator struct {
	cfg      Config
	engine   engine.MediaEngine
	notifier notify.Notifier
	handle   *bushandle.Handle
	pipe     *pipe.Pipe

	// mu guards state and gen. It is never held while waiting on the worker.
	mu    *timedmutex.Mutex
	state SessionState
	gen   uint64

	// ended is set once, by End or by a worker that was shut down. It is
	// read under mu but written without it so End works when mu is stuck.
	ended atomic.Bool

	snapshot atomic.Pointer[SessionState]
	current  atomic.Pointer[worker]

	spawned atomic.Uint64
	sent    atomic.Uint64
}

// New creates an idle coordinator. No goroutine is started until Play.
// A nil notifier discards events.
func New(cfg Config, eng engine.MediaEngine, n notify.Notifier) *Coordinator {
	cfg = cfg.withDefaults()
	if n == nil {
		n = notify.Discard
	}

	handle := bushandle.New(cfg.LockTimeout)
	c := &Coordinator{
		cfg:      cfg,
		engine:   eng,
		notifier: n,
		handle:   handle,
		pipe:     pipe.New(handle),
		mu:       timedmutex.New("player", cfg.LockTimeout),
	}
	c.setStateLocked(SessionState{Phase: PhaseIdle})

	slog.Info("player: coordinator created",
		"poll_interval", cfg.PollInterval,
		"lock_timeout", cfg.LockTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
	return c
}

// Play starts uri, or replaces the current session with uri.
func (c *Coordinator) Play(uri string) error {
	if uri == "" {
		return ErrEmptyURI
	}

	for {
		if err := c.mu.Lock(); err != nil {
			return err
		}
		if c.ended.Load() {
			c.mu.Unlock()
			return ErrEnded
		}

		w := c.live()
		if w == nil {
			c.spawnLocked(uri)
			c.mu.Unlock()
			return nil
		}

		c.setStateLocked(SessionState{Phase: PhasePendingNext, URI: uri, SessionID: c.state.SessionID})
		c.mu.Unlock()

		err := c.deliver(w, command.Next(uri), c.cfg.HandoffTimeout)
		if !errors.Is(err, errWorkerExited) {
			return err
		}

		// The worker finished its last session while Next was in flight;
		// the next iteration starts a fresh one.
		slog.Debug("player: worker exited during handoff, respawning", "uri", uri)
	}
}

// Pause toggles pause on the running session. No-op while idle.
func (c *Coordinator) Pause() error {
	return c.forward(command.Pause())
}

// Stop ends the running session. No-op while idle.
func (c *Coordinator) Stop() error {
	return c.forward(command.Stop())
}

func (c *Coordinator) forward(cmd command.Command) error {
	w := c.live()
	if w == nil {
		slog.Info("player: no active session, ignoring command", "command", cmd.String())
		return nil
	}

	err := c.deliver(w, cmd, c.cfg.HandoffTimeout)
	if errors.Is(err, errWorkerExited) {
		slog.Info("player: session already finished, ignoring command", "command", cmd.String())
		return nil
	}
	return err
}

// End shuts the player down. Bounded by ShutdownTimeout.
//
// A state lock that cannot be acquired does not stop End: the worker is
// still told to shut down and joined.
func (c *Coordinator) End() error {
	first := c.ended.CompareAndSwap(false, true)

	if err := c.mu.Lock(); err != nil {
		slog.Warn("player: state lock unavailable, ending best-effort", "error", err)
		c.snapshot.Store(&SessionState{Phase: PhaseEnded})
	} else {
		c.setStateLocked(SessionState{Phase: PhaseEnded})
		c.mu.Unlock()
	}

	w := c.live()
	if w == nil {
		if first {
			slog.Info("player: ended, no worker running")
		}
		return nil
	}

	start := time.Now()
	deadline := c.cfg.ShutdownTimeout

	if first {
		slog.Info("player: ending, sending shutdown to worker")
		if err := c.deliver(w, command.Shutdown(), deadline); err != nil && !errors.Is(err, errWorkerExited) {
			slog.Warn("player: shutdown command not delivered, cancelling worker", "error", err)
			w.cancel()
		}
	}

	remaining := deadline - time.Since(start)
	if remaining < 0 {
		remaining = 0
	}

	select {
	case <-w.done:
		slog.Info("player: worker stopped", "elapsed", time.Since(start))
		return nil
	case <-time.After(remaining):
		w.cancel()
		slog.Warn("player: shutdown timeout exceeded, worker may still be running",
			"timeout", deadline,
		)
		return fault.Timeout("player.end", ErrShutdownTimeout)
	}
}

// IsRunning reports whether a worker is alive. Lock-free.
func (c *Coordinator) IsRunning() bool {
	return c.live() != nil
}

// State returns the current session state. Lock-free.
func (c *Coordinator) State() SessionState {
	return *c.snapshot.Load()
}

// Stats returns coordinator statistics.
func (c *Coordinator) Stats() Stats {
	return Stats{
		WorkersSpawned: c.spawned.Load(),
		CommandsSent:   c.sent.Load(),
		Running:        c.IsRunning(),
		State:          c.State(),
	}
}

// live returns the running worker, reaping one that has finished.
func (c *Coordinator) live() *worker {
	w := c.current.Load()
	if w == nil {
		return nil
	}
	if w.exited() {
		c.current.CompareAndSwap(w, nil)
		return nil
	}
	return w
}

// deliver sends cmd to w. If w is between pipelines it waits, up to
// timeout, for the next bus or for w to exit.
func (c *Coordinator) deliver(w *worker, cmd command.Command, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		err := c.pipe.Send(cmd)
		if err == nil {
			c.sent.Add(1)
			return nil
		}
		if !errors.Is(err, pipe.ErrNoSession) {
			slog.Warn("player: command delivery failed", "command", cmd.String(), "error", err)
			return err
		}

		ready, err := c.handle.Ready()
		if err != nil {
			return err
		}

		select {
		case <-ready:
		case <-w.done:
			return errWorkerExited
		case <-timer.C:
			return fault.Timeout("player.handoff", fmt.Errorf("%w: %s", ErrNoSession, cmd))
		}
	}
}

// spawnLocked starts a worker for uri. c.mu must be held and no worker may
// be alive.
func (c *Coordinator) spawnLocked(uri string) {
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		gen:    c.gen,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	loop := streamer.New(
		streamer.Config{PollInterval: c.cfg.PollInterval},
		c.engine,
		c.handle,
		c.notifier,
		&observer{c: c, gen: w.gen},
	)

	c.current.Store(w)
	c.spawned.Add(1)
	c.setStateLocked(SessionState{Phase: PhaseActive, URI: uri})

	slog.Info("player: spawning streamer", "uri", uri, "generation", w.gen)

	go c.run(ctx, w, loop, uri)
}

func (c *Coordinator) run(ctx context.Context, w *worker, loop *streamer.Loop, uri string) {
	defer w.cancel()

	outcome := loop.Run(ctx, uri)
	if outcome == streamer.OutcomeEnded {
		c.ended.Store(true)
	}

	if err := c.mu.Lock(); err != nil {
		slog.Error("player: could not record worker exit", "error", err)
	} else {
		if c.gen == w.gen {
			if c.ended.Load() {
				c.setStateLocked(SessionState{Phase: PhaseEnded})
			} else {
				c.setStateLocked(SessionState{Phase: PhaseIdle})
			}
		}
		c.mu.Unlock()
	}

	close(w.done)
	c.current.CompareAndSwap(w, nil)

	slog.Info("player: streamer exited", "outcome", outcome.String(), "generation", w.gen)
}

// setStateLocked updates the state and its lock-free snapshot.
func (c *Coordinator) setStateLocked(s SessionState) {
	c.state = s
	snap := s
	c.snapshot.Store(&snap)
}

// observer forwards session transitions of one worker generation.
type observer struct {
	c   *Coordinator
	gen uint64
}

func (o *observer) SessionStarted(s streamer.Session) {
	c := o.c
	if err := c.mu.Lock(); err != nil {
		slog.Warn("player: dropping session-started update", "session_id", s.ID, "error", err)
		return
	}
	defer c.mu.Unlock()

	if c.gen != o.gen || c.ended.Load() {
		return
	}
	// A Play that arrived after this session was requested keeps its
	// pending uri visible.
	if c.state.Phase == PhasePendingNext && c.state.URI != s.URI {
		c.setStateLocked(SessionState{Phase: PhasePendingNext, URI: c.state.URI, SessionID: s.ID})
		return
	}
	c.setStateLocked(SessionState{Phase: PhaseActive, URI: s.URI, SessionID: s.ID})
}

func (o *observer) SessionEnded(s streamer.Session, reason string) {
	c := o.c
	if err := c.mu.Lock(); err != nil {
		slog.Warn("player: dropping session-ended update", "session_id", s.ID, "error", err)
		return
	}
	defer c.mu.Unlock()

	if c.gen != o.gen || c.ended.Load() {
		return
	}

	switch {
	case c.state.Phase == PhaseActive && reason != streamer.ReasonNext:
		c.setStateLocked(SessionState{Phase: PhaseIdle})
	case c.state.SessionID == s.ID:
		next := c.state
		next.SessionID = ""
		c.setStateLocked(next)
	}
}
