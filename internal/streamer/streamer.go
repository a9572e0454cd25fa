// Package streamer runs playback sessions on a single worker goroutine.
//
// A Loop owns the pipeline and its bus for the whole session. It polls the
// bus for engine events and for commands posted through the pipe, and hands
// the bus to other goroutines only through a bushandle.Handle.
//
// Session lifecycle:
//
//	Run(uri) → build → Set(bus) → PLAYING → poll ...
//	   Pause           toggle PAUSED/PLAYING
//	   Next/Play(uri)  teardown, relaunch with uri on the same goroutine
//	   Stop/EOS/Error  teardown, return OutcomeIdle
//	   Shutdown/ctx    teardown, return OutcomeEnded
//
// Teardown always runs the same steps: take the bus out of the handle, drain
// and fold the commands still queued on it, release the pipeline.
package streamer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-player/internal/bushandle"
	"github.com/e7canasta/orion-player/internal/command"
	"github.com/e7canasta/orion-player/internal/engine"
	"github.com/e7canasta/orion-player/internal/fault"
	"github.com/e7canasta/orion-player/internal/notify"
)

// DefaultPollInterval is the bus poll timeout.
const DefaultPollInterval = 100 * time.Millisecond

// DurationUnknown marks a duration the engine has not reported yet.
const DurationUnknown int64 = -1

// Outcome is how Run finished.
type Outcome int

const (
	// OutcomeIdle means the session ended and the player may be started again.
	OutcomeIdle Outcome = iota
	// OutcomeEnded means the loop was shut down for good.
	OutcomeEnded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session end reasons reported to the observer and in session-ended events.
const (
	ReasonStop     = "stop"
	ReasonNext     = "next"
	ReasonShutdown = "shutdown"
	ReasonEOS      = "eos"
	ReasonError    = "error"
	ReasonEngine   = "engine-failure"
)

// PositionInfo is one position sample, in nanoseconds.
type PositionInfo struct {
	Position int64
	Duration int64
}

// Session identifies one pipeline lifetime.
type Session struct {
	ID  string
	URI string
}

// Observer is told about session transitions. Callbacks run on the worker
// goroutine and must not block on the worker.
type Observer interface {
	SessionStarted(s Session)
	SessionEnded(s Session, reason string)
}

// Config configures a Loop.
type Config struct {
	// PollInterval bounds each bus pop (default 100ms)
	PollInterval time.Duration
}

// Loop is the streamer worker body. One Loop may be Run by one goroutine at
// a time.
type Loop struct {
	cfg      Config
	engine   engine.MediaEngine
	handle   *bushandle.Handle
	notifier notify.Notifier
	observer Observer
}

// New creates a loop. A nil notifier discards events; a nil observer is
// allowed.
func New(cfg Config, eng engine.MediaEngine, handle *bushandle.Handle, n notify.Notifier, obs Observer) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if n == nil {
		n = notify.Discard
	}
	return &Loop{
		cfg:      cfg,
		engine:   eng,
		handle:   handle,
		notifier: n,
		observer: obs,
	}
}

// decision is what a finished session asks the loop to do next.
type decision struct {
	outcome  Outcome
	relaunch string // uri of the next session, if any
	reason   string
}

func (d decision) ended() bool { return d.outcome == OutcomeEnded }

// fold applies a command drained from a dead bus on top of d.
// Shutdown is sticky; the latest Stop or Next/Play wins otherwise.
func (d decision) fold(cmd command.Command) decision {
	if d.ended() {
		return d
	}
	switch cmd.Kind {
	case command.KindShutdown:
		return decision{outcome: OutcomeEnded, reason: ReasonShutdown}
	case command.KindStop:
		return decision{outcome: OutcomeIdle, reason: ReasonStop}
	case command.KindNext, command.KindPlay:
		return decision{outcome: OutcomeIdle, relaunch: cmd.URI, reason: ReasonNext}
	default:
		// Pause has nothing to act on once the pipeline is gone
		return d
	}
}

// Run plays uri and any session that replaces it, until the player goes
// idle or is shut down. Cancelling ctx is treated as Shutdown.
func (l *Loop) Run(ctx context.Context, uri string) Outcome {
	if err := l.engine.Init(); err != nil {
		err = fault.Engine("streamer.init", err)
		slog.Error("streamer: engine init failed", "error", err, "uri", uri)
		l.emit(notify.Event{Kind: notify.KindError, URI: uri, Err: err})
		return OutcomeIdle
	}

	for {
		d := l.session(ctx, uri)
		if d.ended() || d.relaunch == "" {
			slog.Info("streamer: loop finished", "outcome", d.outcome.String(), "reason", d.reason)
			return d.outcome
		}

		slog.Info("streamer: relaunching", "uri", d.relaunch)
		uri = d.relaunch
	}
}

// session runs one pipeline from build to teardown.
func (l *Loop) session(ctx context.Context, uri string) decision {
	s := Session{ID: uuid.NewString(), URI: uri}

	slog.Info("streamer: building pipeline", "session_id", s.ID, "uri", uri)

	p, err := l.engine.Build(uri)
	if err != nil {
		err = fault.Engine("streamer.build", err)
		slog.Error("streamer: pipeline build failed", "session_id", s.ID, "uri", uri, "error", err)
		l.emit(notify.Event{Kind: notify.KindError, SessionID: s.ID, URI: uri, Err: err})
		return decision{outcome: OutcomeIdle, reason: ReasonEngine}
	}

	bus := p.Bus()
	if err := l.handle.Set(bus); err != nil {
		slog.Error("streamer: bus registration failed", "session_id", s.ID, "error", err)
		l.release(s, p)
		l.emit(notify.Event{Kind: notify.KindError, SessionID: s.ID, URI: uri, Err: err})
		return decision{outcome: OutcomeIdle, reason: ReasonEngine}
	}

	if err := p.SetState(engine.StatePlaying); err != nil {
		err = fault.Engine("streamer.set_state", err)
		slog.Error("streamer: failed to start pipeline", "session_id", s.ID, "uri", uri, "error", err)
		l.emit(notify.Event{Kind: notify.KindError, SessionID: s.ID, URI: uri, Err: err})
		return l.teardown(s, p, bus, decision{outcome: OutcomeIdle, reason: ReasonEngine}, false)
	}

	slog.Info("streamer: session started", "session_id", s.ID, "uri", uri)
	if l.observer != nil {
		l.observer.SessionStarted(s)
	}
	l.emit(notify.Event{Kind: notify.KindSessionStarted, SessionID: s.ID, URI: uri, Duration: DurationUnknown})

	d := l.poll(ctx, s, p, bus)
	return l.teardown(s, p, bus, d, true)
}

// poll pumps the bus until the session must end.
func (l *Loop) poll(ctx context.Context, s Session, p engine.Pipeline, bus engine.EventBus) decision {
	playing := true
	duration := DurationUnknown

	for {
		select {
		case <-ctx.Done():
			slog.Info("streamer: context cancelled, shutting down", "session_id", s.ID)
			return decision{outcome: OutcomeEnded, reason: ReasonShutdown}
		default:
		}

		msg := bus.TimedPop(l.cfg.PollInterval, engine.PlaybackMask)
		if msg == nil {
			if playing {
				info := l.position(p, &duration)
				if info.Position >= 0 {
					l.emit(notify.Event{
						Kind:      notify.KindPosition,
						SessionID: s.ID,
						URI:       s.URI,
						Position:  info.Position,
						Duration:  info.Duration,
					})
				}
			}
			continue
		}

		switch msg.Type {
		case engine.MessageStateChanged:
			slog.Debug("streamer: pipeline state changed",
				"session_id", s.ID,
				"source", msg.Source,
				"from", msg.OldState.String(),
				"to", msg.NewState.String(),
			)

		case engine.MessageDurationChanged:
			duration = DurationUnknown

		case engine.MessageEOS:
			slog.Info("streamer: end of stream", "session_id", s.ID, "uri", s.URI)
			return decision{outcome: OutcomeIdle, reason: ReasonEOS}

		case engine.MessageError:
			slog.Error("streamer: pipeline error",
				"session_id", s.ID,
				"uri", s.URI,
				"source", msg.Source,
				"error", msg.Err,
				"debug", msg.Debug,
			)
			l.emit(notify.Event{
				Kind:      notify.KindError,
				SessionID: s.ID,
				URI:       s.URI,
				Err:       fault.Engine("streamer.pipeline", msg.Err),
			})
			return decision{outcome: OutcomeIdle, reason: ReasonError}

		case engine.MessageApplication:
			cmd, err := command.Decode(msg.Structure)
			if err != nil {
				slog.Warn("streamer: ignoring malformed application message", "session_id", s.ID, "error", err)
				continue
			}

			slog.Debug("streamer: command received", "session_id", s.ID, "command", cmd.String())

			switch cmd.Kind {
			case command.KindPause:
				playing = l.togglePause(s, p, playing)
			case command.KindStop:
				return decision{outcome: OutcomeIdle, reason: ReasonStop}
			case command.KindNext, command.KindPlay:
				return decision{outcome: OutcomeIdle, relaunch: cmd.URI, reason: ReasonNext}
			case command.KindShutdown:
				return decision{outcome: OutcomeEnded, reason: ReasonShutdown}
			}
		}
	}
}

// togglePause flips between PAUSED and PLAYING and returns the new playing
// flag. A failed transition keeps the current flag.
func (l *Loop) togglePause(s Session, p engine.Pipeline, playing bool) bool {
	target, kind := engine.StatePaused, notify.KindPaused
	if !playing {
		target, kind = engine.StatePlaying, notify.KindResumed
	}

	if err := p.SetState(target); err != nil {
		slog.Warn("streamer: pause toggle failed", "session_id", s.ID, "target", target.String(), "error", err)
		return playing
	}

	slog.Info("streamer: playback "+kind.String(), "session_id", s.ID)
	l.emit(notify.Event{Kind: kind, SessionID: s.ID, URI: s.URI})
	return !playing
}

// position samples the pipeline. The duration is queried only while unknown
// and cached in *duration once the engine reports it. Position is -1 when the
// engine cannot answer yet.
func (l *Loop) position(p engine.Pipeline, duration *int64) PositionInfo {
	pos, ok := p.QueryPosition()
	if !ok {
		return PositionInfo{Position: -1, Duration: *duration}
	}
	if *duration == DurationUnknown {
		if d, ok := p.QueryDuration(); ok && d >= 0 {
			*duration = d
		}
	}
	return PositionInfo{Position: pos, Duration: *duration}
}

// teardown takes the bus out of the handle, folds the commands still queued
// on it into d, and releases the pipeline.
func (l *Loop) teardown(s Session, p engine.Pipeline, bus engine.EventBus, d decision, started bool) decision {
	l.take(s)

	d = l.drain(s, bus, d)
	l.release(s, p)

	slog.Info("streamer: session ended",
		"session_id", s.ID,
		"uri", s.URI,
		"reason", d.reason,
		"relaunch", d.relaunch,
	)

	if started {
		if l.observer != nil {
			l.observer.SessionEnded(s, d.reason)
		}
		l.emit(notify.Event{Kind: notify.KindSessionEnded, SessionID: s.ID, URI: s.URI, Reason: d.reason})
	}
	return d
}

// take empties the handle. The pipeline must not be released while its bus
// is still registered, so a lock timeout is retried: senders hold the lock
// only for a single post.
func (l *Loop) take(s Session) {
	for attempt := 1; ; attempt++ {
		_, err := l.handle.Take()
		if err == nil || errors.Is(err, bushandle.ErrEmpty) {
			return
		}
		slog.Warn("streamer: bus take failed during teardown, retrying",
			"session_id", s.ID,
			"attempt", attempt,
			"error", err,
		)
	}
}

// drain pops the commands left on a bus that no sender can reach anymore.
func (l *Loop) drain(s Session, bus engine.EventBus, d decision) decision {
	for {
		msg := bus.TimedPop(0, engine.MessageApplication)
		if msg == nil {
			return d
		}
		cmd, err := command.Decode(msg.Structure)
		if err != nil {
			slog.Warn("streamer: dropping malformed message during teardown", "session_id", s.ID, "error", err)
			continue
		}
		slog.Debug("streamer: folding queued command", "session_id", s.ID, "command", cmd.String())
		d = d.fold(cmd)
	}
}

func (l *Loop) release(s Session, p engine.Pipeline) {
	if err := p.Release(); err != nil {
		slog.Error("streamer: failed to release pipeline", "session_id", s.ID, "error", err)
	}
}

func (l *Loop) emit(ev notify.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := l.notifier.Notify(ev); err != nil {
		slog.Debug("streamer: notify failed", "event", ev.Kind.String(), "error", err)
	}
}
