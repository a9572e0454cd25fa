// Package player is the concurrency and state-machine core of a media player.
//
// It drives a native media engine (GStreamer playbin in production) from
// application goroutines without ever touching the engine from more than one
// worker at a time. Decoding and rendering belong to the engine; this package
// only decides when pipelines are built, paused, replaced and released.
//
// # Quick Start
//
//	eng := gstengine.New(gstengine.Config{})
//	fanout := notify.NewFanout()
//
//	c := player.New(player.DefaultConfig(), eng, fanout)
//	defer c.End()
//
//	if err := c.Play("file:///music/a.mp3"); err != nil {
//	    log.Fatal(err)
//	}
//
//	c.Pause()                         // toggle
//	c.Play("file:///music/b.mp3")     // replaces a.mp3 on the same worker
//	c.Stop()                          // back to idle, worker exits
//
// # Architecture
//
//   - Coordinator: the front object. It spawns the worker when the player is
//     idle and otherwise forwards commands to it.
//   - Streamer loop (internal/streamer): the single worker goroutine. It owns
//     the pipeline and polls the pipeline bus every 100ms.
//   - Message pipe (internal/pipe): posts commands as application messages on
//     that same bus, so commands and engine events share one queue.
//   - Bus handle (internal/bushandle): the lock-protected slot through which
//     the bus is lent to the pipe. The worker takes the bus back before it
//     releases the pipeline.
//
// # Guarantees
//
//   - At most one worker goroutine exists. Play while playing sends Next to
//     the running worker instead of starting a second one.
//   - Commands are applied in the order they were sent, interleaved with the
//     engine's own events.
//   - Commands queued while a session is being torn down are not lost: the
//     worker drains the old bus and the latest Next, Stop or Shutdown wins.
//   - Pause and Stop while idle are no-ops.
//   - End is bounded: it never waits longer than ShutdownTimeout, even if the
//     worker is stuck in a native call.
//   - No lock is waited on indefinitely. Contention beyond LockTimeout is
//     reported as a resource error.
//
// # Errors
//
// Failures are classified into four kinds that can be matched with
// errors.Is: ErrResource (lock contention, no session), ErrEngine (pipeline
// build or state change), ErrProtocol (malformed command) and ErrTimeout
// (bounded shutdown exceeded).
//
// # Telemetry
//
// Session transitions, pause toggles and periodic position samples are
// published to a notify.Notifier. Notification is fire-and-forget; a failing
// notifier never affects playback.
package player
