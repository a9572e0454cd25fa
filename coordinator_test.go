package player

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-player/internal/engine"
	"github.com/e7canasta/orion-player/internal/engine/enginetest"
	"github.com/e7canasta/orion-player/internal/notify"
	"github.com/e7canasta/orion-player/internal/notify/notifytest"
)

const waitFor = 2 * time.Second

func testConfig() Config {
	return Config{
		PollInterval:    5 * time.Millisecond,
		LockTimeout:     time.Second,
		ShutdownTimeout: 2 * time.Second,
		HandoffTimeout:  2 * time.Second,
	}
}

// exclusiveEngine records a violation whenever a pipeline is built while an
// earlier one is still alive.
type exclusiveEngine struct {
	*enginetest.Engine
	violations atomic.Int32
}

func (e *exclusiveEngine) Build(uri string) (engine.Pipeline, error) {
	for _, p := range e.Engine.Pipelines() {
		if !p.Released() {
			e.violations.Add(1)
		}
	}
	return e.Engine.Build(uri)
}

func newCoordinator(t *testing.T) (*Coordinator, *enginetest.Engine, *notifytest.Recorder) {
	t.Helper()
	eng := enginetest.New()
	rec := notifytest.New()
	c := New(testConfig(), eng, rec)
	t.Cleanup(func() { _ = c.End() })
	return c, eng, rec
}

func waitState(t *testing.T, c *Coordinator, phase Phase, uri string) SessionState {
	t.Helper()
	require.Eventually(t, func() bool {
		s := c.State()
		return s.Phase == phase && s.URI == uri
	}, waitFor, time.Millisecond, "state never became %s(%s)", phase, uri)
	return c.State()
}

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.IsRunning() }, waitFor, time.Millisecond)
	assert.Equal(t, PhaseIdle, c.State().Phase)
}

// Scenario: play on idle spawns one worker and goes active.
func TestCoordinator_PlayFromIdle(t *testing.T) {
	c, eng, rec := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	assert.True(t, c.IsRunning())
	assert.Equal(t, PhaseActive, c.State().Phase)
	assert.Equal(t, "file:///a.mp3", c.State().URI)

	p, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)
	assert.Equal(t, "file:///a.mp3", p.URI())

	started, err := rec.WaitFor(notify.KindSessionStarted, 1, waitFor)
	require.NoError(t, err)

	s := waitState(t, c, PhaseActive, "file:///a.mp3")
	require.Eventually(t, func() bool { return c.State().SessionID == started.SessionID }, waitFor, time.Millisecond)
	assert.NotEmpty(t, s.URI)
	assert.Equal(t, uint64(1), c.Stats().WorkersSpawned)
}

// Scenario: play while active sends Next to the same worker.
func TestCoordinator_PlayWhileActiveReusesWorker(t *testing.T) {
	c, eng, _ := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	first, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)
	waitState(t, c, PhaseActive, "file:///a.mp3")

	require.NoError(t, c.Play("file:///b.mp3"))

	second, err := eng.WaitPipeline(2, waitFor)
	require.NoError(t, err)
	assert.Equal(t, "file:///b.mp3", second.URI())
	waitState(t, c, PhaseActive, "file:///b.mp3")

	assert.True(t, first.Released())
	assert.True(t, c.IsRunning())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.WorkersSpawned, "Next must not spawn a new worker")
	assert.Equal(t, uint64(1), stats.CommandsSent)
}

func TestCoordinator_RapidPlaysSettleOnLast(t *testing.T) {
	c, eng, _ := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	require.NoError(t, c.Play("file:///b.mp3"))
	require.NoError(t, c.Play("file:///c.mp3"))
	require.NoError(t, c.Play("file:///d.mp3"))

	waitState(t, c, PhaseActive, "file:///d.mp3")
	assert.Equal(t, uint64(1), c.Stats().WorkersSpawned)

	pipelines := eng.Pipelines()
	require.NotEmpty(t, pipelines)
	last := pipelines[len(pipelines)-1]
	assert.Equal(t, "file:///d.mp3", last.URI())
	for _, p := range pipelines[:len(pipelines)-1] {
		assert.True(t, p.Released(), "pipeline %s still alive", p.URI())
	}
}

// Scenario: pause twice toggles back to playing.
func TestCoordinator_PauseTwice(t *testing.T) {
	c, eng, rec := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	p, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)

	require.NoError(t, c.Pause())
	_, err = rec.WaitFor(notify.KindPaused, 1, waitFor)
	require.NoError(t, err)
	assert.Equal(t, engine.StatePaused, p.State())

	require.NoError(t, c.Pause())
	_, err = rec.WaitFor(notify.KindResumed, 1, waitFor)
	require.NoError(t, err)
	assert.Equal(t, engine.StatePlaying, p.State())
}

// Pause right after Play waits for the worker to register its bus.
func TestCoordinator_CommandDuringStartup(t *testing.T) {
	c, _, rec := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	require.NoError(t, c.Pause())

	_, err := rec.WaitFor(notify.KindPaused, 1, waitFor)
	require.NoError(t, err)
}

// Scenario: stop while active returns to idle.
func TestCoordinator_Stop(t *testing.T) {
	c, eng, _ := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	p, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)

	require.NoError(t, c.Stop())
	waitIdle(t, c)
	assert.True(t, p.Released())

	// Idle again: the next Play spawns a fresh worker
	require.NoError(t, c.Play("file:///b.mp3"))
	_, err = eng.WaitPipeline(2, waitFor)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.Stats().WorkersSpawned)
}

func TestCoordinator_IdleCommandsAreNoops(t *testing.T) {
	c, eng, rec := newCoordinator(t)

	assert.NoError(t, c.Pause())
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Pause())

	assert.False(t, c.IsRunning())
	assert.Equal(t, PhaseIdle, c.State().Phase)
	assert.Zero(t, eng.BuildCalls())
	assert.Zero(t, c.Stats().CommandsSent)
	assert.Empty(t, rec.Events())
}

func TestCoordinator_PlayEmptyURI(t *testing.T) {
	c, eng, _ := newCoordinator(t)

	assert.ErrorIs(t, c.Play(""), ErrEmptyURI)
	assert.False(t, c.IsRunning())
	assert.Zero(t, eng.BuildCalls())
}

// Scenario: end while active shuts the worker down for good.
func TestCoordinator_End(t *testing.T) {
	c, eng, _ := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	p, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)

	require.NoError(t, c.End())
	assert.False(t, c.IsRunning())
	assert.Equal(t, PhaseEnded, c.State().Phase)
	assert.True(t, p.Released())

	assert.ErrorIs(t, c.Play("file:///b.mp3"), ErrEnded)
	assert.NoError(t, c.Pause())
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.End(), "End is idempotent")

	assert.Equal(t, 1, eng.BuildCalls())
	assert.Equal(t, uint64(1), c.Stats().WorkersSpawned)
}

func TestCoordinator_EndWhileIdle(t *testing.T) {
	c, _, _ := newCoordinator(t)

	require.NoError(t, c.End())
	assert.Equal(t, PhaseEnded, c.State().Phase)
	assert.ErrorIs(t, c.Play("file:///a.mp3"), ErrEnded)
	assert.Zero(t, c.Stats().WorkersSpawned)
}

func TestCoordinator_EndIsBoundedWithStuckWorker(t *testing.T) {
	eng := enginetest.New()
	cfg := testConfig()
	cfg.ShutdownTimeout = 100 * time.Millisecond
	c := New(cfg, eng, nil)

	require.NoError(t, c.Play("file:///a.mp3"))
	p, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.State().SessionID != "" }, waitFor, time.Millisecond)

	// The worker is now stuck inside a bus pop, as if blocked in native code
	p.FakeBus().Stall()

	start := time.Now()
	err = c.End()
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, PhaseEnded, c.State().Phase)

	// Once unblocked the worker still exits
	p.FakeBus().Unstall()
	require.Eventually(t, func() bool { return !c.IsRunning() }, waitFor, time.Millisecond)
	assert.True(t, p.Released())
	assert.Equal(t, PhaseEnded, c.State().Phase)
}

func TestCoordinator_EndWithStateLockHeld(t *testing.T) {
	eng := enginetest.New()
	cfg := testConfig()
	cfg.LockTimeout = 50 * time.Millisecond
	c := New(cfg, eng, nil)

	require.NoError(t, c.Play("file:///a.mp3"))
	p, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.State().SessionID != "" }, waitFor, time.Millisecond)

	// Hold the state lock for the whole End call
	require.NoError(t, c.mu.Lock())
	err = c.End()
	c.mu.Unlock()

	require.NoError(t, err)
	assert.False(t, c.IsRunning())
	assert.True(t, p.Released())
	assert.Equal(t, PhaseEnded, c.State().Phase)
	assert.ErrorIs(t, c.Play("file:///b.mp3"), ErrEnded)
	assert.Equal(t, 1, eng.BuildCalls())
}

// Scenario: an engine error mid-playback returns to idle.
func TestCoordinator_EngineErrorReturnsToIdle(t *testing.T) {
	c, eng, rec := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	p, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)
	_, err = rec.WaitFor(notify.KindSessionStarted, 1, waitFor)
	require.NoError(t, err)

	p.FakeBus().EmitError(errors.New("internal data stream error"))

	waitIdle(t, c)
	assert.True(t, p.Released())

	_, err = rec.WaitFor(notify.KindError, 1, waitFor)
	require.NoError(t, err)

	require.NoError(t, c.Play("file:///b.mp3"))
	waitState(t, c, PhaseActive, "file:///b.mp3")
}

func TestCoordinator_BuildFailureReturnsToIdle(t *testing.T) {
	c, eng, _ := newCoordinator(t)
	eng.FailBuild("file:///missing.mp3", errors.New("no such element playbin"))

	require.NoError(t, c.Play("file:///missing.mp3"))
	waitIdle(t, c)

	require.NoError(t, c.Play("file:///a.mp3"))
	waitState(t, c, PhaseActive, "file:///a.mp3")
}

func TestCoordinator_PlayAfterEOS(t *testing.T) {
	c, eng, _ := newCoordinator(t)

	require.NoError(t, c.Play("file:///a.mp3"))
	p, err := eng.WaitPipeline(1, waitFor)
	require.NoError(t, err)
	waitState(t, c, PhaseActive, "file:///a.mp3")

	p.FakeBus().EmitEOS()
	require.NoError(t, c.Play("file:///b.mp3"))

	// Whether Next reached the old worker or a new one was spawned, b plays
	waitState(t, c, PhaseActive, "file:///b.mp3")
	require.Eventually(t, func() bool {
		ps := eng.Pipelines()
		return ps[len(ps)-1].URI() == "file:///b.mp3"
	}, waitFor, time.Millisecond)
	assert.LessOrEqual(t, c.Stats().WorkersSpawned, uint64(2))
}

func TestCoordinator_SingleWorkerUnderConcurrentCommands(t *testing.T) {
	eng := &exclusiveEngine{Engine: enginetest.New()}
	c := New(testConfig(), eng, nil)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 40; i++ {
				switch r.Intn(4) {
				case 0, 1:
					_ = c.Play(fmt.Sprintf("file:///%d-%d.mp3", seed, i))
				case 2:
					_ = c.Pause()
				case 3:
					_ = c.Stop()
				}
				time.Sleep(time.Duration(r.Intn(3)) * time.Millisecond)
			}
		}(int64(g + 1))
	}
	wg.Wait()

	require.NoError(t, c.End())
	assert.False(t, c.IsRunning())
	assert.Zero(t, eng.violations.Load(), "a pipeline was built while another was alive")

	for _, p := range eng.Pipelines() {
		assert.True(t, p.Released(), "pipeline %s leaked", p.URI())
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseActive, "active"},
		{PhasePendingNext, "pending-next"},
		{PhaseEnded, "ended"},
		{Phase(9), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.phase.String())
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{ShutdownTimeout: time.Second}.withDefaults()

	assert.Equal(t, 100*time.Millisecond, c.PollInterval)
	assert.Equal(t, 5*time.Second, c.LockTimeout)
	assert.Equal(t, time.Second, c.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, c.HandoffTimeout)
}
