// Package enginetest provides a scriptable in-memory media engine for tests.
//
// Pipelines never touch real media: tests drive them by emitting engine
// events on the fake bus (EOS, errors, duration changes) and inspect the
// state transitions, queries and releases they receive.
package enginetest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/e7canasta/orion-player/internal/engine"
)

// ErrInit is returned by Init when the engine is configured to fail.
var ErrInit = errors.New("enginetest: init failed")

// Engine is a fake engine.MediaEngine.
type Engine struct {
	mu         sync.Mutex
	initErr    error
	buildErrs  map[string]error
	stateErrs  map[string]error
	pipelines  []*Pipeline
	built      chan struct{}
	initCalls  int
	buildCalls int
}

var _ engine.MediaEngine = (*Engine)(nil)

// New creates a fake engine.
func New() *Engine {
	return &Engine{
		buildErrs: make(map[string]error),
		stateErrs: make(map[string]error),
		built:     make(chan struct{}, 64),
	}
}

// FailInit makes every Init call return err.
func (e *Engine) FailInit(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initErr = err
}

// FailBuild makes Build(uri) return err.
func (e *Engine) FailBuild(uri string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buildErrs[uri] = err
}

// FailSetState makes SetState on pipelines for uri return err.
func (e *Engine) FailSetState(uri string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stateErrs[uri] = err
}

func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initCalls++
	return e.initErr
}

func (e *Engine) Build(uri string) (engine.Pipeline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buildCalls++

	if err := e.buildErrs[uri]; err != nil {
		return nil, err
	}

	p := &Pipeline{
		uri:      uri,
		bus:      NewBus(),
		state:    engine.StateNull,
		stateErr: e.stateErrs[uri],
	}
	e.pipelines = append(e.pipelines, p)

	select {
	case e.built <- struct{}{}:
	default:
	}
	return p, nil
}

// Pipelines returns every pipeline built so far, oldest first.
func (e *Engine) Pipelines() []*Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Pipeline, len(e.pipelines))
	copy(out, e.pipelines)
	return out
}

// BuildCalls returns how many times Build was called.
func (e *Engine) BuildCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildCalls
}

// WaitPipeline waits until at least n pipelines were built and returns the
// n-th (1-based).
func (e *Engine) WaitPipeline(n int, timeout time.Duration) (*Pipeline, error) {
	deadline := time.After(timeout)
	for {
		e.mu.Lock()
		if len(e.pipelines) >= n {
			p := e.pipelines[n-1]
			e.mu.Unlock()
			return p, nil
		}
		e.mu.Unlock()

		select {
		case <-e.built:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			return nil, fmt.Errorf("enginetest: pipeline #%d not built within %s", n, timeout)
		}
	}
}

// Pipeline is a fake engine.Pipeline.
type Pipeline struct {
	uri string
	bus *Bus

	mu            sync.Mutex
	state         engine.State
	history       []engine.State
	stateErr      error
	position      int64
	duration      int64
	durationKnown bool
	durationCalls int
	released      int
}

var _ engine.Pipeline = (*Pipeline)(nil)

// URI returns the uri the pipeline was built for.
func (p *Pipeline) URI() string { return p.uri }

func (p *Pipeline) Bus() engine.EventBus { return p.bus }

// FakeBus returns the bus with its test controls.
func (p *Pipeline) FakeBus() *Bus { return p.bus }

func (p *Pipeline) SetState(state engine.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateErr != nil {
		return p.stateErr
	}
	p.state = state
	p.history = append(p.history, state)
	return nil
}

// State returns the current pipeline state.
func (p *Pipeline) State() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// History returns every state requested through SetState, in order.
func (p *Pipeline) History() []engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]engine.State, len(p.history))
	copy(out, p.history)
	return out
}

// SetPosition sets the value reported by QueryPosition.
func (p *Pipeline) SetPosition(ns int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = ns
}

// SetDuration sets the value reported by QueryDuration.
func (p *Pipeline) SetDuration(ns int64, known bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duration = ns
	p.durationKnown = known
}

func (p *Pipeline) QueryPosition() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.state == engine.StatePlaying || p.state == engine.StatePaused
}

func (p *Pipeline) QueryDuration() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.durationCalls++
	return p.duration, p.durationKnown
}

// DurationCalls returns how many times QueryDuration was called.
func (p *Pipeline) DurationCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durationCalls
}

func (p *Pipeline) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
	p.state = engine.StateNull
	return nil
}

// Released reports whether Release was called.
func (p *Pipeline) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released > 0
}

// ReleaseCalls returns how many times Release was called.
func (p *Pipeline) ReleaseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Bus is a fake engine.EventBus backed by an in-memory FIFO.
// Like GStreamer's filtered pop, messages not matching the mask are dropped.
type Bus struct {
	mu      sync.Mutex
	queue   []*engine.Message
	posted  []engine.Structure
	wake    chan struct{}
	stall   chan struct{}
	postErr error
}

var _ engine.EventBus = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{wake: make(chan struct{}, 1)}
}

func (b *Bus) Post(s engine.Structure) error {
	b.mu.Lock()
	if b.postErr != nil {
		b.mu.Unlock()
		return b.postErr
	}
	b.posted = append(b.posted, s)
	b.mu.Unlock()

	b.Emit(&engine.Message{Type: engine.MessageApplication, Structure: &s})
	return nil
}

// FailPost makes every Post return err.
func (b *Bus) FailPost(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.postErr = err
}

// Posted returns every structure posted through Post, in order.
func (b *Bus) Posted() []engine.Structure {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]engine.Structure, len(b.posted))
	copy(out, b.posted)
	return out
}

// Emit enqueues an engine event.
func (b *Bus) Emit(msg *engine.Message) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// EmitEOS enqueues an end-of-stream event.
func (b *Bus) EmitEOS() {
	b.Emit(&engine.Message{Type: engine.MessageEOS, Source: "playbin0"})
}

// EmitError enqueues an error event.
func (b *Bus) EmitError(err error) {
	b.Emit(&engine.Message{Type: engine.MessageError, Source: "playbin0", Err: err})
}

// EmitDurationChanged enqueues a duration-changed event.
func (b *Bus) EmitDurationChanged() {
	b.Emit(&engine.Message{Type: engine.MessageDurationChanged, Source: "playbin0"})
}

// Pending returns the number of queued messages.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Stall makes TimedPop block, ignoring its timeout, until Unstall.
// It simulates a worker stuck in a native call.
func (b *Bus) Stall() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stall == nil {
		b.stall = make(chan struct{})
	}
}

// Unstall releases TimedPop callers blocked by Stall.
func (b *Bus) Unstall() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stall != nil {
		close(b.stall)
		b.stall = nil
	}
}

func (b *Bus) TimedPop(timeout time.Duration, mask engine.MessageType) *engine.Message {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if stall := b.stall; stall != nil {
			b.mu.Unlock()
			<-stall
			continue
		}
		for len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue = b.queue[1:]
			if msg.Type&mask != 0 {
				b.mu.Unlock()
				return msg
			}
		}
		b.mu.Unlock()

		select {
		case <-b.wake:
		case <-timer.C:
			return nil
		}
	}
}
