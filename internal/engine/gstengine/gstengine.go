// Package gstengine implements the engine capabilities on GStreamer.
//
// Each pipeline is a single playbin element:
//
//	playbin uri=<uri> [audio-sink=<factory>] [video-sink=<factory>]
//
// playbin picks demuxers, decoders and sinks itself; the player only drives
// its state and reads its bus.
package gstengine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-player/internal/engine"
)

// Config selects optional playbin sinks. Empty factories keep playbin's
// automatic sink selection.
type Config struct {
	AudioSink string
	VideoSink string
}

// Engine is the GStreamer MediaEngine.
type Engine struct {
	cfg      Config
	initOnce sync.Once
}

var _ engine.MediaEngine = (*Engine)(nil)

// New creates a GStreamer engine. GStreamer itself is initialized lazily by Init.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Init initializes GStreamer once per process.
func (e *Engine) Init() error {
	e.initOnce.Do(func() {
		gst.Init(nil)
		slog.Debug("gstengine: GStreamer initialized")
	})
	return nil
}

// Build creates a playbin pipeline for uri. The pipeline stays in NULL state.
func (e *Engine) Build(uri string) (engine.Pipeline, error) {
	if uri == "" {
		return nil, fmt.Errorf("gstengine: uri is required")
	}

	playbin, err := gst.NewElement("playbin")
	if err != nil {
		return nil, fmt.Errorf("gstengine: failed to create playbin: %w", err)
	}
	if err := playbin.SetProperty("uri", uri); err != nil {
		return nil, fmt.Errorf("gstengine: failed to set uri: %w", err)
	}

	if e.cfg.AudioSink != "" {
		if err := setSink(playbin, "audio-sink", e.cfg.AudioSink); err != nil {
			return nil, err
		}
	}
	if e.cfg.VideoSink != "" {
		if err := setSink(playbin, "video-sink", e.cfg.VideoSink); err != nil {
			return nil, err
		}
	}

	bus := playbin.GetBus()
	if bus == nil {
		return nil, fmt.Errorf("gstengine: playbin has no bus")
	}

	slog.Debug("gstengine: pipeline created",
		"uri", uri,
		"element", playbin.GetName(),
		"audio_sink", e.cfg.AudioSink,
		"video_sink", e.cfg.VideoSink,
	)

	return &pipeline{
		elem: playbin,
		bus:  &eventBus{bus: bus, src: playbin},
	}, nil
}

func setSink(playbin *gst.Element, property, factory string) error {
	sink, err := gst.NewElement(factory)
	if err != nil {
		return fmt.Errorf("gstengine: failed to create %s %q: %w", property, factory, err)
	}
	if err := playbin.SetProperty(property, sink); err != nil {
		return fmt.Errorf("gstengine: failed to set %s: %w", property, err)
	}
	return nil
}

type pipeline struct {
	elem *gst.Element
	bus  *eventBus

	releaseOnce sync.Once
	releaseErr  error
}

func (p *pipeline) Bus() engine.EventBus { return p.bus }

func (p *pipeline) SetState(state engine.State) error {
	if err := p.elem.SetState(toGstState(state)); err != nil {
		return fmt.Errorf("gstengine: set state %s: %w", state, err)
	}
	return nil
}

func (p *pipeline) QueryPosition() (int64, bool) {
	ok, pos := p.elem.QueryPosition(gst.FormatTime)
	if !ok || pos < 0 {
		return 0, false
	}
	return pos, true
}

func (p *pipeline) QueryDuration() (int64, bool) {
	ok, dur := p.elem.QueryDuration(gst.FormatTime)
	if !ok || dur < 0 {
		return 0, false
	}
	return dur, true
}

// Release sets the pipeline to NULL, which stops streaming and releases
// devices and files. Only the first call has an effect.
func (p *pipeline) Release() error {
	p.releaseOnce.Do(func() {
		if err := p.elem.SetState(gst.StateNull); err != nil {
			p.releaseErr = fmt.Errorf("gstengine: failed to set pipeline to NULL: %w", err)
		}
	})
	return p.releaseErr
}

type eventBus struct {
	bus *gst.Bus
	src *gst.Element
}

func (b *eventBus) Post(s engine.Structure) error {
	st := gst.NewStructure(s.Name)
	for k, v := range s.Fields {
		if err := st.SetValue(k, v); err != nil {
			return fmt.Errorf("gstengine: set structure field %q: %w", k, err)
		}
	}
	if !b.bus.Post(gst.NewApplicationMessage(b.src, st)) {
		return fmt.Errorf("gstengine: bus refused message %q", s.Name)
	}
	return nil
}

func (b *eventBus) TimedPop(timeout time.Duration, mask engine.MessageType) *engine.Message {
	msg := b.bus.TimedPopFiltered(timeout, toGstMask(mask))
	if msg == nil {
		return nil
	}
	return convertMessage(msg)
}

func convertMessage(msg *gst.Message) *engine.Message {
	out := &engine.Message{Source: msg.Source()}

	switch msg.Type() {
	case gst.MessageStateChanged:
		out.Type = engine.MessageStateChanged
		oldState, newState := msg.ParseStateChanged()
		out.OldState = fromGstState(oldState)
		out.NewState = fromGstState(newState)

	case gst.MessageError:
		out.Type = engine.MessageError
		if gerr := msg.ParseError(); gerr != nil {
			out.Err = &Error{
				Message:  gerr.Error(),
				Debug:    gerr.DebugString(),
				Category: Classify(gerr.Error(), gerr.DebugString()),
			}
			out.Debug = gerr.DebugString()
		}

	case gst.MessageEOS:
		out.Type = engine.MessageEOS

	case gst.MessageDurationChanged:
		out.Type = engine.MessageDurationChanged

	case gst.MessageApplication:
		out.Type = engine.MessageApplication
		if st := msg.GetStructure(); st != nil {
			fields := make(map[string]string)
			for k, v := range st.Values() {
				fields[k] = fmt.Sprint(v)
			}
			out.Structure = &engine.Structure{Name: st.Name(), Fields: fields}
		}

	default:
		out.Type = 0
	}

	return out
}

func toGstMask(mask engine.MessageType) gst.MessageType {
	var m gst.MessageType
	if mask&engine.MessageStateChanged != 0 {
		m |= gst.MessageStateChanged
	}
	if mask&engine.MessageError != 0 {
		m |= gst.MessageError
	}
	if mask&engine.MessageEOS != 0 {
		m |= gst.MessageEOS
	}
	if mask&engine.MessageDurationChanged != 0 {
		m |= gst.MessageDurationChanged
	}
	if mask&engine.MessageApplication != 0 {
		m |= gst.MessageApplication
	}
	return m
}

func toGstState(s engine.State) gst.State {
	switch s {
	case engine.StateReady:
		return gst.StateReady
	case engine.StatePaused:
		return gst.StatePaused
	case engine.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

func fromGstState(s gst.State) engine.State {
	switch s {
	case gst.StateReady:
		return engine.StateReady
	case gst.StatePaused:
		return engine.StatePaused
	case gst.StatePlaying:
		return engine.StatePlaying
	default:
		return engine.StateNull
	}
}
