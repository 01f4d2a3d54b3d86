package gstpipe

import (
	"fmt"
	"log/slog"
	"sync"

	shmbridge "github.com/e7canasta/orion-care-sensor/modules/shm-bridge"
	"github.com/tinyzimmer/go-gst/gst"
)

// Graph adapts a *gst.Pipeline to shmbridge.Graph
type Graph struct {
	pipeline *gst.Pipeline

	mu       sync.Mutex
	handler  shmbridge.BusHandler
	watching bool
}

// NewGraph wraps an already built and linked pipeline
func NewGraph(pipeline *gst.Pipeline) *Graph {
	return &Graph{pipeline: pipeline}
}

// Name returns the pipeline name
func (g *Graph) Name() string {
	return g.pipeline.GetName()
}

// Pipeline exposes the underlying GStreamer pipeline
func (g *Graph) Pipeline() *gst.Pipeline {
	return g.pipeline
}

// SetState requests a state transition on the GStreamer pipeline
func (g *Graph) SetState(state shmbridge.State) error {
	if err := g.pipeline.SetState(toGstState(state)); err != nil {
		return fmt.Errorf("set state %s: %w", state, err)
	}
	return nil
}

// Watch installs handler as the pipeline bus watch
//
// Messages are dispatched by the glib main loop, so the handler only runs
// while a MainLoop is running on the default context.
func (g *Graph) Watch(handler shmbridge.BusHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.watching {
		return fmt.Errorf("bus watch already installed on %s", g.Name())
	}

	g.handler = handler
	bus := g.pipeline.GetPipelineBus()
	if ok := bus.AddWatch(g.dispatch); !ok {
		g.handler = nil
		return fmt.Errorf("failed to add bus watch on %s", g.Name())
	}
	g.watching = true

	return nil
}

// Unwatch removes the bus watch. Idempotent.
func (g *Graph) Unwatch() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.watching {
		return
	}

	g.pipeline.GetPipelineBus().RemoveWatch()
	g.watching = false
	g.handler = nil
}

// dispatch converts bus messages and forwards them to the handler.
// Returning false removes the watch.
func (g *Graph) dispatch(msg *gst.Message) bool {
	g.mu.Lock()
	handler := g.handler
	g.mu.Unlock()

	if handler == nil {
		return false
	}

	handler(convertMessage(msg))
	return true
}

func convertMessage(msg *gst.Message) shmbridge.Message {
	out := shmbridge.Message{
		Type:   shmbridge.MessageOther,
		Source: msg.Source(),
	}

	switch msg.Type() {
	case gst.MessageEOS:
		out.Type = shmbridge.MessageEOS

	case gst.MessageError:
		out.Type = shmbridge.MessageError
		if gerr := msg.ParseError(); gerr != nil {
			out.Err = gerr
			out.Debug = gerr.DebugString()
		}

	case gst.MessageWarning:
		out.Type = shmbridge.MessageWarning
		if gerr := msg.ParseWarning(); gerr != nil {
			out.Err = gerr
			out.Debug = gerr.DebugString()
		}

	case gst.MessageStateChanged:
		out.Type = shmbridge.MessageStateChanged
		oldState, newState := msg.ParseStateChanged()
		out.OldState = fromGstState(oldState)
		out.NewState = fromGstState(newState)
	}

	return out
}

func toGstState(s shmbridge.State) gst.State {
	switch s {
	case shmbridge.StateReady:
		return gst.StateReady
	case shmbridge.StatePaused:
		return gst.StatePaused
	case shmbridge.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

func fromGstState(s gst.State) shmbridge.State {
	switch s {
	case gst.StateReady:
		return shmbridge.StateReady
	case gst.StatePaused:
		return shmbridge.StatePaused
	case gst.StatePlaying:
		return shmbridge.StatePlaying
	default:
		return shmbridge.StateNull
	}
}

// newElement creates an element and applies its properties.
// Any failure fails construction.
func newElement(factory string, props map[string]interface{}) (*gst.Element, error) {
	elem, err := gst.NewElement(factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", factory, err)
	}

	for name, value := range props {
		if err := elem.SetProperty(name, value); err != nil {
			return nil, fmt.Errorf("failed to set %s.%s=%v: %w", factory, name, value, err)
		}
		slog.Debug("gstpipe: property set", "element", factory, "property", name, "value", value)
	}

	return elem, nil
}
