package gstpipe

import (
	"fmt"
	"log/slog"

	shmbridge "github.com/e7canasta/orion-care-sensor/modules/shm-bridge"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/capsfile"
	"github.com/tinyzimmer/go-gst/gst"
)

// ProducerConfig contains configuration for the producer pipeline
type ProducerConfig struct {
	Name              string
	SourceElement     string // e.g. videotestsrc
	Pattern           int    // videotestsrc pattern, ignored for other sources
	IsLive            bool
	SocketPath        string
	ShmSize           uint
	WaitForConnection bool

	// OnCaps receives the shmsink sink pad caps on every notify::caps.
	// It is called from a GStreamer streaming thread and receives nil when
	// the pad has no current caps.
	OnCaps func(capsfile.Descriptor)
}

// ProducerTopology builds the pipeline
//
//	source → shmsink
//
// The pipeline is configured but NOT started (state remains NULL).
type ProducerTopology struct {
	cfg ProducerConfig
}

// NewProducerTopology validates cfg and returns the topology
func NewProducerTopology(cfg ProducerConfig) (*ProducerTopology, error) {
	if cfg.SourceElement == "" {
		return nil, fmt.Errorf("gstpipe: source element is required")
	}
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("gstpipe: socket path is required")
	}
	if cfg.ShmSize == 0 {
		return nil, fmt.Errorf("gstpipe: shm size must be > 0")
	}
	return &ProducerTopology{cfg: cfg}, nil
}

// Build creates, links and wires the producer elements
func (t *ProducerTopology) Build() (shmbridge.Graph, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline(t.cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	srcProps := map[string]interface{}{
		"is-live": t.cfg.IsLive,
	}
	if t.cfg.SourceElement == "videotestsrc" {
		srcProps["pattern"] = t.cfg.Pattern // 0 = smpte
	}
	source, err := newElement(t.cfg.SourceElement, srcProps)
	if err != nil {
		return nil, err
	}

	shmsink, err := newElement("shmsink", map[string]interface{}{
		"socket-path":         t.cfg.SocketPath,
		"shm-size":            t.cfg.ShmSize,
		"wait-for-connection": t.cfg.WaitForConnection,
	})
	if err != nil {
		return nil, err
	}

	if err := pipeline.AddMany(source, shmsink); err != nil {
		return nil, fmt.Errorf("failed to add producer elements: %w", err)
	}

	if err := gst.ElementLinkMany(source, shmsink); err != nil {
		return nil, fmt.Errorf("failed to link producer elements: %w", err)
	}

	if t.cfg.OnCaps != nil {
		if err := watchSinkCaps(shmsink, t.cfg.OnCaps); err != nil {
			return nil, err
		}
	}

	slog.Info("gstpipe: producer pipeline created",
		"pipeline", pipeline.GetName(),
		"source", t.cfg.SourceElement,
		"socket_path", t.cfg.SocketPath,
		"shm_size", t.cfg.ShmSize,
	)

	return NewGraph(pipeline), nil
}

// watchSinkCaps connects notify::caps on the element's sink pad
func watchSinkCaps(elem *gst.Element, onCaps func(capsfile.Descriptor)) error {
	pad := elem.GetStaticPad("sink")
	if pad == nil {
		return fmt.Errorf("failed to get sink pad from %s", elem.GetName())
	}

	if _, err := pad.Connect("notify::caps", func() {
		caps := pad.GetCurrentCaps()
		if caps == nil {
			onCaps(nil)
			return
		}
		onCaps(caps)
	}); err != nil {
		return fmt.Errorf("failed to connect notify::caps on %s: %w", elem.GetName(), err)
	}

	slog.Debug("gstpipe: caps notification installed", "element", elem.GetName())
	return nil
}
