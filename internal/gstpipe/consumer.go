package gstpipe

import (
	"fmt"
	"log/slog"

	shmbridge "github.com/e7canasta/orion-care-sensor/modules/shm-bridge"
	"github.com/tinyzimmer/go-gst/gst"
)

// ConsumerConfig contains configuration for the consumer pipeline
type ConsumerConfig struct {
	Name        string
	SocketPath  string
	IsLive      bool
	Passthrough string // e.g. identity
	DisplaySink string // e.g. xvimagesink
	Caps        string // serialized caps read from the caps file
}

// ConsumerTopology builds the pipeline
//
//	shmsrc →(caps) passthrough → display sink
//
// The shmsrc → passthrough link is filtered by Caps, so the consumer never
// accepts a differently shaped stream.
type ConsumerTopology struct {
	cfg ConsumerConfig
}

// NewConsumerTopology validates cfg and returns the topology
func NewConsumerTopology(cfg ConsumerConfig) (*ConsumerTopology, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("gstpipe: socket path is required")
	}
	if cfg.Caps == "" {
		return nil, fmt.Errorf("gstpipe: caps are required")
	}
	if cfg.Passthrough == "" {
		cfg.Passthrough = "identity"
	}
	if cfg.DisplaySink == "" {
		return nil, fmt.Errorf("gstpipe: display sink is required")
	}
	return &ConsumerTopology{cfg: cfg}, nil
}

// Build parses the caps, creates and links the consumer elements
func (t *ConsumerTopology) Build() (shmbridge.Graph, error) {
	gst.Init(nil)

	caps := gst.NewCapsFromString(t.cfg.Caps)
	if caps == nil {
		return nil, fmt.Errorf("failed to parse caps %q", t.cfg.Caps)
	}

	pipeline, err := gst.NewPipeline(t.cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	shmsrc, err := newElement("shmsrc", map[string]interface{}{
		"socket-path": t.cfg.SocketPath,
		"is-live":     t.cfg.IsLive,
	})
	if err != nil {
		return nil, err
	}

	passthrough, err := newElement(t.cfg.Passthrough, nil)
	if err != nil {
		return nil, err
	}

	sink, err := newElement(t.cfg.DisplaySink, nil)
	if err != nil {
		return nil, err
	}

	if err := pipeline.AddMany(shmsrc, passthrough, sink); err != nil {
		return nil, fmt.Errorf("failed to add consumer elements: %w", err)
	}

	if err := shmsrc.LinkFiltered(passthrough, caps); err != nil {
		return nil, fmt.Errorf("failed to link shmsrc with caps %q: %w", t.cfg.Caps, err)
	}

	if err := passthrough.Link(sink); err != nil {
		return nil, fmt.Errorf("failed to link %s to %s: %w", t.cfg.Passthrough, t.cfg.DisplaySink, err)
	}

	slog.Info("gstpipe: consumer pipeline created",
		"pipeline", pipeline.GetName(),
		"socket_path", t.cfg.SocketPath,
		"display_sink", t.cfg.DisplaySink,
		"caps", caps.String(),
	)

	return NewGraph(pipeline), nil
}
