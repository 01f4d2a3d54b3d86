package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	shmbridge "github.com/e7canasta/orion-care-sensor/modules/shm-bridge"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/capsfile"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/config"
)

// ProducerTopologyFunc builds the producer topology; onCaps must be wired to
// the shared-memory sink's caps notification.
type ProducerTopologyFunc func(onCaps func(capsfile.Descriptor)) (shmbridge.Topology, error)

// Producer runs the source → shared-memory sink program
type Producer struct {
	Config      *config.Config
	NewTopology ProducerTopologyFunc
	Loop        shmbridge.Loop
}

// Run executes the producer lifecycle
//
// This method:
//  1. Builds the pipeline with the caps recorder wired to the sink pad
//  2. Blocks in Pipeline.Run until interrupt, end-of-stream or bus error
//  3. Stops and releases the pipeline (exactly once)
//  4. Removes the caps file it owns
//
// An interrupt is a normal termination and yields a nil error.
func (p *Producer) Run(ctx context.Context) error {
	recorder := capsfile.NewRecorder(p.Config.CapsFile)

	topo, err := p.NewTopology(recorder.Observe)
	if err != nil {
		return fmt.Errorf("producer: %w: %w", shmbridge.ErrSetup, err)
	}

	pipeline, err := shmbridge.New(topo, p.Loop)
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer pipeline.Shutdown()

	reason, runErr := pipeline.Run(ctx)
	if runErr != nil {
		slog.Error("producer: pipeline failed to start", "error", runErr)
	}
	logRunEnd(reason)

	slog.Info("Exiting")
	shutdownErr := pipeline.Shutdown()
	if shutdownErr != nil {
		slog.Error("producer: shutdown failed", "error", shutdownErr)
	}

	removeErr := capsfile.Remove(recorder.Path())
	if removeErr != nil {
		slog.Error("producer: failed to remove caps file", "error", removeErr)
	} else if recorder.Recorded() != "" {
		slog.Debug("producer: caps file removed", "path", recorder.Path())
	}

	logStats(pipeline.Stats())

	return errors.Join(runErr, shutdownErr, removeErr)
}

func logRunEnd(reason shmbridge.Reason) {
	if reason == shmbridge.ReasonInterrupted {
		slog.Info("Interrupted")
		return
	}
	slog.Info("pipeline finished", "reason", reason.String())
}

func logStats(stats shmbridge.PipelineStats) {
	total := stats.ErrorsTransport + stats.ErrorsNegotiation + stats.ErrorsResource + stats.ErrorsUnknown
	if total == 0 && stats.Warnings == 0 {
		return
	}
	slog.Info("pipeline bus telemetry",
		"errors_transport", stats.ErrorsTransport,
		"errors_negotiation", stats.ErrorsNegotiation,
		"errors_resource", stats.ErrorsResource,
		"errors_unknown", stats.ErrorsUnknown,
		"warnings", stats.Warnings,
	)
}
