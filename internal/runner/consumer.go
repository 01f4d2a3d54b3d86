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

// ConsumerTopologyFunc builds the consumer topology constrained to caps
type ConsumerTopologyFunc func(caps string) (shmbridge.Topology, error)

// Consumer runs the shared-memory source → display program
type Consumer struct {
	Config      *config.Config
	NewTopology ConsumerTopologyFunc
	Loop        shmbridge.Loop
}

// Run executes the consumer lifecycle
//
// The caps file is read before anything else. When it is missing or
// unreadable the failure is logged and Run returns nil without building a
// pipeline: no producer means nothing to display, which is a clean exit.
// The caps file is never removed here; it belongs to the producer.
func (c *Consumer) Run(ctx context.Context) error {
	caps, err := c.readCaps(ctx)
	if err != nil {
		slog.Error("consumer: cannot read caps", "path", c.Config.CapsFile, "error", err)
		slog.Info("Exiting")
		if errors.Is(err, capsfile.ErrUnavailable) {
			return nil
		}
		return err
	}
	slog.Info("consumer: caps loaded", "caps", caps)

	topo, err := c.NewTopology(caps)
	if err != nil {
		return fmt.Errorf("consumer: %w: %w", shmbridge.ErrSetup, err)
	}

	pipeline, err := shmbridge.New(topo, c.Loop)
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer pipeline.Shutdown()

	reason, runErr := pipeline.Run(ctx)
	if runErr != nil {
		slog.Error("consumer: pipeline failed to start", "error", runErr)
	}
	logRunEnd(reason)

	slog.Info("Stopping pipeline")
	shutdownErr := pipeline.Shutdown()
	if shutdownErr != nil {
		slog.Error("consumer: shutdown failed", "error", shutdownErr)
	}

	logStats(pipeline.Stats())
	slog.Info("Exiting...")

	return errors.Join(runErr, shutdownErr)
}

func (c *Consumer) readCaps(ctx context.Context) (string, error) {
	wait := c.Config.Consumer.WaitForCaps
	if wait <= 0 {
		return capsfile.Read(c.Config.CapsFile)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return capsfile.Wait(waitCtx, c.Config.CapsFile)
}
