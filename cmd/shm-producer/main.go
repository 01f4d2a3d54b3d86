package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	shmbridge "github.com/e7canasta/orion-care-sensor/modules/shm-bridge"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/capsfile"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/gstpipe"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/runner"
)

// Version information
const version = "v0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to YAML configuration file (optional)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("shm-producer %s\n", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	runID := runner.NewRunID()
	slog.SetDefault(runner.NewLogger(os.Stdout, cfg, *debug, runID))

	slog.Info("starting shm producer",
		"socket_path", cfg.SocketPath,
		"caps_file", cfg.CapsFile,
		"source", cfg.Producer.SourceElement,
		"shm_size", cfg.Producer.ShmSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Interrupt ends Run cooperatively; the runner then stops and releases.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Debug("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	producer := &runner.Producer{
		Config: cfg,
		Loop:   gstpipe.NewMainLoop(),
		NewTopology: func(onCaps func(capsfile.Descriptor)) (shmbridge.Topology, error) {
			return gstpipe.NewProducerTopology(gstpipe.ProducerConfig{
				Name:              runner.PipelineName("shm-producer", runID),
				SourceElement:     cfg.Producer.SourceElement,
				Pattern:           cfg.Producer.Pattern,
				IsLive:            cfg.Producer.IsLive,
				SocketPath:        cfg.SocketPath,
				ShmSize:           cfg.Producer.ShmSize,
				WaitForConnection: cfg.Producer.WaitForConnection,
				OnCaps:            onCaps,
			})
		},
	}

	if err := producer.Run(ctx); err != nil {
		slog.Error("shm producer failed", "error", err)
		return 1
	}

	return 0
}
