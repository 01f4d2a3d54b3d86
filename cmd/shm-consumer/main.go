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
		fmt.Printf("shm-consumer %s\n", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	runID := runner.NewRunID()
	slog.SetDefault(runner.NewLogger(os.Stdout, cfg, *debug, runID))

	slog.Info("starting shm consumer",
		"socket_path", cfg.SocketPath,
		"caps_file", cfg.CapsFile,
		"display_sink", cfg.Consumer.DisplaySink,
		"wait_for_caps", cfg.Consumer.WaitForCaps,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	consumer := &runner.Consumer{
		Config: cfg,
		Loop:   gstpipe.NewMainLoop(),
		NewTopology: func(caps string) (shmbridge.Topology, error) {
			return gstpipe.NewConsumerTopology(gstpipe.ConsumerConfig{
				Name:        runner.PipelineName("shm-consumer", runID),
				SocketPath:  cfg.SocketPath,
				IsLive:      cfg.Consumer.IsLive,
				Passthrough: cfg.Consumer.Passthrough,
				DisplaySink: cfg.Consumer.DisplaySink,
				Caps:        caps,
			})
		},
	}

	if err := consumer.Run(ctx); err != nil {
		slog.Error("shm consumer failed", "error", err)
		return 1
	}

	return 0
}
