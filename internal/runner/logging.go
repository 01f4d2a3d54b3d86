package runner

import (
	"io"
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/config"
	"github.com/google/uuid"
)

// NewRunID returns a unique identifier for one program run
func NewRunID() string {
	return uuid.New().String()
}

// PipelineName derives a readable pipeline name from the program and run id
func PipelineName(program, runID string) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return program + "-" + runID
}

// NewLogger builds the program logger
//
// Status lines go to w (stdout for both programs), one record per line.
// debug forces slog.LevelDebug regardless of cfg.LogLevel.
func NewLogger(w io.Writer, cfg *config.Config, debug bool, runID string) *slog.Logger {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("run_id", runID)
}
