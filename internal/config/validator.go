package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.SocketPath == "" {
		return fmt.Errorf("socket_path is required")
	}
	if cfg.CapsFile == "" {
		return fmt.Errorf("caps_file is required")
	}

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be 'text' or 'json', got %q", cfg.LogFormat)
	}

	if cfg.Producer.SourceElement == "" {
		return fmt.Errorf("producer.source_element is required")
	}
	if cfg.Producer.ShmSize == 0 {
		return fmt.Errorf("producer.shm_size must be > 0")
	}
	if cfg.Producer.Pattern < 0 {
		return fmt.Errorf("producer.pattern must be >= 0, got %d", cfg.Producer.Pattern)
	}

	if cfg.Consumer.DisplaySink == "" {
		return fmt.Errorf("consumer.display_sink is required")
	}
	if cfg.Consumer.Passthrough == "" {
		cfg.Consumer.Passthrough = "identity" // default
	}
	if cfg.Consumer.WaitForCaps < 0 {
		return fmt.Errorf("consumer.wait_for_caps must be >= 0, got %s", cfg.Consumer.WaitForCaps)
	}

	return nil
}

// ParseLevel maps a log_level value to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be debug, info, warn or error, got %q", level)
	}
}
