package capsfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Wait blocks until the caps file at path exists with non-empty content and
// returns its caps string.
//
// The parent directory is watched for Create and Write events on path. If
// the file is already readable Wait returns immediately. Wait returns an
// error wrapping ErrUnavailable when ctx is done first.
func Wait(ctx context.Context, path string) (string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("capsfile: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return "", fmt.Errorf("capsfile: watch %s: %w", dir, err)
	}

	// Checked after Add so a file created in between is not missed.
	if caps, err := Read(path); err == nil {
		return caps, nil
	}

	slog.Info("capsfile: waiting for caps file", "path", path)

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: gave up waiting for %s: %w", ErrUnavailable, path, ctx.Err())

		case event, ok := <-watcher.Events:
			if !ok {
				return "", fmt.Errorf("%w: watcher closed", ErrUnavailable)
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			// A Create may precede the write of the line; keep waiting if empty.
			caps, err := Read(path)
			if err != nil {
				slog.Debug("capsfile: caps file not ready", "event", event.Op.String(), "error", err)
				continue
			}
			return caps, nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return "", fmt.Errorf("%w: watcher closed", ErrUnavailable)
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				if caps, readErr := Read(path); readErr == nil {
					return caps, nil
				}
				continue
			}
			slog.Warn("capsfile: watcher error", "error", err)
		}
	}
}
