// Package capsfile persists the negotiated frame format ("caps") between the
// producer and the consumer.
//
// The file holds exactly one line: the canonical caps string followed by a
// newline. It is written once by the producer, read once by the consumer and
// removed by the producer on shutdown. There is no locking and no freshness
// check: a consumer may read a stale file left by a crashed producer.
package capsfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultPath is the caps file path relative to the working directory
const DefaultPath = "caps.txt"

// ErrUnavailable is returned by Read when the caps file is missing,
// unreadable or empty.
var ErrUnavailable = errors.New("capsfile: caps unavailable")

// Descriptor is a frame format descriptor as produced by the framework.
type Descriptor interface {
	// IsFixed reports whether the format is fully determined (no ranges, no lists)
	IsFixed() bool
	// String returns the canonical serialization
	String() string
}

// Write serializes d to path, overwriting any prior content.
func Write(path string, d Descriptor) error {
	if d == nil {
		return fmt.Errorf("capsfile: nil descriptor")
	}
	line := strings.TrimSpace(d.String())
	if line == "" {
		return fmt.Errorf("capsfile: empty descriptor")
	}
	if err := os.WriteFile(path, []byte(line+"\n"), 0o644); err != nil {
		return fmt.Errorf("capsfile: write %s: %w", path, err)
	}
	return nil
}

// Read returns the caps string stored at path, without the trailing newline.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	caps := strings.TrimSpace(string(data))
	if caps == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrUnavailable, path)
	}

	return caps, nil
}

// Remove deletes the caps file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("capsfile: remove %s: %w", path, err)
	}
	return nil
}
