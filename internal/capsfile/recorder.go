package capsfile

import (
	"log/slog"
	"strings"
	"sync"
)

// Recorder writes the first fixed caps it observes to a file.
//
// Observe is meant to be wired to the sink pad's caps notification. It is
// safe for concurrent use: notifications arrive on streaming threads.
type Recorder struct {
	path string

	mu       sync.Mutex
	recorded string
}

// NewRecorder returns a Recorder writing to path
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Path returns the caps file path
func (r *Recorder) Path() string {
	return r.path
}

// Observe handles one caps notification
//
// Nil or not-yet-fixed caps are ignored. The first fixed caps are written to
// the file; every later notification is ignored so the file stays unchanged
// for the rest of the run. A failed write is logged and retried on the next
// notification.
func (r *Recorder) Observe(d Descriptor) {
	if d == nil || !d.IsFixed() {
		slog.Debug("capsfile: caps not fixed yet, ignoring")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recorded != "" {
		return
	}

	if err := Write(r.path, d); err != nil {
		slog.Error("capsfile: failed to persist caps", "path", r.path, "error", err)
		return
	}
	r.recorded = strings.TrimSpace(d.String())

	slog.Info("caps negotiated", "caps", r.recorded, "path", r.path)
}

// Recorded returns the caps line written by this recorder, or "" if none yet
func (r *Recorder) Recorded() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}
