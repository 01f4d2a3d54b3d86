package gstpipe

import (
	"log/slog"

	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
)

// MainLoop is a glib main loop on the default context.
//
// One MainLoop is created per program by its entry point and shared with the
// pipeline wrapper. Bus watches installed by Graph are dispatched from it.
type MainLoop struct {
	loop *glib.MainLoop
}

// NewMainLoop initializes GStreamer (safe to call multiple times) and creates the loop
func NewMainLoop() *MainLoop {
	gst.Init(nil)
	return &MainLoop{
		loop: glib.NewMainLoop(glib.MainContextDefault(), false),
	}
}

// Run blocks until Quit is called
func (m *MainLoop) Run() {
	m.loop.Run()
}

// Quit stops the loop
//
// The quit is scheduled as an idle callback on the loop's context so that a
// request issued before Run starts iterating still ends that Run.
func (m *MainLoop) Quit() {
	if _, err := glib.IdleAdd(func() bool {
		m.loop.Quit()
		return false
	}); err != nil {
		slog.Warn("gstpipe: idle quit not scheduled, quitting directly", "error", err)
		m.loop.Quit()
	}
}
