// Package shmbridge moves raw video between two processes over GStreamer's
// shared-memory transport.
//
// Two programs make up the bridge. shm-producer runs a test source into
// shmsink and records the negotiated frame format ("caps") to a file.
// shm-consumer reads that file, constrains shmsrc to exactly those caps and
// renders the frames. The socket path and the caps file are the only
// rendezvous between the two.
//
// This package holds the Pipeline lifecycle wrapper both programs use. The
// GStreamer bindings live in internal/gstpipe; the wrapper only sees the
// Graph and Loop interfaces, so it is testable without GStreamer.
//
// # Quick Start
//
//	loop := gstpipe.NewMainLoop()
//	topo, err := gstpipe.NewProducerTopology(gstpipe.ProducerConfig{
//	    Name:          "shm-producer",
//	    SourceElement: "videotestsrc",
//	    SocketPath:    "test_shm",
//	    ShmSize:       1 << 20,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pipeline, err := shmbridge.New(topo, loop)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pipeline.Shutdown()
//
//	reason, err := pipeline.Run(ctx) // blocks until EOS, bus error or ctx done
//
// # Lifecycle
//
//	Constructed ──Run──▶ Playing ──Stop──▶ Stopped ──Release──▶ Released
//	                         ▲                │
//	                         └──────Run───────┘
//
// Any failed state transition resets the pipeline to NULL and moves it to
// Stopped, so Release is always safe afterwards. Shutdown performs Stop and
// Release exactly once and may be deferred.
//
// # Termination
//
// Run returns a Reason:
//
//   - ReasonEOS: the source finished
//   - ReasonError: an element posted an error (e.g. the peer closed the socket)
//   - ReasonInterrupted: ctx was cancelled (SIGINT/SIGTERM in the programs)
//
// Bus errors are counted per category (transport, negotiation, resource,
// unknown) and exposed through Stats.
package shmbridge
