package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	shmbridge "github.com/e7canasta/orion-care-sensor/modules/shm-bridge"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/capsfile"
	"github.com/e7canasta/orion-care-sensor/modules/shm-bridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const negotiatedCaps = "video/x-raw, format=(string)I420, width=(int)320, height=(int)240, framerate=(fraction)30/1"

type fakeCaps struct {
	fixed bool
	s     string
}

func (c fakeCaps) IsFixed() bool  { return c.fixed }
func (c fakeCaps) String() string { return c.s }

// fakeGraph simulates a pipeline; onPlaying runs when PLAYING is requested.
type fakeGraph struct {
	mu        sync.Mutex
	states    []shmbridge.State
	handler   shmbridge.BusHandler
	unwatched int
	onPlaying func()
}

func (g *fakeGraph) Name() string { return "fake" }

func (g *fakeGraph) SetState(s shmbridge.State) error {
	g.mu.Lock()
	g.states = append(g.states, s)
	onPlaying := g.onPlaying
	g.mu.Unlock()

	if s == shmbridge.StatePlaying && onPlaying != nil {
		onPlaying()
	}
	return nil
}

func (g *fakeGraph) Watch(h shmbridge.BusHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = h
	return nil
}

func (g *fakeGraph) Unwatch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = nil
	g.unwatched++
}

func (g *fakeGraph) post(msg shmbridge.Message) {
	g.mu.Lock()
	h := g.handler
	g.mu.Unlock()
	if h != nil {
		h(msg)
	}
}

func (g *fakeGraph) history() []shmbridge.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]shmbridge.State(nil), g.states...)
}

// fakeLoop blocks Run until Quit and reports when it is running.
type fakeLoop struct {
	quitCh  chan struct{}
	started chan struct{}
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{
		quitCh:  make(chan struct{}, 1),
		started: make(chan struct{}, 1),
	}
}

func (l *fakeLoop) Run() {
	l.started <- struct{}{}
	<-l.quitCh
}

func (l *fakeLoop) Quit() {
	select {
	case l.quitCh <- struct{}{}:
	default:
	}
}

func (l *fakeLoop) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-l.started:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never started")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CapsFile = filepath.Join(t.TempDir(), capsfile.DefaultPath)
	return cfg
}

func runAsync(ctx context.Context, run func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not return")
		return nil
	}
}

func TestProducer_InterruptRemovesCapsFile(t *testing.T) {
	cfg := testConfig(t)
	loop := newFakeLoop()
	graph := &fakeGraph{}

	producer := &Producer{
		Config: cfg,
		Loop:   loop,
		NewTopology: func(onCaps func(capsfile.Descriptor)) (shmbridge.Topology, error) {
			// Negotiation settles on the transition to PLAYING
			graph.onPlaying = func() {
				onCaps(fakeCaps{fixed: false, s: "video/x-raw"})
				onCaps(fakeCaps{fixed: true, s: negotiatedCaps})
			}
			return shmbridge.TopologyFunc(func() (shmbridge.Graph, error) { return graph, nil }), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, producer.Run)
	loop.waitStarted(t)

	caps, err := capsfile.Read(cfg.CapsFile)
	require.NoError(t, err, "caps file must exist while playing")
	assert.Equal(t, negotiatedCaps, caps)

	cancel()
	require.NoError(t, waitDone(t, done), "interrupt is a normal termination")

	_, err = os.Stat(cfg.CapsFile)
	assert.True(t, os.IsNotExist(err), "producer must remove the caps file")

	assert.Equal(t,
		[]shmbridge.State{shmbridge.StatePlaying, shmbridge.StateReady, shmbridge.StateNull},
		graph.history(),
		"stop and release must happen exactly once",
	)
	assert.Equal(t, 1, graph.unwatched)
}

func TestProducer_CapsNeverFixed(t *testing.T) {
	cfg := testConfig(t)
	loop := newFakeLoop()
	graph := &fakeGraph{}

	producer := &Producer{
		Config: cfg,
		Loop:   loop,
		NewTopology: func(onCaps func(capsfile.Descriptor)) (shmbridge.Topology, error) {
			graph.onPlaying = func() { onCaps(nil) }
			return shmbridge.TopologyFunc(func() (shmbridge.Graph, error) { return graph, nil }), nil
		},
	}

	done := runAsync(context.Background(), producer.Run)
	loop.waitStarted(t)

	_, err := os.Stat(cfg.CapsFile)
	assert.True(t, os.IsNotExist(err), "no caps file before caps are fixed")

	graph.post(shmbridge.Message{Type: shmbridge.MessageEOS, Source: "fake"})
	assert.NoError(t, waitDone(t, done))
}

func TestProducer_BusErrorEndsRun(t *testing.T) {
	cfg := testConfig(t)
	loop := newFakeLoop()
	graph := &fakeGraph{}

	producer := &Producer{
		Config: cfg,
		Loop:   loop,
		NewTopology: func(func(capsfile.Descriptor)) (shmbridge.Topology, error) {
			return shmbridge.TopologyFunc(func() (shmbridge.Graph, error) { return graph, nil }), nil
		},
	}

	done := runAsync(context.Background(), producer.Run)
	loop.waitStarted(t)

	graph.post(shmbridge.Message{
		Type:   shmbridge.MessageError,
		Source: "shmsink0",
		Err:    errors.New("Could not open socket test_shm"),
	})
	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, 1, graph.unwatched)
}

func TestProducer_SetupFailure(t *testing.T) {
	buildErr := errors.New("no element \"shmsink\"")

	producer := &Producer{
		Config: testConfig(t),
		Loop:   newFakeLoop(),
		NewTopology: func(func(capsfile.Descriptor)) (shmbridge.Topology, error) {
			return shmbridge.TopologyFunc(func() (shmbridge.Graph, error) { return nil, buildErr }), nil
		},
	}

	err := producer.Run(context.Background())
	assert.ErrorIs(t, err, shmbridge.ErrSetup)
	assert.ErrorIs(t, err, buildErr)
}

func TestConsumer_MissingCapsFile(t *testing.T) {
	cfg := testConfig(t)
	built := false

	consumer := &Consumer{
		Config: cfg,
		Loop:   newFakeLoop(),
		NewTopology: func(string) (shmbridge.Topology, error) {
			built = true
			return nil, errors.New("must not be called")
		},
	}

	err := consumer.Run(context.Background())
	assert.NoError(t, err, "missing caps is a clean exit")
	assert.False(t, built, "no pipeline may be built without caps")
}

func TestConsumer_WaitForCapsTimesOut(t *testing.T) {
	cfg := testConfig(t)
	cfg.Consumer.WaitForCaps = 100 * time.Millisecond
	built := false

	consumer := &Consumer{
		Config: cfg,
		Loop:   newFakeLoop(),
		NewTopology: func(string) (shmbridge.Topology, error) {
			built = true
			return nil, errors.New("must not be called")
		},
	}

	start := time.Now()
	err := consumer.Run(context.Background())
	assert.NoError(t, err)
	assert.False(t, built)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "consumer must wait before giving up")
}

func TestConsumer_WaitForCapsError(t *testing.T) {
	cfg := testConfig(t)
	// Unwatchable directory: not an availability problem, reported as failure
	cfg.CapsFile = filepath.Join(t.TempDir(), "missing-dir", capsfile.DefaultPath)
	cfg.Consumer.WaitForCaps = time.Second

	consumer := &Consumer{
		Config: cfg,
		Loop:   newFakeLoop(),
		NewTopology: func(string) (shmbridge.Topology, error) {
			return nil, errors.New("must not be called")
		},
	}

	err := consumer.Run(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, capsfile.ErrUnavailable)
}

func TestConsumer_BuildsWithRecordedCaps(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, capsfile.Write(cfg.CapsFile, fakeCaps{fixed: true, s: negotiatedCaps}))

	loop := newFakeLoop()
	graph := &fakeGraph{}
	var gotCaps string

	consumer := &Consumer{
		Config: cfg,
		Loop:   loop,
		NewTopology: func(caps string) (shmbridge.Topology, error) {
			gotCaps = caps
			return shmbridge.TopologyFunc(func() (shmbridge.Graph, error) { return graph, nil }), nil
		},
	}

	done := runAsync(context.Background(), consumer.Run)
	loop.waitStarted(t)

	// Producer went away
	graph.post(shmbridge.Message{
		Type:   shmbridge.MessageError,
		Source: "shmsrc0",
		Err:    errors.New("Failed to read from shmsrc"),
		Debug:  "Control socket has closed",
	})
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, negotiatedCaps, gotCaps)
	assert.Equal(t,
		[]shmbridge.State{shmbridge.StatePlaying, shmbridge.StateReady, shmbridge.StateNull},
		graph.history(),
	)

	caps, err := capsfile.Read(cfg.CapsFile)
	require.NoError(t, err, "consumer must not remove the caps file")
	assert.Equal(t, negotiatedCaps, caps)
}

func TestPipelineName(t *testing.T) {
	assert.Equal(t, "shm-producer-1a2b3c4d", PipelineName("shm-producer", "1a2b3c4d-0000-4000-8000-000000000000"))
	assert.Equal(t, "shm-consumer-abc", PipelineName("shm-consumer", "abc"))
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestNewLogger(t *testing.T) {
	t.Run("json with run id", func(t *testing.T) {
		cfg := config.Default()
		cfg.LogFormat = "json"

		var buf bytes.Buffer
		logger := NewLogger(&buf, cfg, false, "run-1")
		logger.Info("caps negotiated", "caps", negotiatedCaps)
		logger.Debug("hidden")

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.Len(t, lines, 1)

		var record map[string]any
		require.NoError(t, json.Unmarshal(lines[0], &record))
		assert.Equal(t, "caps negotiated", record["msg"])
		assert.Equal(t, "run-1", record["run_id"])
		assert.Equal(t, negotiatedCaps, record["caps"])
	})

	t.Run("debug flag overrides level", func(t *testing.T) {
		cfg := config.Default()
		cfg.LogLevel = "error"

		var buf bytes.Buffer
		NewLogger(&buf, cfg, true, "run-2").Debug("visible")
		assert.Contains(t, buf.String(), "msg=visible")
		assert.Contains(t, buf.String(), "run_id=run-2")
	})
}
