package shmbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Pipeline drives one framework pipeline through its lifecycle.
//
// A Pipeline owns its Graph and the bus subscription installed on it. Both are
// created by New and torn down together by Release. Callers are expected to
// defer Shutdown right after New so that stop and release happen exactly once
// even on early return.
type Pipeline struct {
	graph Graph
	loop  Loop

	mu     sync.Mutex
	phase  Phase
	reason Reason

	// quit is the quit function for the active Run, nil otherwise
	quit func(Reason)

	shutdownOnce sync.Once
	shutdownErr  error

	// Error telemetry (atomic for thread-safety)
	errorsTransport   uint64
	errorsNegotiation uint64
	errorsResource    uint64
	errorsUnknown     uint64
	warnings          uint64
}

// New builds the topology and subscribes to its bus
//
// Element creation, linking and bus subscription must all succeed; otherwise
// the partially built graph is reset to NULL and an error wrapping ErrSetup is
// returned immediately.
func New(topo Topology, loop Loop) (*Pipeline, error) {
	if topo == nil || loop == nil {
		return nil, fmt.Errorf("%w: topology and loop are required", ErrSetup)
	}

	graph, err := topo.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}

	p := &Pipeline{
		graph: graph,
		loop:  loop,
		phase: PhaseConstructed,
	}

	if err := graph.Watch(p.handleMessage); err != nil {
		if resetErr := graph.SetState(StateNull); resetErr != nil {
			slog.Warn("shm-bridge: reset after failed bus watch", "error", resetErr)
		}
		return nil, fmt.Errorf("%w: bus watch: %w", ErrSetup, err)
	}

	slog.Debug("shm-bridge: pipeline constructed", "pipeline", graph.Name())

	return p, nil
}

// Name returns the name of the underlying graph
func (p *Pipeline) Name() string {
	return p.graph.Name()
}

// Phase returns the current lifecycle phase
func (p *Pipeline) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// SetState requests a pipeline state transition
//
// On failure the pipeline is forced back to NULL before the error is
// reported, so the handle is never left in an indeterminate state. The
// returned error is a *StateChangeError naming target.
//
// PLAYING is entered only through Run; requesting it here returns
// ErrInvalidPhase. A successful transition out of PLAYING after Run has
// returned moves the pipeline to PhaseStopped.
func (p *Pipeline) SetState(target State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == PhaseReleased {
		return ErrReleased
	}
	if target == StatePlaying {
		return fmt.Errorf("%w: PLAYING is entered by Run", ErrInvalidPhase)
	}

	if err := p.setStateLocked(target); err != nil {
		return err
	}
	if p.phase == PhasePlaying && p.quit == nil {
		p.phase = PhaseStopped
	}
	return nil
}

func (p *Pipeline) setStateLocked(target State) error {
	err := p.graph.SetState(target)
	if err == nil {
		slog.Debug("shm-bridge: state change requested",
			"pipeline", p.graph.Name(),
			"target", target.String(),
		)
		return nil
	}

	if resetErr := p.graph.SetState(StateNull); resetErr != nil {
		slog.Error("shm-bridge: reset to NULL failed",
			"pipeline", p.graph.Name(),
			"error", resetErr,
		)
	}
	p.phase = PhaseStopped

	// The graph is at NULL: an active Run must not keep waiting on it.
	if p.quit != nil {
		p.quit(ReasonError)
	}

	return &StateChangeError{Target: target, Err: err}
}

// Run sets the pipeline to PLAYING and blocks until end-of-stream, a fatal
// bus error, or cancellation of ctx.
//
// Run is the only blocking call of the wrapper. Bus errors end the wait and
// are reported through the returned Reason, not as an error. The returned
// error is non-nil only if the pipeline cannot be started, in which case it
// has already been reset to NULL.
//
// Run is valid from PhaseConstructed and PhaseStopped.
func (p *Pipeline) Run(ctx context.Context) (Reason, error) {
	p.mu.Lock()
	switch p.phase {
	case PhaseReleased:
		p.mu.Unlock()
		return ReasonNone, ErrReleased
	case PhasePlaying:
		p.mu.Unlock()
		return ReasonNone, fmt.Errorf("%w: run while %s", ErrInvalidPhase, p.phase)
	}
	if p.quit != nil {
		p.mu.Unlock()
		return ReasonNone, fmt.Errorf("%w: another run is active", ErrInvalidPhase)
	}

	if err := ctx.Err(); err != nil {
		p.mu.Unlock()
		return ReasonInterrupted, nil
	}

	if err := p.setStateLocked(StatePlaying); err != nil {
		p.mu.Unlock()
		return ReasonNone, err
	}
	p.phase = PhasePlaying
	p.reason = ReasonNone

	// First quit wins: the reason is recorded once per run.
	var quitOnce sync.Once
	p.quit = func(r Reason) {
		quitOnce.Do(func() {
			p.reason = r
			p.loop.Quit()
		})
	}
	quit := p.quit
	p.mu.Unlock()

	finished := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			p.mu.Lock()
			quit(ReasonInterrupted)
			p.mu.Unlock()
		case <-finished:
		}
	}()

	slog.Info("shm-bridge: pipeline playing", "pipeline", p.graph.Name())

	p.loop.Run()

	close(finished)
	<-watcherDone

	p.mu.Lock()
	p.quit = nil
	reason := p.reason
	p.mu.Unlock()

	slog.Debug("shm-bridge: run finished",
		"pipeline", p.graph.Name(),
		"reason", reason.String(),
	)

	return reason, nil
}

// Stop sets the pipeline to READY. Resources are retained; Run may be called again.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == PhaseReleased {
		return ErrReleased
	}

	if err := p.setStateLocked(StateReady); err != nil {
		return err
	}
	p.phase = PhaseStopped

	slog.Debug("shm-bridge: pipeline stopped", "pipeline", p.graph.Name())
	return nil
}

// Release unsubscribes from the bus, sets the pipeline to NULL and
// invalidates the handle.
//
// Call this method exactly once when the Pipeline is no longer used, after
// Run has returned. A Release issued while Run is blocked ends that Run. Forgetting to do so leaks the framework resources held by
// the graph. Shutdown calls it for you.
func (p *Pipeline) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == PhaseReleased {
		return ErrReleased
	}

	// Releasing under an active Run ends it; Run then returns ReasonInterrupted.
	if p.quit != nil {
		p.quit(ReasonInterrupted)
	}

	p.graph.Unwatch()
	err := p.setStateLocked(StateNull)
	p.phase = PhaseReleased

	slog.Debug("shm-bridge: pipeline released", "pipeline", p.graph.Name())
	return err
}

// Shutdown stops and releases the pipeline exactly once
//
// It is safe to defer right after New and to call again explicitly; only the
// first call has an effect and later calls return the first result. Stop is
// skipped if the pipeline was already released.
func (p *Pipeline) Shutdown() error {
	p.shutdownOnce.Do(func() {
		var errs []error

		stopErr := p.Stop()
		if stopErr != nil && !errors.Is(stopErr, ErrReleased) {
			errs = append(errs, stopErr)
		}

		releaseErr := p.Release()
		if releaseErr != nil && !errors.Is(releaseErr, ErrReleased) {
			errs = append(errs, releaseErr)
		}

		p.shutdownErr = errors.Join(errs...)
	})
	return p.shutdownErr
}

// Stats returns bus telemetry and lifecycle status
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	phase, reason := p.phase, p.reason
	p.mu.Unlock()

	return PipelineStats{
		ErrorsTransport:   atomic.LoadUint64(&p.errorsTransport),
		ErrorsNegotiation: atomic.LoadUint64(&p.errorsNegotiation),
		ErrorsResource:    atomic.LoadUint64(&p.errorsResource),
		ErrorsUnknown:     atomic.LoadUint64(&p.errorsUnknown),
		Warnings:          atomic.LoadUint64(&p.warnings),
		LastReason:        reason,
		Phase:             phase,
	}
}

// handleMessage is the bus handler installed by New
//
// Error and end-of-stream messages always terminate the active Run.
func (p *Pipeline) handleMessage(msg Message) {
	switch msg.Type {
	case MessageEOS:
		slog.Info("shm-bridge: end of stream received", "pipeline", p.graph.Name())
		p.quitRun(ReasonEOS)

	case MessageError:
		category := ClassifyError(msg.Err, msg.Debug)
		p.countError(category)

		slog.Error(fmt.Sprintf("error from %s: %v (%s)", msg.Source, msg.Err, msg.Debug),
			"element", msg.Source,
			"category", category.String(),
			"pipeline", p.graph.Name(),
		)
		p.quitRun(ReasonError)

	case MessageWarning:
		atomic.AddUint64(&p.warnings, 1)
		slog.Warn("shm-bridge: pipeline warning",
			"element", msg.Source,
			"warning", msg.Err,
			"debug", msg.Debug,
		)

	case MessageStateChanged:
		if msg.Source == p.graph.Name() {
			slog.Debug("shm-bridge: pipeline state changed",
				"from", msg.OldState.String(),
				"to", msg.NewState.String(),
			)
		}
	}
}

func (p *Pipeline) quitRun(r Reason) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.quit == nil {
		slog.Debug("shm-bridge: bus termination outside of run ignored", "reason", r.String())
		return
	}
	p.quit(r)
}

func (p *Pipeline) countError(category ErrorCategory) {
	switch category {
	case ErrCategoryTransport:
		atomic.AddUint64(&p.errorsTransport, 1)
	case ErrCategoryNegotiation:
		atomic.AddUint64(&p.errorsNegotiation, 1)
	case ErrCategoryResource:
		atomic.AddUint64(&p.errorsResource, 1)
	default:
		atomic.AddUint64(&p.errorsUnknown, 1)
	}
}
