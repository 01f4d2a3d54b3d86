package shmbridge

// State is a pipeline state as understood by the media framework.
type State int

const (
	// StateNull is the fully torn-down state (no resources allocated)
	StateNull State = iota
	// StateReady allocates resources but does not process data
	StateReady
	// StatePaused prerolls the pipeline without running the clock
	StatePaused
	// StatePlaying processes data
	StatePlaying
)

// String returns the framework name of the state
func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// MessageType classifies bus messages relevant to the wrapper
type MessageType int

const (
	// MessageOther is any message the wrapper does not act on
	MessageOther MessageType = iota
	// MessageEOS signals that no further data will flow
	MessageEOS
	// MessageError signals a fatal element error
	MessageError
	// MessageWarning signals a non-fatal element warning
	MessageWarning
	// MessageStateChanged signals a state transition of some element
	MessageStateChanged
)

// String returns a human-readable representation of the message type
func (t MessageType) String() string {
	switch t {
	case MessageEOS:
		return "eos"
	case MessageError:
		return "error"
	case MessageWarning:
		return "warning"
	case MessageStateChanged:
		return "state-changed"
	default:
		return "other"
	}
}

// Message is a bus notification delivered from the framework to the wrapper.
type Message struct {
	Type MessageType
	// Source is the name of the element that posted the message
	Source string
	// Err is set for MessageError and MessageWarning
	Err error
	// Debug carries the framework's debug detail, if any
	Debug string
	// OldState and NewState are set for MessageStateChanged
	OldState State
	NewState State
}

// BusHandler receives bus messages. It is called from the event loop.
type BusHandler func(Message)

// Graph is the framework-managed element graph owned by one Pipeline.
//
// Implementations must guarantee:
//   - SetState reports a hard transition failure as a non-nil error
//   - Watch installs exactly one handler; messages are delivered while the Loop runs
//   - Unwatch is idempotent
type Graph interface {
	Name() string
	SetState(State) error
	Watch(BusHandler) error
	Unwatch()
}

// Loop is the program's event loop. Run blocks until Quit is called.
// Quit must be safe to call from any goroutine and any number of times.
type Loop interface {
	Run()
	Quit()
}

// Topology builds and links an element graph.
type Topology interface {
	Build() (Graph, error)
}

// TopologyFunc adapts a function to the Topology interface
type TopologyFunc func() (Graph, error)

// Build calls f()
func (f TopologyFunc) Build() (Graph, error) { return f() }

// Reason describes why Run returned
type Reason int

const (
	// ReasonNone means Run has not returned yet
	ReasonNone Reason = iota
	// ReasonEOS means end-of-stream was observed on the bus
	ReasonEOS
	// ReasonError means a fatal element error was observed on the bus
	ReasonError
	// ReasonInterrupted means the caller cancelled the run (operator signal)
	ReasonInterrupted
)

// String returns a human-readable representation of the reason
func (r Reason) String() string {
	switch r {
	case ReasonEOS:
		return "end-of-stream"
	case ReasonError:
		return "error"
	case ReasonInterrupted:
		return "interrupted"
	default:
		return "none"
	}
}

// Phase is the lifecycle phase of a Pipeline wrapper
type Phase int

const (
	// PhaseConstructed is the phase right after New
	PhaseConstructed Phase = iota
	// PhasePlaying is entered by Run and left by Stop or Release
	PhasePlaying
	// PhaseStopped is the phase after Stop or after a failed transition
	PhaseStopped
	// PhaseReleased is terminal
	PhaseReleased
)

// String returns a human-readable representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseConstructed:
		return "constructed"
	case PhasePlaying:
		return "playing"
	case PhaseStopped:
		return "stopped"
	case PhaseReleased:
		return "released"
	default:
		return "unknown"
	}
}

// PipelineStats contains bus telemetry for one Pipeline
type PipelineStats struct {
	// ErrorsTransport counts shared-memory transport errors
	ErrorsTransport uint64
	// ErrorsNegotiation counts caps negotiation errors
	ErrorsNegotiation uint64
	// ErrorsResource counts missing element / display / device errors
	ErrorsResource uint64
	// ErrorsUnknown counts unclassified errors
	ErrorsUnknown uint64
	// Warnings counts warning messages
	Warnings uint64
	// LastReason is the reason the last Run returned
	LastReason Reason
	// Phase is the current lifecycle phase
	Phase Phase
}
