package shmbridge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSetup is returned by New when element creation or linking fails
	ErrSetup = errors.New("shm-bridge: pipeline setup failed")
	// ErrStateChange is wrapped by every StateChangeError
	ErrStateChange = errors.New("shm-bridge: state change failed")
	// ErrReleased is returned by any operation on a released Pipeline
	ErrReleased = errors.New("shm-bridge: pipeline released")
	// ErrInvalidPhase is returned by Run while another Run is active, and by
	// SetState for PLAYING (only Run enters it)
	ErrInvalidPhase = errors.New("shm-bridge: invalid lifecycle phase")
)

// StateChangeError reports a failed transition. The pipeline has already been
// reset to NULL when this error is returned.
type StateChangeError struct {
	Target State
	Err    error
}

func (e *StateChangeError) Error() string {
	return fmt.Sprintf(
		"shm-bridge: failure changing state of the pipeline to %s, currently reset to NULL: %v",
		e.Target, e.Err,
	)
}

// Unwrap exposes both ErrStateChange and the framework error to errors.Is
func (e *StateChangeError) Unwrap() []error {
	return []error{ErrStateChange, e.Err}
}

// ErrorCategory represents the classification of bus errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryTransport indicates shared-memory socket failures (peer gone, path busy)
	ErrCategoryTransport ErrorCategory = iota
	// ErrCategoryNegotiation indicates caps/format negotiation failures
	ErrCategoryNegotiation
	// ErrCategoryResource indicates missing plugins, display or device failures
	ErrCategoryResource
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryTransport:
		return "transport"
	case ErrCategoryNegotiation:
		return "negotiation"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

var (
	negotiationKeywords = []string{
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"format",
		"could not link",
	}

	transportKeywords = []string{
		"shm",
		"socket",
		"connection",
		"control socket",
		"broken pipe",
		"shared memory",
		"address already in use",
	}

	resourceKeywords = []string{
		"display",
		"xv",
		"window",
		"device",
		"no such element",
		"missing plugin",
		"no element",
		"permission denied",
	}
)

// ClassifyError analyzes a bus error and categorizes it for telemetry
//
// Classification is keyword based, checked in priority order:
// negotiation, transport, resource. The error message is tried first; the
// debug string only when the message alone is unclassified, since debug
// strings carry element paths (e.g. "GstShmSrc:shmsrc0") that would
// otherwise match every error as transport.
func ClassifyError(err error, debug string) ErrorCategory {
	if err == nil {
		return ErrCategoryUnknown
	}

	if category := classifyText(strings.ToLower(err.Error())); category != ErrCategoryUnknown {
		return category
	}
	return classifyText(strings.ToLower(debug))
}

func classifyText(s string) ErrorCategory {
	switch {
	case containsAny(s, negotiationKeywords):
		return ErrCategoryNegotiation
	case containsAny(s, transportKeywords):
		return ErrCategoryTransport
	case containsAny(s, resourceKeywords):
		return ErrCategoryResource
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
