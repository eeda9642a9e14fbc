package actuation

import (
	"errors"
	"fmt"
)

// Phase is the position of the active run inside its current step.
type Phase int

const (
	// PhaseMoving commands the step's actuator to its target angle.
	PhaseMoving Phase = iota
	// PhaseHolding keeps the actuator at the target angle.
	PhaseHolding
	// PhaseSettling waits after the actuator returned to its default angle.
	PhaseSettling
	// PhaseDone marks a finished run; it is cleared on the next tick.
	PhaseDone
)

// String returns the lower-case phase name used in logs and APIs.
func (p Phase) String() string {
	switch p {
	case PhaseMoving:
		return "moving"
	case PhaseHolding:
		return "holding"
	case PhaseSettling:
		return "settling"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Status describes what the sequencer is doing right now.
type Status struct {
	// Running is false when no run exists.
	Running bool
	// Sequence is the name of the active sequence.
	Sequence string
	// StepIndex is the zero-based index of the current step.
	StepIndex int
	// Phase is the phase of the current step.
	Phase Phase
}

// Idle returns the status of a sequencer without a run.
func Idle() Status {
	return Status{}
}

// String renders the status for logs and CLI output.
func (s Status) String() string {
	if !s.Running {
		return "idle"
	}

	return fmt.Sprintf("running %s step %d (%s)", s.Sequence, s.StepIndex, s.Phase)
}

var (
	// ErrBusy is returned when a run is requested while another run is active.
	ErrBusy = errors.New("actuation run already in progress")
	// ErrUnknownSequence is returned when the requested sequence is not registered.
	ErrUnknownSequence = errors.New("unknown sequence")
)
