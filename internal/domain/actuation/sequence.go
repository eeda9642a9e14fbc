package actuation

import "time"

// Step moves one actuator to TargetAngle, keeps it there for Hold,
// returns it to its default angle and then waits Settle.
type Step struct {
	// ActuatorID is the actuator this step drives.
	ActuatorID ActuatorID
	// TargetAngle is the angle commanded when the step starts.
	TargetAngle int
	// Hold is how long the actuator stays at TargetAngle.
	Hold time.Duration
	// Settle is the pause after returning to the default angle,
	// matching the panel's own reaction latency.
	Settle time.Duration
}

// Sequence is a named, ordered list of steps.
type Sequence struct {
	// Name is the registry key callers use to request the sequence.
	Name string
	// Steps are executed strictly in order.
	Steps []Step
}

// Duration returns the nominal run time of the sequence when every step
// takes travel to reach its target.
func (s Sequence) Duration(travel time.Duration) time.Duration {
	var total time.Duration

	for _, step := range s.Steps {
		total += travel + step.Hold + step.Settle
	}

	return total
}

// Clone returns a copy of the sequence that does not share its step slice.
func (s Sequence) Clone() Sequence {
	steps := make([]Step, len(s.Steps))
	copy(steps, s.Steps)

	return Sequence{
		Name:  s.Name,
		Steps: steps,
	}
}

// Concat joins sequences into one named sequence. The pause is added to the
// settle time of the last step of every sequence except the final one.
func Concat(name string, pause time.Duration, parts ...Sequence) Sequence {
	result := Sequence{Name: name}

	for i, part := range parts {
		steps := part.Clone().Steps
		if i < len(parts)-1 && len(steps) > 0 {
			steps[len(steps)-1].Settle += pause
		}

		result.Steps = append(result.Steps, steps...)
	}

	return result
}
