package sequencer

import (
	"time"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
)

// Names of the built-in sequences.
const (
	OpenFirstDoor  = "openFirstDoor"
	OpenSecondDoor = "openSecondDoor"
	OpenBothDoors  = "openBothDoors"
)

// Timing holds the delays of the panel choreography.
type Timing struct {
	// Press is how long a button is held down.
	Press time.Duration
	// Standard is the settle time after presses that wake or redraw the screen.
	Standard time.Duration
	// Short is the settle time after presses the panel reacts to quickly.
	Short time.Duration
	// InterSequencePause separates the two door sequences in openBothDoors.
	InterSequencePause time.Duration
}

// DefaultTiming returns the delays measured on the reference panel.
func DefaultTiming() Timing {
	return Timing{
		Press:              200 * time.Millisecond,
		Standard:           3 * time.Second,
		Short:              time.Second,
		InterSequencePause: time.Second,
	}
}

// DefaultSequences builds the door sequences for the given actuators.
func DefaultSequences(left, right actuation.Actuator, t Timing) []actuation.Sequence {
	press := func(a actuation.Actuator, settle time.Duration) actuation.Step {
		return actuation.Step{
			ActuatorID:  a.ID,
			TargetAngle: a.PressedAngle,
			Hold:        t.Press,
			Settle:      settle,
		}
	}

	first := actuation.Sequence{
		Name: OpenFirstDoor,
		Steps: []actuation.Step{
			press(left, t.Standard), // wake the screen
			press(right, t.Short),   // speaker on
			press(left, t.Short),    // open the door
			press(right, 0),         // screen off
		},
	}

	second := actuation.Sequence{
		Name: OpenSecondDoor,
		Steps: []actuation.Step{
			press(left, t.Standard), // wake the screen
			press(left, t.Short),    // double press switches to the second door
			press(left, t.Standard),
			press(right, t.Standard), // speaker on
			press(left, t.Standard),  // open the door
			press(right, t.Standard), // screen off
		},
	}

	both := actuation.Concat(OpenBothDoors, t.InterSequencePause, first, second)

	return []actuation.Sequence{first, second, both}
}
