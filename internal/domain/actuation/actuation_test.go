package actuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestActuatorAngles checks the rest position and the accepted targets.
func TestActuatorAngles(t *testing.T) {
	t.Parallel()

	a := &Actuator{
		ID:           Left,
		CurrentAngle: 45,
		DefaultAngle: 45,
		PressedAngle: 30,
	}

	require.True(t, a.AtRest())
	require.True(t, a.Accepts(30))
	require.False(t, a.Accepts(31))

	a.CurrentAngle = a.PressedAngle
	require.False(t, a.AtRest())
}

// TestSequenceDuration sums hold, settle and travel over all steps.
func TestSequenceDuration(t *testing.T) {
	t.Parallel()

	s := Sequence{
		Name: "demo",
		Steps: []Step{
			{ActuatorID: Left, TargetAngle: 30, Hold: 200 * time.Millisecond, Settle: time.Second},
			{ActuatorID: Right, TargetAngle: 65, Hold: 200 * time.Millisecond},
		},
	}

	require.Equal(t, 1400*time.Millisecond, s.Duration(0))
	require.Equal(t, 1500*time.Millisecond, s.Duration(50*time.Millisecond))
}

// TestConcat checks that the pause lands on the seams and parts stay untouched.
func TestConcat(t *testing.T) {
	t.Parallel()

	first := Sequence{
		Name:  "first",
		Steps: []Step{{ActuatorID: Left, Hold: time.Millisecond, Settle: 0}},
	}
	second := Sequence{
		Name:  "second",
		Steps: []Step{{ActuatorID: Right, Hold: time.Millisecond, Settle: 2 * time.Millisecond}},
	}

	both := Concat("both", time.Second, first, second)

	require.Equal(t, "both", both.Name)
	require.Len(t, both.Steps, 2)
	require.Equal(t, time.Second, both.Steps[0].Settle)
	require.Equal(t, 2*time.Millisecond, both.Steps[1].Settle)

	// Parts are not modified.
	require.Zero(t, first.Steps[0].Settle)
}

// TestStatusString covers idle and running renderings.
func TestStatusString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "idle", Idle().String())

	s := Status{Running: true, Sequence: "openFirstDoor", StepIndex: 2, Phase: PhaseHolding}
	require.Equal(t, "running openFirstDoor step 2 (holding)", s.String())
	require.Equal(t, "phase(9)", Phase(9).String())
}

// TestActorString covers the actor renderings used in logs.
func TestActorString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "trigger", Actor{Source: SourceTrigger}.String())
	require.Equal(t, "gate via http", Actor{Source: SourceHTTP, Hostname: "gate"}.String())
	require.Equal(t, "o.shokin@gate via grpc", Actor{Source: SourceGRPC, Hostname: "gate", Username: "o.shokin"}.String())
}
