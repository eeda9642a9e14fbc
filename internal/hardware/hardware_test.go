package hardware

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
)

// TestPulseWidth checks the linear angle mapping and its clamping.
func TestPulseWidth(t *testing.T) {
	t.Parallel()

	r := DefaultPulseRange
	require.NoError(t, r.Validate())

	require.Equal(t, 500*time.Microsecond, r.PulseWidth(0))
	require.Equal(t, 1500*time.Microsecond, r.PulseWidth(90))
	require.Equal(t, 2500*time.Microsecond, r.PulseWidth(180))
	require.Equal(t, 2500*time.Microsecond, r.PulseWidth(270))
	require.Equal(t, 500*time.Microsecond, r.PulseWidth(-10))

	require.Error(t, PulseRange{Min: time.Millisecond, Max: time.Millisecond, MaxAngle: 180}.Validate())
	require.Error(t, PulseRange{}.Validate())
}

// TestDutyFor converts the servo pulse to a fraction of the 20ms period.
func TestDutyFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, gpio.DutyMax/2, dutyFor(10*time.Millisecond))
	require.Equal(t, gpio.Duty(int64(gpio.DutyMax)*1500/20000), dutyFor(1500*time.Microsecond))
}

// TestEncodeSetTarget verifies the Maestro frame layout from the protocol documentation.
func TestEncodeSetTarget(t *testing.T) {
	t.Parallel()

	// 1500us = 6000 quarter-microseconds = 0x1770 -> low 0x70, high 0x2E.
	require.Equal(t, [4]byte{0x84, 2, 0x70, 0x2E}, EncodeSetTarget(2, 1500*time.Microsecond))
}

// bufferPort is an in-memory serial port.
type bufferPort struct {
	bytes.Buffer

	writeErr error
	closed   bool
}

// Write records the frame or fails with writeErr.
func (b *bufferPort) Write(p []byte) (int, error) {
	if b.writeErr != nil {
		return 0, b.writeErr
	}

	return b.Buffer.Write(p)
}

// Close marks the port as closed.
func (b *bufferPort) Close() error {
	b.closed = true
	return nil
}

// TestMaestroPositioner_Writes verifies frames for bound channels and silence for unbound ones.
func TestMaestroPositioner_Writes(t *testing.T) {
	t.Parallel()

	port := new(bufferPort)
	m, err := newMaestro(context.Background(), port, []Channel{
		{ID: actuation.Right, Index: 0},
		{ID: actuation.Left, Index: 1},
	}, DefaultPulseRange)
	require.NoError(t, err)

	m.SetAngle(actuation.Left, 90)
	m.SetAngle("missing", 90)

	require.Equal(t, []byte{0x84, 1, 0x70, 0x2E}, port.Bytes())

	// Write errors are swallowed.
	port.writeErr = errors.New("unplugged")
	m.SetAngle(actuation.Right, 0)

	require.NoError(t, m.Close())
	require.True(t, port.closed)
}

// TestSimulatedPositioner records writes and the last angle per actuator.
func TestSimulatedPositioner(t *testing.T) {
	t.Parallel()

	s := NewSimulatedPositioner(context.Background())

	s.SetAngle(actuation.Left, 30)
	s.SetAngle(actuation.Left, 45)

	angle, ok := s.Angle(actuation.Left)
	require.True(t, ok)
	require.Equal(t, 45, angle)

	_, ok = s.Angle(actuation.Right)
	require.False(t, ok)

	require.Equal(t, []Write{{actuation.Left, 30}, {actuation.Left, 45}}, s.Writes())

	var in SimulatedInput
	require.False(t, in.Pressed())
	in.Set(true)
	require.True(t, in.Pressed())
}

// TestOpen_Simulated returns recorders for the servos and the button.
func TestOpen_Simulated(t *testing.T) {
	t.Parallel()

	devices, err := Open(context.Background(), Options{Driver: DriverSimulated, TriggerPin: "GPIO17"})
	require.NoError(t, err)
	require.NotNil(t, devices.Simulated)
	require.NotNil(t, devices.SimulatedInput)

	devices.Positioner.SetAngle(actuation.Left, 30)
	devices.SimulatedInput.Set(true)

	angle, ok := devices.Simulated.Angle(actuation.Left)
	require.True(t, ok)
	require.Equal(t, 30, angle)
	require.True(t, devices.Input.Pressed())
	require.NoError(t, devices.Close())

	devices, err = Open(context.Background(), Options{})
	require.NoError(t, err)
	require.Nil(t, devices.Input)

	_, err = Open(context.Background(), Options{Driver: "arduino"})
	require.ErrorIs(t, err, ErrUnknownDriver)
}
