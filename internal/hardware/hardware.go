package hardware

import (
	"errors"
	"time"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
)

// Positioner commands servo channels. SetAngle must return immediately.
type Positioner interface {
	SetAngle(id actuation.ActuatorID, angle int)
}

// Input samples the push button. Pressed returns the logical level,
// already corrected for active-low wiring.
type Input interface {
	Pressed() bool
}

// Driver selects a hardware backend.
type Driver string

const (
	// DriverSimulated keeps everything in memory.
	DriverSimulated Driver = "simulated"
	// DriverPeriph drives GPIO pins through periph.io.
	DriverPeriph Driver = "periph"
	// DriverMaestro drives a Pololu Maestro over a serial port.
	DriverMaestro Driver = "maestro"
)

// PulseRange maps servo angles to pulse widths.
type PulseRange struct {
	// Min is the pulse width at 0 degrees.
	Min time.Duration
	// Max is the pulse width at MaxAngle degrees.
	Max time.Duration
	// MaxAngle is the mechanical range of the servo.
	MaxAngle int
}

// DefaultPulseRange fits common hobby servos.
var DefaultPulseRange = PulseRange{ //nolint:gochecknoglobals // Read-only defaults.
	Min:      500 * time.Microsecond,
	Max:      2500 * time.Microsecond,
	MaxAngle: 180,
}

var (
	// ErrUnknownPin is returned when a pin name is not known to the host.
	ErrUnknownPin = errors.New("unknown pin")
	// ErrUnknownDriver is returned for an unsupported backend name.
	ErrUnknownDriver = errors.New("unknown hardware driver")
	// errBadPulseRange is returned when the pulse range cannot be used.
	errBadPulseRange = errors.New("invalid pulse range")
)

// Validate checks that the range is usable.
func (r PulseRange) Validate() error {
	if r.MaxAngle <= 0 || r.Min <= 0 || r.Max <= r.Min {
		return errBadPulseRange
	}

	return nil
}

// PulseWidth returns the pulse for angle, clamped to the servo range.
func (r PulseRange) PulseWidth(angle int) time.Duration {
	angle = min(max(angle, 0), r.MaxAngle)

	return r.Min + (r.Max-r.Min)*time.Duration(angle)/time.Duration(r.MaxAngle)
}
