package hardware

import (
	"context"
	"fmt"

	"github.com/oshokin/door-actuator/internal/logger"
)

// Options selects and configures a backend.
type Options struct {
	// Driver is the servo backend.
	Driver Driver
	// Channels binds actuators to pins or controller channels.
	Channels []Channel
	// Pulses maps angles to pulse widths.
	Pulses PulseRange
	// SerialPort and BaudRate configure the maestro driver.
	SerialPort string
	BaudRate   int
	// TriggerPin is the push button GPIO; empty means no button.
	TriggerPin string
	// ActiveLow inverts the button level.
	ActiveLow bool
}

// Devices are the opened backend handles.
type Devices struct {
	// Positioner drives the servos.
	Positioner Positioner
	// Input is the push button, nil without one.
	Input Input
	// Simulated is set for the simulated driver so callers can inspect writes.
	Simulated *SimulatedPositioner
	// SimulatedInput is set when the button is simulated.
	SimulatedInput *SimulatedInput

	close func() error
}

// Open creates the positioner and, when a trigger pin is set, the button input.
// The simulated driver also simulates the button.
func Open(ctx context.Context, opts Options) (*Devices, error) {
	ctx = logger.WithKV(ctx, "driver", opts.Driver)

	devices := &Devices{}

	switch opts.Driver {
	case DriverSimulated, "":
		devices.Simulated = NewSimulatedPositioner(ctx)
		devices.Positioner = devices.Simulated
	case DriverPeriph:
		positioner, err := NewPeriphPositioner(ctx, opts.Channels, opts.Pulses)
		if err != nil {
			return nil, err
		}

		devices.Positioner = positioner
	case DriverMaestro:
		positioner, err := OpenMaestro(ctx, opts.SerialPort, opts.BaudRate, opts.Channels, opts.Pulses)
		if err != nil {
			return nil, err
		}

		devices.Positioner = positioner
		devices.close = positioner.Close
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}

	if opts.TriggerPin == "" {
		return devices, nil
	}

	if devices.Simulated != nil {
		devices.SimulatedInput = new(SimulatedInput)
		devices.Input = devices.SimulatedInput

		return devices, nil
	}

	input, err := NewPeriphInput(opts.TriggerPin, opts.ActiveLow)
	if err != nil {
		_ = devices.Close()

		return nil, err
	}

	devices.Input = input

	logger.InfoKV(ctx, "Hardware ready", "channels", len(opts.Channels), "trigger_pin", opts.TriggerPin)

	return devices, nil
}

// Close releases the backend.
func (d *Devices) Close() error {
	if d == nil || d.close == nil {
		return nil
	}

	return d.close()
}
