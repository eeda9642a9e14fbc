package hardware

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/logger"
)

const (
	// servoFrequency is the standard hobby servo refresh rate.
	servoFrequency = 50 * physic.Hertz
	// servoPeriod is the pulse period matching servoFrequency.
	servoPeriod = 20 * time.Millisecond
)

// Channel binds an actuator to a pin name or a controller channel.
type Channel struct {
	// ID is the actuator driven through this channel.
	ID actuation.ActuatorID
	// Pin is the host pin name, e.g. "GPIO12", for the periph driver.
	Pin string
	// Index is the controller channel for the maestro driver.
	Index uint8
}

// PeriphPositioner drives servos with hardware PWM on GPIO pins.
type PeriphPositioner struct {
	ctx    context.Context //nolint:containedctx // Carries the logger only.
	pins   map[actuation.ActuatorID]gpio.PinIO
	pulses PulseRange
}

// NewPeriphPositioner initialises the host drivers and resolves every pin.
func NewPeriphPositioner(ctx context.Context, channels []Channel, pulses PulseRange) (*PeriphPositioner, error) {
	if err := pulses.Validate(); err != nil {
		return nil, err
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialise periph host: %w", err)
	}

	pins := make(map[actuation.ActuatorID]gpio.PinIO, len(channels))

	for _, ch := range channels {
		pin := gpioreg.ByName(ch.Pin)
		if pin == nil {
			return nil, fmt.Errorf("servo %s on %q: %w", ch.ID, ch.Pin, ErrUnknownPin)
		}

		pins[ch.ID] = pin
	}

	return &PeriphPositioner{
		ctx:    ctx,
		pins:   pins,
		pulses: pulses,
	}, nil
}

// SetAngle changes the PWM duty cycle of the actuator's pin.
func (p *PeriphPositioner) SetAngle(id actuation.ActuatorID, angle int) {
	pin, ok := p.pins[id]
	if !ok {
		logger.WarnKV(p.ctx, "No pin bound to actuator", "actuator", id)
		return
	}

	duty := dutyFor(p.pulses.PulseWidth(angle))
	if err := pin.PWM(duty, servoFrequency); err != nil {
		logger.WarnKV(p.ctx, "Servo write failed", "actuator", id, "pin", pin.Name(), "angle", angle, "error", err)
		return
	}

	logger.DebugKV(p.ctx, "Servo moved", "actuator", id, "angle", angle, "duty", duty)
}

// dutyFor converts a pulse width to a duty cycle of the servo period.
func dutyFor(pulse time.Duration) gpio.Duty {
	return gpio.Duty(int64(gpio.DutyMax) * int64(pulse) / int64(servoPeriod))
}

// PeriphInput reads the push button from a GPIO pin.
type PeriphInput struct {
	pin       gpio.PinIO
	activeLow bool
}

// NewPeriphInput configures name as an input with a pull towards the idle level.
func NewPeriphInput(name string, activeLow bool) (*PeriphInput, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialise periph host: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("button on %q: %w", name, ErrUnknownPin)
	}

	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}

	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure button pin %s: %w", name, err)
	}

	return &PeriphInput{
		pin:       pin,
		activeLow: activeLow,
	}, nil
}

// Pressed returns true while the button is held.
func (i *PeriphInput) Pressed() bool {
	level := i.pin.Read()
	if i.activeLow {
		return level == gpio.Low
	}

	return level == gpio.High
}
