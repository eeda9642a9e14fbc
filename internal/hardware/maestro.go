package hardware

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/logger"
)

const (
	// maestroSetTarget is the compact-protocol "set target" command byte.
	maestroSetTarget = 0x84
	// maestroUnit is the resolution of Maestro targets.
	maestroUnit = 250 * time.Nanosecond
	// DefaultBaudRate is used when the configuration leaves it empty.
	DefaultBaudRate = 9600
)

// MaestroPositioner drives a Pololu Maestro servo controller.
type MaestroPositioner struct {
	ctx      context.Context //nolint:containedctx // Carries the logger only.
	port     io.WriteCloser
	channels map[actuation.ActuatorID]uint8
	pulses   PulseRange
}

// OpenMaestro opens portName and binds the actuators to controller channels.
func OpenMaestro(
	ctx context.Context,
	portName string,
	baudRate int,
	channels []Channel,
	pulses PulseRange,
) (*MaestroPositioner, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	//nolint:exhaustruct // 8N1 defaults are what the Maestro expects.
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	positioner, err := newMaestro(ctx, port, channels, pulses)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return positioner, nil
}

// newMaestro wraps an already opened port.
func newMaestro(ctx context.Context, port io.WriteCloser, channels []Channel, pulses PulseRange) (*MaestroPositioner, error) {
	if err := pulses.Validate(); err != nil {
		return nil, err
	}

	bound := make(map[actuation.ActuatorID]uint8, len(channels))
	for _, ch := range channels {
		bound[ch.ID] = ch.Index
	}

	return &MaestroPositioner{
		ctx:      ctx,
		port:     port,
		channels: bound,
		pulses:   pulses,
	}, nil
}

// SetAngle sends a set-target frame for the actuator's channel.
func (m *MaestroPositioner) SetAngle(id actuation.ActuatorID, angle int) {
	channel, ok := m.channels[id]
	if !ok {
		logger.WarnKV(m.ctx, "No channel bound to actuator", "actuator", id)
		return
	}

	frame := EncodeSetTarget(channel, m.pulses.PulseWidth(angle))
	if _, err := m.port.Write(frame[:]); err != nil {
		logger.WarnKV(m.ctx, "Servo write failed", "actuator", id, "channel", channel, "angle", angle, "error", err)
		return
	}

	logger.DebugKV(m.ctx, "Servo moved", "actuator", id, "channel", channel, "angle", angle)
}

// Close releases the serial port.
func (m *MaestroPositioner) Close() error {
	return m.port.Close()
}

// EncodeSetTarget builds a compact-protocol frame: command, channel and the
// target in quarter microseconds split into two 7-bit halves.
func EncodeSetTarget(channel uint8, pulse time.Duration) [4]byte {
	target := uint16(pulse / maestroUnit) //nolint:gosec // Servo pulses stay far below 16 ms.

	return [4]byte{
		maestroSetTarget,
		channel,
		byte(target & 0x7F),
		byte((target >> 7) & 0x7F),
	}
}
