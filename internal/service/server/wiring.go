package server

import (
	"fmt"

	"github.com/oshokin/door-actuator/internal/config"
	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/events"
	"github.com/oshokin/door-actuator/internal/hardware"
	"github.com/oshokin/door-actuator/internal/runner"
	"github.com/oshokin/door-actuator/internal/sequencer"
	"github.com/oshokin/door-actuator/internal/trigger"
)

// actuators converts the configured channels to domain actuators.
func actuators(settings *config.Config) []actuation.Actuator {
	out := make([]actuation.Actuator, 0, len(settings.Actuators))
	for _, a := range settings.Actuators {
		out = append(out, actuation.Actuator{
			ID:           actuation.ActuatorID(a.ID),
			CurrentAngle: a.DefaultAngle,
			DefaultAngle: a.DefaultAngle,
			PressedAngle: a.PressedAngle,
		})
	}

	return out
}

func hardwareOptions(settings *config.Config) hardware.Options {
	channels := make([]hardware.Channel, 0, len(settings.Actuators))
	for _, a := range settings.Actuators {
		channels = append(channels, hardware.Channel{
			ID:    actuation.ActuatorID(a.ID),
			Pin:   a.Pin,
			Index: a.Channel,
		})
	}

	opts := hardware.Options{
		Driver:   hardware.Driver(settings.Hardware.Driver),
		Channels: channels,
		Pulses: hardware.PulseRange{
			Min:      settings.Hardware.PulseMin,
			Max:      settings.Hardware.PulseMax,
			MaxAngle: settings.Hardware.MaxAngle,
		},
		SerialPort: settings.Hardware.SerialPort,
		BaudRate:   settings.Hardware.BaudRate,
	}

	if settings.Trigger.Enabled {
		opts.TriggerPin = settings.Trigger.Pin
		opts.ActiveLow = settings.Trigger.ActiveLow
	}

	return opts
}

func mqttOptions(settings *config.Config) events.Options {
	return events.Options{
		Broker:      settings.MQTT.Broker,
		ClientID:    settings.MQTT.ClientID,
		Username:    settings.MQTT.Username,
		Password:    settings.MQTT.Password,
		TopicPrefix: settings.MQTT.TopicPrefix,
		QoS:         settings.MQTT.QoS,
	}
}

func timing(settings *config.Config) sequencer.Timing {
	return sequencer.Timing{
		Press:              settings.Timing.Press,
		Standard:           settings.Timing.Standard,
		Short:              settings.Timing.Short,
		InterSequencePause: settings.Timing.InterSequencePause,
	}
}

// newRunner builds the sequencer with the door choreography and the loop
// around it.
func newRunner(settings *config.Config, devices *hardware.Devices, observers runner.Observers) (*runner.Runner, error) {
	list := actuators(settings)

	byID := make(map[actuation.ActuatorID]actuation.Actuator, len(list))
	for _, a := range list {
		byID[a.ID] = a
	}

	seq, err := sequencer.New(
		list,
		devices.Positioner,
		sequencer.DefaultSequences(byID[actuation.Left], byID[actuation.Right], timing(settings)),
		sequencer.WithTravel(settings.Timing.Travel),
	)
	if err != nil {
		return nil, fmt.Errorf("build sequencer: %w", err)
	}

	opts := []runner.Option{
		runner.WithCadence(settings.Loop.Cadence),
	}

	if len(observers) > 0 {
		opts = append(opts, runner.WithObserver(observers))
	}

	if devices.Input != nil {
		opts = append(opts, runner.WithTrigger(
			devices.Input,
			trigger.NewMonitor(settings.Trigger.Debounce),
			settings.Trigger.Sequence,
		))
	}

	r, err := runner.New(seq, opts...)
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	return r, nil
}
