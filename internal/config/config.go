package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/door-actuator/internal/hardware"
	"github.com/oshokin/door-actuator/internal/runner"
	"github.com/oshokin/door-actuator/internal/sequencer"
	"github.com/oshokin/door-actuator/internal/trigger"
)

// Config holds the settings shared by the door actuator binaries.
type Config struct {
	// DeviceName is shown in the HTTP greeting and logs.
	DeviceName string `yaml:"device_name"`
	// LogLevel is the default log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// GRPCListen is the gRPC listen address; empty disables the gRPC API.
	GRPCListen string `yaml:"grpc_listen"`
	// HTTPListen is the HTTP listen address; empty disables the HTTP API.
	HTTPListen string `yaml:"http_listen"`
	// APIKeyHash is the bcrypt hash of the shared API key; empty disables
	// authentication.
	APIKeyHash string `yaml:"api_key_hash"`
	// Loop configures the actuation loop.
	Loop LoopConfig `yaml:"loop"`
	// Trigger configures the local push button.
	Trigger TriggerConfig `yaml:"trigger"`
	// Actuators lists the two servo channels, left and right.
	Actuators []ActuatorConfig `yaml:"actuators"`
	// Timing holds the choreography delays.
	Timing TimingConfig `yaml:"timing"`
	// Hardware selects and configures the servo backend.
	Hardware HardwareConfig `yaml:"hardware"`
	// MQTT configures the optional broker bridge.
	MQTT MQTTConfig `yaml:"mqtt"`
	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
	// Client configures door-actuator-ctl.
	Client ClientConfig `yaml:"client"`
}

// LoopConfig configures the actuation loop.
type LoopConfig struct {
	// Cadence is the loop period.
	Cadence time.Duration `yaml:"cadence"`
	// LogLevel overrides the log level of the loop goroutine.
	LogLevel string `yaml:"log_level,omitempty"`
}

// TriggerConfig configures the local push button.
type TriggerConfig struct {
	// Enabled turns button sampling on.
	Enabled bool `yaml:"enabled"`
	// Pin is the GPIO name of the button.
	Pin string `yaml:"pin"`
	// ActiveLow inverts the level, for buttons wired to ground with a pull-up.
	ActiveLow bool `yaml:"active_low"`
	// Debounce is the minimum stable time of a press.
	Debounce time.Duration `yaml:"debounce"`
	// Sequence is requested on every press.
	Sequence string `yaml:"sequence"`
}

// ActuatorConfig describes one servo channel.
type ActuatorConfig struct {
	// ID is "left" or "right".
	ID string `yaml:"id"`
	// Pin is the GPIO name for the periph driver.
	Pin string `yaml:"pin,omitempty"`
	// Channel is the Maestro channel for the maestro driver.
	Channel uint8 `yaml:"channel"`
	// DefaultAngle is the resting position.
	DefaultAngle int `yaml:"default_angle"`
	// PressedAngle touches the panel button.
	PressedAngle int `yaml:"pressed_angle"`
}

// TimingConfig holds the choreography delays.
type TimingConfig struct {
	Press              time.Duration `yaml:"press"`
	Standard           time.Duration `yaml:"standard"`
	Short              time.Duration `yaml:"short"`
	InterSequencePause time.Duration `yaml:"inter_sequence_pause"`
	// Travel keeps every step moving for this long before the hold starts.
	Travel time.Duration `yaml:"travel"`
}

// HardwareConfig selects the servo backend.
type HardwareConfig struct {
	// Driver is simulated, periph or maestro.
	Driver string `yaml:"driver"`
	// SerialPort is the Maestro command port.
	SerialPort string `yaml:"serial_port,omitempty"`
	// BaudRate of the Maestro port.
	BaudRate int `yaml:"baud_rate,omitempty"`
	// PulseMin is the pulse width at 0 degrees.
	PulseMin time.Duration `yaml:"pulse_min"`
	// PulseMax is the pulse width at MaxAngle degrees.
	PulseMax time.Duration `yaml:"pulse_max"`
	// MaxAngle is the mechanical range of the servos.
	MaxAngle int `yaml:"max_angle"`
}

// MQTTConfig configures the broker bridge.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// MetricsConfig configures the Prometheus endpoint on the HTTP listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ClientConfig configures door-actuator-ctl.
type ClientConfig struct {
	// ServerAddress is the gRPC address of the daemon.
	ServerAddress string `yaml:"server_addr"`
	// Timeout bounds every RPC.
	Timeout time.Duration `yaml:"timeout"`
	// APIKey is sent with every call when set.
	APIKey string `yaml:"api_key,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "door-actuator.yaml"

	// DefaultTimeout is the default duration for client RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultCadence is the default actuation loop period.
	DefaultCadence = runner.DefaultCadence

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	maxActuators = 2
	maxQoS       = 2
)

// Hardware drivers accepted in HardwareConfig.Driver.
const (
	DriverSimulated = string(hardware.DriverSimulated)
	DriverPeriph    = string(hardware.DriverPeriph)
	DriverMaestro   = string(hardware.DriverMaestro)
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoListener is returned when neither API is enabled.
	errNoListener = errors.New("at least one of grpc_listen or http_listen must be set")
	// errBadActuators is returned for an invalid actuator list.
	errBadActuators = errors.New("invalid actuators")
	// errBadDriver is returned for an unknown hardware driver.
	errBadDriver = errors.New("invalid hardware driver")
	// errBadTiming is returned for negative delays.
	errBadTiming = errors.New("timing values must not be negative")
	// errBadTrigger is returned for an incomplete trigger section.
	errBadTrigger = errors.New("invalid trigger")
	// errBadMQTT is returned for an incomplete mqtt section.
	errBadMQTT = errors.New("invalid mqtt settings")
	// errBadPulse is returned for an unusable pulse range.
	errBadPulse = errors.New("invalid pulse range")
)

// Default returns the settings of the reference installation: two servos on
// the Raspberry Pi hardware PWM pins and a push button on GPIO17.
func Default() *Config {
	timing := sequencer.DefaultTiming()
	pulses := hardware.DefaultPulseRange

	return &Config{
		DeviceName: "Gandalf Door Controller",
		LogLevel:   "info",
		GRPCListen: ":50051",
		HTTPListen: ":8080",
		Loop: LoopConfig{
			Cadence: DefaultCadence,
		},
		Trigger: TriggerConfig{
			Enabled:   true,
			Pin:       "GPIO17",
			ActiveLow: true,
			Debounce:  trigger.DefaultDebounce,
			Sequence:  sequencer.OpenBothDoors,
		},
		Actuators: []ActuatorConfig{
			{ID: "right", Pin: "GPIO18", Channel: 0, DefaultAngle: 45, PressedAngle: 65},
			{ID: "left", Pin: "GPIO13", Channel: 1, DefaultAngle: 45, PressedAngle: 30},
		},
		Timing: TimingConfig{
			Press:              timing.Press,
			Standard:           timing.Standard,
			Short:              timing.Short,
			InterSequencePause: timing.InterSequencePause,
		},
		Hardware: HardwareConfig{
			Driver:   DriverSimulated,
			BaudRate: 9600,
			PulseMin: pulses.Min,
			PulseMax: pulses.Max,
			MaxAngle: pulses.MaxAngle,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "door-actuator",
			QoS:         1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Client: ClientConfig{
			ServerAddress: "127.0.0.1:50051",
			Timeout:       DefaultTimeout,
		},
	}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// Unset keys keep the defaults.
	cfg := Default()
	cfg.Actuators = nil

	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if len(cfg.Actuators) == 0 {
		cfg.Actuators = Default().Actuators
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for optional fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.GRPCListen == "" && cfg.HTTPListen == "" {
		return errNoListener
	}

	for _, addr := range []string{cfg.GRPCListen, cfg.HTTPListen, cfg.Client.ServerAddress} {
		if addr == "" {
			continue
		}

		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid address %q: %w", addr, err)
		}
	}

	if cfg.Loop.Cadence <= 0 {
		cfg.Loop.Cadence = DefaultCadence
	}

	if cfg.Client.Timeout <= 0 {
		cfg.Client.Timeout = DefaultTimeout
	}

	validators := []func(*Config) error{
		validateActuators,
		validateTiming,
		validateHardware,
		validateTrigger,
		validateMQTT,
	}

	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			return err
		}
	}

	return nil
}

func validateActuators(cfg *Config) error {
	if len(cfg.Actuators) != maxActuators {
		return fmt.Errorf("%w: need %d, got %d", errBadActuators, maxActuators, len(cfg.Actuators))
	}

	seen := make(map[string]bool, len(cfg.Actuators))

	for _, a := range cfg.Actuators {
		switch {
		case a.ID != "left" && a.ID != "right":
			return fmt.Errorf("%w: unknown id %q", errBadActuators, a.ID)
		case seen[a.ID]:
			return fmt.Errorf("%w: duplicate id %q", errBadActuators, a.ID)
		case a.DefaultAngle < 0 || a.PressedAngle < 0:
			return fmt.Errorf("%w: %s has a negative angle", errBadActuators, a.ID)
		case a.DefaultAngle == a.PressedAngle:
			return fmt.Errorf("%w: %s default and pressed angles are equal", errBadActuators, a.ID)
		case cfg.Hardware.Driver == DriverPeriph && a.Pin == "":
			return fmt.Errorf("%w: %s needs a pin", errBadActuators, a.ID)
		}

		seen[a.ID] = true
	}

	// The door choreography presses with both actuators.
	if !seen["left"] || !seen["right"] {
		return fmt.Errorf("%w: both left and right are required", errBadActuators)
	}

	return nil
}

func validateTiming(cfg *Config) error {
	t := cfg.Timing
	for _, d := range []time.Duration{t.Press, t.Standard, t.Short, t.InterSequencePause, t.Travel} {
		if d < 0 {
			return errBadTiming
		}
	}

	return nil
}

func validateHardware(cfg *Config) error {
	h := &cfg.Hardware
	if h.Driver == "" {
		h.Driver = DriverSimulated
	}

	switch h.Driver {
	case DriverSimulated, DriverPeriph:
	case DriverMaestro:
		if h.SerialPort == "" {
			return fmt.Errorf("%w: maestro needs serial_port", errBadDriver)
		}

		if h.BaudRate <= 0 {
			h.BaudRate = 9600
		}
	default:
		return fmt.Errorf("%w: %q", errBadDriver, h.Driver)
	}

	if h.MaxAngle <= 0 || h.PulseMin <= 0 || h.PulseMax <= h.PulseMin {
		return errBadPulse
	}

	for _, a := range cfg.Actuators {
		if max(a.DefaultAngle, a.PressedAngle) > h.MaxAngle {
			return fmt.Errorf("%w: %s exceeds max_angle %d", errBadActuators, a.ID, h.MaxAngle)
		}
	}

	return nil
}

func validateTrigger(cfg *Config) error {
	t := &cfg.Trigger
	if !t.Enabled {
		return nil
	}

	if t.Sequence == "" {
		return fmt.Errorf("%w: sequence is required", errBadTrigger)
	}

	if cfg.Hardware.Driver == DriverPeriph && t.Pin == "" {
		return fmt.Errorf("%w: pin is required", errBadTrigger)
	}

	if t.Debounce < 0 {
		return fmt.Errorf("%w: negative debounce", errBadTrigger)
	}

	return nil
}

func validateMQTT(cfg *Config) error {
	m := &cfg.MQTT
	if !m.Enabled {
		return nil
	}

	u, err := url.Parse(m.Broker)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: broker must be a URL like tcp://host:1883", errBadMQTT)
	}

	if m.QoS > maxQoS {
		return fmt.Errorf("%w: qos %d", errBadMQTT, m.QoS)
	}

	m.TopicPrefix = strings.Trim(m.TopicPrefix, "/")

	return nil
}
