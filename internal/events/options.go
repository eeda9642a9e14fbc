package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// DefaultTopicPrefix is used when no prefix is configured.
	DefaultTopicPrefix = "door-actuator"
	// DefaultQueueSize bounds the number of messages waiting for the broker.
	DefaultQueueSize = 64

	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	commandTimeout    = 5 * time.Second
	disconnectQuiesce = 500 // milliseconds
	keepAlive         = 30 * time.Second
	maxQoS            = 2
)

var (
	// ErrConnect is returned when the broker cannot be reached at startup.
	ErrConnect = errors.New("mqtt connect failed")
	// errNoBroker is returned when Options has no broker URL.
	errNoBroker = errors.New("mqtt broker URL is required")
	// errBadQoS is returned for QoS values above 2.
	errBadQoS = errors.New("mqtt QoS must be 0, 1 or 2")
)

// Options configures the broker connection and the topic layout.
type Options struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string
	// ClientID identifies the daemon to the broker.
	ClientID string
	// Username and Password authenticate to the broker when set.
	Username string
	Password string
	// TopicPrefix is prepended to every topic.
	TopicPrefix string
	// QoS is used for every publish and subscription.
	QoS byte
	// QueueSize bounds pending outgoing messages; extra messages are dropped.
	QueueSize int
}

// Validate checks the options and fills defaults.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.Broker) == "" {
		return errNoBroker
	}

	if o.QoS > maxQoS {
		return fmt.Errorf("%w: %d", errBadQoS, o.QoS)
	}

	o.TopicPrefix = strings.Trim(strings.TrimSpace(o.TopicPrefix), "/")
	if o.TopicPrefix == "" {
		o.TopicPrefix = DefaultTopicPrefix
	}

	if o.ClientID == "" {
		o.ClientID = o.TopicPrefix
	}

	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}

	return nil
}

// Topics derives topic names from a prefix.
type Topics string

// Online is the retained availability topic, also used as last will.
func (t Topics) Online() string { return string(t) + "/online" }

// Status is the retained status topic.
func (t Topics) Status() string { return string(t) + "/status" }

// Event carries lifecycle events.
func (t Topics) Event() string { return string(t) + "/event" }

// RunCommand receives run requests.
func (t Topics) RunCommand() string { return string(t) + "/command/run" }

// AbortCommand receives abort requests.
func (t Topics) AbortCommand() string { return string(t) + "/command/abort" }

// clientOptions builds paho options with auto-reconnect and a last will.
func clientOptions(o Options) *pahomqtt.ClientOptions {
	topics := Topics(o.TopicPrefix)

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWriteTimeout(publishTimeout)
	opts.SetWill(topics.Online(), "false", o.QoS, true)

	return opts
}
