package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/logger"
	"github.com/oshokin/door-actuator/internal/metrics"
	"github.com/oshokin/door-actuator/internal/runner"
)

// Broker is the part of the paho client the bridge uses.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
}

// Commander accepts commands received from the broker.
type Commander interface {
	RequestRun(ctx context.Context, name string, actor actuation.Actor) (time.Duration, error)
	Abort(ctx context.Context, actor actuation.Actor) (bool, error)
}

// Event types published on the event topic.
const (
	EventRunAccepted    = "run_accepted"
	EventRunRejected    = "run_rejected"
	EventRunFinished    = "run_finished"
	EventTriggerPressed = "trigger_pressed"
)

// Event is the JSON payload of the event topic.
type Event struct {
	Type       string `json:"type"`
	Time       string `json:"time"`
	Sequence   string `json:"sequence,omitempty"`
	Actor      string `json:"actor,omitempty"`
	EstimateMS int64  `json:"estimate_ms,omitempty"`
	ElapsedMS  int64  `json:"elapsed_ms,omitempty"`
	Aborted    bool   `json:"aborted,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StatusPayload is the JSON payload of the status topic.
type StatusPayload struct {
	Running   bool   `json:"running"`
	Sequence  string `json:"sequence,omitempty"`
	StepIndex int    `json:"step_index"`
	Phase     string `json:"phase,omitempty"`
}

// RunCommand is the JSON form of a run request.
type RunCommand struct {
	Sequence string `json:"sequence"`
	Hostname string `json:"hostname,omitempty"`
	Username string `json:"username,omitempty"`
}

// message is one pending publish.
type message struct {
	topic    string
	retained bool
	payload  []byte
}

// Bridge publishes runner events and forwards broker commands.
// Observer methods are safe to call from the actuation loop.
type Bridge struct {
	ctx    context.Context //nolint:containedctx // Carries the logger for observer callbacks.
	broker Broker
	topics Topics
	qos    byte
	queue  chan message
	now    func() time.Time
}

var _ runner.Observer = (*Bridge)(nil)

// NewBridge creates a bridge over an already connected broker.
func NewBridge(ctx context.Context, broker Broker, opts Options) (*Bridge, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Bridge{
		ctx:    logger.WithName(ctx, "mqtt"),
		broker: broker,
		topics: Topics(opts.TopicPrefix),
		qos:    opts.QoS,
		queue:  make(chan message, opts.QueueSize),
		now:    time.Now,
	}, nil
}

// Connect dials the broker and returns the client together with a bridge
// over it. The caller disconnects the client when done.
//
//nolint:ireturn // pahomqtt.Client is what callers disconnect.
func Connect(ctx context.Context, opts Options) (pahomqtt.Client, *Bridge, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	topics := Topics(opts.TopicPrefix)
	ctx = logger.WithName(ctx, "mqtt")

	clientOpts := clientOptions(opts)
	clientOpts.SetOnConnectHandler(func(c pahomqtt.Client) {
		logger.InfoKV(ctx, "Connected to MQTT broker", "broker", opts.Broker)
		c.Publish(topics.Online(), opts.QoS, true, "true")
	})
	clientOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.WarnKV(ctx, "MQTT connection lost", "error", err)
	})

	client := pahomqtt.NewClient(clientOpts)

	if err := connect(client, connectTimeout); err != nil {
		return nil, nil, err
	}

	bridge, err := NewBridge(ctx, client, opts)
	if err != nil {
		return nil, nil, err
	}

	return client, bridge, nil
}

// connect waits for the first connection. On failure the client is
// disconnected, which also stops the background connect retries.
func connect(client pahomqtt.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(disconnectQuiesce)

		return fmt.Errorf("%w: timeout after %v", ErrConnect, timeout)
	}

	if err := token.Error(); err != nil {
		client.Disconnect(disconnectQuiesce)

		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	return nil
}

// Disconnect publishes the offline marker and closes the client.
func Disconnect(client pahomqtt.Client, opts Options) {
	if client == nil {
		return
	}

	if client.IsConnected() {
		token := client.Publish(Topics(opts.TopicPrefix).Online(), opts.QoS, true, "false")
		token.WaitTimeout(publishTimeout)
	}

	client.Disconnect(disconnectQuiesce)
}

// Topics returns the topic layout of the bridge.
func (b *Bridge) Topics() Topics {
	return b.topics
}

// Subscribe routes the command topics to commander.
func (b *Bridge) Subscribe(commander Commander) error {
	handlers := map[string]pahomqtt.MessageHandler{
		b.topics.RunCommand(): func(_ pahomqtt.Client, msg pahomqtt.Message) {
			b.handleRun(commander, msg.Payload())
		},
		b.topics.AbortCommand(): func(_ pahomqtt.Client, _ pahomqtt.Message) {
			b.handleAbort(commander)
		},
	}

	for topic, handler := range handlers {
		token := b.broker.Subscribe(topic, b.qos, handler)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("subscribe %s: timeout after %v", topic, publishTimeout)
		}

		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		logger.DebugKV(b.ctx, "Subscribed", "topic", topic)
	}

	return nil
}

// Run publishes queued messages until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.queue:
			token := b.broker.Publish(msg.topic, b.qos, msg.retained, msg.payload)
			if !token.WaitTimeout(publishTimeout) {
				logger.WarnKV(b.ctx, "MQTT publish timed out", "topic", msg.topic)

				continue
			}

			if err := token.Error(); err != nil {
				logger.WarnKV(b.ctx, "MQTT publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

// RunAccepted implements runner.Observer.
func (b *Bridge) RunAccepted(name string, actor actuation.Actor, estimate time.Duration) {
	b.publishEvent(Event{
		Type:       EventRunAccepted,
		Sequence:   name,
		Actor:      actor.String(),
		EstimateMS: estimate.Milliseconds(),
	})
}

// RunRejected implements runner.Observer.
func (b *Bridge) RunRejected(name string, actor actuation.Actor, err error) {
	b.publishEvent(Event{
		Type:     EventRunRejected,
		Sequence: name,
		Actor:    actor.String(),
		Reason:   metrics.Reason(err),
		Error:    err.Error(),
	})
}

// RunFinished implements runner.Observer.
func (b *Bridge) RunFinished(name string, elapsed time.Duration, aborted bool) {
	b.publishEvent(Event{
		Type:      EventRunFinished,
		Sequence:  name,
		ElapsedMS: elapsed.Milliseconds(),
		Aborted:   aborted,
	})
}

// TriggerPressed implements runner.Observer.
func (b *Bridge) TriggerPressed() {
	b.publishEvent(Event{Type: EventTriggerPressed})
}

// PhaseChanged implements runner.Observer.
func (b *Bridge) PhaseChanged(status actuation.Status) {
	payload := StatusPayload{Running: status.Running}
	if status.Running {
		payload.Sequence = status.Sequence
		payload.StepIndex = status.StepIndex
		payload.Phase = status.Phase.String()
	}

	b.enqueue(b.topics.Status(), true, payload)
}

func (b *Bridge) publishEvent(e Event) {
	e.Time = b.now().UTC().Format(time.RFC3339Nano)
	b.enqueue(b.topics.Event(), false, e)
}

// enqueue never blocks; a full queue drops the message.
func (b *Bridge) enqueue(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Errorf(b.ctx, "Failed to encode MQTT payload: %v", err)

		return
	}

	select {
	case b.queue <- message{topic: topic, retained: retained, payload: payload}:
	default:
		logger.DebugKV(b.ctx, "MQTT queue full, message dropped", "topic", topic)
	}
}

func (b *Bridge) handleRun(commander Commander, payload []byte) {
	cmd, err := ParseRunCommand(payload)
	if err != nil {
		logger.WarnKV(b.ctx, "Invalid MQTT run command", "error", err)

		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	actor := actuation.Actor{
		Source:   actuation.SourceMQTT,
		Hostname: cmd.Hostname,
		Username: cmd.Username,
	}

	// Rejections reach subscribers through RunRejected.
	if _, err = commander.RequestRun(ctx, cmd.Sequence, actor); err != nil {
		logger.DebugKV(b.ctx, "MQTT run command rejected", "sequence", cmd.Sequence, "error", err)
	}
}

func (b *Bridge) handleAbort(commander Commander) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	aborted, err := commander.Abort(ctx, actuation.Actor{Source: actuation.SourceMQTT})
	if err != nil {
		logger.WarnKV(b.ctx, "MQTT abort command failed", "error", err)

		return
	}

	logger.DebugKV(b.ctx, "MQTT abort command handled", "aborted", aborted)
}

// ParseRunCommand accepts a bare sequence name or a RunCommand JSON object.
func ParseRunCommand(payload []byte) (RunCommand, error) {
	text := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(text, "{") {
		return RunCommand{Sequence: text}, nil
	}

	var cmd RunCommand
	if err := json.Unmarshal([]byte(text), &cmd); err != nil {
		return RunCommand{}, fmt.Errorf("decode run command: %w", err)
	}

	cmd.Sequence = strings.TrimSpace(cmd.Sequence)

	return cmd, nil
}
