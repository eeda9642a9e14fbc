//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	door "github.com/oshokin/door-actuator/internal/api/grpc/door"
	"github.com/oshokin/door-actuator/internal/config"
	"github.com/oshokin/door-actuator/internal/domain/actuation"
)

// Client wraps the gRPC DoorService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the door actuator.
	conn *grpc.ClientConn
	// api is the DoorService client interface.
	api door.DoorServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is sent as metadata with every call.
	actor actuation.Actor
	// apiKey is sent as a bearer token when set.
	apiKey string
	// dialOptions are appended to the transport defaults.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor identifies the caller in the server logs and events.
func WithActor(actor actuation.Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// WithAPIKey authenticates calls with the shared key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithDialOptions adds gRPC dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the door actuator.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		client.dialOptions...,
	)

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial door actuator: %w", err)
	}

	client.conn = conn
	client.api = door.NewDoorServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// RequestRun asks the daemon to start a sequence and returns its estimated
// duration.
func (c *Client) RequestRun(ctx context.Context, sequence string) (time.Duration, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.RequestRun(callCtx, wrapperspb.String(sequence))
	if err != nil {
		return 0, fmt.Errorf("request run %q: %w", sequence, err)
	}

	return resp.AsDuration(), nil
}

// Status returns the sequencer status.
func (c *Client) Status(ctx context.Context) (actuation.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetStatus(callCtx, new(emptypb.Empty))
	if err != nil {
		return actuation.Status{}, fmt.Errorf("get status: %w", err)
	}

	return door.StatusFromStruct(resp), nil
}

// Abort stops the active run and reports whether there was one.
func (c *Client) Abort(ctx context.Context) (bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Abort(callCtx, new(emptypb.Empty))
	if err != nil {
		return false, fmt.Errorf("abort: %w", err)
	}

	return resp.GetValue(), nil
}

// SequenceInfo is one registered sequence with its estimated duration.
type SequenceInfo struct {
	Name     string
	Estimate time.Duration
}

// Sequences lists the registered sequences sorted by name.
func (c *Client) Sequences(ctx context.Context) ([]SequenceInfo, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListSequences(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}

	out := make([]SequenceInfo, 0, len(resp.GetFields()))
	for name, value := range resp.GetFields() {
		out = append(out, SequenceInfo{
			Name:     name,
			Estimate: time.Duration(value.GetNumberValue()) * time.Millisecond,
		})
	}

	slices.SortFunc(out, func(a, b SequenceInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return out, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor and the
// API key travel as outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = door.OutgoingContext(ctx, c.actor, c.apiKey)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
