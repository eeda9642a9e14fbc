package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/door-actuator/internal/auth"
	"github.com/oshokin/door-actuator/internal/config"
	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/logger"
	"github.com/oshokin/door-actuator/internal/service/common"
)

// Options configures how the control commands reach the daemon.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides the server address from config when specified.
	ServerAddress string

	// APIKey overrides the key from config when specified.
	APIKey string

	// Out receives the command output, os.Stdout when nil.
	Out io.Writer
}

var (
	// errSequenceRequired is returned by Run without a sequence name.
	errSequenceRequired = errors.New("sequence name must be provided")
	// errKeyRequired is returned by HashKey without a key.
	errKeyRequired = errors.New("key must be provided")
)

// Run asks the daemon to start a sequence and prints the estimated duration.
func Run(ctx context.Context, opts *Options, sequence string) error {
	if sequence == "" {
		return errSequenceRequired
	}

	ctx = logger.WithKV(logger.WithName(ctx, "door-actuator-ctl"), "sequence", sequence)

	return withClient(ctx, opts, func(c *common.Client, out io.Writer) error {
		estimate, err := c.RequestRun(ctx, sequence)
		if err != nil {
			return err
		}

		logger.DebugKV(ctx, "Run accepted", "estimate", estimate)

		_, err = fmt.Fprintf(out, "%s accepted, about %s\n", sequence, estimate.Round(time.Second))

		return err
	})
}

// Status prints the sequencer state of the daemon.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "door-actuator-ctl")

	return withClient(ctx, opts, func(c *common.Client, out io.Writer) error {
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(out, formatStatus(st))

		return err
	})
}

// Abort stops the active run on the daemon.
func Abort(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "door-actuator-ctl")

	return withClient(ctx, opts, func(c *common.Client, out io.Writer) error {
		aborted, err := c.Abort(ctx)
		if err != nil {
			return err
		}

		message := "nothing to abort"
		if aborted {
			message = "run aborted, actuators returned to rest"
		}

		_, err = fmt.Fprintln(out, message)

		return err
	})
}

// Sequences prints every registered sequence with its estimated duration.
func Sequences(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "door-actuator-ctl")

	return withClient(ctx, opts, func(c *common.Client, out io.Writer) error {
		list, err := c.Sequences(ctx)
		if err != nil {
			return err
		}

		for _, seq := range list {
			if _, err = fmt.Fprintf(out, "%-16s %s\n", seq.Name, seq.Estimate); err != nil {
				return err
			}
		}

		return nil
	})
}

// HashKey prints the bcrypt hash of key for the api_key_hash setting.
func HashKey(key string, out io.Writer) error {
	if key == "" {
		return errKeyRequired
	}

	hash, err := auth.HashKey(key)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, hash)

	return err
}

// withClient loads settings, dials the daemon and runs call.
func withClient(ctx context.Context, opts *Options, call func(*common.Client, io.Writer) error) error {
	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address and key from options if provided, otherwise use config.
	serverAddress := cfg.Client.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	apiKey := cfg.Client.APIKey
	if opts.APIKey != "" {
		apiKey = opts.APIKey
	}

	// Identify current user and hostname for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, serverAddress,
		common.WithCallTimeout(cfg.Client.Timeout),
		common.WithActor(actor),
		common.WithAPIKey(apiKey),
	)
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Connected", "server_address", serverAddress, "actor", actor.String())

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return call(client, out)
}

// formatStatus converts a status to a readable line.
func formatStatus(st actuation.Status) string {
	if !st.Running {
		return "idle"
	}

	return fmt.Sprintf("running %s, step %d, %s", st.Sequence, st.StepIndex+1, st.Phase)
}
