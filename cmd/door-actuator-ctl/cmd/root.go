package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/door-actuator/internal/config"
	client "github.com/oshokin/door-actuator/internal/service/client"
	"github.com/oshokin/door-actuator/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the daemon address from the configuration.
	serverAddress string
	// apiKey overrides the API key from the configuration.
	apiKey string

	// rootCmd groups the control commands.
	rootCmd = &cobra.Command{
		Use:   "door-actuator-ctl",
		Short: "Control a door actuator daemon over gRPC.",
		Long: `Sends commands to a running door-actuator-server.

The server address and the API key are read from the client section of the
configuration file and can be overridden with flags.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run <sequence>",
		Short: "Start a door sequence, e.g. openFirstDoor.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := notifyContext()
			defer stop()

			return client.Run(ctx, options(cmd), args[0])
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show what the sequencer is doing.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := notifyContext()
			defer stop()

			return client.Status(ctx, options(cmd))
		},
	}

	abortCmd = &cobra.Command{
		Use:   "abort",
		Short: "Stop the running sequence and return the servos to rest.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := notifyContext()
			defer stop()

			return client.Abort(ctx, options(cmd))
		},
	}

	sequencesCmd = &cobra.Command{
		Use:   "sequences",
		Short: "List the registered sequences with their estimated duration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := notifyContext()
			defer stop()

			return client.Sequences(ctx, options(cmd))
		},
	}

	hashKeyCmd = &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash of an API key for api_key_hash.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.HashKey(args[0], cmd.OutOrStdout())
		},
	}
)

// notifyContext is cancelled on SIGTERM or SIGINT.
func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func options(cmd *cobra.Command) *client.Options {
	return &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		APIKey:        apiKey,
		Out:           cmd.OutOrStdout(),
	}
}

// Execute runs the door-actuator-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "daemon gRPC address, e.g. 10.0.0.5:50051")
	rootCmd.PersistentFlags().StringVarP(&apiKey, "api-key", "k", "", "API key")

	rootCmd.AddCommand(runCmd, statusCmd, abortCmd, sequencesCmd, hashKeyCmd)
}
