package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/door-actuator/internal/config"
	"github.com/oshokin/door-actuator/internal/logger"
	"github.com/oshokin/door-actuator/internal/service/server"
	"github.com/oshokin/door-actuator/internal/version"
)

// errConfigExists keeps init-config from replacing a file without --force.
var errConfigExists = errors.New("configuration file already exists, use --force to overwrite")

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the log level from the configuration.
	logLevel string
	// skipInstanceCheck allows a second daemon on the same machine.
	skipInstanceCheck bool
	// force lets init-config replace an existing file.
	force bool

	// rootCmd represents the base command for running the door actuator daemon.
	rootCmd = &cobra.Command{
		Use:   "door-actuator-server [grpc-listen-address [http-listen-address]]",
		Short: "Drive the door panel servos and serve the command APIs.",
		Long: `Starts the door actuator daemon.

The daemon homes both servos, watches the push button and runs the door
sequences requested by the button, the gRPC API, the HTTP API and, when
enabled, MQTT commands. Only one sequence runs at a time; requests made while
a sequence is running are refused.

Listen addresses can be provided as arguments to override config
(e.g., :50051 :8080).`,
		Args: cobra.MaximumNArgs(2), //nolint:mnd // gRPC and HTTP addresses.
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return applyLogLevel(configPath)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &server.Options{
				ConfigPath:        configPath,
				SkipInstanceCheck: skipInstanceCheck,
			}

			// Use listen address arguments if provided, otherwise rely on config.
			if len(args) > 0 {
				options.GRPCListen = args[0]
			}

			if len(args) > 1 {
				options.HTTPListen = args[1]
			}

			return server.Run(ctx, options)
		},
	}

	// initConfigCmd writes a default configuration file.
	initConfigCmd = &cobra.Command{
		Use:   "init-config",
		Short: "Write a configuration file with default settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%w: %s", errConfigExists, configPath)
			}

			if err := config.Save(configPath, config.Default()); err != nil {
				return err
			}

			cmd.Printf("Default settings written to %s\n", configPath)

			return nil
		},
	}
)

// applyLogLevel sets the global level from the flag, or from the config file
// when the flag is empty and the file exists.
func applyLogLevel(path string) error {
	level := logLevel
	if level == "" {
		if cfg, err := config.Load(path); err == nil {
			level = cfg.LogLevel
		}
	}

	if level == "" {
		return nil
	}

	lvl, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	logger.SetLevel(lvl)

	return nil
}

// Execute runs the door-actuator-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&skipInstanceCheck, "skip-instance-check", false, "allow several daemons on this machine")
	initConfigCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
}
