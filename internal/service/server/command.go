package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	door "github.com/oshokin/door-actuator/internal/api/grpc/door"
	"github.com/oshokin/door-actuator/internal/api/httpapi"
	"github.com/oshokin/door-actuator/internal/auth"
	"github.com/oshokin/door-actuator/internal/config"
	"github.com/oshokin/door-actuator/internal/events"
	"github.com/oshokin/door-actuator/internal/hardware"
	"github.com/oshokin/door-actuator/internal/logger"
	"github.com/oshokin/door-actuator/internal/metrics"
	"github.com/oshokin/door-actuator/internal/runner"
	"github.com/oshokin/door-actuator/internal/service/instance"
)

// Options controls the door-actuator-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// GRPCListen overrides the gRPC listen address from the config.
	GRPCListen string
	// HTTPListen overrides the HTTP listen address from the config.
	HTTPListen string
	// SkipInstanceCheck allows several daemons on one machine.
	SkipInstanceCheck bool
}

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Run loads the configuration, opens the hardware and serves every enabled
// API until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "door-actuator-server")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Command line addresses override the config.
	if opts.GRPCListen != "" {
		settings.GRPCListen = opts.GRPCListen
	}

	if opts.HTTPListen != "" {
		settings.HTTPListen = opts.HTTPListen
	}

	// Two daemons would drive the same servos.
	if !opts.SkipInstanceCheck {
		if err = instance.EnsureSingle(); err != nil {
			return err
		}
	}

	d, err := newDaemon(ctx, settings)
	if err != nil {
		return err
	}

	defer d.close(ctx)

	return d.serve(ctx)
}

// daemon holds everything a running server owns.
type daemon struct {
	settings *config.Config
	devices  *hardware.Devices
	runner   *runner.Runner
	verifier *auth.Verifier
	metrics  *metrics.Metrics

	mqttClient  pahomqtt.Client
	mqttOptions events.Options
	bridge      *events.Bridge
}

// newDaemon opens the hardware and builds the actuation core.
func newDaemon(ctx context.Context, settings *config.Config) (*daemon, error) {
	verifier, err := auth.NewVerifier(settings.APIKeyHash)
	if err != nil {
		return nil, fmt.Errorf("api key: %w", err)
	}

	if !verifier.Enabled() {
		logger.Warnf(ctx, "api_key_hash is empty, the command APIs accept every request")
	}

	d := &daemon{
		settings: settings,
		verifier: verifier,
	}

	d.devices, err = hardware.Open(ctx, hardwareOptions(settings))
	if err != nil {
		return nil, fmt.Errorf("open hardware: %w", err)
	}

	var observers runner.Observers

	if settings.Metrics.Enabled {
		d.metrics = metrics.New()
		observers = append(observers, d.metrics)
	}

	if settings.MQTT.Enabled {
		d.mqttOptions = mqttOptions(settings)

		d.mqttClient, d.bridge, err = events.Connect(ctx, d.mqttOptions)
		if err != nil {
			d.close(ctx)

			return nil, err
		}

		observers = append(observers, d.bridge)
	}

	d.runner, err = newRunner(settings, d.devices, observers)
	if err != nil {
		d.close(ctx)

		return nil, err
	}

	for _, seq := range d.runner.Sequences() {
		logger.InfoKV(ctx, "Sequence registered",
			"sequence", seq.Name,
			"steps", len(seq.Steps),
			"estimate", d.runner.Estimate(seq))
	}

	return d, nil
}

// serve runs the loop and the listeners until ctx is cancelled or one fails.
func (d *daemon) serve(ctx context.Context) error {
	if d.bridge != nil {
		if err := d.bridge.Subscribe(d.runner); err != nil {
			return fmt.Errorf("mqtt subscribe: %w", err)
		}
	}

	// Bind every listener before anything starts, so a busy port fails fast.
	grpcListener, err := d.listen(ctx, d.settings.GRPCListen)
	if err != nil {
		return err
	}

	httpListener, err := d.listen(ctx, d.settings.HTTPListen)
	if err != nil {
		if grpcListener != nil {
			_ = grpcListener.Close()
		}

		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	loopCtx := logger.WithName(groupCtx, "loop")
	if d.settings.Loop.LogLevel != "" {
		if lvl, ok := logger.ParseLogLevel(d.settings.Loop.LogLevel); ok {
			loopCtx = logger.WithMinLevel(loopCtx, lvl)
		}
	}

	group.Go(func() error {
		return d.runner.Run(loopCtx)
	})

	if d.bridge != nil {
		group.Go(func() error {
			d.bridge.Run(groupCtx)

			return nil
		})
	}

	if grpcListener != nil {
		d.serveGRPC(groupCtx, group, grpcListener)
	}

	if httpListener != nil {
		d.serveHTTP(groupCtx, group, httpListener)
	}

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Door actuator stopped")

	return nil
}

// listen returns nil for an empty address, which disables that API.
//
//nolint:ireturn // net.Listener is the only useful type here.
func (d *daemon) listen(ctx context.Context, address string) (net.Listener, error) {
	if address == "" {
		return nil, nil //nolint:nilnil // Disabled listener.
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	return lis, nil
}

func (d *daemon) serveGRPC(ctx context.Context, group *errgroup.Group, lis net.Listener) {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		door.LoggingInterceptor(logger.WithName(ctx, "grpc")),
		door.AuthInterceptor(d.verifier),
	))
	door.RegisterDoorServiceServer(grpcServer, door.NewServer(d.runner))

	logger.InfoKV(ctx, "gRPC API listening", "listen_address", lis.Addr().String())

	group.Go(func() error {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()

		return nil
	})

	group.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})
}

func (d *daemon) serveHTTP(ctx context.Context, group *errgroup.Group, lis net.Listener) {
	opts := []httpapi.Option{httpapi.WithDeviceName(d.settings.DeviceName)}
	if d.metrics != nil {
		opts = append(opts, httpapi.WithMetrics(d.metrics.Handler()))
	}

	httpServer := &http.Server{
		Handler:           httpapi.NewHandler(logger.WithName(ctx, "http"), d.runner, d.verifier, opts...),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.InfoKV(ctx, "HTTP API listening", "listen_address", lis.Addr().String(), "metrics", d.metrics != nil)

	group.Go(func() error {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})
}

// close releases the broker connection and the hardware.
func (d *daemon) close(ctx context.Context) {
	if d.mqttClient != nil {
		events.Disconnect(d.mqttClient, d.mqttOptions)
	}

	if err := d.devices.Close(); err != nil {
		logger.Warnf(ctx, "Failed to close hardware: %v", err)
	}
}
