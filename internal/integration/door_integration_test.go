package integration

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/door-actuator/internal/auth"
	"github.com/oshokin/door-actuator/internal/config"
	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/service/common"
	"github.com/oshokin/door-actuator/internal/service/server"
)

// reserveAddress returns a free loopback address.
func reserveAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// testSettings is a simulated daemon with a fast choreography.
func testSettings(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.GRPCListen = reserveAddress(t)
	cfg.HTTPListen = reserveAddress(t)
	cfg.Loop.Cadence = time.Millisecond
	cfg.Trigger.Enabled = false
	cfg.Timing = config.TimingConfig{
		Press:              20 * time.Millisecond,
		Standard:           200 * time.Millisecond,
		Short:              50 * time.Millisecond,
		InterSequencePause: 50 * time.Millisecond,
	}

	return cfg
}

// startDaemon runs the server with cfg until the test ends.
func startDaemon(t *testing.T, cfg *config.Config) {
	t.Helper()

	// Create temporary configuration file.
	cfgPath := filepath.Join(t.TempDir(), "door-actuator.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	// Create cancellable context for server lifecycle.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath:        cfgPath,
			SkipInstanceCheck: true,
		})
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// Wait for the HTTP listener, which starts after gRPC.
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.HTTPListen + "/healthz") //nolint:noctx // Test probe.
		if err != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
}

func dial(t *testing.T, addr string, opts ...common.Option) *common.Client {
	t.Helper()

	opts = append(opts,
		common.WithCallTimeout(3*time.Second),
		common.WithActor(actuation.Actor{Hostname: "test-hostname", Username: "test-user"}),
	)

	c, err := common.Dial(context.Background(), addr, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	return do(t, http.MethodGet, url)
}

func do(t *testing.T, method, url string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

// TestDaemon_SingleRunAcrossTransports starts a run over gRPC, checks that
// both transports refuse a second one and that the daemon becomes idle again.
func TestDaemon_SingleRunAcrossTransports(t *testing.T) {
	t.Parallel()

	cfg := testSettings(t)
	startDaemon(t, cfg)

	c := dial(t, cfg.GRPCListen)
	ctx := context.Background()
	base := "http://" + cfg.HTTPListen

	sequences, err := c.Sequences(ctx)
	require.NoError(t, err)
	require.Len(t, sequences, 3)
	require.Equal(t, "openBothDoors", sequences[0].Name)

	// 4 presses of 20ms plus 200+50+50ms of settling.
	estimate, err := c.RequestRun(ctx, "openFirstDoor")
	require.NoError(t, err)
	require.Equal(t, 380*time.Millisecond, estimate)

	_, err = c.RequestRun(ctx, "openSecondDoor")
	require.Equal(t, codes.Aborted, status.Code(err))

	code, _ := get(t, base+"/openSecondDoor")
	require.Equal(t, http.StatusConflict, code)

	_, err = c.RequestRun(ctx, "openGarage")
	require.Equal(t, codes.NotFound, status.Code(err))

	require.Eventually(t, func() bool {
		st, err := c.Status(ctx)

		return err == nil && !st.Running
	}, 3*time.Second, 5*time.Millisecond)

	code, body := get(t, base+"/openBothDoors")
	require.Equal(t, http.StatusAccepted, code)
	require.True(t, strings.HasPrefix(body, "Wait ~"), body)
	require.Contains(t, body, "both doors to open")

	code, body = get(t, base+"/status")
	require.Equal(t, http.StatusOK, code)

	var st struct {
		Running  bool   `json:"running"`
		Sequence string `json:"sequence"`
	}

	require.NoError(t, json.Unmarshal([]byte(body), &st))

	if st.Running {
		require.Equal(t, "openBothDoors", st.Sequence)
	}

	code, _ = do(t, http.MethodPost, base+"/abort")
	require.Equal(t, http.StatusOK, code)

	// The aborted run reads as done until the next iteration clears it.
	require.Eventually(t, func() bool {
		st, err := c.Status(ctx)

		return err == nil && !st.Running
	}, time.Second, 5*time.Millisecond)

	code, body = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `door_actuator_runs_accepted_total{sequence="openFirstDoor",source="grpc"} 1`)
	require.Contains(t, body, `door_actuator_runs_rejected_total{reason="busy",source="http"} 1`)
}

// TestDaemon_APIKey checks that a configured key guards both transports.
func TestDaemon_APIKey(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashKey("s3cret")
	require.NoError(t, err)

	cfg := testSettings(t)
	cfg.APIKeyHash = hash
	startDaemon(t, cfg)

	ctx := context.Background()
	base := "http://" + cfg.HTTPListen

	_, err = dial(t, cfg.GRPCListen).Status(ctx)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = dial(t, cfg.GRPCListen, common.WithAPIKey("s3cret")).Status(ctx)
	require.NoError(t, err)

	code, _ := get(t, base+"/openFirstDoor")
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = get(t, base+"/openFirstDoor?key=s3cret")
	require.Equal(t, http.StatusAccepted, code)

	code, _ = get(t, base+"/")
	require.Equal(t, http.StatusOK, code)
}
