package door

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/door-actuator/internal/auth"
	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/runner"
)

var errTestBoom = errors.New("boom")

// fakeService implements Service for unit testing the transport.
type fakeService struct {
	// runErr is returned by RequestRun when set.
	runErr error
	// status is returned by Status.
	status actuation.Status
	// lastActor is the actor of the last RequestRun or Abort call.
	lastActor actuation.Actor
	// lastName is the sequence of the last RequestRun call.
	lastName string
	// aborted is returned by Abort.
	aborted bool
}

func (f *fakeService) RequestRun(_ context.Context, name string, actor actuation.Actor) (time.Duration, error) {
	f.lastName = name
	f.lastActor = actor

	if f.runErr != nil {
		return 0, f.runErr
	}

	return 5800 * time.Millisecond, nil
}

func (f *fakeService) Status(context.Context) (actuation.Status, error) {
	return f.status, nil
}

func (f *fakeService) Abort(_ context.Context, actor actuation.Actor) (bool, error) {
	f.lastActor = actor

	return f.aborted, nil
}

func (f *fakeService) Sequences() []actuation.Sequence {
	return []actuation.Sequence{
		{Name: "openFirstDoor", Steps: []actuation.Step{{Hold: 200 * time.Millisecond, Settle: time.Second}}},
		{Name: "openSecondDoor", Steps: []actuation.Step{{Hold: 200 * time.Millisecond}}},
	}
}

func (f *fakeService) Estimate(seq actuation.Sequence) time.Duration {
	return seq.Duration(0)
}

// startServer serves svc over an in-memory listener and returns a client.
func startServer(t *testing.T, svc Service, hash string) DoorServiceClient {
	t.Helper()

	verifier, err := auth.NewVerifier(hash)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(context.Background()),
		AuthInterceptor(verifier),
	))
	RegisterDoorServiceServer(srv, NewServer(svc))

	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})

	return NewDoorServiceClient(conn)
}

// TestServer_RequestRun covers acceptance, the actor metadata and error codes.
func TestServer_RequestRun(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	client := startServer(t, svc, "")

	ctx := OutgoingContext(context.Background(), actuation.Actor{Hostname: "laptop", Username: "o.shokin"}, "")

	estimate, err := client.RequestRun(ctx, wrapperspb.String(" openFirstDoor "))
	require.NoError(t, err)
	require.Equal(t, 5800*time.Millisecond, estimate.AsDuration())
	require.Equal(t, "openFirstDoor", svc.lastName)
	require.Equal(t, actuation.Actor{Source: actuation.SourceGRPC, Hostname: "laptop", Username: "o.shokin"}, svc.lastActor)

	_, err = client.RequestRun(ctx, wrapperspb.String(""))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	cases := map[error]codes.Code{
		actuation.ErrBusy:            codes.Aborted,
		actuation.ErrUnknownSequence: codes.NotFound,
		runner.ErrStopped:            codes.Unavailable,
		context.DeadlineExceeded:     codes.DeadlineExceeded,
		errTestBoom:                  codes.Internal,
	}

	for runErr, want := range cases {
		svc.runErr = runErr
		_, err = client.RequestRun(ctx, wrapperspb.String("openFirstDoor"))
		require.Equal(t, want, status.Code(err), runErr.Error())
	}
}

// TestServer_StatusAbortList exercises the remaining methods.
func TestServer_StatusAbortList(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		status:  actuation.Status{Running: true, Sequence: "openSecondDoor", StepIndex: 3, Phase: actuation.PhaseSettling},
		aborted: true,
	}
	client := startServer(t, svc, "")
	ctx := context.Background()

	st, err := client.GetStatus(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Equal(t, svc.status, StatusFromStruct(st))
	require.Equal(t, "settling", st.GetFields()["phase"].GetStringValue())

	aborted, err := client.Abort(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.True(t, aborted.GetValue())
	require.Equal(t, actuation.SourceGRPC, svc.lastActor.Source)

	list, err := client.ListSequences(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"openFirstDoor": float64(1200), "openSecondDoor": float64(200)}, list.AsMap())
}

// TestServer_Idle encodes the idle status without a phase.
func TestServer_Idle(t *testing.T) {
	t.Parallel()

	st, err := StatusToStruct(actuation.Idle())
	require.NoError(t, err)
	require.Empty(t, st.GetFields()["phase"].GetStringValue())
	require.Equal(t, actuation.Idle(), StatusFromStruct(st))
}

// TestAuthInterceptor requires a valid key when a hash is configured.
func TestAuthInterceptor(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashKey("secret")
	require.NoError(t, err)

	client := startServer(t, new(fakeService), hash)
	actor := actuation.Actor{Hostname: "laptop"}

	_, err = client.GetStatus(context.Background(), new(emptypb.Empty))
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.GetStatus(OutgoingContext(context.Background(), actor, "wrong"), new(emptypb.Empty))
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.GetStatus(OutgoingContext(context.Background(), actor, "secret"), new(emptypb.Empty))
	require.NoError(t, err)
}
