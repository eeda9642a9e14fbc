package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/door-actuator/internal/auth"
	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/runner"
)

// fakeService implements Service for unit testing the handlers.
type fakeService struct {
	runErr    error
	status    actuation.Status
	lastName  string
	lastActor actuation.Actor
	aborted   bool
}

func (f *fakeService) RequestRun(_ context.Context, name string, actor actuation.Actor) (time.Duration, error) {
	f.lastName = name
	f.lastActor = actor

	if f.runErr != nil {
		return 0, f.runErr
	}

	return 5800 * time.Millisecond, nil
}

func (f *fakeService) Status(context.Context) (actuation.Status, error) { return f.status, nil }

func (f *fakeService) Abort(_ context.Context, actor actuation.Actor) (bool, error) {
	f.lastActor = actor

	return f.aborted, nil
}

func (f *fakeService) Sequences() []actuation.Sequence {
	return []actuation.Sequence{{Name: "openFirstDoor", Steps: make([]actuation.Step, 4)}}
}

func (f *fakeService) Estimate(actuation.Sequence) time.Duration { return 5800 * time.Millisecond }

func newTestHandler(t *testing.T, svc Service, hash string, opts ...Option) http.Handler {
	t.Helper()

	verifier, err := auth.NewVerifier(hash)
	require.NoError(t, err)

	return NewHandler(context.Background(), svc, verifier, opts...)
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.168.2.17:51234"

	for k, v := range header {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

// TestHandler_Greeting answers on the root path only.
func TestHandler_Greeting(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, new(fakeService), "", WithDeviceName("Gandalf Door Controller"))

	rec := serve(h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Hi! This is Gandalf Door Controller.", rec.Body.String())

	require.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/nope", nil).Code)
	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", nil).Code)
}

// TestHandler_RunEndpoints exercises the door routes and the generic route.
func TestHandler_RunEndpoints(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	h := newTestHandler(t, svc, "")

	rec := serve(h, http.MethodGet, "/openFirstDoor", http.Header{HeaderUsername: {"o.shokin"}})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "Wait ~6 seconds for the first door to open", rec.Body.String())
	require.Equal(t, "openFirstDoor", svc.lastName)
	require.Equal(t, actuation.Actor{Source: actuation.SourceHTTP, Hostname: "192.168.2.17", Username: "o.shokin"}, svc.lastActor)

	rec = serve(h, http.MethodPost, "/openBothDoors", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "both doors to open")

	rec = serve(h, http.MethodPost, "/run/custom", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "custom", svc.lastName)
	require.Contains(t, rec.Body.String(), "custom to finish")

	rec = serve(h, http.MethodDelete, "/openSecondDoor", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestHandler_RunErrors maps runner errors to status codes.
func TestHandler_RunErrors(t *testing.T) {
	t.Parallel()

	cases := map[error]int{
		actuation.ErrBusy:            http.StatusConflict,
		actuation.ErrUnknownSequence: http.StatusNotFound,
		runner.ErrStopped:            http.StatusServiceUnavailable,
		context.Canceled:             http.StatusInternalServerError,
	}

	for runErr, want := range cases {
		h := newTestHandler(t, &fakeService{runErr: runErr}, "")
		require.Equal(t, want, serve(h, http.MethodGet, "/openSecondDoor", nil).Code, runErr.Error())
	}
}

// TestHandler_StatusSequencesAbort checks the JSON endpoints.
func TestHandler_StatusSequencesAbort(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		status:  actuation.Status{Running: true, Sequence: "openFirstDoor", StepIndex: 1, Phase: actuation.PhaseHolding},
		aborted: true,
	}
	h := newTestHandler(t, svc, "")

	rec := serve(h, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"running":true,"sequence":"openFirstDoor","step_index":1,"phase":"holding"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/sequences", nil)
	require.JSONEq(t, `[{"name":"openFirstDoor","steps":4,"duration_ms":5800}]`, rec.Body.String())

	require.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/abort", nil).Code)

	rec = serve(h, http.MethodPost, "/abort", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.True(t, body["aborted"])
}

// TestHandler_Auth accepts the key as query parameter, bearer token or bare header.
func TestHandler_Auth(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashKey("G4nd0lf")
	require.NoError(t, err)

	h := newTestHandler(t, new(fakeService), hash,
		WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		})))

	rec := serve(h, http.MethodGet, "/openFirstDoor", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.True(t, strings.HasPrefix(rec.Body.String(), "Unauthorized"))

	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/status?key=wrong", nil).Code)
	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/status?key=G4nd0lf", nil).Code)
	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/status", http.Header{"Authorization": {"Bearer G4nd0lf"}}).Code)
	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/status", http.Header{"Authorization": {"G4nd0lf"}}).Code)

	// A wrong query key falls back to the header.
	require.Equal(t, http.StatusAccepted, serve(h, http.MethodGet, "/openFirstDoor?key=wrong",
		http.Header{"Authorization": {"Bearer G4nd0lf"}}).Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/openFirstDoor?key=wrong",
		http.Header{"Authorization": {"Bearer wrong"}}).Code)

	// Greeting and metrics stay public.
	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/", nil).Code)
	require.Equal(t, "metrics", serve(h, http.MethodGet, "/metrics", nil).Body.String())
}
