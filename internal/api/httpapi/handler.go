package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/door-actuator/internal/auth"
	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/logger"
	"github.com/oshokin/door-actuator/internal/runner"
	"github.com/oshokin/door-actuator/internal/sequencer"
)

// HeaderUsername optionally names the user behind a request.
const HeaderUsername = "X-Actor-Username"

// Service abstracts the runner operations the handlers depend on.
type Service interface {
	RequestRun(ctx context.Context, name string, actor actuation.Actor) (time.Duration, error)
	Status(ctx context.Context) (actuation.Status, error)
	Abort(ctx context.Context, actor actuation.Actor) (bool, error)
	Sequences() []actuation.Sequence
	Estimate(seq actuation.Sequence) time.Duration
}

// KeyVerifier checks API keys.
type KeyVerifier interface {
	Verify(key string) error
}

// Option customises the handler.
type Option func(*handler)

// WithDeviceName sets the name used in the greeting.
func WithDeviceName(name string) Option {
	return func(h *handler) {
		if name != "" {
			h.deviceName = name
		}
	}
}

// WithMetrics serves h on GET /metrics without authentication.
func WithMetrics(metrics http.Handler) Option {
	return func(h *handler) {
		h.metrics = metrics
	}
}

// handler holds the dependencies of the routes.
type handler struct {
	ctx        context.Context //nolint:containedctx // Carries the logger for requests.
	service    Service
	verifier   KeyVerifier
	deviceName string
	metrics    http.Handler
}

// statusResponse is the JSON body of GET /status.
type statusResponse struct {
	Running   bool   `json:"running"`
	Sequence  string `json:"sequence,omitempty"`
	StepIndex int    `json:"step_index"`
	Phase     string `json:"phase,omitempty"`
}

// sequenceResponse is one entry of GET /sequences.
type sequenceResponse struct {
	Name       string `json:"name"`
	Steps      int    `json:"steps"`
	DurationMS int64  `json:"duration_ms"`
}

// NewHandler builds the routes.
func NewHandler(ctx context.Context, service Service, verifier KeyVerifier, opts ...Option) http.Handler {
	h := &handler{
		ctx:        logger.WithName(ctx, "http"),
		service:    service,
		verifier:   verifier,
		deviceName: "door actuator",
	}

	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleGreeting)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	for _, name := range []string{sequencer.OpenFirstDoor, sequencer.OpenSecondDoor, sequencer.OpenBothDoors} {
		mux.HandleFunc("/"+name, h.withAuth(h.runHandler(name)))
	}

	mux.HandleFunc("/run/{sequence}", h.withAuth(func(w http.ResponseWriter, r *http.Request) {
		h.runHandler(r.PathValue("sequence"))(w, r)
	}))
	mux.HandleFunc("GET /status", h.withAuth(h.handleStatus))
	mux.HandleFunc("GET /sequences", h.withAuth(h.handleSequences))
	mux.HandleFunc("POST /abort", h.withAuth(h.handleAbort))

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	return h.withLogging(mux)
}

// withAuth rejects requests without a valid key in the "key" query
// parameter or the Authorization header. The header is still checked when
// the query key is wrong.
func (h *handler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			http.Error(w, "Unauthorized: Invalid or missing API key", http.StatusUnauthorized)

			return
		}

		next(w, r)
	}
}

func (h *handler) authorized(r *http.Request) bool {
	if key := r.URL.Query().Get("key"); key != "" && h.verifier.Verify(key) == nil {
		return true
	}

	return h.verifier.Verify(auth.KeyFromHeader(r.Header.Get("Authorization"))) == nil
}

// withLogging logs every request at debug level.
func (h *handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		next.ServeHTTP(rec, r.WithContext(logger.ToContext(r.Context(), logger.FromContext(h.ctx))))

		logger.DebugKV(h.ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(started))
	})
}

func (h *handler) handleGreeting(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, fmt.Sprintf("Hi! This is %s.", h.deviceName))
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (h *handler) runHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

			return
		}

		estimate, err := h.service.RequestRun(r.Context(), name, actorFromRequest(r))
		if err != nil {
			writeError(w, err)

			return
		}

		writeText(w, http.StatusAccepted, fmt.Sprintf("Wait ~%d seconds for %s", roundUpSeconds(estimate), describe(name)))
	}
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context())
	if err != nil {
		writeError(w, err)

		return
	}

	resp := statusResponse{Running: st.Running}
	if st.Running {
		resp.Sequence = st.Sequence
		resp.StepIndex = st.StepIndex
		resp.Phase = st.Phase.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleSequences(w http.ResponseWriter, _ *http.Request) {
	sequences := h.service.Sequences()

	resp := make([]sequenceResponse, 0, len(sequences))
	for _, seq := range sequences {
		resp = append(resp, sequenceResponse{
			Name:       seq.Name,
			Steps:      len(seq.Steps),
			DurationMS: h.service.Estimate(seq).Milliseconds(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleAbort(w http.ResponseWriter, r *http.Request) {
	aborted, err := h.service.Abort(r.Context(), actorFromRequest(r))
	if err != nil {
		writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"aborted": aborted})
}

// actorFromRequest identifies the caller by remote host and optional header.
func actorFromRequest(r *http.Request) actuation.Actor {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return actuation.Actor{
		Source:   actuation.SourceHTTP,
		Hostname: host,
		Username: r.Header.Get(HeaderUsername),
	}
}

// describe names what the caller is waiting for.
func describe(name string) string {
	switch name {
	case sequencer.OpenFirstDoor:
		return "the first door to open"
	case sequencer.OpenSecondDoor:
		return "the second door to open"
	case sequencer.OpenBothDoors:
		return "both doors to open"
	default:
		return name + " to finish"
	}
}

func roundUpSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actuation.ErrBusy):
		writeText(w, http.StatusConflict, "Busy: another sequence is running")
	case errors.Is(err, actuation.ErrUnknownSequence):
		writeText(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runner.ErrStopped):
		writeText(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeText(w, http.StatusInternalServerError, err.Error())
	}
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder remembers the response code for logging.
type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
