package door

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/logger"
	"github.com/oshokin/door-actuator/internal/runner"
)

// Service abstracts the runner operations the transport layer depends on.
type Service interface {
	RequestRun(ctx context.Context, name string, actor actuation.Actor) (time.Duration, error)
	Status(ctx context.Context) (actuation.Status, error)
	Abort(ctx context.Context, actor actuation.Actor) (bool, error)
	Sequences() []actuation.Sequence
	Estimate(seq actuation.Sequence) time.Duration
}

// Server implements the DoorService gRPC API.
type Server struct {
	// service runs the actuation commands.
	service Service
}

var _ DoorServiceServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// RequestRun admits the named sequence and returns its estimated run time.
func (s *Server) RequestRun(ctx context.Context, req *wrapperspb.StringValue) (*durationpb.Duration, error) {
	name := strings.TrimSpace(req.GetValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "sequence name is required")
	}

	actor := ActorFromContext(ctx)

	estimate, err := s.service.RequestRun(ctx, name, actor)
	if err != nil {
		logger.DebugKV(ctx, "Run request refused", "sequence", name, "actor", actor, "error", err)

		return nil, toStatusError(err)
	}

	return durationpb.New(estimate), nil
}

// GetStatus returns the current sequencer status.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.service.Status(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	return StatusToStruct(st)
}

// Abort stops the active run and reports whether there was one.
func (s *Server) Abort(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	aborted, err := s.service.Abort(ctx, ActorFromContext(ctx))
	if err != nil {
		return nil, toStatusError(err)
	}

	return wrapperspb.Bool(aborted), nil
}

// ListSequences maps every registered sequence name to its estimated run
// time in milliseconds.
func (s *Server) ListSequences(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fields := make(map[string]any)
	for _, seq := range s.service.Sequences() {
		fields[seq.Name] = s.service.Estimate(seq).Milliseconds()
	}

	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode sequences")
	}

	return result, nil
}

// StatusToStruct encodes a status as {running, sequence, step_index, phase}.
func StatusToStruct(st actuation.Status) (*structpb.Struct, error) {
	fields := map[string]any{
		"running":    st.Running,
		"sequence":   st.Sequence,
		"step_index": st.StepIndex,
		"phase":      "",
	}

	if st.Running {
		fields["phase"] = st.Phase.String()
	}

	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode status")
	}

	return result, nil
}

// StatusFromStruct decodes what StatusToStruct produced.
func StatusFromStruct(s *structpb.Struct) actuation.Status {
	fields := s.GetFields()

	st := actuation.Status{
		Running:   fields["running"].GetBoolValue(),
		Sequence:  fields["sequence"].GetStringValue(),
		StepIndex: int(fields["step_index"].GetNumberValue()),
	}

	for p := actuation.PhaseMoving; p <= actuation.PhaseDone; p++ {
		if p.String() == fields["phase"].GetStringValue() {
			st.Phase = p
		}
	}

	return st
}

// toStatusError maps runner and domain errors to gRPC status codes.
func toStatusError(err error) error {
	switch {
	case errors.Is(err, actuation.ErrBusy):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, actuation.ErrUnknownSequence):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, runner.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
