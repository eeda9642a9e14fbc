package door

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dooractuator.v1.DoorService"

// Full method names, as seen by interceptors.
const (
	RequestRunFullMethod    = "/" + ServiceName + "/RequestRun"
	GetStatusFullMethod     = "/" + ServiceName + "/GetStatus"
	AbortFullMethod         = "/" + ServiceName + "/Abort"
	ListSequencesFullMethod = "/" + ServiceName + "/ListSequences"
)

// DoorServiceServer is the server API of the door service.
type DoorServiceServer interface {
	RequestRun(ctx context.Context, in *wrapperspb.StringValue) (*durationpb.Duration, error)
	GetStatus(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Abort(ctx context.Context, in *emptypb.Empty) (*wrapperspb.BoolValue, error)
	ListSequences(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the door service for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // grpc expects a service descriptor value.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DoorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestRun",
			Handler: unary(RequestRunFullMethod, newStringValue,
				func(s DoorServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
					return s.RequestRun(ctx, in)
				}),
		},
		{
			MethodName: "GetStatus",
			Handler: unary(GetStatusFullMethod, newEmpty,
				func(s DoorServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return s.GetStatus(ctx, in)
				}),
		},
		{
			MethodName: "Abort",
			Handler: unary(AbortFullMethod, newEmpty,
				func(s DoorServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return s.Abort(ctx, in)
				}),
		},
		{
			MethodName: "ListSequences",
			Handler: unary(ListSequencesFullMethod, newEmpty,
				func(s DoorServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return s.ListSequences(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dooractuator/v1/door.proto",
}

// RegisterDoorServiceServer registers srv on s.
func RegisterDoorServiceServer(s grpc.ServiceRegistrar, srv DoorServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newStringValue() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }

// unary builds a method handler decoding Req and dispatching through the
// server's interceptor chain.
func unary[Req proto.Message](
	fullMethod string,
	newRequest func() Req,
	call func(DoorServiceServer, context.Context, Req) (any, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newRequest()
		if err := dec(in); err != nil {
			return nil, err
		}

		impl, _ := srv.(DoorServiceServer)
		if interceptor == nil {
			return call(impl, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(Req)

			return call(impl, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// DoorServiceClient is the client API of the door service.
type DoorServiceClient interface {
	RequestRun(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*durationpb.Duration, error)
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Abort(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	ListSequences(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type doorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDoorServiceClient returns a client over cc.
//
//nolint:ireturn // Mirrors generated gRPC clients.
func NewDoorServiceClient(cc grpc.ClientConnInterface) DoorServiceClient {
	return &doorServiceClient{cc: cc}
}

func (c *doorServiceClient) RequestRun(
	ctx context.Context,
	in *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*durationpb.Duration, error) {
	out := new(durationpb.Duration)
	if err := c.cc.Invoke(ctx, RequestRunFullMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *doorServiceClient) GetStatus(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStatusFullMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *doorServiceClient) Abort(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, AbortFullMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *doorServiceClient) ListSequences(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListSequencesFullMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
