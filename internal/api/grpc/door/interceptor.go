package door

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/door-actuator/internal/auth"
	"github.com/oshokin/door-actuator/internal/logger"
)

// KeyVerifier checks API keys.
type KeyVerifier interface {
	Verify(key string) error
}

// AuthInterceptor rejects calls whose authorization metadata does not carry
// a valid API key.
func AuthInterceptor(verifier KeyVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var key string

		if md, ok := metadata.FromIncomingContext(ctx); ok {
			key = auth.KeyFromHeader(first(md.Get(MetadataAuthorization)))
		}

		if err := verifier.Verify(key); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(ctx, req)
	}
}

// LoggingInterceptor puts the server logger into the call context and logs
// every call at debug level.
func LoggingInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	log := logger.FromContext(base)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.ToContext(ctx, log)
		started := time.Now()

		resp, err := handler(ctx, req)

		logger.DebugKV(ctx, "gRPC call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(started))

		return resp, err
	}
}
