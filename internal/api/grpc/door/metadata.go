package door

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
)

// Metadata keys carried by every call.
const (
	MetadataAuthorization = "authorization"
	MetadataHostname      = "x-actor-hostname"
	MetadataUsername      = "x-actor-username"
)

// OutgoingContext attaches the actor and, when set, the API key to ctx.
func OutgoingContext(ctx context.Context, actor actuation.Actor, apiKey string) context.Context {
	pairs := []string{
		MetadataHostname, actor.Hostname,
		MetadataUsername, actor.Username,
	}

	if apiKey != "" {
		pairs = append(pairs, MetadataAuthorization, "Bearer "+apiKey)
	}

	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// ActorFromContext reads the caller identity from incoming metadata.
func ActorFromContext(ctx context.Context) actuation.Actor {
	actor := actuation.Actor{Source: actuation.SourceGRPC}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return actor
	}

	actor.Hostname = first(md.Get(MetadataHostname))
	actor.Username = first(md.Get(MetadataUsername))

	return actor
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
