// Package version exposes build metadata.
//
// Version, Commit and BuildTime are injected with -ldflags -X at build time.
// UserAgent renders the product token used by the gRPC client and the HTTP
// server.
package version
