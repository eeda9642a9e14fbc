// Package logger wraps zap for the door actuator binaries.
//
// A global sugared logger with a console encoder is installed at start-up.
// Components receive it through context.Context (ToContext, FromContext,
// WithName, WithKV) so every log line carries the component name, and the
// actuation loop can run at its own level (WithMinLevel) without flooding the
// daemon log at every tick.
package logger
