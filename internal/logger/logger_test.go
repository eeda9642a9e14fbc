package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"":        zapcore.InfoLevel,
		" INFO ":  zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("chatty")
	require.False(t, ok)
}

// TestFromContext_FallsBackToGlobal checks that an empty context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	//nolint:staticcheck // A nil context must not panic.
	require.Same(t, Logger(), FromContext(nil))
}

// TestContextHelpers verifies that names, fields and levels travel with the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())

	ctx = WithName(ctx, "runner")
	ctx = WithKV(ctx, "device", "gandalf")

	InfoKV(ctx, "run accepted", "sequence", "openBothDoors")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "runner", entries[0].LoggerName)
	require.Equal(t, "gandalf", entries[0].ContextMap()["device"])
	require.Equal(t, "openBothDoors", entries[0].ContextMap()["sequence"])

	quiet := WithMinLevel(ctx, zapcore.WarnLevel)
	DebugKV(quiet, "tick")
	WarnKV(quiet, "slow tick")
	require.Equal(t, 2, logs.Len())
}
