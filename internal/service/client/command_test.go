package client

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
)

func TestHashKey(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.ErrorIs(t, HashKey("", &out), errKeyRequired)

	require.NoError(t, HashKey("s3cret", &out))

	hash := strings.TrimSpace(out.String())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestRun_RequiresSequence(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Run(context.Background(), new(Options), ""), errSequenceRequired)
}

func TestStatus_MissingConfig(t *testing.T) {
	t.Parallel()

	opts := &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}

	err := Status(context.Background(), opts)
	require.ErrorContains(t, err, "read settings")
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, "idle", formatStatus(actuation.Idle()))
	require.Equal(t, "running openBothDoors, step 3, holding", formatStatus(actuation.Status{
		Running:   true,
		Sequence:  "openBothDoors",
		StepIndex: 2,
		Phase:     actuation.PhaseHolding,
	}))
}
