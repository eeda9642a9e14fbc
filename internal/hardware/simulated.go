package hardware

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/logger"
)

// Write is one recorded SetAngle call.
type Write struct {
	ID    actuation.ActuatorID
	Angle int
}

// SimulatedPositioner records every write. It is safe for concurrent use so
// tests can inspect it while the actuation loop runs.
type SimulatedPositioner struct {
	ctx    context.Context //nolint:containedctx // Carries the logger only.
	mu     sync.Mutex
	writes []Write
	angles map[actuation.ActuatorID]int
}

// NewSimulatedPositioner creates an empty recorder logging through ctx.
func NewSimulatedPositioner(ctx context.Context) *SimulatedPositioner {
	return &SimulatedPositioner{
		ctx:    ctx,
		angles: make(map[actuation.ActuatorID]int),
	}
}

// SetAngle records the write.
func (s *SimulatedPositioner) SetAngle(id actuation.ActuatorID, angle int) {
	s.mu.Lock()
	s.writes = append(s.writes, Write{ID: id, Angle: angle})
	s.angles[id] = angle
	s.mu.Unlock()

	logger.DebugKV(s.ctx, "Servo moved", "actuator", id, "angle", angle)
}

// Writes returns a copy of all recorded writes.
func (s *SimulatedPositioner) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Write, len(s.writes))
	copy(out, s.writes)

	return out
}

// Angle returns the last angle written to id.
func (s *SimulatedPositioner) Angle(id actuation.ActuatorID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	angle, ok := s.angles[id]

	return angle, ok
}

// SimulatedInput is a button whose level is set by the caller.
type SimulatedInput struct {
	pressed atomic.Bool
}

// Set changes the button level.
func (i *SimulatedInput) Set(pressed bool) {
	i.pressed.Store(pressed)
}

// Pressed returns the current level.
func (i *SimulatedInput) Pressed() bool {
	return i.pressed.Load()
}
