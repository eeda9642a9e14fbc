package sequencer

import (
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/hardware"
)

// MaxActuators is the number of servo channels the device supports.
const MaxActuators = 2

var (
	errNoPositioner       = errors.New("positioner is required")
	errNoActuators        = errors.New("at least one actuator is required")
	errTooManyActuators   = errors.New("too many actuators")
	errDuplicateActuator  = errors.New("duplicate actuator")
	errDuplicateSequence  = errors.New("duplicate sequence")
	errEmptySequence      = errors.New("sequence has no steps")
	errUnknownActuator    = errors.New("step references unknown actuator")
	errUnreachableAngle   = errors.New("step target is neither the default nor the pressed angle")
	errNegativeDuration   = errors.New("step durations must not be negative")
	errUnnamedSequence    = errors.New("sequence name is required")
	errNegativeTravelTime = errors.New("travel time must not be negative")
)

// Option customises a Sequencer.
type Option func(*Sequencer)

// WithTravel keeps each step in the moving phase for d after the target
// angle is commanded, for actuators whose travel time is not negligible.
func WithTravel(d time.Duration) Option {
	return func(s *Sequencer) {
		s.travel = d
	}
}

// run is the mutable state of the active execution.
type run struct {
	sequence  actuation.Sequence
	stepIndex int
	stepStart time.Time
	phase     actuation.Phase
	// commanded is set once the moving phase wrote the target angle.
	commanded bool
}

// Sequencer owns the actuators and the single active run.
type Sequencer struct {
	positioner hardware.Positioner
	actuators  map[actuation.ActuatorID]*actuation.Actuator
	order      []actuation.ActuatorID
	registry   map[string]actuation.Sequence
	names      []string
	travel     time.Duration
	active     *run
}

// New validates the configuration and homes every actuator.
func New(
	actuators []actuation.Actuator,
	positioner hardware.Positioner,
	sequences []actuation.Sequence,
	opts ...Option,
) (*Sequencer, error) {
	if positioner == nil {
		return nil, errNoPositioner
	}

	s := &Sequencer{
		positioner: positioner,
		actuators:  make(map[actuation.ActuatorID]*actuation.Actuator, len(actuators)),
		registry:   make(map[string]actuation.Sequence, len(sequences)),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.travel < 0 {
		return nil, errNegativeTravelTime
	}

	if err := s.addActuators(actuators); err != nil {
		return nil, err
	}

	if err := s.addSequences(sequences); err != nil {
		return nil, err
	}

	s.home()

	return s, nil
}

func (s *Sequencer) addActuators(actuators []actuation.Actuator) error {
	switch {
	case len(actuators) == 0:
		return errNoActuators
	case len(actuators) > MaxActuators:
		return fmt.Errorf("%w: %d > %d", errTooManyActuators, len(actuators), MaxActuators)
	}

	for i := range actuators {
		a := actuators[i]
		if _, exists := s.actuators[a.ID]; exists {
			return fmt.Errorf("%w: %s", errDuplicateActuator, a.ID)
		}

		a.CurrentAngle = a.DefaultAngle
		s.actuators[a.ID] = &a
		s.order = append(s.order, a.ID)
	}

	return nil
}

func (s *Sequencer) addSequences(sequences []actuation.Sequence) error {
	for _, seq := range sequences {
		if seq.Name == "" {
			return errUnnamedSequence
		}

		if _, exists := s.registry[seq.Name]; exists {
			return fmt.Errorf("%w: %s", errDuplicateSequence, seq.Name)
		}

		if len(seq.Steps) == 0 {
			return fmt.Errorf("%w: %s", errEmptySequence, seq.Name)
		}

		for i, step := range seq.Steps {
			if err := s.validateStep(step); err != nil {
				return fmt.Errorf("sequence %s step %d: %w", seq.Name, i, err)
			}
		}

		s.registry[seq.Name] = seq.Clone()
		s.names = append(s.names, seq.Name)
	}

	return nil
}

func (s *Sequencer) validateStep(step actuation.Step) error {
	a, ok := s.actuators[step.ActuatorID]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownActuator, step.ActuatorID)
	}

	if !a.Accepts(step.TargetAngle) {
		return fmt.Errorf("%w: %d", errUnreachableAngle, step.TargetAngle)
	}

	if step.Hold < 0 || step.Settle < 0 {
		return errNegativeDuration
	}

	return nil
}

// RequestRun admits the named sequence if no run exists.
// It returns actuation.ErrUnknownSequence or actuation.ErrBusy otherwise;
// a rejected request has no side effect.
func (s *Sequencer) RequestRun(name string) error {
	seq, ok := s.registry[name]
	if !ok {
		return fmt.Errorf("%w: %q", actuation.ErrUnknownSequence, name)
	}

	if s.active != nil {
		return fmt.Errorf("%w: %s", actuation.ErrBusy, s.active.sequence.Name)
	}

	s.home()
	s.active = &run{
		sequence: seq,
		phase:    actuation.PhaseMoving,
	}

	return nil
}

// Tick advances the active run by at most one phase transition and reports
// whether anything changed. It is a no-op without a run.
func (s *Sequencer) Tick(now time.Time) bool {
	r := s.active
	if r == nil {
		return false
	}

	switch r.phase {
	case actuation.PhaseMoving:
		return s.tickMoving(r, now)
	case actuation.PhaseHolding:
		step := r.sequence.Steps[r.stepIndex]
		if elapsed(r.stepStart, now) < step.Hold {
			return false
		}

		s.move(step.ActuatorID, s.actuators[step.ActuatorID].DefaultAngle)
		r.stepStart = now
		r.phase = actuation.PhaseSettling

		return true
	case actuation.PhaseSettling:
		step := r.sequence.Steps[r.stepIndex]
		if elapsed(r.stepStart, now) < step.Settle {
			return false
		}

		r.stepIndex++
		if r.stepIndex < len(r.sequence.Steps) {
			r.phase = actuation.PhaseMoving
			r.commanded = false
		} else {
			r.phase = actuation.PhaseDone
		}

		return true
	default:
		s.active = nil

		return true
	}
}

func (s *Sequencer) tickMoving(r *run, now time.Time) bool {
	if !r.commanded {
		step := r.sequence.Steps[r.stepIndex]
		s.move(step.ActuatorID, step.TargetAngle)
		r.stepStart = now
		r.commanded = true

		if s.travel > 0 {
			return true
		}
	}

	if elapsed(r.stepStart, now) < s.travel {
		return false
	}

	if s.travel > 0 {
		r.stepStart = now
	}

	r.phase = actuation.PhaseHolding

	return true
}

// Abort ends the active run and returns every actuator to its default angle.
// The run is reported as done until the next tick clears it.
func (s *Sequencer) Abort() bool {
	if s.active == nil || s.active.phase == actuation.PhaseDone {
		return false
	}

	s.home()
	s.active.phase = actuation.PhaseDone

	return true
}

// Status reports the active run, or idle.
func (s *Sequencer) Status() actuation.Status {
	if s.active == nil {
		return actuation.Idle()
	}

	return actuation.Status{
		Running:   true,
		Sequence:  s.active.sequence.Name,
		StepIndex: s.active.stepIndex,
		Phase:     s.active.phase,
	}
}

// Actuators returns copies of the actuators in configuration order.
func (s *Sequencer) Actuators() []actuation.Actuator {
	out := make([]actuation.Actuator, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.actuators[id])
	}

	return out
}

// Lookup returns the registered sequence with the given name.
func (s *Sequencer) Lookup(name string) (actuation.Sequence, bool) {
	seq, ok := s.registry[name]
	if !ok {
		return actuation.Sequence{}, false
	}

	return seq.Clone(), true
}

// Sequences returns all registered sequences in registration order.
func (s *Sequencer) Sequences() []actuation.Sequence {
	out := make([]actuation.Sequence, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.registry[name].Clone())
	}

	return out
}

// Travel returns the configured travel time per step.
func (s *Sequencer) Travel() time.Duration {
	return s.travel
}

func (s *Sequencer) home() {
	for _, id := range s.order {
		s.move(id, s.actuators[id].DefaultAngle)
	}
}

func (s *Sequencer) move(id actuation.ActuatorID, angle int) {
	s.actuators[id].CurrentAngle = angle
	s.positioner.SetAngle(id, angle)
}

// elapsed returns now-start, treating a clock that went backwards as zero.
func elapsed(start, now time.Time) time.Duration {
	return max(now.Sub(start), 0)
}
