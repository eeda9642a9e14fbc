package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
	"github.com/oshokin/door-actuator/internal/hardware"
	"github.com/oshokin/door-actuator/internal/logger"
	"github.com/oshokin/door-actuator/internal/sequencer"
	"github.com/oshokin/door-actuator/internal/trigger"
)

// DefaultCadence is the loop period when none is configured.
const DefaultCadence = 5 * time.Millisecond

var (
	// ErrStopped is returned by mailbox calls once the loop has exited.
	ErrStopped = errors.New("runner stopped")
	// errNoSequencer is returned when New is called without a sequencer.
	errNoSequencer = errors.New("sequencer is required")
	// errNoMonitor is returned when an input is configured without a monitor.
	errNoMonitor = errors.New("trigger monitor is required with an input")
	// errAlreadyRunning is returned when Run is called twice.
	errAlreadyRunning = errors.New("runner loop already started")
)

// Option customises a Runner.
type Option func(*Runner)

// WithCadence sets the loop period. Non-positive values select DefaultCadence.
func WithCadence(d time.Duration) Option {
	return func(r *Runner) {
		r.cadence = d
	}
}

// WithObserver registers an observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithTrigger connects the push button. Debounced presses request the named
// sequence.
func WithTrigger(input hardware.Input, monitor *trigger.Monitor, sequence string) Option {
	return func(r *Runner) {
		r.input = input
		r.monitor = monitor
		r.triggerSequence = sequence
	}
}

// commandKind selects what a mailbox command does.
type commandKind int

const (
	commandRun commandKind = iota
	commandStatus
	commandAbort
)

// command is a request from another goroutine, answered on reply.
type command struct {
	kind  commandKind
	name  string
	actor actuation.Actor
	reply chan result
}

// result is the answer to a command.
type result struct {
	status   actuation.Status
	estimate time.Duration
	aborted  bool
	err      error
}

// Runner owns the sequencer and the trigger monitor.
// Only the loop goroutine touches them; other goroutines use the mailbox.
type Runner struct {
	seq             *sequencer.Sequencer
	input           hardware.Input
	monitor         *trigger.Monitor
	triggerSequence string
	observers       Observers
	cadence         time.Duration

	commands chan command
	started  chan struct{}
	done     chan struct{}

	// Bookkeeping of the active run, loop goroutine only.
	runName    string
	runStarted time.Time
	runAborted bool
}

// New creates a runner. The trigger sequence, if any, must be registered.
func New(seq *sequencer.Sequencer, opts ...Option) (*Runner, error) {
	if seq == nil {
		return nil, errNoSequencer
	}

	r := &Runner{
		seq:      seq,
		cadence:  DefaultCadence,
		commands: make(chan command),
		started:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cadence <= 0 {
		r.cadence = DefaultCadence
	}

	if r.input != nil {
		if r.monitor == nil {
			return nil, errNoMonitor
		}

		if _, ok := seq.Lookup(r.triggerSequence); !ok {
			return nil, fmt.Errorf("trigger: %w: %q", actuation.ErrUnknownSequence, r.triggerSequence)
		}
	}

	return r, nil
}

// Cadence returns the loop period.
func (r *Runner) Cadence() time.Duration {
	return r.cadence
}

// Sequences returns the registered sequences. The registry is immutable,
// so this is safe from any goroutine.
func (r *Runner) Sequences() []actuation.Sequence {
	return r.seq.Sequences()
}

// Lookup returns the registered sequence with the given name.
func (r *Runner) Lookup(name string) (actuation.Sequence, bool) {
	return r.seq.Lookup(name)
}

// Estimate returns the nominal run time of a sequence.
func (r *Runner) Estimate(seq actuation.Sequence) time.Duration {
	return seq.Duration(r.seq.Travel())
}

// Run executes the loop until ctx is cancelled. An active run is aborted on
// exit so the actuators end up at rest.
func (r *Runner) Run(ctx context.Context) error {
	select {
	case r.started <- struct{}{}:
	default:
		return errAlreadyRunning
	}

	defer close(r.done)

	ticker := time.NewTicker(r.cadence)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Actuation loop started",
		"cadence", r.cadence,
		"trigger_sequence", r.triggerSequence,
		"trigger_enabled", r.input != nil)

	for {
		select {
		case <-ctx.Done():
			r.shutdown(ctx, time.Now())

			return nil
		case cmd := <-r.commands:
			cmd.reply <- r.handle(ctx, cmd, time.Now())
		case now := <-ticker.C:
			r.Iterate(ctx, now)
		}
	}
}

// Iterate performs one loop iteration: tick the sequencer, then sample the
// push button and route a debounced press into a run request.
// It must only be called from the goroutine that owns the runner.
func (r *Runner) Iterate(ctx context.Context, now time.Time) {
	if r.seq.Tick(now) {
		r.transitioned(ctx, now)
	}

	if r.input == nil || !r.monitor.Poll(r.input.Pressed(), now) {
		return
	}

	r.observers.TriggerPressed()
	logger.DebugKV(ctx, "Trigger pressed", "sequence", r.triggerSequence)

	_, err := r.requestRun(ctx, r.triggerSequence, actuation.Actor{Source: actuation.SourceTrigger}, now)
	if err != nil {
		logger.DebugKV(ctx, "Trigger press dropped", "error", err)
	}
}

// RequestRun asks the loop to start the named sequence and returns its
// estimated run time.
func (r *Runner) RequestRun(ctx context.Context, name string, actor actuation.Actor) (time.Duration, error) {
	res, err := r.submit(ctx, command{kind: commandRun, name: name, actor: actor})
	if err != nil {
		return 0, err
	}

	return res.estimate, res.err
}

// Status returns the sequencer status as seen by the loop.
func (r *Runner) Status(ctx context.Context) (actuation.Status, error) {
	res, err := r.submit(ctx, command{kind: commandStatus})
	if err != nil {
		return actuation.Status{}, err
	}

	return res.status, nil
}

// Abort stops the active run and reports whether there was one.
func (r *Runner) Abort(ctx context.Context, actor actuation.Actor) (bool, error) {
	res, err := r.submit(ctx, command{kind: commandAbort, actor: actor})
	if err != nil {
		return false, err
	}

	return res.aborted, nil
}

// submit hands cmd to the loop and waits for the answer.
func (r *Runner) submit(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)

	select {
	case r.commands <- cmd:
	case <-r.done:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, fmt.Errorf("submit command: %w", ctx.Err())
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, fmt.Errorf("await command: %w", ctx.Err())
	}
}

func (r *Runner) handle(ctx context.Context, cmd command, now time.Time) result {
	switch cmd.kind {
	case commandRun:
		estimate, err := r.requestRun(ctx, cmd.name, cmd.actor, now)

		return result{estimate: estimate, err: err}
	case commandAbort:
		return result{aborted: r.abort(ctx, cmd.actor, now)}
	default:
		return result{status: r.seq.Status()}
	}
}

func (r *Runner) requestRun(ctx context.Context, name string, actor actuation.Actor, now time.Time) (time.Duration, error) {
	if err := r.seq.RequestRun(name); err != nil {
		r.observers.RunRejected(name, actor, err)

		return 0, err
	}

	seq, _ := r.seq.Lookup(name)
	estimate := r.Estimate(seq)

	r.runName = name
	r.runStarted = now
	r.runAborted = false

	logger.InfoKV(ctx, "Run accepted", "sequence", name, "actor", actor, "estimate", estimate)
	r.observers.RunAccepted(name, actor, estimate)
	r.observers.PhaseChanged(r.seq.Status())

	return estimate, nil
}

func (r *Runner) abort(ctx context.Context, actor actuation.Actor, now time.Time) bool {
	if !r.seq.Abort() {
		return false
	}

	r.runAborted = true

	logger.InfoKV(ctx, "Run aborted", "sequence", r.runName, "actor", actor)
	r.transitioned(ctx, now)

	return true
}

// transitioned publishes the new status and closes the books on a finished run.
func (r *Runner) transitioned(ctx context.Context, now time.Time) {
	status := r.seq.Status()
	r.observers.PhaseChanged(status)

	if status.Phase != actuation.PhaseDone || !status.Running {
		return
	}

	elapsed := max(now.Sub(r.runStarted), 0)

	logger.InfoKV(ctx, "Run finished", "sequence", r.runName, "elapsed", elapsed, "aborted", r.runAborted)
	r.observers.RunFinished(r.runName, elapsed, r.runAborted)
}

func (r *Runner) shutdown(ctx context.Context, now time.Time) {
	r.abort(ctx, actuation.Actor{}, now)
	logger.Info(ctx, "Actuation loop stopped")
}
