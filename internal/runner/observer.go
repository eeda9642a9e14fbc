package runner

import (
	"time"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
)

// Observer is notified about run lifecycle events on the loop goroutine.
// Implementations must return quickly and must not call back into the Runner.
type Observer interface {
	// RunAccepted is called when a run is admitted.
	RunAccepted(name string, actor actuation.Actor, estimate time.Duration)
	// RunRejected is called when a request is refused.
	RunRejected(name string, actor actuation.Actor, err error)
	// RunFinished is called once per admitted run when it reaches done.
	RunFinished(name string, elapsed time.Duration, aborted bool)
	// TriggerPressed is called for every debounced press of the push button.
	TriggerPressed()
	// PhaseChanged is called after every state transition of the sequencer.
	PhaseChanged(status actuation.Status)
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver struct{}

// RunAccepted implements Observer.
func (NopObserver) RunAccepted(string, actuation.Actor, time.Duration) {}

// RunRejected implements Observer.
func (NopObserver) RunRejected(string, actuation.Actor, error) {}

// RunFinished implements Observer.
func (NopObserver) RunFinished(string, time.Duration, bool) {}

// TriggerPressed implements Observer.
func (NopObserver) TriggerPressed() {}

// PhaseChanged implements Observer.
func (NopObserver) PhaseChanged(actuation.Status) {}

// Observers fans events out to several observers in order.
type Observers []Observer

// RunAccepted implements Observer.
func (o Observers) RunAccepted(name string, actor actuation.Actor, estimate time.Duration) {
	for _, obs := range o {
		obs.RunAccepted(name, actor, estimate)
	}
}

// RunRejected implements Observer.
func (o Observers) RunRejected(name string, actor actuation.Actor, err error) {
	for _, obs := range o {
		obs.RunRejected(name, actor, err)
	}
}

// RunFinished implements Observer.
func (o Observers) RunFinished(name string, elapsed time.Duration, aborted bool) {
	for _, obs := range o {
		obs.RunFinished(name, elapsed, aborted)
	}
}

// TriggerPressed implements Observer.
func (o Observers) TriggerPressed() {
	for _, obs := range o {
		obs.TriggerPressed()
	}
}

// PhaseChanged implements Observer.
func (o Observers) PhaseChanged(status actuation.Status) {
	for _, obs := range o {
		obs.PhaseChanged(status)
	}
}
