package trigger

import "time"

// DefaultDebounce is the minimum stable time before a level change is trusted.
const DefaultDebounce = 50 * time.Millisecond

// State is the internal view of the monitor, exposed for diagnostics.
type State struct {
	// RawLevel is the last sampled level (true = pressed).
	RawLevel bool
	// StableLevel is the last level that outlived the debounce window.
	StableLevel bool
	// LastChange is the time of the last raw level change.
	LastChange time.Time
	// Latched is set once the current press produced its event.
	Latched bool
}

// Monitor emits one event per physical press, tolerating contact bounce.
// It is not safe for concurrent use.
type Monitor struct {
	debounce time.Duration
	state    State
}

// NewMonitor creates a monitor with the given debounce window.
// A non-positive window selects DefaultDebounce.
func NewMonitor(debounce time.Duration) *Monitor {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Monitor{debounce: debounce}
}

// Poll feeds one sample and reports whether it completes a press.
// pressed is the logical level, already inverted for active-low wiring.
func (m *Monitor) Poll(pressed bool, now time.Time) bool {
	if pressed != m.state.RawLevel {
		m.state.RawLevel = pressed
		m.state.LastChange = now
		m.state.Latched = false
	}

	// A clock that went backwards counts as no elapsed time.
	elapsed := now.Sub(m.state.LastChange)
	if elapsed <= m.debounce {
		return false
	}

	m.state.StableLevel = m.state.RawLevel

	if !m.state.StableLevel || m.state.Latched {
		return false
	}

	m.state.Latched = true

	return true
}

// State returns a copy of the current monitor state.
func (m *Monitor) State() State {
	return m.state
}

// Debounce returns the configured debounce window.
func (m *Monitor) Debounce() time.Duration {
	return m.debounce
}
