package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// sample is one synthetic input reading at an offset from the test epoch.
type sample struct {
	at      time.Duration
	pressed bool
}

// feed polls every sample and returns the offsets at which events fired.
func feed(m *Monitor, epoch time.Time, samples []sample) []time.Duration {
	var events []time.Duration

	for _, s := range samples {
		if m.Poll(s.pressed, epoch.Add(s.at)) {
			events = append(events, s.at)
		}
	}

	return events
}

// rampUntil produces pressed samples every step from start to end inclusive.
func rampUntil(start, end, step time.Duration, pressed bool) []sample {
	var out []sample
	for at := start; at <= end; at += step {
		out = append(out, sample{at: at, pressed: pressed})
	}

	return out
}

// TestMonitor_BounceTrainYieldsOneEvent verifies that rapid flips followed by a stable press fire once.
func TestMonitor_BounceTrainYieldsOneEvent(t *testing.T) {
	t.Parallel()

	m := NewMonitor(50 * time.Millisecond)
	epoch := time.Unix(1000, 0)

	samples := []sample{
		{0, true}, {3 * time.Millisecond, false}, {6 * time.Millisecond, true},
		{9 * time.Millisecond, false}, {12 * time.Millisecond, true},
	}
	samples = append(samples, rampUntil(13*time.Millisecond, 200*time.Millisecond, time.Millisecond, true)...)

	events := feed(m, epoch, samples)

	require.Len(t, events, 1)
	// The stable level began at 12ms, so the event needs strictly more than 50ms.
	require.Equal(t, 63*time.Millisecond, events[0])
	require.True(t, m.State().Latched)
}

// TestMonitor_LongHoldYieldsOneEvent ensures holding the button does not repeat the event.
func TestMonitor_LongHoldYieldsOneEvent(t *testing.T) {
	t.Parallel()

	m := NewMonitor(0)
	require.Equal(t, DefaultDebounce, m.Debounce())

	events := feed(m, time.Unix(0, 0), rampUntil(0, time.Minute, 10*time.Millisecond, true))
	require.Len(t, events, 1)
}

// TestMonitor_ReleaseAndPressAgain fires a second event only after a release and a new window.
func TestMonitor_ReleaseAndPressAgain(t *testing.T) {
	t.Parallel()

	m := NewMonitor(50 * time.Millisecond)
	epoch := time.Unix(0, 0)

	var samples []sample
	samples = append(samples, rampUntil(0, 100*time.Millisecond, 10*time.Millisecond, true)...)
	samples = append(samples, rampUntil(110*time.Millisecond, 300*time.Millisecond, 10*time.Millisecond, false)...)
	samples = append(samples, rampUntil(310*time.Millisecond, 400*time.Millisecond, 10*time.Millisecond, true)...)

	events := feed(m, epoch, samples)

	require.Equal(t, []time.Duration{60 * time.Millisecond, 370 * time.Millisecond}, events)
}

// TestMonitor_TransientReleaseClearsLatch shows that a bounce away from pressed re-arms the monitor.
func TestMonitor_TransientReleaseClearsLatch(t *testing.T) {
	t.Parallel()

	m := NewMonitor(50 * time.Millisecond)
	epoch := time.Unix(0, 0)

	samples := rampUntil(0, 100*time.Millisecond, 10*time.Millisecond, true)
	samples = append(samples, sample{at: 105 * time.Millisecond, pressed: false})
	samples = append(samples, rampUntil(110*time.Millisecond, 200*time.Millisecond, 10*time.Millisecond, true)...)

	events := feed(m, epoch, samples)

	require.Equal(t, []time.Duration{60 * time.Millisecond, 170 * time.Millisecond}, events)
}

// TestMonitor_ShortPulseIgnored verifies that a press shorter than the window never fires.
func TestMonitor_ShortPulseIgnored(t *testing.T) {
	t.Parallel()

	m := NewMonitor(50 * time.Millisecond)

	var samples []sample
	samples = append(samples, rampUntil(0, 40*time.Millisecond, 10*time.Millisecond, true)...)
	samples = append(samples, rampUntil(50*time.Millisecond, 500*time.Millisecond, 10*time.Millisecond, false)...)

	require.Empty(t, feed(m, time.Unix(0, 0), samples))
	require.False(t, m.State().StableLevel)
}

// TestMonitor_ClockGoingBackwards treats negative elapsed time as no time at all.
func TestMonitor_ClockGoingBackwards(t *testing.T) {
	t.Parallel()

	m := NewMonitor(50 * time.Millisecond)
	epoch := time.Unix(10, 0)

	require.False(t, m.Poll(true, epoch))
	require.False(t, m.Poll(true, epoch.Add(-time.Second)))
	require.True(t, m.Poll(true, epoch.Add(51*time.Millisecond)))
}
