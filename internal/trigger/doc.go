// Package trigger turns raw samples of a push button into press events.
//
// Monitor is a pure function of the sampled level and the sample time: it
// performs no I/O and never blocks, so it can be polled from the actuation
// loop on every iteration.
package trigger
