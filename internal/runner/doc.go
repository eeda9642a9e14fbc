// Package runner drives the sequencer and the trigger monitor from a single
// goroutine.
//
// The loop ticks the sequencer, samples the push button and services
// commands submitted by network handlers through a mailbox, so the actuation
// state is only ever touched by one execution context.
package runner
