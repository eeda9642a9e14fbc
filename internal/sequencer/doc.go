// Package sequencer runs press choreographies as a non-blocking state machine.
//
// A Sequencer owns the actuators and at most one active run. RequestRun admits
// a run only while idle; Tick advances the run by at most one phase
// transition, driven purely by elapsed time, and never sleeps. The type is
// not safe for concurrent use: it is meant to be owned by a single loop.
package sequencer
