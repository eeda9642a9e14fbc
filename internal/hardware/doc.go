// Package hardware adapts servo channels and the push button to the
// actuation core.
//
// Positioner writes are fire-and-forget: backends log write failures and
// never report them to the caller, so the sequencer timing is unaffected by a
// misbehaving bus. Three backends exist: periph.io GPIO PWM, a Pololu Maestro
// servo controller on a serial port, and an in-memory simulation used by
// tests and desktop runs.
package hardware
