// Package events bridges the actuation loop to an MQTT broker.
//
// Status and lifecycle events are published as JSON under a topic prefix:
//
//	<prefix>/online          retained "true"/"false" (last will)
//	<prefix>/status          retained current status
//	<prefix>/event           run accepted, rejected, finished and trigger presses
//	<prefix>/command/run     sequence name, or {"sequence","hostname","username"}
//	<prefix>/command/abort   any payload
//
// Observer callbacks only enqueue messages; a separate goroutine talks to the
// broker so the actuation loop never waits on the network.
package events
