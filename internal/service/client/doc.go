// Package client implements the door-actuator-ctl commands.
//
// Each command loads the client section of the configuration, connects to the
// daemon over gRPC, performs one call and prints the result.
package client
