package actuation

import "fmt"

// Source tells which surface a run request arrived from.
type Source string

const (
	// SourceGRPC marks requests from the gRPC API.
	SourceGRPC Source = "grpc"
	// SourceHTTP marks requests from the HTTP API.
	SourceHTTP Source = "http"
	// SourceMQTT marks requests from the MQTT command topic.
	SourceMQTT Source = "mqtt"
	// SourceTrigger marks presses of the local push button.
	SourceTrigger Source = "trigger"
)

// Actor identifies who asked for a run. It is only used for logs and events.
type Actor struct {
	// Source is the surface the request arrived from.
	Source Source
	// Hostname is the machine the request was sent from, if known.
	Hostname string
	// Username is the user who sent the request, if known.
	Username string
}

// String renders the actor as user@host via source.
func (a Actor) String() string {
	switch {
	case a.Username == "" && a.Hostname == "":
		return string(a.Source)
	case a.Username == "":
		return fmt.Sprintf("%s via %s", a.Hostname, a.Source)
	default:
		return fmt.Sprintf("%s@%s via %s", a.Username, a.Hostname, a.Source)
	}
}
