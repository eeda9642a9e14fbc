//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/door-actuator/internal/domain/actuation"
)

// DetectActor gathers host and user information for the audit trail of
// command line requests.
func DetectActor() (actuation.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return actuation.Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return actuation.Actor{}, fmt.Errorf("current user: %w", err)
	}

	return actuation.Actor{
		Source:   actuation.SourceGRPC,
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
