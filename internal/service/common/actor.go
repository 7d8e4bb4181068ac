//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"
)

// Actor identifies who runs a command, for the audit trail in logs.
type Actor struct {
	// Hostname is the local machine name.
	Hostname string
	// Username is the login of the current user.
	Username string
}

// String renders the actor as user@host.
func (a Actor) String() string {
	return a.Username + "@" + a.Hostname
}

// DetectActor gathers host and user information.
func DetectActor() (Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Actor{}, fmt.Errorf("current user: %w", err)
	}

	return Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
