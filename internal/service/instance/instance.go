// Package instance refuses to start a second daemon on the same machine.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process runs the same executable.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Lister returns the running processes.
type Lister func() ([]ps.Process, error)

// EnsureSingle fails if a process other than the current one runs an
// executable named like this one.
func EnsureSingle() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	return ensureSingle(ps.Processes, filepath.Base(executable), os.Getpid())
}

func ensureSingle(list Lister, name string, self int) error {
	processes, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processes {
		if process.Pid() == self {
			continue
		}

		if sameExecutable(process.Executable(), name) {
			return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, name, process.Pid())
		}
	}

	return nil
}

// sameExecutable compares names the way the OS reports them; Linux truncates
// process names to 15 bytes.
func sameExecutable(reported, name string) bool {
	const linuxCommLen = 15

	if strings.EqualFold(reported, name) {
		return true
	}

	return len(reported) == linuxCommLen && strings.HasPrefix(name, reported)
}
