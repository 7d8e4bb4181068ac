//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("another publish is in progress")

// DefaultLockLifetime is how long a marker is honored even if its owner
// looks alive, in case the PID was reused.
const DefaultLockLifetime = time.Hour

// Lock is a marker file owned by the current process. It only guards
// publishes started from this machine; the remote document stays
// last-writer-wins across machines.
type Lock struct {
	path string
}

// AcquireLock creates the marker at path. A marker whose owner is gone or
// that is older than lifetime is reclaimed.
func AcquireLock(path string, lifetime time.Duration) (*Lock, error) {
	path = filepath.Clean(path)

	if lifetime <= 0 {
		lifetime = DefaultLockLifetime
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	for range 2 {
		err := createMarker(path)
		if err == nil {
			return &Lock{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}

		owner, stale := inspectMarker(path, lifetime)
		if !stale {
			return nil, fmt.Errorf("%w (pid %d holds %s)", ErrLocked, owner, path)
		}

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
}

// Release removes the marker. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}

	err := os.Remove(l.path)
	l.path = ""

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}

	return nil
}

func createMarker(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	_, writeErr := fmt.Fprintf(file, "%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	closeErr := file.Close()

	if err = errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(path)

		return fmt.Errorf("write lock: %w", err)
	}

	return nil
}

// inspectMarker returns the owner PID and whether the marker may be reclaimed.
func inspectMarker(path string, lifetime time.Duration) (int, bool) {
	info, err := os.Stat(path)
	if err != nil {
		// Vanished in between, retry creating it.
		return 0, true
	}

	if time.Since(info.ModTime()) > lifetime {
		return 0, true
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	firstLine, _, _ := strings.Cut(string(contents), "\n")

	pid, err := strconv.Atoi(strings.TrimSpace(firstLine))
	if err != nil || pid <= 0 {
		// Garbage marker.
		return 0, true
	}

	return pid, !processAlive(pid)
}

func processAlive(pid int) bool {
	process, err := ps.FindProcess(pid)
	if err != nil {
		// Can't tell, keep the lock.
		return true
	}

	return process != nil
}
