//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcquireLock_Exclusive refuses a second lock while the first one is held.
func TestAcquireLock_Exclusive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "publish.lock")

	lock, err := AcquireLock(path, time.Minute)
	require.NoError(t, err)

	_, err = AcquireLock(path, time.Minute)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())

	again, err := AcquireLock(path, time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

// TestAcquireLock_CreatesDirectory creates the missing parent of the marker.
func TestAcquireLock_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache", "release-publisher", "publish.lock")

	lock, err := AcquireLock(path, time.Minute)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.NoError(t, lock.Release())
	require.NoFileExists(t, path)
}

// TestAcquireLock_ReclaimsStale takes over markers of dead owners, garbage markers and expired ones.
func TestAcquireLock_ReclaimsStale(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.lock")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pid\n"), 0o600))

	lock, err := AcquireLock(garbage, time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	// A live owner (this process) whose marker expired.
	expired := filepath.Join(dir, "expired.lock")
	require.NoError(t, os.WriteFile(expired, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(expired, old, old))

	lock, err = AcquireLock(expired, time.Hour)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestAcquireLock_LiveOwner honors a fresh marker whose owner is running.
func TestAcquireLock_LiveOwner(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "live.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600))

	_, err := AcquireLock(path, time.Hour)
	require.ErrorIs(t, err, ErrLocked)
	require.FileExists(t, path)
}
