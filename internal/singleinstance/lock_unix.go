//go:build !windows

package singleinstance

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"webdock/internal/userutil"
)

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Lock holds an flock-ed file descriptor for single-instance enforcement.
// The kernel automatically releases the lock when the owning process terminates.
type Lock struct {
	file *os.File
}

// TryLock attempts to acquire an exclusive advisory lock on the given file.
// Returns ErrAlreadyRunning if another process already holds the lock.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("lock file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w", name, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("flock %q: %w", name, err)
	}
	return &Lock{file: f}, nil
}

// Release drops the lock. Safe to call on nil receiver and idempotent.
// The lock file itself is left in place for the next instance.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func sanitizeUsername(value string) string {
	return userutil.SanitizeUsername(value)
}

// DefaultLockName returns the lock file path for single-instance enforcement.
// The location mirrors the naming convention of ipc.DefaultEndpoint().
func DefaultLockName() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); dir != "" {
		return filepath.Join(dir, "webdock", "webdock.lock")
	}
	username := ""
	if current, err := user.Current(); err == nil {
		username = current.Username
	}
	return filepath.Join(os.TempDir(), "webdock-"+sanitizeUsername(username), "webdock.lock")
}
