//go:build !windows

package ipc

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"webdock/internal/userutil"
)

// sun_path is limited to ~104 bytes on the BSDs and 108 on Linux; stay under
// the smaller bound.
const maxSocketPathLen = 100

// DefaultEndpoint returns the unix socket path to use. If the
// WEBDOCK_IPC_ENDPOINT environment variable is set and passes validation,
// its value is used; otherwise a per-user default is constructed under
// XDG_RUNTIME_DIR (or the temp directory when unset).
func DefaultEndpoint() string {
	if v, ok := trustedEndpointFromEnv(); ok {
		return v
	}
	return filepath.Join(runtimeDir(), "webdock.sock")
}

func trustedEndpointFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv("WEBDOCK_IPC_ENDPOINT"))
	if value == "" {
		return "", false
	}
	if !filepath.IsAbs(value) || len(value) > maxSocketPathLen {
		slog.Warn("[ipc] WEBDOCK_IPC_ENDPOINT rejected: must be an absolute path within socket length limits", "value", value)
		return "", false
	}
	return value, true
}

// runtimeDir returns a per-user directory for the activation socket.
func runtimeDir() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); dir != "" {
		return filepath.Join(dir, "webdock")
	}
	username := ""
	if current, err := user.Current(); err == nil {
		username = current.Username
	}
	return filepath.Join(os.TempDir(), "webdock-"+userutil.SanitizeUsername(username))
}

// listenEndpoint creates a unix socket listener owned by the current user.
// A stale socket from a crashed previous run is removed first; the single
// instance lock guarantees no live server holds it.
func listenEndpoint(endpoint string) (net.Listener, error) {
	dir := filepath.Dir(endpoint)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory %s: %w", dir, err)
	}
	if err := os.Remove(endpoint); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket %s: %w", endpoint, err)
	}
	listener, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(endpoint, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}

func dialEndpoint(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, timeout)
}
