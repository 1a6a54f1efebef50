//go:build windows

package ipc

import (
	"strings"
	"testing"
)

func TestDefaultEndpointHonorsTrustedEnvOverride(t *testing.T) {
	t.Setenv("WEBDOCK_IPC_ENDPOINT", `\\.\pipe\webdock-ci_pipe`)

	if got := DefaultEndpoint(); got != `\\.\pipe\webdock-ci_pipe` {
		t.Fatalf("DefaultEndpoint() = %q, want trusted env override", got)
	}
}

func TestDefaultEndpointRejectsUntrustedEnvOverride(t *testing.T) {
	t.Setenv("WEBDOCK_IPC_ENDPOINT", `\\.\pipe\other-app`)
	t.Setenv("USERNAME", "unit-tester")

	got := DefaultEndpoint()
	if got == `\\.\pipe\other-app` {
		t.Fatalf("DefaultEndpoint() unexpectedly accepted untrusted env override")
	}
	if !strings.HasPrefix(got, defaultEndpointPrefix) {
		t.Fatalf("DefaultEndpoint() = %q, want %q prefix", got, defaultEndpointPrefix)
	}
}

func TestDefaultEndpointSanitizesUsername(t *testing.T) {
	t.Setenv("WEBDOCK_IPC_ENDPOINT", "")
	t.Setenv("USERNAME", "unit user!")

	got := DefaultEndpoint()
	want := `\\.\pipe\webdock-unit_user_`
	if got != want {
		t.Fatalf("DefaultEndpoint() = %q, want %q", got, want)
	}
}

func TestDefaultEndpointFallbackWhenUsernameEmpty(t *testing.T) {
	t.Setenv("WEBDOCK_IPC_ENDPOINT", "")
	t.Setenv("USERNAME", "")

	got := DefaultEndpoint()

	// When USERNAME is empty, user.Current() may succeed (returning the OS
	// user) or fail (falling back to "unknown"). Either way the endpoint must
	// have a non-empty suffix after the prefix.
	if !strings.HasPrefix(got, defaultEndpointPrefix) {
		t.Fatalf("DefaultEndpoint() = %q, want prefix %q", got, defaultEndpointPrefix)
	}
	suffix := strings.TrimPrefix(got, defaultEndpointPrefix)
	if suffix == "" {
		t.Fatalf("DefaultEndpoint() = %q, suffix after prefix must not be empty", got)
	}
}
