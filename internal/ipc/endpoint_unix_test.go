//go:build !windows

package ipc

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T, handler Handler) *Server {
	t.Helper()
	dir, err := os.MkdirTemp("", "wdipc")
	if err != nil {
		t.Fatalf("MkdirTemp error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	srv := NewServer(filepath.Join(dir, "ipc.sock"), handler)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func TestSendRoundTrip(t *testing.T) {
	var got Request
	srv := startTestServer(t, HandlerFunc(func(req Request) Response {
		got = req
		return Response{OK: true}
	}))

	resp, err := Send(srv.Endpoint(), Request{Command: CommandQuickInput, Text: "status"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !resp.OK {
		t.Fatalf("Send() response = %+v, want OK", resp)
	}
	if got.Command != CommandQuickInput || got.Text != "status" {
		t.Fatalf("handler saw %+v", got)
	}
}

func TestSendReturnsHandlerError(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(req Request) Response {
		return Response{OK: false, Error: "unknown command: " + req.Command}
	}))

	resp, err := Send(srv.Endpoint(), Request{Command: "bogus"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.OK {
		t.Fatalf("Send() response OK, want rejection")
	}
	if !strings.Contains(resp.Error, "bogus") {
		t.Fatalf("Send() error field = %q", resp.Error)
	}
}

func TestServerRejectsMalformedRequest(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(Request) Response {
		t.Error("handler invoked for malformed request")
		return Response{OK: true}
	}))

	conn, err := net.DialTimeout("unix", srv.Endpoint(), time.Second)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("write error = %v", err)
	}
	raw, err := readDelimitedFrame(bufio.NewReaderSize(conn, maxResponseBytes+1), maxResponseBytes)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		t.Fatalf("decodeResponse error = %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Fatalf("response = %+v, want invalid-request error", resp)
	}
}

func TestServerReplacesStaleSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "wdipc")
	if err != nil {
		t.Fatalf("MkdirTemp error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	sock := filepath.Join(dir, "ipc.sock")
	if err := os.WriteFile(sock, nil, 0o600); err != nil {
		t.Fatalf("seed stale socket: %v", err)
	}

	srv := NewServer(sock, HandlerFunc(func(Request) Response { return Response{OK: true} }))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() over stale socket error = %v", err)
	}
	defer srv.Stop()

	resp, err := Send(sock, Request{Command: CommandActivate})
	if err != nil || !resp.OK {
		t.Fatalf("Send() = %+v, %v", resp, err)
	}
}

func TestServerStartTwiceFails(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(Request) Response { return Response{OK: true} }))

	if err := srv.Start(); err == nil {
		t.Fatalf("second Start() expected error")
	}
}

func TestServerStopIsIdempotent(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(Request) Response { return Response{OK: true} }))

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestSendToAbsentServerIsConnectionError(t *testing.T) {
	dir, err := os.MkdirTemp("", "wdipc")
	if err != nil {
		t.Fatalf("MkdirTemp error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	_, sendErr := Send(filepath.Join(dir, "absent.sock"), Request{Command: CommandActivate})
	if sendErr == nil {
		t.Fatalf("Send() to absent endpoint expected error")
	}
	if !IsConnectionError(sendErr) {
		t.Fatalf("IsConnectionError(%v) = false, want true", sendErr)
	}
}

func TestDefaultEndpointHonorsTrustedEnvOverride(t *testing.T) {
	t.Setenv("WEBDOCK_IPC_ENDPOINT", "/tmp/webdock-ci.sock")

	if got := DefaultEndpoint(); got != "/tmp/webdock-ci.sock" {
		t.Fatalf("DefaultEndpoint() = %q, want env override", got)
	}
}

func TestDefaultEndpointRejectsRelativeEnvOverride(t *testing.T) {
	t.Setenv("WEBDOCK_IPC_ENDPOINT", "relative/webdock.sock")

	got := DefaultEndpoint()
	if got == "relative/webdock.sock" {
		t.Fatalf("DefaultEndpoint() unexpectedly accepted relative override")
	}
	if !filepath.IsAbs(got) {
		t.Fatalf("DefaultEndpoint() = %q, want absolute path", got)
	}
}

func TestDefaultEndpointUsesRuntimeDir(t *testing.T) {
	t.Setenv("WEBDOCK_IPC_ENDPOINT", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	got := DefaultEndpoint()
	want := "/run/user/1000/webdock/webdock.sock"
	if got != want {
		t.Fatalf("DefaultEndpoint() = %q, want %q", got, want)
	}
}
