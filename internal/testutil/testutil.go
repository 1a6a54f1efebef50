// Package testutil carries the couple of helpers the package tests share.
package testutil

import (
	"bytes"
	"log/slog"
	"testing"
)

// Ptr returns &v. Settings overlays distinguish "unset" from the zero value
// with pointer fields, which literals cannot take addresses for.
func Ptr[T any](v T) *T { return &v }

// CaptureLogBuffer points the default slog logger at a buffer for the rest of
// the test, so assertions can read what a code path logged.
func CaptureLogBuffer(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	return &buf
}
