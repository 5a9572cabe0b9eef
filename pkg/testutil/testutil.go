// Package testutil provides shared helpers for package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/quasar/pkg/compression"
)

// Logger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func Logger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// Context creates a test context cancelled when the test finishes or
// after 30 seconds, whichever comes first.
func Context(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WriteFile writes content to name under dir and returns the full path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// WriteCompressed writes content to name under dir through the codec
// implied by the file extension, so "orders.csv.gz" lands gzipped.
func WriteCompressed(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	algo, ok := compression.ByExtension(name)
	require.True(t, ok, "file %s has no compression extension", name)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := compression.NewWriter(f, algo, compression.Default)
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

// Eventually asserts that condition becomes true within timeout,
// polling every 10ms.
func Eventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
