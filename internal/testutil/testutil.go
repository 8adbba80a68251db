// Package testutil provides shared testing utilities for AIER.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aier/aier/internal/storage"
)

// TestKV opens an in-memory SQLite key-value store for testing.
// The store is automatically closed when the test completes.
func TestKV(t *testing.T) storage.KV {
	t.Helper()

	kv, err := storage.OpenSQLite(storage.SQLiteConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}

	t.Cleanup(func() {
		kv.Close()
	})

	return kv
}

// TestContext returns a context with a timeout for tests.
// The context is automatically cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout returns a context with a custom timeout.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEnv returns the value of an environment variable.
// If the variable is not set, the test is skipped.
func RequireEnv(t *testing.T, key string) string {
	t.Helper()
	val := os.Getenv(key)
	if val == "" {
		t.Skipf("skipping: %s not set", key)
	}
	return val
}

// TempDir creates a temporary directory for the test.
// The directory is automatically removed when the test completes.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "aier-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}
