// Package storage persists AIER network state in a key-value store.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aier/aier/internal/core"
)

// KV is a durable string-keyed blob store.
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend string // sqlite, postgres, file or memory
	Path    string // sqlite database or JSON document path
	DSN     string // postgres connection string
}

// Open opens the configured backend.
func Open(ctx context.Context, cfg Config) (KV, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendSQLite, "":
		db, err := OpenSQLite(SQLiteConfig{Path: cfg.Path})
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	case BackendFile:
		return OpenFile(cfg.Path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownBackend, cfg.Backend)
	}
}

// DefaultPath returns the default on-disk location for a backend under dataDir.
func DefaultPath(backend, dataDir string) string {
	if strings.ToLower(backend) == BackendFile {
		return filepath.Join(dataDir, "aier.json")
	}
	return filepath.Join(dataDir, "aier.db")
}
