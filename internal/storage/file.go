package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aier/aier/internal/core"
)

// File is a KV kept as a single JSON document on disk, one member per key.
// Every Set rewrites the whole document.
type File struct {
	path string
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// OpenFile opens or creates the JSON document at path.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f := &File{path: path, data: make(map[string]json.RawMessage)}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return f, nil
	case err != nil:
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f.data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return f, nil
}

// Get implements KV.
func (f *File) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements KV. Values must be valid JSON.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("%w: value for %s is not JSON", core.ErrInvalidInput, key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append(json.RawMessage(nil), value...)
	return f.save()
}

func (f *File) save() error {
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Close implements KV.
func (f *File) Close() error { return nil }
