// Package kvstorage persists opaque byte blobs, typically compiled device
// kernels, across process runs.
//
// A Factory hands out one Storage per named partition. Storage instances are
// not safe for concurrent use: Load, Insert, Find and Flush on the same
// instance must be serialised by the caller.
package kvstorage

import (
	"errors"
	"fmt"
	"strings"
)

// Storage is a key to byte-blob cache for one partition.
type Storage interface {
	// Load replaces the in-memory index with the persisted one.
	// A partition that was never flushed loads as empty.
	Load() error
	// Insert upserts a copy of value in memory. Nothing is persisted until
	// Flush. It reports whether the entry was stored.
	Insert(key string, value []byte) bool
	// Find returns the stored bytes without copying. The slice is only valid
	// until the next Load, Insert, Flush or Close on the same instance and
	// must not be modified.
	Find(key string) ([]byte, bool)
	// Flush persists the in-memory index.
	Flush() error
	// Close releases resources held by the instance.
	Close() error
}

// Factory creates storages scoped to a partition name.
type Factory interface {
	CreateStorage(name string) (Storage, error)
}

// Sentinel errors for storage operations.
var (
	ErrInvalidName = errors.New("kvstorage: invalid partition name")
	ErrCorrupt     = errors.New("kvstorage: corrupt partition file")
	ErrClosed      = errors.New("kvstorage: storage closed")
)

// ValidateName rejects partition names that cannot map to a single file
// under the factory root.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
