// Package store provides the key/value persistence that backs session
// records, in the shape of browser localStorage.
package store

import (
	"context"
	"fmt"
)

// Storage persists string values under string keys.
type Storage interface {
	// GetItem returns the value for key and whether it exists.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem creates or replaces the value for key.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open returns the Storage implementation for driver rooted at path.
func Open(driver, path string) (Storage, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile, "":
		return NewFile(path)
	case DriverSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
