// Package backend selects and wires the persistence layer at startup.
package backend

import (
	"context"

	"tresor/internal/finance"
)

// Backend is the persistence surface the rest of the application runs on.
type Backend = finance.Store

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the backend instance and optional extras that only
// some backends provide.
type Result struct {
	Backend Backend
	Cleanup CleanupFunc

	// SyncQueue is non-nil only for backends with a durable export
	// queue (sqlite).
	SyncQueue SyncQueue
}

// SyncQueue is implemented by backends that can stage transactions for
// the Sheets export worker.
type SyncQueue interface {
	EnqueueSync(ctx context.Context, transactionID string) (int64, error)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string
}

// Type represents the kind of backend
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
