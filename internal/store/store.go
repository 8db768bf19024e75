// Package store provides optional durable persistence for the conflict resolver.
// A store receives every resolver transition as one atomic batch and can
// reload the complete registry on startup.
package store

import (
	"context"
	"fmt"

	"github.com/kilupskalvis/agentmerge/internal/models"
)

// Backend names accepted by Open.
const (
	BackendBbolt  = "bbolt"
	BackendSQLite = "sqlite"
)

// Store persists conflicts, rollback states, and the audit log.
type Store interface {
	// Apply writes every change in the batch in a single transaction.
	Apply(ctx context.Context, b *models.Batch) error
	// Load returns the full persisted state. Audit entries are in insertion order.
	Load(ctx context.Context) (*models.Snapshot, error)
	Close() error
}

// Open opens the store for the named backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendBbolt:
		return NewBboltStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
