// Package store persists staging records, production snapshots, and field
// locks behind one interface with SQLite and Postgres backends.
package store

import (
	"context"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Store defines the persistence interface for the reconciliation engine.
//
// Staging rows are one-per-entity, updated in place. Production snapshots
// are append-only and immutable. PublishSnapshot must be atomic as observed
// by readers: the staging update and the production insert either both
// commit or neither is visible.
type Store interface {
	// Staging
	GetStaging(ctx context.Context, entityID string) (*model.EntityRecord, error)
	UpsertStaging(ctx context.Context, rec *model.EntityRecord) (*model.EntityRecord, error)

	// Production
	PublishSnapshot(ctx context.Context, rec *model.EntityRecord) (*model.ProductionSnapshot, error)
	LatestSnapshot(ctx context.Context, entityID string) (*model.ProductionSnapshot, error)
	ListSnapshots(ctx context.Context, entityID string, limit int) ([]model.ProductionSnapshot, error)

	// Locks
	GetLocks(ctx context.Context, entityID string) (map[string]bool, error)
	SetLock(ctx context.Context, entityID, fieldID string, locked bool) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
