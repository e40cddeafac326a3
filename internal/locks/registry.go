// Package locks exposes the per-entity field lock registry. Locks are
// mutated only by explicit user action, never by the pipeline; they gate the
// merge engine but not the backward divergence pass or derivation.
package locks

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/store"
)

// Registry is the persisted field_id -> locked map for each entity.
type Registry struct {
	store store.Store
}

// NewRegistry creates a lock registry over the store.
func NewRegistry(st store.Store) *Registry {
	return &Registry{store: st}
}

// SetLock pins or releases a field. Locking a field that is still null is
// valid: subsequent merges will never populate it until it is unlocked.
func (r *Registry) SetLock(ctx context.Context, entityID, fieldID string, locked bool) error {
	if entityID == "" || fieldID == "" {
		return eris.New("locks: entity id and field id are required")
	}
	return r.store.SetLock(ctx, entityID, fieldID, locked)
}

// Locks returns the lock map for an entity. Entities with no staging row
// yield an empty map.
func (r *Registry) Locks(ctx context.Context, entityID string) (map[string]bool, error) {
	if entityID == "" {
		return nil, eris.New("locks: entity id is required")
	}
	return r.store.GetLocks(ctx, entityID)
}
