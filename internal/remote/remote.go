// Package remote defines the narrow interface to the hosted document store
// and an HTTP adapter implementing it. The store's own query and index
// semantics stay behind this boundary.
package remote

import (
	"context"

	"github.com/mwhite/fleetsync/internal/models"
)

// Store is the abstract document store the sync engine talks to.
// Deadlines come from the caller's context; implementations must surface
// the package's error taxonomy (ErrOffline, ErrTimeout, ErrServer,
// ErrNotFound, ErrConflict) so the reconciler can pick fallback behavior.
// Create assigns the canonical id.
type Store interface {
	Create(ctx context.Context, collection models.Collection, rec models.Record) (models.Record, error)
	Update(ctx context.Context, collection models.Collection, rec models.Record) (models.Record, error)
	Delete(ctx context.Context, collection models.Collection, owner, id string) error
	Query(ctx context.Context, collection models.Collection, owner string) ([]models.Record, error)
}

// Pinger is implemented by stores that expose a cheap reachability probe.
// The reconnect watcher uses it to detect offline→online transitions.
type Pinger interface {
	Ping(ctx context.Context) error
}
