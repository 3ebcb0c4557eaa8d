// Package grants exposes a read-only query surface over the externally
// managed pii_access_grants table. Grant lifecycle (approval, expiry,
// revocation) is owned by the external workflow; this process only ever
// reads the table, freshly on each evaluation.
package grants

import (
	"context"
	"time"

	"github.com/sells-group/refinery-cli/internal/model"
)

// Store resolves access grants at read time.
type Store interface {
	// EffectiveGrant returns the single applicable grant for the user at
	// the given instant: is_active, unexpired, most recently granted.
	// Returns nil (no error) when the user has no effective grant; the
	// caller defaults to masked_only.
	EffectiveGrant(ctx context.Context, userEmail string, at time.Time) (*model.Grant, error)

	// List returns all grants, newest first. Inspection only.
	List(ctx context.Context) ([]model.Grant, error)

	// Migrate creates the grant table if the environment does not
	// provide one. The external workflow remains its owner.
	Migrate(ctx context.Context) error

	Close() error
}
