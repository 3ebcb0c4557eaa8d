// Package store persists SCD Type 2 version chains. Both backends keep
// the full field payload as a JSON document keyed by (table, business
// key, valid_from), so table shapes can evolve without schema changes.
package store

import (
	"context"
	"time"

	"github.com/sells-group/refinery-cli/internal/model"
	"github.com/sells-group/refinery-cli/internal/scd"
)

// Store is the persistence surface for version chains.
type Store interface {
	// OpenVersions returns the open version per business key for a table.
	OpenVersions(ctx context.Context, table string) (map[string]model.Version, error)

	// ApplyDelta applies a merge delta in a single transaction: closes
	// first, then opens. Either everything lands or nothing does.
	ApplyDelta(ctx context.Context, table string, delta *scd.Delta) error

	// Current returns the open version of every key in the table.
	Current(ctx context.Context, table string) ([]model.Version, error)

	// AsOf returns, per key, the version whose interval covers at.
	AsOf(ctx context.Context, table string, at time.Time) ([]model.Version, error)

	// History returns every version of one key, oldest first.
	History(ctx context.Context, table, key string) ([]model.Version, error)

	// Migrate creates the version table and indexes.
	Migrate(ctx context.Context) error

	Close() error
}
