package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/refinery-cli/internal/db"
	"github.com/sells-group/refinery-cli/internal/model"
	"github.com/sells-group/refinery-cli/internal/scd"
)

// PostgresStore implements Store using pgxpool. Opened versions are
// written with COPY, which matters for the initial load of large tables.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with its own connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "store: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: postgres ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool (shared-database setups and
// tests).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool so other stores can share it.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const pgMigration = `
CREATE TABLE IF NOT EXISTS table_versions (
	id           TEXT PRIMARY KEY,
	table_name   TEXT NOT NULL,
	business_key TEXT NOT NULL,
	fields       JSONB NOT NULL,
	valid_from   TIMESTAMPTZ NOT NULL,
	valid_to     TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_table_key_from
	ON table_versions(table_name, business_key, valid_from);
CREATE INDEX IF NOT EXISTS idx_versions_open
	ON table_versions(table_name, business_key) WHERE valid_to IS NULL;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgMigration)
	return eris.Wrap(err, "store: postgres migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) OpenVersions(ctx context.Context, table string) (map[string]model.Version, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, table_name, business_key, fields, valid_from, valid_to
		FROM table_versions
		WHERE table_name = $1 AND valid_to IS NULL`,
		table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: postgres open versions for %s", table)
	}
	defer rows.Close()

	out := make(map[string]model.Version)
	for rows.Next() {
		v, err := scanPgVersion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: postgres scan")
		}
		out[v.Key] = *v
	}
	return out, eris.Wrap(rows.Err(), "store: postgres rows")
}

func (s *PostgresStore) ApplyDelta(ctx context.Context, table string, delta *scd.Delta) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: postgres begin")
	}
	defer tx.Rollback(ctx)

	for _, c := range delta.Closed {
		tag, err := tx.Exec(ctx, `
			UPDATE table_versions SET valid_to = $1
			WHERE id = $2 AND valid_to IS NULL`,
			c.ValidTo.UTC(), c.VersionID,
		)
		if err != nil {
			return eris.Wrapf(err, "store: postgres close version %s", c.VersionID)
		}
		if tag.RowsAffected() != 1 {
			return eris.Errorf("store: postgres close version %s: expected 1 row affected, got %d",
				c.VersionID, tag.RowsAffected())
		}
	}

	if len(delta.Opened) > 0 {
		src := make([][]any, 0, len(delta.Opened))
		for _, v := range delta.Opened {
			payload, err := json.Marshal(v.Fields)
			if err != nil {
				return eris.Wrapf(err, "store: postgres marshal fields for %s", v.Key)
			}
			var validTo any
			if v.ValidTo != nil {
				validTo = v.ValidTo.UTC()
			}
			src = append(src, []any{v.ID, table, v.Key, payload, v.ValidFrom.UTC(), validTo})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"table_versions"},
			[]string{"id", "table_name", "business_key", "fields", "valid_from", "valid_to"},
			pgx.CopyFromRows(src),
		)
		if err != nil {
			return eris.Wrap(err, "store: postgres copy opened versions")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "store: postgres commit")
}

func (s *PostgresStore) Current(ctx context.Context, table string) ([]model.Version, error) {
	return s.queryVersions(ctx, `
		SELECT id, table_name, business_key, fields, valid_from, valid_to
		FROM table_versions
		WHERE table_name = $1 AND valid_to IS NULL
		ORDER BY business_key`,
		table,
	)
}

func (s *PostgresStore) AsOf(ctx context.Context, table string, at time.Time) ([]model.Version, error) {
	return s.queryVersions(ctx, `
		SELECT id, table_name, business_key, fields, valid_from, valid_to
		FROM table_versions
		WHERE table_name = $1
		  AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY business_key`,
		table, at.UTC(),
	)
}

func (s *PostgresStore) History(ctx context.Context, table, key string) ([]model.Version, error) {
	return s.queryVersions(ctx, `
		SELECT id, table_name, business_key, fields, valid_from, valid_to
		FROM table_versions
		WHERE table_name = $1 AND business_key = $2
		ORDER BY valid_from`,
		table, key,
	)
}

func (s *PostgresStore) queryVersions(ctx context.Context, query string, args ...any) ([]model.Version, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: postgres query versions")
	}
	defer rows.Close()

	var out []model.Version
	for rows.Next() {
		v, err := scanPgVersion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: postgres scan")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "store: postgres rows")
}

func scanPgVersion(row pgx.Row) (*model.Version, error) {
	var v model.Version
	var payload []byte
	var validTo *time.Time

	err := row.Scan(&v.ID, &v.Table, &v.Key, &payload, &v.ValidFrom, &validTo)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &v.Fields); err != nil {
		return nil, eris.Wrapf(err, "unmarshal fields for %s", v.Key)
	}
	v.ValidFrom = v.ValidFrom.UTC()
	if validTo != nil {
		t := validTo.UTC()
		v.ValidTo = &t
	}
	return &v, nil
}
