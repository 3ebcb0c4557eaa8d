package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/refinery-cli/internal/model"
	"github.com/sells-group/refinery-cli/internal/scd"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteFromDB wraps an existing handle (shared-database setups).
func NewSQLiteFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// DB exposes the underlying handle so other stores can share the same
// database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS table_versions (
	id           TEXT PRIMARY KEY,
	table_name   TEXT NOT NULL,
	business_key TEXT NOT NULL,
	fields       TEXT NOT NULL,
	valid_from   DATETIME NOT NULL,
	valid_to     DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_table_key_from
	ON table_versions(table_name, business_key, valid_from);
CREATE INDEX IF NOT EXISTS idx_versions_open
	ON table_versions(table_name, business_key) WHERE valid_to IS NULL;
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "store: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) OpenVersions(ctx context.Context, table string) (map[string]model.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_name, business_key, fields, valid_from, valid_to
		FROM table_versions
		WHERE table_name = ? AND valid_to IS NULL`,
		table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: sqlite open versions for %s", table)
	}
	defer rows.Close()

	out := make(map[string]model.Version)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: sqlite scan")
		}
		out[v.Key] = *v
	}
	return out, eris.Wrap(rows.Err(), "store: sqlite rows")
}

func (s *SQLiteStore) ApplyDelta(ctx context.Context, table string, delta *scd.Delta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: sqlite begin")
	}
	defer tx.Rollback()

	for _, c := range delta.Closed {
		res, err := tx.ExecContext(ctx, `
			UPDATE table_versions SET valid_to = ?
			WHERE id = ? AND valid_to IS NULL`,
			c.ValidTo.UTC(), c.VersionID,
		)
		if err != nil {
			return eris.Wrapf(err, "store: sqlite close version %s", c.VersionID)
		}
		if err := checkRowsAffected(res, 1); err != nil {
			return eris.Wrapf(err, "store: sqlite close version %s", c.VersionID)
		}
	}

	for _, v := range delta.Opened {
		payload, err := json.Marshal(v.Fields)
		if err != nil {
			return eris.Wrapf(err, "store: sqlite marshal fields for %s", v.Key)
		}
		var validTo any
		if v.ValidTo != nil {
			validTo = v.ValidTo.UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO table_versions (id, table_name, business_key, fields, valid_from, valid_to)
			VALUES (?, ?, ?, ?, ?, ?)`,
			v.ID, table, v.Key, string(payload), v.ValidFrom.UTC(), validTo,
		)
		if err != nil {
			return eris.Wrapf(err, "store: sqlite open version for %s", v.Key)
		}
	}

	return eris.Wrap(tx.Commit(), "store: sqlite commit")
}

func (s *SQLiteStore) Current(ctx context.Context, table string) ([]model.Version, error) {
	return s.queryVersions(ctx, `
		SELECT id, table_name, business_key, fields, valid_from, valid_to
		FROM table_versions
		WHERE table_name = ? AND valid_to IS NULL
		ORDER BY business_key`,
		table,
	)
}

func (s *SQLiteStore) AsOf(ctx context.Context, table string, at time.Time) ([]model.Version, error) {
	return s.queryVersions(ctx, `
		SELECT id, table_name, business_key, fields, valid_from, valid_to
		FROM table_versions
		WHERE table_name = ?
		  AND valid_from <= ?
		  AND (valid_to IS NULL OR valid_to > ?)
		ORDER BY business_key`,
		table, at.UTC(), at.UTC(),
	)
}

func (s *SQLiteStore) History(ctx context.Context, table, key string) ([]model.Version, error) {
	return s.queryVersions(ctx, `
		SELECT id, table_name, business_key, fields, valid_from, valid_to
		FROM table_versions
		WHERE table_name = ? AND business_key = ?
		ORDER BY valid_from`,
		table, key,
	)
}

func (s *SQLiteStore) queryVersions(ctx context.Context, query string, args ...any) ([]model.Version, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite query versions")
	}
	defer rows.Close()

	var out []model.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: sqlite scan")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "store: sqlite rows")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanVersion(row scannable) (*model.Version, error) {
	var v model.Version
	var payload string
	var validTo sql.NullTime

	err := row.Scan(&v.ID, &v.Table, &v.Key, &payload, &v.ValidFrom, &validTo)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &v.Fields); err != nil {
		return nil, eris.Wrapf(err, "unmarshal fields for %s", v.Key)
	}
	v.ValidFrom = v.ValidFrom.UTC()
	if validTo.Valid {
		t := validTo.Time.UTC()
		v.ValidTo = &t
	}
	return &v, nil
}

func checkRowsAffected(res sql.Result, want int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n != want {
		return eris.Errorf("expected %d rows affected, got %d", want, n)
	}
	return nil
}
