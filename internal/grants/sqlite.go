package grants

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/refinery-cli/internal/model"
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
		return nil, eris.Wrap(err, "grants: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "grants: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteFromDB wraps an existing handle (shared-database setups).
func NewSQLiteFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pii_access_grants (
	user_email         TEXT NOT NULL,
	user_group         TEXT NOT NULL,
	access_level       TEXT NOT NULL,
	granted_by         TEXT NOT NULL,
	granted_at         DATETIME NOT NULL,
	expires_at         DATETIME,
	is_active          INTEGER NOT NULL DEFAULT 1,
	reason             TEXT,
	approval_ticket_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_grants_user_email ON pii_access_grants(user_email);
CREATE INDEX IF NOT EXISTS idx_grants_granted_at ON pii_access_grants(granted_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "grants: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EffectiveGrant(ctx context.Context, userEmail string, at time.Time) (*model.Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_email, user_group, access_level, granted_by, granted_at,
		       expires_at, is_active, reason, approval_ticket_id
		FROM pii_access_grants
		WHERE user_email = ?
		  AND is_active = 1
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY granted_at DESC
		LIMIT 1`,
		userEmail, at.UTC(),
	)

	g, err := scanGrant(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "grants: sqlite effective grant for %s", userEmail)
	}
	return g, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_email, user_group, access_level, granted_by, granted_at,
		       expires_at, is_active, reason, approval_ticket_id
		FROM pii_access_grants
		ORDER BY granted_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "grants: sqlite list")
	}
	defer rows.Close()

	var out []model.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, eris.Wrap(err, "grants: sqlite scan")
		}
		out = append(out, *g)
	}
	return out, eris.Wrap(rows.Err(), "grants: sqlite rows")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanGrant(row scannable) (*model.Grant, error) {
	var g model.Grant
	var level string
	var expiresAt sql.NullTime
	var reason, ticket sql.NullString

	err := row.Scan(&g.UserEmail, &g.UserGroup, &level, &g.GrantedBy,
		&g.GrantedAt, &expiresAt, &g.IsActive, &reason, &ticket)
	if err != nil {
		return nil, err
	}

	g.AccessLevel = model.AccessLevel(level)
	if expiresAt.Valid {
		t := expiresAt.Time
		g.ExpiresAt = &t
	}
	g.Reason = reason.String
	g.ApprovalTicketID = ticket.String
	return &g, nil
}
