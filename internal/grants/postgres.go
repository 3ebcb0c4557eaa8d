package grants

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/refinery-cli/internal/db"
	"github.com/sells-group/refinery-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

const effectiveGrantSQL = `
	SELECT user_email, user_group, access_level, granted_by, granted_at,
	       expires_at, is_active, reason, approval_ticket_id
	FROM pii_access_grants
	WHERE user_email = $1
	  AND is_active = true
	  AND (expires_at IS NULL OR expires_at > $2)
	ORDER BY granted_at DESC
	LIMIT 1`

// NewPostgres creates a PostgresStore with its own connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "grants: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "grants: postgres ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool (shared-database setups and
// tests).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pii_access_grants (
	user_email         TEXT NOT NULL,
	user_group         TEXT NOT NULL,
	access_level       TEXT NOT NULL,
	granted_by         TEXT NOT NULL,
	granted_at         TIMESTAMPTZ NOT NULL,
	expires_at         TIMESTAMPTZ,
	is_active          BOOLEAN NOT NULL DEFAULT true,
	reason             TEXT,
	approval_ticket_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_grants_user_email ON pii_access_grants(user_email);
CREATE INDEX IF NOT EXISTS idx_grants_granted_at ON pii_access_grants(granted_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "grants: postgres migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) EffectiveGrant(ctx context.Context, userEmail string, at time.Time) (*model.Grant, error) {
	row := s.pool.QueryRow(ctx, effectiveGrantSQL, userEmail, at.UTC())

	g, err := scanPgGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "grants: postgres effective grant for %s", userEmail)
	}
	return g, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Grant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_email, user_group, access_level, granted_by, granted_at,
		       expires_at, is_active, reason, approval_ticket_id
		FROM pii_access_grants
		ORDER BY granted_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "grants: postgres list")
	}
	defer rows.Close()

	var out []model.Grant
	for rows.Next() {
		g, err := scanPgGrant(rows)
		if err != nil {
			return nil, eris.Wrap(err, "grants: postgres scan")
		}
		out = append(out, *g)
	}
	return out, eris.Wrap(rows.Err(), "grants: postgres rows")
}

func scanPgGrant(row pgx.Row) (*model.Grant, error) {
	var g model.Grant
	var level string
	var expiresAt *time.Time
	var reason, ticket *string

	err := row.Scan(&g.UserEmail, &g.UserGroup, &level, &g.GrantedBy,
		&g.GrantedAt, &expiresAt, &g.IsActive, &reason, &ticket)
	if err != nil {
		return nil, err
	}

	g.AccessLevel = model.AccessLevel(level)
	g.ExpiresAt = expiresAt
	if reason != nil {
		g.Reason = *reason
	}
	if ticket != nil {
		g.ApprovalTicketID = *ticket
	}
	return &g, nil
}
