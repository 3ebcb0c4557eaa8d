package grants

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/refinery-cli/internal/model"
)

func newTestGrantStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "grants.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func insertGrant(t *testing.T, s *SQLiteStore, g model.Grant) {
	t.Helper()
	var expires any
	if g.ExpiresAt != nil {
		expires = g.ExpiresAt.UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO pii_access_grants
			(user_email, user_group, access_level, granted_by, granted_at, expires_at, is_active, reason, approval_ticket_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserEmail, g.UserGroup, string(g.AccessLevel), g.GrantedBy, g.GrantedAt.UTC(),
		expires, g.IsActive, g.Reason, g.ApprovalTicketID,
	)
	require.NoError(t, err)
}

func TestEffectiveGrantNone(t *testing.T) {
	s := newTestGrantStore(t)

	g, err := s.EffectiveGrant(context.Background(), "nobody@example.com", time.Now())
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestEffectiveGrantActive(t *testing.T) {
	s := newTestGrantStore(t)

	insertGrant(t, s, model.Grant{
		UserEmail:   "analyst@example.com",
		UserGroup:   "analytics",
		AccessLevel: model.AccessPartial,
		GrantedBy:   "admin@example.com",
		GrantedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:    true,
		Reason:      "quarterly audit",
	})

	g, err := s.EffectiveGrant(context.Background(), "analyst@example.com", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, model.AccessPartial, g.AccessLevel)
	assert.Equal(t, "analytics", g.UserGroup)
	assert.Equal(t, "quarterly audit", g.Reason)
}

func TestEffectiveGrantExpired(t *testing.T) {
	s := newTestGrantStore(t)

	exp := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	insertGrant(t, s, model.Grant{
		UserEmail:   "analyst@example.com",
		AccessLevel: model.AccessFull,
		GrantedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt:   &exp,
		IsActive:    true,
	})

	// Inside the window.
	g, err := s.EffectiveGrant(context.Background(), "analyst@example.com", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotNil(t, g)

	// After expiry.
	g, err = s.EffectiveGrant(context.Background(), "analyst@example.com", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestEffectiveGrantInactive(t *testing.T) {
	s := newTestGrantStore(t)

	insertGrant(t, s, model.Grant{
		UserEmail:   "analyst@example.com",
		AccessLevel: model.AccessFull,
		GrantedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:    false,
	})

	g, err := s.EffectiveGrant(context.Background(), "analyst@example.com", time.Now())
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestEffectiveGrantNewestWins(t *testing.T) {
	s := newTestGrantStore(t)

	insertGrant(t, s, model.Grant{
		UserEmail:   "analyst@example.com",
		AccessLevel: model.AccessMaskedOnly,
		GrantedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:    true,
	})
	insertGrant(t, s, model.Grant{
		UserEmail:   "analyst@example.com",
		AccessLevel: model.AccessFull,
		GrantedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		IsActive:    true,
	})

	g, err := s.EffectiveGrant(context.Background(), "analyst@example.com", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, model.AccessFull, g.AccessLevel)
}

func TestListGrants(t *testing.T) {
	s := newTestGrantStore(t)

	insertGrant(t, s, model.Grant{
		UserEmail: "a@example.com", AccessLevel: model.AccessFull,
		GrantedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), IsActive: true,
	})
	insertGrant(t, s, model.Grant{
		UserEmail: "b@example.com", AccessLevel: model.AccessPartial,
		GrantedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), IsActive: false,
	})

	all, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first, inactive rows included.
	assert.Equal(t, "b@example.com", all[0].UserEmail)
	assert.False(t, all[0].IsActive)
}
