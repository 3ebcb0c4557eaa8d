package grants

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/refinery-cli/internal/model"
)

func grantColumns() []string {
	return []string{"user_email", "user_group", "access_level", "granted_by",
		"granted_at", "expires_at", "is_active", "reason", "approval_ticket_id"}
}

func TestPostgresEffectiveGrant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresFromPool(mock)

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	granted := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reason := "quarterly audit"

	mock.ExpectQuery("SELECT user_email, user_group, access_level").
		WithArgs("analyst@example.com", at).
		WillReturnRows(pgxmock.NewRows(grantColumns()).
			AddRow("analyst@example.com", "analytics", "partial_access", "admin@example.com",
				granted, (*time.Time)(nil), true, &reason, (*string)(nil)))

	g, err := s.EffectiveGrant(context.Background(), "analyst@example.com", at)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, model.AccessPartial, g.AccessLevel)
	assert.Equal(t, "quarterly audit", g.Reason)
	assert.Empty(t, g.ApprovalTicketID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEffectiveGrantNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresFromPool(mock)

	at := time.Now().UTC()
	mock.ExpectQuery("SELECT user_email, user_group, access_level").
		WithArgs("nobody@example.com", at).
		WillReturnRows(pgxmock.NewRows(grantColumns()))

	g, err := s.EffectiveGrant(context.Background(), "nobody@example.com", at)
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.NoError(t, mock.ExpectationsWereMet())
}
