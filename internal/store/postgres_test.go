package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/refinery-cli/internal/model"
	"github.com/sells-group/refinery-cli/internal/scd"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresMigrate(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresFromPool(mock)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS table_versions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOpenVersions(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresFromPool(mock)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(model.Record{"customer_id": "C1", "name": "JANE"})

	mock.ExpectQuery("SELECT id, table_name, business_key, fields, valid_from, valid_to FROM table_versions").
		WithArgs("customers").
		WillReturnRows(pgxmock.NewRows([]string{"id", "table_name", "business_key", "fields", "valid_from", "valid_to"}).
			AddRow("v1", "customers", "C1", payload, from, (*time.Time)(nil)))

	open, err := s.OpenVersions(context.Background(), "customers")
	require.NoError(t, err)
	require.Contains(t, open, "C1")
	assert.Equal(t, "v1", open["C1"].ID)
	assert.Equal(t, "JANE", open["C1"].Fields["name"])
	assert.True(t, open["C1"].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyDelta(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresFromPool(mock)

	t2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	opened := model.Version{
		ID: "v2", Table: "customers", Key: "C1",
		Fields:    model.Record{"customer_id": "C1", "name": "JANE DOE"},
		ValidFrom: t2,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE table_versions SET valid_to").
		WithArgs(t2, "v1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCopyFrom(
		pgx.Identifier{"table_versions"},
		[]string{"id", "table_name", "business_key", "fields", "valid_from", "valid_to"},
	).WillReturnResult(1)
	mock.ExpectCommit()

	err := s.ApplyDelta(context.Background(), "customers", &scd.Delta{
		Closed: []scd.Close{{VersionID: "v1", ValidTo: t2}},
		Opened: []model.Version{opened},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyDeltaRollsBackOnCloseMiss(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresFromPool(mock)

	t2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE table_versions SET valid_to").
		WithArgs(t2, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.ApplyDelta(context.Background(), "customers", &scd.Delta{
		Closed: []scd.Close{{VersionID: "missing", ValidTo: t2}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 row affected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistory(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresFromPool(mock)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	p1, _ := json.Marshal(model.Record{"name": "JANE"})
	p2, _ := json.Marshal(model.Record{"name": "JANE DOE"})

	mock.ExpectQuery("SELECT id, table_name, business_key, fields, valid_from, valid_to FROM table_versions").
		WithArgs("customers", "C1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "table_name", "business_key", "fields", "valid_from", "valid_to"}).
			AddRow("v1", "customers", "C1", p1, t1, &t2).
			AddRow("v2", "customers", "C1", p2, t2, (*time.Time)(nil)))

	history, err := s.History(context.Background(), "customers", "C1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].ValidTo)
	assert.True(t, history[0].ValidTo.Equal(t2))
	assert.Nil(t, history[1].ValidTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}
