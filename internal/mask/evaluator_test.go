package mask

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/refinery-cli/internal/model"
)

// stubGrants is an in-memory grant store keyed by user email.
type stubGrants struct {
	grants map[string]*model.Grant
	err    error
}

func (s *stubGrants) EffectiveGrant(_ context.Context, userEmail string, at time.Time) (*model.Grant, error) {
	if s.err != nil {
		return nil, s.err
	}
	g, ok := s.grants[userEmail]
	if !ok || !g.EffectiveAt(at) {
		return nil, nil
	}
	return g, nil
}

func (s *stubGrants) List(context.Context) ([]model.Grant, error) { return nil, nil }
func (s *stubGrants) Migrate(context.Context) error               { return nil }
func (s *stubGrants) Close() error                                { return nil }

func defaultRules() map[string]string {
	return map[string]string{
		"email":   "email",
		"phone":   "phone",
		"nric":    "nric",
		"address": "address",
	}
}

func customerRecord() model.Record {
	return model.Record{
		"customer_id": "C1",
		"full_name":   "JANE DOE",
		"email":       "jane.doe@example.com",
		"phone":       "+6591234567",
		"nric":        "S1234567D",
		"address":     "10 Bayfront Ave, Singapore 018956",
	}
}

func grantFor(level model.AccessLevel) *model.Grant {
	return &model.Grant{
		UserEmail:   "analyst@example.com",
		AccessLevel: level,
		GrantedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:    true,
	}
}

func newTestEvaluator(t *testing.T, gs *stubGrants) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(gs, NewRegistry(), defaultRules())
	require.NoError(t, err)
	return e
}

func TestProjectFullAccess(t *testing.T) {
	gs := &stubGrants{grants: map[string]*model.Grant{
		"analyst@example.com": grantFor(model.AccessFull),
	}}
	e := newTestEvaluator(t, gs)

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out, err := e.Project(context.Background(), customerRecord(), "analyst@example.com", at)
	require.NoError(t, err)

	assert.Equal(t, "jane.doe@example.com", out["email"])
	assert.Equal(t, "S1234567D", out["nric"])
	assert.Equal(t, at, out[model.ColMaskedAt])
	assert.Equal(t, "analyst@example.com", out[model.ColMaskedForUser])
}

func TestProjectPartialAccess(t *testing.T) {
	gs := &stubGrants{grants: map[string]*model.Grant{
		"analyst@example.com": grantFor(model.AccessPartial),
	}}
	e := newTestEvaluator(t, gs)

	out, err := e.Project(context.Background(), customerRecord(), "analyst@example.com", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "j***@example.com", out["email"])
	assert.Equal(t, "+659 ****4567", out["phone"])
	assert.Equal(t, "S****67D", out["nric"])
	assert.Equal(t, "*** Singapore 018956", out["address"])
	// Non-PII columns pass through.
	assert.Equal(t, "JANE DOE", out["full_name"])
}

func TestProjectNoGrantDefaultsToMaskedOnly(t *testing.T) {
	e := newTestEvaluator(t, &stubGrants{})

	out, err := e.Project(context.Background(), customerRecord(), "stranger@example.com", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "***@***", out["email"])
	assert.Equal(t, FullMask, out["phone"])
	assert.Equal(t, FullMask, out["nric"])
	assert.Equal(t, FullMask, out["address"])
}

func TestProjectExpiredGrantMasks(t *testing.T) {
	expired := grantFor(model.AccessFull)
	exp := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	expired.ExpiresAt = &exp

	gs := &stubGrants{grants: map[string]*model.Grant{"analyst@example.com": expired}}
	e := newTestEvaluator(t, gs)

	// Within the grant window: full access.
	out, err := e.Project(context.Background(), customerRecord(), "analyst@example.com",
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", out["email"])

	// After expiry the very next read is fully masked.
	out, err = e.Project(context.Background(), customerRecord(), "analyst@example.com",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "***@***", out["email"])
}

func TestProjectDeactivatedGrantMasksNextRead(t *testing.T) {
	g := grantFor(model.AccessFull)
	gs := &stubGrants{grants: map[string]*model.Grant{"analyst@example.com": g}}
	e := newTestEvaluator(t, gs)

	out, err := e.Project(context.Background(), customerRecord(), "analyst@example.com", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", out["email"])

	g.IsActive = false

	out, err = e.Project(context.Background(), customerRecord(), "analyst@example.com", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "***@***", out["email"])
}

func TestProjectMalformedValueFullyMasks(t *testing.T) {
	gs := &stubGrants{grants: map[string]*model.Grant{
		"analyst@example.com": grantFor(model.AccessPartial),
	}}
	e := newTestEvaluator(t, gs)

	rec := customerRecord()
	rec["email"] = 12345
	rec["phone"] = nil

	out, err := e.Project(context.Background(), rec, "analyst@example.com", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "***@***", out["email"])
	assert.Equal(t, FullMask, out["phone"])
}

func TestProjectDoesNotMutateInput(t *testing.T) {
	e := newTestEvaluator(t, &stubGrants{})

	rec := customerRecord()
	_, err := e.Project(context.Background(), rec, "x@example.com", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "jane.doe@example.com", rec["email"])
	assert.NotContains(t, rec, model.ColMaskedAt)
}

func TestNewEvaluatorRejectsUnknownMasker(t *testing.T) {
	_, err := NewEvaluator(&stubGrants{}, NewRegistry(), map[string]string{"email": "nope"})
	assert.Error(t, err)
}

func TestProjectBatch(t *testing.T) {
	gs := &stubGrants{grants: map[string]*model.Grant{
		"analyst@example.com": grantFor(model.AccessPartial),
	}}
	e := newTestEvaluator(t, gs)

	out, err := e.ProjectBatch(context.Background(),
		[]model.Record{customerRecord(), customerRecord()},
		"analyst@example.com", time.Now())
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, r := range out {
		assert.Equal(t, "j***@example.com", r["email"])
	}
}
