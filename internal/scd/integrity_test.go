package scd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/refinery-cli/internal/model"
)

func TestValidateChainEmpty(t *testing.T) {
	assert.NoError(t, ValidateChain(nil))
}

func TestValidateChainContiguous(t *testing.T) {
	assert.NoError(t, ValidateChain(chainFixture()[:3]))
}

func TestValidateChainGap(t *testing.T) {
	t1 := ts("2024-01-01 00:00:00")
	t2 := ts("2024-02-01 00:00:00")
	t3 := ts("2024-03-01 00:00:00")

	chain := []model.Version{
		{ID: "a", ValidFrom: t1, ValidTo: &t2},
		{ID: "b", ValidFrom: t3},
	}
	err := ValidateChain(chain)
	assert.ErrorContains(t, err, "gap")

	// The same gap is legal when sanctioned as a delete boundary.
	assert.NoError(t, validateChain(chain, func(at time.Time) bool { return at.Equal(t2) }))
}

func TestValidateChainOverlap(t *testing.T) {
	t1 := ts("2024-01-01 00:00:00")
	t2 := ts("2024-02-01 00:00:00")
	mid := ts("2024-01-15 00:00:00")

	err := ValidateChain([]model.Version{
		{ID: "a", ValidFrom: t1, ValidTo: &t2},
		{ID: "b", ValidFrom: mid},
	})
	assert.ErrorContains(t, err, "overlap")
}

func TestValidateChainMultipleOpen(t *testing.T) {
	err := ValidateChain([]model.Version{
		{ID: "a", ValidFrom: ts("2024-01-01 00:00:00")},
		{ID: "b", ValidFrom: ts("2024-02-01 00:00:00")},
	})
	assert.ErrorContains(t, err, "open")
}

func TestValidateChainInvertedInterval(t *testing.T) {
	t1 := ts("2024-02-01 00:00:00")
	t0 := ts("2024-01-01 00:00:00")

	err := ValidateChain([]model.Version{
		{ID: "a", ValidFrom: t1, ValidTo: &t0},
	})
	assert.ErrorContains(t, err, "interval")
}
