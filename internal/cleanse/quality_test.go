package cleanse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreNoChecks(t *testing.T) {
	score, flags := Score(nil)
	assert.Equal(t, 100, score)
	assert.Empty(t, flags)
}

func TestScoreAllPassed(t *testing.T) {
	score, flags := Score([]CheckOutcome{
		{Field: "nric", Validator: "singapore_nric", Passed: true},
		{Field: "email", Validator: "email", Passed: true},
	})
	assert.Equal(t, 100, score)
	assert.Empty(t, flags)
}

func TestScorePartialFailure(t *testing.T) {
	score, flags := Score([]CheckOutcome{
		{Field: "nric", Validator: "singapore_nric", Passed: true},
		{Field: "email", Validator: "email", Passed: false},
		{Field: "gender", Validator: "gender", Passed: true},
		{Field: "postal_code", Validator: "singapore_postal_code", Passed: false},
	})
	assert.Equal(t, 50, score)
	assert.Equal(t, "email_email, postal_code_singapore_postal_code", flags)
}

func TestScoreDeduplicatesFlags(t *testing.T) {
	_, flags := Score([]CheckOutcome{
		{Field: "email", Validator: "email", Passed: false},
		{Field: "email", Validator: "email", Passed: false},
	})
	assert.Equal(t, "email_email", flags)
}

func TestScoreNeverRoundsFailureTo100(t *testing.T) {
	outcomes := make([]CheckOutcome, 1000)
	for i := range outcomes {
		outcomes[i] = CheckOutcome{Field: "f", Validator: "v", Passed: true}
	}
	outcomes[0].Passed = false

	score, flags := Score(outcomes)
	assert.Equal(t, 99, score)
	assert.NotEmpty(t, flags)
}
