package cleanse

import (
	"math"
	"strings"
)

// CheckOutcome is the result of running one declared (field, validator)
// pair against a record.
type CheckOutcome struct {
	Field     string
	Validator string
	Passed    bool
}

// Flag returns the quality-flag name for this check: "{field}_{validator}".
func (o CheckOutcome) Flag() string {
	return o.Field + "_" + o.Validator
}

// Score aggregates check outcomes into a 0-100 score and a flag string.
// The score is the rounded percentage of passed checks; a record with no
// declared checks scores 100. Flags is the ordered, deduplicated,
// comma-joined list of failing check names, or "" when every check
// passed. Failing records are flagged and scored, never dropped.
func Score(outcomes []CheckOutcome) (int, string) {
	if len(outcomes) == 0 {
		return 100, ""
	}

	passed := 0
	var flags []string
	seen := make(map[string]bool)
	for _, o := range outcomes {
		if o.Passed {
			passed++
			continue
		}
		if f := o.Flag(); !seen[f] {
			seen[f] = true
			flags = append(flags, f)
		}
	}

	score := int(math.Round(100 * float64(passed) / float64(len(outcomes))))
	if len(flags) > 0 && score == 100 {
		// Keep score=100 equivalent to a clean record even when rounding
		// would push a near-perfect failing record up to 100.
		score = 99
	}
	return score, strings.Join(flags, ", ")
}
