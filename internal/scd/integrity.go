package scd

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/refinery-cli/internal/model"
)

// ValidateChain verifies the SCD Type 2 invariant for one key's
// versions: closed intervals partition time with no gaps or overlaps,
// and at most one version is open. A gap is only legal at a logical
// delete boundary, which callers sanction through validateChain.
func ValidateChain(chain []model.Version) error {
	return validateChain(chain, nil)
}

// validateChain is ValidateChain with an optional predicate sanctioning
// gaps that start at a delete closure.
func validateChain(chain []model.Version, gapOK func(time.Time) bool) error {
	if len(chain) == 0 {
		return nil
	}

	sorted := make([]model.Version, len(chain))
	copy(sorted, chain)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ValidFrom.Before(sorted[j].ValidFrom)
	})

	openSeen := false
	for i, v := range sorted {
		if v.ValidTo == nil {
			if openSeen {
				return eris.New("multiple open versions")
			}
			openSeen = true
			if i != len(sorted)-1 {
				return eris.New("open version is not the latest")
			}
			continue
		}
		if !v.ValidTo.After(v.ValidFrom) {
			return eris.Errorf("empty or inverted interval at %s", v.ValidFrom.Format(time.RFC3339))
		}
		if i == len(sorted)-1 {
			continue
		}
		next := sorted[i+1]
		switch {
		case next.ValidFrom.Before(*v.ValidTo):
			return eris.Errorf("overlapping intervals at %s", next.ValidFrom.Format(time.RFC3339))
		case next.ValidFrom.After(*v.ValidTo):
			if gapOK == nil || !gapOK(*v.ValidTo) {
				return eris.Errorf("gap after %s", v.ValidTo.Format(time.RFC3339))
			}
		}
	}
	return nil
}
