package scd

import (
	"sort"
	"time"

	"github.com/sells-group/refinery-cli/internal/model"
)

// Current returns the open version per key: the "valid_to is null" read
// pattern.
func Current(versions []model.Version) []model.Version {
	var out []model.Version
	for _, v := range versions {
		if v.Open() {
			out = append(out, v)
		}
	}
	sortByKey(out)
	return out
}

// AsOf returns the version active at t for each key:
// valid_from <= t < valid_to (or open).
func AsOf(versions []model.Version, t time.Time) []model.Version {
	var out []model.Version
	for _, v := range versions {
		if v.CoversAt(t) {
			out = append(out, v)
		}
	}
	sortByKey(out)
	return out
}

// History returns every version for a key ordered by valid_from.
func History(versions []model.Version, key string) []model.Version {
	var out []model.Version
	for _, v := range versions {
		if v.Key == key {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ValidFrom.Before(out[j].ValidFrom)
	})
	return out
}

func sortByKey(vs []model.Version) {
	sort.Slice(vs, func(i, j int) bool {
		return vs[i].Key < vs[j].Key
	})
}
