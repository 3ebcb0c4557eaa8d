package model

import (
	"fmt"
	"time"
)

// Reserved metadata columns attached by the pipeline. These are never
// renamed by source prefixing and are excluded from history tracking by
// the standard table definitions.
const (
	ColIngestedFile  = "ingested_file"
	ColIngestionTS   = "ingestion_ts"
	ColCleansedTS    = "cleansed_ts"
	ColQualityFlags  = "data_quality_flags"
	ColQualityScore  = "quality_score"
	ColMaskedAt      = "masked_at"
	ColMaskedForUser = "masked_for_user"
)

// NullSentinel is the literal written into fill-null columns in place of a
// SQL null. Validators treat it as null so that reprocessing already
// cleansed data yields identical quality results.
const NullSentinel = "None"

// Record is a single tabular row keyed by normalized column name
// (lowercase, trimmed, underscored). A nil value is a null.
type Record map[string]any

// Clone returns a shallow copy of the record. Values are immutable
// scalars in practice, so a shallow copy is sufficient.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsNull reports whether the named field is absent, nil, or holds the
// fill-null sentinel.
func (r Record) IsNull(field string) bool {
	v, ok := r[field]
	if !ok || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == NullSentinel
}

// String returns the field rendered as a string, or "" when null.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// IsReservedColumn reports whether the column is pipeline metadata rather
// than source data.
func IsReservedColumn(name string) bool {
	switch name {
	case ColIngestedFile, ColIngestionTS, ColCleansedTS,
		ColQualityFlags, ColQualityScore, ColMaskedAt, ColMaskedForUser:
		return true
	}
	return false
}

// Version is one SCD Type 2 row: a record's state over the half-open
// interval [ValidFrom, ValidTo). A nil ValidTo marks the open version.
type Version struct {
	ID        string     `json:"id"`
	Table     string     `json:"table"`
	Key       string     `json:"key"`
	Fields    Record     `json:"fields"`
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

// Open reports whether this is the currently active version for its key.
func (v Version) Open() bool {
	return v.ValidTo == nil
}

// CoversAt reports whether the version was the active one at t.
func (v Version) CoversAt(t time.Time) bool {
	if t.Before(v.ValidFrom) {
		return false
	}
	return v.ValidTo == nil || v.ValidTo.After(t)
}
