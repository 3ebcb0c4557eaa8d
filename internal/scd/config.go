package scd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/refinery-cli/internal/model"
)

// MergeConfig declares how change batches for one table merge into its
// historical record.
type MergeConfig struct {
	Table string `yaml:"table" json:"table"`
	// Keys are the business key columns. Immutable per version chain.
	Keys []string `yaml:"keys" json:"keys"`
	// SequenceBy names the monotonic column establishing change order.
	SequenceBy string `yaml:"sequence_by" json:"sequence_by"`
	// TrackHistoryColumns limits change detection to these columns.
	// Mutually exclusive with TrackHistoryExceptColumns.
	TrackHistoryColumns []string `yaml:"track_history_columns,omitempty" json:"track_history_columns,omitempty"`
	// TrackHistoryExceptColumns excludes these columns from change
	// detection (typically pipeline metadata).
	TrackHistoryExceptColumns []string `yaml:"track_history_except_columns,omitempty" json:"track_history_except_columns,omitempty"`
	// IgnoreNullUpdates keeps existing values where an incoming record
	// carries nulls. Defaults to true when unset.
	IgnoreNullUpdates *bool `yaml:"ignore_null_updates,omitempty" json:"ignore_null_updates,omitempty"`
	// DeleteFlagField, when set, names a column whose truthy value marks
	// the record as a delete signal for its key.
	DeleteFlagField string `yaml:"delete_flag_field,omitempty" json:"delete_flag_field,omitempty"`
}

// Validate checks structural consistency of the config.
func (c MergeConfig) Validate() error {
	if c.Table == "" {
		return eris.New("scd: config missing table name")
	}
	if len(c.Keys) == 0 {
		return eris.Errorf("scd: config for %s missing keys", c.Table)
	}
	if c.SequenceBy == "" {
		return eris.Errorf("scd: config for %s missing sequence_by", c.Table)
	}
	if len(c.TrackHistoryColumns) > 0 && len(c.TrackHistoryExceptColumns) > 0 {
		return eris.Errorf("scd: config for %s sets both track_history_columns and track_history_except_columns", c.Table)
	}
	return nil
}

// ignoreNulls resolves the IgnoreNullUpdates default (true).
func (c MergeConfig) ignoreNulls() bool {
	return c.IgnoreNullUpdates == nil || *c.IgnoreNullUpdates
}

// CompositeKey renders the business key of a record as a single string,
// pipe-joined in declared key order. Returns an error when any key part
// is null.
func CompositeKey(rec model.Record, keys []string) (string, error) {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if rec.IsNull(k) {
			return "", eris.Errorf("scd: record missing key column %q", k)
		}
		parts = append(parts, rec.String(k))
	}
	return strings.Join(parts, "|"), nil
}

// sequenceLayouts are accepted string renderings of a sequence value.
var sequenceLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceSequence interprets a sequence value as a timestamp. Accepts
// time.Time, common string layouts, and integer/float epoch seconds.
func coerceSequence(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range sequenceLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, eris.Errorf("scd: unparseable sequence value %q", t)
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case float64:
		return time.Unix(int64(t), 0).UTC(), nil
	case nil:
		return time.Time{}, eris.New("scd: null sequence value")
	}
	return time.Time{}, eris.Errorf("scd: unsupported sequence type %T", v)
}

// isDeleteSignal reports whether the configured delete flag is truthy.
func (c MergeConfig) isDeleteSignal(rec model.Record) bool {
	if c.DeleteFlagField == "" {
		return false
	}
	v, ok := rec[c.DeleteFlagField]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "t", "1", "yes", "y":
			return true
		}
		return false
	case int, int64, float64:
		return fmt.Sprint(t) != "0"
	}
	return false
}
