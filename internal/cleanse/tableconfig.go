package cleanse

import (
	"github.com/rotisserie/eris"
)

// FieldRule binds one field to at most one transformer and an ordered
// list of validators. Validators run against the post-transformation
// value. Source, when set, names another column the transformer reads
// from (e.g. extracting a postal code out of an address).
type FieldRule struct {
	Field       string   `yaml:"field" json:"field"`
	Source      string   `yaml:"source,omitempty" json:"source,omitempty"`
	Transformer string   `yaml:"transformer,omitempty" json:"transformer,omitempty"`
	Validators  []string `yaml:"validators,omitempty" json:"validators,omitempty"`
}

// TableConfig declares the cleansing behavior for one table. It is plain
// data: reusable across many tables by composition and serializable to
// YAML. A config is immutable once handed to the builder for a run.
type TableConfig struct {
	// SourcePrefix, when set, is prepended to every non-metadata column
	// that does not already carry it.
	SourcePrefix string `yaml:"source_prefix,omitempty" json:"source_prefix,omitempty"`
	// Rules are applied in declaration order, one pass per field.
	Rules []FieldRule `yaml:"rules" json:"rules"`
	// UppercaseFields are case-folded after validation, so validators
	// observe pre-fold values.
	UppercaseFields []string `yaml:"uppercase_fields,omitempty" json:"uppercase_fields,omitempty"`
	// FillNullFields have nulls replaced with the "None" sentinel.
	FillNullFields []string `yaml:"fill_null_fields,omitempty" json:"fill_null_fields,omitempty"`
}

// Validate checks that every referenced transformer and validator exists
// and that no field is ruled twice.
func (c TableConfig) Validate(tr *TransformerRegistry, vr *ValidatorRegistry) error {
	seen := make(map[string]bool, len(c.Rules))
	for _, rule := range c.Rules {
		if rule.Field == "" {
			return eris.New("cleanse: rule with empty field name")
		}
		if seen[rule.Field] {
			return eris.Errorf("cleanse: duplicate rule for field %q", rule.Field)
		}
		seen[rule.Field] = true

		if rule.Transformer != "" {
			if _, err := tr.Get(rule.Transformer); err != nil {
				return eris.Wrapf(err, "field %q", rule.Field)
			}
		}
		for _, v := range rule.Validators {
			if _, err := vr.Get(v); err != nil {
				return eris.Wrapf(err, "field %q", rule.Field)
			}
		}
	}
	return nil
}
