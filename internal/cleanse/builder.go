package cleanse

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/refinery-cli/internal/model"
)

// Builder applies a TableConfig to batches of normalized records,
// producing cleansed records with quality metadata. Output is 1:1 with
// input and key-preserving; quality failures never drop a record.
type Builder struct {
	transformers *TransformerRegistry
	validators   *ValidatorRegistry
	now          func() time.Time
}

// NewBuilder creates a Builder over explicit registries.
func NewBuilder(tr *TransformerRegistry, vr *ValidatorRegistry) *Builder {
	return &Builder{transformers: tr, validators: vr, now: time.Now}
}

// DefaultBuilder creates a Builder over the built-in registries.
func DefaultBuilder() *Builder {
	return NewBuilder(NewTransformerRegistry(), NewValidatorRegistry())
}

// Apply cleanses a batch under the given config. The config is validated
// up front; a bad config is the only error path. Per-record processing:
// source-prefix rename, transformers in declaration order, validators on
// post-transform values, quality score and flags, null fill, uppercase.
func (b *Builder) Apply(cfg TableConfig, batch []model.Record) ([]model.Record, error) {
	if err := cfg.Validate(b.transformers, b.validators); err != nil {
		return nil, eris.Wrap(err, "cleanse: config")
	}

	cleansedTS := b.now().UTC()
	out := make([]model.Record, 0, len(batch))
	for _, rec := range batch {
		out = append(out, b.cleanseRecord(cfg, rec, cleansedTS))
	}

	zap.L().Debug("cleanse: batch complete",
		zap.Int("records", len(out)),
		zap.Int("rules", len(cfg.Rules)),
	)
	return out, nil
}

func (b *Builder) cleanseRecord(cfg TableConfig, rec model.Record, cleansedTS time.Time) model.Record {
	r := rec.Clone()

	if cfg.SourcePrefix != "" {
		r = applyPrefix(r, cfg.SourcePrefix)
	}

	// Transformers: one pass, declaration order. A rule with a source
	// column reads from it and writes the named field.
	for _, rule := range cfg.Rules {
		if rule.Transformer == "" {
			continue
		}
		fn, _ := b.transformers.Get(rule.Transformer)
		src := rule.Field
		if rule.Source != "" {
			src = rule.Source
		}
		if v, ok := r[src]; ok || rule.Source != "" {
			r[rule.Field] = fn(v)
		}
	}

	// Validators observe post-transform, pre-fold values.
	var outcomes []CheckOutcome
	for _, rule := range cfg.Rules {
		for _, name := range rule.Validators {
			fn, _ := b.validators.Get(name)
			outcomes = append(outcomes, CheckOutcome{
				Field:     rule.Field,
				Validator: name,
				Passed:    fn(r[rule.Field]),
			})
		}
	}
	score, flags := Score(outcomes)
	r[model.ColQualityScore] = score
	if flags == "" {
		r[model.ColQualityFlags] = nil
	} else {
		r[model.ColQualityFlags] = flags
	}

	for _, f := range cfg.FillNullFields {
		if v, ok := r[f]; !ok || v == nil {
			r[f] = model.NullSentinel
		}
	}

	// Final case-fold, after validation.
	for _, f := range cfg.UppercaseFields {
		if s, ok := r[f].(string); ok {
			r[f] = upperCaser.String(strings.TrimSpace(s))
		}
	}

	r[model.ColCleansedTS] = cleansedTS
	return r
}

// applyPrefix renames every non-metadata column that does not already
// carry the prefix.
func applyPrefix(r model.Record, prefix string) model.Record {
	out := make(model.Record, len(r))
	for k, v := range r {
		if model.IsReservedColumn(k) || strings.HasPrefix(k, prefix) {
			out[k] = v
			continue
		}
		out[prefix+k] = v
	}
	return out
}
