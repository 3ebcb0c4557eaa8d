package mask

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/refinery-cli/internal/grants"
	"github.com/sells-group/refinery-cli/internal/model"
)

// Evaluator computes caller-specific projections of records at read
// time. The effective grant is re-resolved on every evaluation — never
// cached — so a grant change is reflected on the very next read.
type Evaluator struct {
	grants  grants.Store
	maskers *Registry
	// rules maps record field name to masker name.
	rules map[string]string
}

// NewEvaluator builds an evaluator over a grant store and a field→masker
// rule table. Unknown masker names are rejected up front.
func NewEvaluator(gs grants.Store, reg *Registry, rules map[string]string) (*Evaluator, error) {
	for field, masker := range rules {
		if _, err := reg.Get(masker); err != nil {
			return nil, eris.Wrapf(err, "mask: field %q", field)
		}
	}
	return &Evaluator{grants: gs, maskers: reg, rules: rules}, nil
}

// Project returns the record redacted for the given user at the given
// instant. Absence of an effective grant resolves to masked_only.
// Malformed field values mask to the fully-redacted output; only grant
// store failures surface as errors.
func (e *Evaluator) Project(ctx context.Context, rec model.Record, userEmail string, at time.Time) (model.Record, error) {
	out, err := e.ProjectBatch(ctx, []model.Record{rec}, userEmail, at)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ProjectBatch projects every record in the batch for the same caller.
// The grant is resolved once per call, which is within the lifetime of
// one evaluation.
func (e *Evaluator) ProjectBatch(ctx context.Context, recs []model.Record, userEmail string, at time.Time) ([]model.Record, error) {
	grant, err := e.grants.EffectiveGrant(ctx, userEmail, at)
	if err != nil {
		return nil, eris.Wrap(err, "mask: resolve grant")
	}
	level := model.AccessMaskedOnly
	if grant != nil && grant.AccessLevel.Valid() {
		level = grant.AccessLevel
	}

	out := make([]model.Record, 0, len(recs))
	for _, rec := range recs {
		proj := rec.Clone()
		if level != model.AccessFull {
			for field, maskerName := range e.rules {
				v, ok := proj[field]
				if !ok {
					continue
				}
				masker, _ := e.maskers.Get(maskerName)
				proj[field] = e.applyMask(masker, level, v, rec)
			}
		}
		proj[model.ColMaskedAt] = at.UTC()
		proj[model.ColMaskedForUser] = userEmail
		out = append(out, proj)
	}

	zap.L().Debug("mask: batch projected",
		zap.String("user", userEmail),
		zap.String("level", string(level)),
		zap.Int("records", len(out)),
	)
	return out, nil
}

// applyMask redacts one value at the given level. Non-string values and
// nulls are malformed input for a masker and resolve to the safe,
// fully-masked output.
func (e *Evaluator) applyMask(m FieldMasker, level model.AccessLevel, v any, rec model.Record) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return m.Full("", rec)
	}
	if level == model.AccessPartial {
		return m.Partial(s, rec)
	}
	return m.Full(s, rec)
}
