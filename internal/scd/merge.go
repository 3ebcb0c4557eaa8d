package scd

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/refinery-cli/internal/model"
)

// Delta describes the change a merge makes to a table's historical
// state: versions to open and existing versions to close. Applying a
// delta is atomic; partial application is not a valid state.
type Delta struct {
	Opened []model.Version `json:"opened"`
	Closed []Close         `json:"closed"`
}

// Close marks an existing stored version as superseded at ValidTo.
type Close struct {
	VersionID string    `json:"version_id"`
	ValidTo   time.Time `json:"valid_to"`
}

// BadRecord reports one record rejected from a batch, with enough
// context to find it in the source.
type BadRecord struct {
	Index  int    `json:"index"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

// KeyError reports a merge-integrity failure for a single key. The key's
// changes are withheld from the delta; other keys are unaffected.
type KeyError struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Stats summarizes a merge. Discards are metrics, not errors.
type Stats struct {
	Incoming   int         `json:"incoming"`
	Opened     int         `json:"opened"`
	Closed     int         `json:"closed"`
	Deleted    int         `json:"deleted"`
	Stale      int         `json:"stale"`
	Noop       int         `json:"noop"`
	Superseded int         `json:"superseded"`
	Malformed  []BadRecord `json:"malformed,omitempty"`
	KeyErrors  []KeyError  `json:"key_errors,omitempty"`
}

// Engine merges cleansed change batches into SCD Type 2 version chains.
// It is pure: all inputs (batch, current open versions) are in memory and
// the output is a value-level delta written by the caller.
type Engine struct {
	cfg MergeConfig
}

// NewEngine validates the config and returns a merge engine for it.
func NewEngine(cfg MergeConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// entry is one intake-validated batch record.
type entry struct {
	index int
	key   string
	seq   time.Time
	rec   model.Record
}

// keyState tracks the evolving chain for one key during a merge.
type keyState struct {
	// stored is the pre-existing open version, if any.
	stored *model.Version
	// storedClosedAt is set when the stored version gets closed.
	storedClosedAt *time.Time
	// opened are versions created by this merge, in order. The last one
	// may be open; earlier ones are closed by their successors.
	opened []model.Version
	// highWater is the latest sequence value applied to this key. Used
	// to reject late arrivals after a delete closed the chain.
	highWater time.Time
	hasHigh   bool
	// deleteClosures are boundaries where a delete legally ends the
	// chain; a reinsert after one of these starts a sanctioned gap.
	deleteClosures []time.Time
}

// Merge applies a batch against the current open versions (keyed by
// composite business key) and returns the resulting delta and stats.
// Malformed records are reported individually and never abort the batch;
// integrity failures void only their own key.
func (e *Engine) Merge(batch []model.Record, open map[string]model.Version) (*Delta, *Stats) {
	stats := &Stats{Incoming: len(batch)}

	entries := e.intake(batch, stats)
	entries = supersedeTies(entries, stats)

	// Stable order: key, then sequence, then batch position.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		if !entries[i].seq.Equal(entries[j].seq) {
			return entries[i].seq.Before(entries[j].seq)
		}
		return entries[i].index < entries[j].index
	})

	states := make(map[string]*keyState)
	keyOrder := []string{}
	for _, en := range entries {
		st, ok := states[en.key]
		if !ok {
			st = &keyState{}
			if v, exists := open[en.key]; exists {
				stored := v
				st.stored = &stored
			}
			states[en.key] = st
			keyOrder = append(keyOrder, en.key)
		}
		e.apply(st, en, stats)
	}

	delta := &Delta{}
	for _, key := range keyOrder {
		st := states[key]
		if err := e.checkIntegrity(key, st); err != nil {
			stats.KeyErrors = append(stats.KeyErrors, KeyError{Key: key, Reason: err.Error()})
			// Back out this key's contribution entirely.
			stats.Opened -= len(st.opened)
			if st.storedClosedAt != nil {
				stats.Closed--
			}
			zap.L().Error("scd: merge integrity failure",
				zap.String("table", e.cfg.Table),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		if st.storedClosedAt != nil {
			delta.Closed = append(delta.Closed, Close{VersionID: st.stored.ID, ValidTo: *st.storedClosedAt})
		}
		delta.Opened = append(delta.Opened, st.opened...)
	}

	return delta, stats
}

// intake validates keys and sequence values, rejecting malformed records
// individually.
func (e *Engine) intake(batch []model.Record, stats *Stats) []entry {
	entries := make([]entry, 0, len(batch))
	for i, rec := range batch {
		key, err := CompositeKey(rec, e.cfg.Keys)
		if err != nil {
			stats.Malformed = append(stats.Malformed, BadRecord{Index: i, Reason: err.Error()})
			continue
		}
		seq, err := coerceSequence(rec[e.cfg.SequenceBy])
		if err != nil {
			stats.Malformed = append(stats.Malformed, BadRecord{Index: i, Key: key, Reason: err.Error()})
			continue
		}
		entries = append(entries, entry{index: i, key: key, seq: seq, rec: rec})
	}
	return entries
}

// supersedeTies collapses same-key same-sequence records to the last one
// in batch order (last-write-wins) before merging.
func supersedeTies(entries []entry, stats *Stats) []entry {
	type tieKey struct {
		key string
		seq time.Time
	}
	last := make(map[tieKey]int, len(entries))
	for i, en := range entries {
		last[tieKey{en.key, en.seq}] = i
	}
	if len(last) == len(entries) {
		return entries
	}
	out := make([]entry, 0, len(last))
	for i, en := range entries {
		if last[tieKey{en.key, en.seq}] != i {
			stats.Superseded++
			continue
		}
		out = append(out, en)
	}
	return out
}

// apply runs one record through the per-key state machine.
func (e *Engine) apply(st *keyState, en entry, stats *Stats) {
	current := st.currentOpen()

	// Out-of-order late arrivals: behind the open version's start, or
	// behind the chain's end after a delete closed it.
	if current != nil && !en.seq.After(current.ValidFrom) {
		stats.Stale++
		return
	}
	if current == nil && st.hasHigh && !en.seq.After(st.highWater) {
		stats.Stale++
		return
	}

	if e.cfg.isDeleteSignal(en.rec) {
		if current == nil {
			stats.Noop++
			return
		}
		st.close(en.seq)
		st.deleteClosures = append(st.deleteClosures, en.seq)
		st.advance(en.seq)
		stats.Closed++
		stats.Deleted++
		return
	}

	fields := e.effectiveFields(en.rec, current)

	if current != nil && e.projectionsEqual(fields, current.Fields) {
		stats.Noop++
		return
	}

	if current != nil {
		st.close(en.seq)
		stats.Closed++
	}
	st.opened = append(st.opened, model.Version{
		ID:        uuid.New().String(),
		Table:     e.cfg.Table,
		Key:       en.key,
		Fields:    fields,
		ValidFrom: en.seq,
	})
	st.advance(en.seq)
	stats.Opened++
}

// effectiveFields builds the field set a new version would carry. With
// ignore_null_updates (the default), null columns inherit the current
// version's values; explicit nulls only take effect when the option is
// disabled.
func (e *Engine) effectiveFields(rec model.Record, current *model.Version) model.Record {
	if current == nil || !e.cfg.ignoreNulls() {
		return rec.Clone()
	}
	out := current.Fields.Clone()
	for k, v := range rec {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// projectionsEqual compares the tracked-column projection of two field
// sets. With an include list only those columns are compared; otherwise
// all columns minus the except list.
func (e *Engine) projectionsEqual(a, b model.Record) bool {
	if len(e.cfg.TrackHistoryColumns) > 0 {
		for _, c := range e.cfg.TrackHistoryColumns {
			if !equalValue(a[c], b[c]) {
				return false
			}
		}
		return true
	}

	except := make(map[string]bool, len(e.cfg.TrackHistoryExceptColumns))
	for _, c := range e.cfg.TrackHistoryExceptColumns {
		except[c] = true
	}

	cols := make(map[string]bool, len(a)+len(b))
	for c := range a {
		cols[c] = true
	}
	for c := range b {
		cols[c] = true
	}
	for c := range cols {
		if except[c] {
			continue
		}
		if !equalValue(a[c], b[c]) {
			return false
		}
	}
	return true
}

// equalValue compares scalar field values across the loose typing of
// batch inputs. Nulls and the fill-null sentinel compare equal.
func equalValue(a, b any) bool {
	aNull := a == nil || a == model.NullSentinel
	bNull := b == nil || b == model.NullSentinel
	if aNull || bNull {
		return aNull == bNull
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	if a == b {
		return true
	}
	// Numeric values may arrive as different widths from different
	// decoders; compare canonical renderings.
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// currentOpen returns the chain's open version, or nil after a delete or
// for a brand-new key.
func (st *keyState) currentOpen() *model.Version {
	if n := len(st.opened); n > 0 {
		if st.opened[n-1].ValidTo == nil {
			return &st.opened[n-1]
		}
		return nil
	}
	if st.stored != nil && st.storedClosedAt == nil {
		return st.stored
	}
	return nil
}

// close closes the chain's open version at the given sequence value.
func (st *keyState) close(at time.Time) {
	t := at
	if n := len(st.opened); n > 0 && st.opened[n-1].ValidTo == nil {
		st.opened[n-1].ValidTo = &t
		return
	}
	st.storedClosedAt = &t
}

// advance raises the chain's high-water mark.
func (st *keyState) advance(seq time.Time) {
	if !st.hasHigh || seq.After(st.highWater) {
		st.highWater = seq
		st.hasHigh = true
	}
}

// checkIntegrity verifies the produced chain for a key: contiguous,
// non-overlapping intervals and at most one open version.
func (e *Engine) checkIntegrity(key string, st *keyState) error {
	var chain []model.Version
	if st.stored != nil {
		v := *st.stored
		if st.storedClosedAt != nil {
			v.ValidTo = st.storedClosedAt
		}
		chain = append(chain, v)
	}
	chain = append(chain, st.opened...)

	gapOK := func(at time.Time) bool {
		for _, d := range st.deleteClosures {
			if d.Equal(at) {
				return true
			}
		}
		return false
	}
	if err := validateChain(chain, gapOK); err != nil {
		return eris.Wrapf(err, "key %s", key)
	}
	return nil
}
