// Package pipeline drives one end-to-end run: cleanse a raw batch,
// merge it into the table's version history, and persist the resulting
// delta atomically.
package pipeline

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/refinery-cli/internal/cleanse"
	"github.com/sells-group/refinery-cli/internal/model"
	"github.com/sells-group/refinery-cli/internal/monitoring"
	"github.com/sells-group/refinery-cli/internal/scd"
	"github.com/sells-group/refinery-cli/internal/store"
	"github.com/sells-group/refinery-cli/internal/tabledef"
)

// Options tunes a pipeline run.
type Options struct {
	// Workers bounds merge concurrency. Defaults to GOMAXPROCS.
	Workers int
}

// Runner wires the cleansing builder, version store, and metrics
// collector for repeated runs.
type Runner struct {
	builder   *cleanse.Builder
	store     store.Store
	collector *monitoring.Collector
	opts      Options
}

// NewRunner creates a Runner. The collector may be nil.
func NewRunner(b *cleanse.Builder, st store.Store, c *monitoring.Collector, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{builder: b, store: st, collector: c, opts: opts}
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	Table    string        `json:"table"`
	Cleansed int           `json:"cleansed"`
	Stats    scd.Stats     `json:"stats"`
	Duration time.Duration `json:"duration"`
}

// Run processes a raw batch for one table definition. Records are
// cleansed, partitioned by business key, merged concurrently per key
// group, and the combined delta is applied in a single transaction.
func (r *Runner) Run(ctx context.Context, def tabledef.TableDef, raw []model.Record) (*RunResult, error) {
	started := time.Now()

	cleansed, err := r.builder.Apply(def.Cleanse, raw)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: cleanse %s", def.Name)
	}

	engine, err := scd.NewEngine(def.Merge)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: merge config %s", def.Name)
	}

	open, err := r.store.OpenVersions(ctx, def.Merge.Table)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load open versions for %s", def.Name)
	}

	delta, stats, err := r.merge(ctx, engine, def, cleansed, open)
	if err != nil {
		return nil, err
	}

	if err := r.store.ApplyDelta(ctx, def.Merge.Table, delta); err != nil {
		return nil, eris.Wrapf(err, "pipeline: apply delta for %s", def.Name)
	}

	result := &RunResult{
		Table:    def.Name,
		Cleansed: len(cleansed),
		Stats:    *stats,
		Duration: time.Since(started),
	}
	if r.collector != nil {
		r.collector.RecordBatch(result.Cleansed, stats.Opened, stats.Closed, stats.Deleted,
			stats.Stale, stats.Noop, len(stats.Malformed), len(stats.KeyErrors))
	}

	zap.L().Info("pipeline: run complete",
		zap.String("table", def.Name),
		zap.Int("cleansed", result.Cleansed),
		zap.Int("opened", stats.Opened),
		zap.Int("closed", stats.Closed),
		zap.Int("stale", stats.Stale),
		zap.Int("noop", stats.Noop),
		zap.Int("malformed", len(stats.Malformed)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// merge partitions the batch into per-key groups and merges groups
// concurrently. Records whose key cannot be computed go to one shared
// group so their malformed status is still reported.
func (r *Runner) merge(ctx context.Context, engine *scd.Engine, def tabledef.TableDef, batch []model.Record, open map[string]model.Version) (*scd.Delta, *scd.Stats, error) {
	groups := make(map[string][]model.Record)
	var groupKeys []string
	for _, rec := range batch {
		key, err := scd.CompositeKey(rec, def.Merge.Keys)
		if err != nil {
			key = ""
		}
		if _, ok := groups[key]; !ok {
			groupKeys = append(groupKeys, key)
		}
		groups[key] = append(groups[key], rec)
	}
	sort.Strings(groupKeys)

	var mu sync.Mutex
	combined := &scd.Delta{}
	total := &scd.Stats{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, key := range groupKeys {
		recs := groups[key]
		keyOpen := make(map[string]model.Version, 1)
		if key != "" {
			if v, ok := open[key]; ok {
				keyOpen[key] = v
			}
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			delta, stats := engine.Merge(recs, keyOpen)

			mu.Lock()
			defer mu.Unlock()
			combined.Opened = append(combined.Opened, delta.Opened...)
			combined.Closed = append(combined.Closed, delta.Closed...)
			total.Incoming += stats.Incoming
			total.Opened += stats.Opened
			total.Closed += stats.Closed
			total.Deleted += stats.Deleted
			total.Stale += stats.Stale
			total.Noop += stats.Noop
			total.Superseded += stats.Superseded
			total.Malformed = append(total.Malformed, stats.Malformed...)
			total.KeyErrors = append(total.KeyErrors, stats.KeyErrors...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: merge %s", def.Name)
	}
	return combined, total, nil
}
