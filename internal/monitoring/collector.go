// Package monitoring accumulates run-time counters across pipeline runs
// and mask evaluations. Counters are process-local and monotonic; a
// snapshot is a point-in-time copy safe to serialize.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsSnapshot holds a point-in-time view of pipeline activity.
type MetricsSnapshot struct {
	Batches          int64 `json:"batches"`
	RecordsCleansed  int64 `json:"records_cleansed"`
	VersionsOpened   int64 `json:"versions_opened"`
	VersionsClosed   int64 `json:"versions_closed"`
	RecordsDeleted   int64 `json:"records_deleted"`
	RecordsStale     int64 `json:"records_stale"`
	RecordsNoop      int64 `json:"records_noop"`
	RecordsMalformed int64 `json:"records_malformed"`
	KeyFailures      int64 `json:"key_failures"`
	MaskEvaluations  int64 `json:"mask_evaluations"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers counters from pipeline runs and read-path
// evaluations. Safe for concurrent use.
type Collector struct {
	batches   atomic.Int64
	cleansed  atomic.Int64
	opened    atomic.Int64
	closed    atomic.Int64
	deleted   atomic.Int64
	stale     atomic.Int64
	noop      atomic.Int64
	malformed atomic.Int64
	keyFails  atomic.Int64
	maskEvals atomic.Int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordBatch accounts one pipeline run's merge outcome.
func (c *Collector) RecordBatch(cleansed, opened, closed, deleted, stale, noop, malformed, keyFails int) {
	c.batches.Add(1)
	c.cleansed.Add(int64(cleansed))
	c.opened.Add(int64(opened))
	c.closed.Add(int64(closed))
	c.deleted.Add(int64(deleted))
	c.stale.Add(int64(stale))
	c.noop.Add(int64(noop))
	c.malformed.Add(int64(malformed))
	c.keyFails.Add(int64(keyFails))
}

// RecordMaskEvaluations accounts read-path projections.
func (c *Collector) RecordMaskEvaluations(n int) {
	c.maskEvals.Add(int64(n))
}

// Snapshot copies the current counter values.
func (c *Collector) Snapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		Batches:          c.batches.Load(),
		RecordsCleansed:  c.cleansed.Load(),
		VersionsOpened:   c.opened.Load(),
		VersionsClosed:   c.closed.Load(),
		RecordsDeleted:   c.deleted.Load(),
		RecordsStale:     c.stale.Load(),
		RecordsNoop:      c.noop.Load(),
		RecordsMalformed: c.malformed.Load(),
		KeyFailures:      c.keyFails.Load(),
		MaskEvaluations:  c.maskEvals.Load(),
		CollectedAt:      time.Now().UTC(),
	}
}
