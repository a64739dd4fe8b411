// Package bulker implements batched staging of create/set/remove HAL
// calls, grounded on orchagent's bulker.h EntityBulker<T>: rather than
// issuing one HAL call per key as an orch walks its pending map, a
// bulker accumulates a flush cycle's worth of work and issues it in as
// few bulk calls as the configured chunk size allows.
//
// EntityBulker targets "entry" style HAL objects that have no separate
// oid — a route prefix or an MPLS label is its own identifier — so the
// same key used for CreateEntry is reused for SetEntry and RemoveEntry.
// Oid-bearing object types (a next hop group member, say) are staged
// through ObjectBulker instead, which hands each created oid back through
// an out pointer; that path has no quick-cancel opportunity because the
// identifier isn't known until the create itself returns.
//
// EntityBulker carries no internal locking; like every piece of the
// convergence engine, it is only ever touched from the single select
// loop goroutine.
package bulker

import (
	"context"

	"github.com/cuemby/switchorch/pkg/hal"
	"github.com/cuemby/switchorch/pkg/log"
	"github.com/cuemby/switchorch/pkg/metrics"
	"github.com/cuemby/switchorch/pkg/taskstatus"
)

// Result is a staged operation's outcome, written in place by the next
// Flush. A caller holds the *Result returned by CreateEntry, SetEntry,
// or RemoveEntry and inspects Status only after Flush returns.
type Result struct {
	Status taskstatus.HALStatus
	Err    error
}

type creating struct {
	attrs []hal.Attr
	res   *Result
}

type setting struct {
	attr hal.Attr
	res  *Result
}

// EntityBulker stages create, set, and remove calls for one HAL object
// type and flushes them in bulk.
type EntityBulker struct {
	name        string
	objType     hal.ObjectType
	client      hal.Client
	maxBulkSize int

	creating map[string]*creating
	setting  map[string][]*setting
	removing map[string]*Result
}

// NewEntityBulker returns a bulker for objType, issuing bulk calls to
// client in chunks of at most maxBulkSize entries. name labels this
// bulker's metrics.
func NewEntityBulker(name string, client hal.Client, objType hal.ObjectType, maxBulkSize int) *EntityBulker {
	return &EntityBulker{
		name:        name,
		objType:     objType,
		client:      client,
		maxBulkSize: maxBulkSize,
		creating:    make(map[string]*creating),
		setting:     make(map[string][]*setting),
		removing:    make(map[string]*Result),
	}
}

// CreateEntry stages a create for key. A key already staged as a create
// is rejected immediately with ItemAlreadyExists, matching bulker.h's
// quick-reject on a failed map insertion — the caller is expected to
// treat this as retryable via taskstatus.Classify.
func (b *EntityBulker) CreateEntry(key string, attrs []hal.Attr) *Result {
	if _, exists := b.creating[key]; exists {
		log.WithComponent(b.name).Info().Str("key", key).Msg("create_entry not inserted, already staged")
		return &Result{Status: taskstatus.HALItemAlreadyExists}
	}
	res := &Result{Status: taskstatus.HALNotExecuted}
	b.creating[key] = &creating{attrs: attrs, res: res}
	return res
}

// RemoveEntry stages a remove for key. If key is still only staged as an
// unflushed create, both operations are quick-cancelled and resolve to
// success without a HAL round trip; any attribute sets staged against
// key are dropped the same way, matching bulker.h's remove_entry.
func (b *EntityBulker) RemoveEntry(key string) *Result {
	if sets, ok := b.setting[key]; ok {
		for _, s := range sets {
			s.res.Status = taskstatus.HALSuccess
		}
		delete(b.setting, key)
	}

	if c, ok := b.creating[key]; ok {
		c.res.Status = taskstatus.HALSuccess
		delete(b.creating, key)
		return &Result{Status: taskstatus.HALSuccess}
	}

	res := &Result{Status: taskstatus.HALNotExecuted}
	b.removing[key] = res
	return res
}

// SetEntry stages an attribute set for key.
func (b *EntityBulker) SetEntry(key string, attr hal.Attr) *Result {
	res := &Result{Status: taskstatus.HALNotExecuted}
	b.setting[key] = append(b.setting[key], &setting{attr: attr, res: res})
	return res
}

// PendingRemoval reports whether key currently has a remove staged.
func (b *EntityBulker) PendingRemoval(key string) bool {
	_, ok := b.removing[key]
	return ok
}

// CreatingCount, SettingCount, and RemovingCount report how many keys are
// currently staged in each map, for an orch deciding whether it has any
// work left to flush this sweep.
func (b *EntityBulker) CreatingCount() int { return len(b.creating) }
func (b *EntityBulker) SettingCount() int  { return len(b.setting) }
func (b *EntityBulker) RemovingCount() int { return len(b.removing) }

// Clear drops every staged operation without flushing it, the warm
// restart/shutdown equivalent of bulker.h's clear().
func (b *EntityBulker) Clear() {
	b.creating = make(map[string]*creating)
	b.setting = make(map[string][]*setting)
	b.removing = make(map[string]*Result)
}

// Flush issues every staged operation to the HAL client, chunked at
// maxBulkSize, in remove-then-create-then-set order — matching
// bulker.h's flush(), which drains removals first so a key that is both
// removed and recreated within the same sweep never collides with its
// own stale state.
func (b *EntityBulker) Flush(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.BulkerFlushDuration, b.name)

	b.flushRemoving(ctx)
	b.flushCreating(ctx)
	b.flushSetting(ctx)
	return nil
}

func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func (b *EntityBulker) flushRemoving(ctx context.Context) {
	if len(b.removing) == 0 {
		return
	}
	metrics.BulkerPendingEntries.WithLabelValues(b.name, "remove").Set(float64(len(b.removing)))

	keys := make([]string, 0, len(b.removing))
	for k := range b.removing {
		keys = append(keys, k)
	}

	for _, r := range chunks(len(keys), b.maxBulkSize) {
		chunk := keys[r[0]:r[1]]
		metrics.BulkerFlushChunkSize.WithLabelValues(b.name).Observe(float64(len(chunk)))

		results, err := b.client.BulkRemove(ctx, b.objType, chunk)
		if err != nil {
			log.WithComponent(b.name).Error().Err(err).Msg("bulk remove failed")
		}
		byKey := indexResults(results)
		for _, k := range chunk {
			applyResult(b.removing[k], byKey, k, err)
		}
	}

	b.removing = make(map[string]*Result)
}

func (b *EntityBulker) flushCreating(ctx context.Context) {
	if len(b.creating) == 0 {
		return
	}
	metrics.BulkerPendingEntries.WithLabelValues(b.name, "create").Set(float64(len(b.creating)))

	keys := make([]string, 0, len(b.creating))
	for k := range b.creating {
		keys = append(keys, k)
	}

	for _, r := range chunks(len(keys), b.maxBulkSize) {
		chunk := keys[r[0]:r[1]]
		entries := make([]hal.BulkEntry, 0, len(chunk))
		for _, k := range chunk {
			entries = append(entries, hal.BulkEntry{Key: k, Attrs: b.creating[k].attrs})
		}
		metrics.BulkerFlushChunkSize.WithLabelValues(b.name).Observe(float64(len(chunk)))

		results, err := b.client.BulkCreate(ctx, b.objType, entries)
		if err != nil {
			log.WithComponent(b.name).Error().Err(err).Msg("bulk create failed")
		}
		byKey := indexResults(results)
		for _, k := range chunk {
			applyResult(b.creating[k].res, byKey, k, err)
		}
	}

	b.creating = make(map[string]*creating)
}

func (b *EntityBulker) flushSetting(ctx context.Context) {
	if len(b.setting) == 0 {
		return
	}
	total := 0
	for _, s := range b.setting {
		total += len(s)
	}
	metrics.BulkerPendingEntries.WithLabelValues(b.name, "set").Set(float64(total))

	type staged struct {
		key string
		s   *setting
	}
	var all []staged
	for k, sets := range b.setting {
		for _, s := range sets {
			all = append(all, staged{key: k, s: s})
		}
	}

	for _, r := range chunks(len(all), b.maxBulkSize) {
		chunk := all[r[0]:r[1]]
		entries := make([]hal.BulkEntry, 0, len(chunk))
		for _, c := range chunk {
			entries = append(entries, hal.BulkEntry{Key: c.key, Attrs: []hal.Attr{c.s.attr}})
		}
		metrics.BulkerFlushChunkSize.WithLabelValues(b.name).Observe(float64(len(chunk)))

		results, err := b.client.BulkSet(ctx, b.objType, entries)
		if err != nil {
			log.WithComponent(b.name).Error().Err(err).Msg("bulk set failed")
		}
		for i, c := range chunk {
			if i < len(results) {
				c.s.res.Status = results[i].Status
				c.s.res.Err = results[i].Err
			} else {
				c.s.res.Status = taskstatus.HALFailure
				c.s.res.Err = err
			}
		}
	}

	b.setting = make(map[string][]*setting)
}

func indexResults(results []hal.BulkResult) map[string]hal.BulkResult {
	byKey := make(map[string]hal.BulkResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}
	return byKey
}

func applyResult(res *Result, byKey map[string]hal.BulkResult, key string, flushErr error) {
	if r, ok := byKey[key]; ok {
		res.Status = r.Status
		res.Err = r.Err
		return
	}
	res.Status = taskstatus.HALFailure
	res.Err = flushErr
}
