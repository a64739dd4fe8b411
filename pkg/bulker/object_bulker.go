package bulker

import (
	"context"

	"github.com/cuemby/switchorch/pkg/hal"
	"github.com/cuemby/switchorch/pkg/log"
	"github.com/cuemby/switchorch/pkg/metrics"
	"github.com/cuemby/switchorch/pkg/taskstatus"
)

// NullOID is the oid ObjectBulker.Flush writes into a staged create's
// out pointer when the create fails, matching bulker.h's
// ObjectBulker<T>::flush writing SAI_NULL_OBJECT_ID rather than leaving
// the caller's oid variable unset.
const NullOID = ""

type objectCreate struct {
	attrs []hal.Attr
	out   *string
	res   *Result
}

// ObjectBulker stages bulk operations for oid-bearing HAL object
// types — objects the HAL itself assigns an identifier to on creation,
// as opposed to EntityBulker's entry-style objects that are their own
// key. It mirrors bulker.h's ObjectBulker<T>: create_entry stages a
// vector of (out oid*, attrs) pairs and flush fills in each oid once
// the bulk create returns; remove_entry stages a map of oid -> status
// and flush resolves each by oid.
type ObjectBulker struct {
	name        string
	objType     hal.ObjectType
	client      hal.Client
	maxBulkSize int

	creating []*objectCreate
	removing map[string]*Result
}

// NewObjectBulker returns a bulker for objType, issuing bulk calls to
// client in chunks of at most maxBulkSize entries. name labels this
// bulker's metrics.
func NewObjectBulker(name string, client hal.Client, objType hal.ObjectType, maxBulkSize int) *ObjectBulker {
	return &ObjectBulker{
		name:        name,
		objType:     objType,
		client:      client,
		maxBulkSize: maxBulkSize,
		removing:    make(map[string]*Result),
	}
}

// CreateObject stages a create. The returned oid pointer is left
// unset until Flush runs; it then holds the HAL-assigned oid, or
// NullOID if the create failed.
func (b *ObjectBulker) CreateObject(attrs []hal.Attr) (oid *string, res *Result) {
	oid = new(string)
	res = &Result{Status: taskstatus.HALNotExecuted}
	b.creating = append(b.creating, &objectCreate{attrs: attrs, out: oid, res: res})
	return oid, res
}

// RemoveObject stages a remove for an oid a prior Flush already
// assigned.
func (b *ObjectBulker) RemoveObject(oid string) *Result {
	res := &Result{Status: taskstatus.HALNotExecuted}
	b.removing[oid] = res
	return res
}

// PendingRemoval reports whether oid currently has a remove staged.
func (b *ObjectBulker) PendingRemoval(oid string) bool {
	_, ok := b.removing[oid]
	return ok
}

// CreatingCount and RemovingCount report how many entries are currently
// staged, for an orch deciding whether it has any work left to flush
// this sweep.
func (b *ObjectBulker) CreatingCount() int { return len(b.creating) }
func (b *ObjectBulker) RemovingCount() int { return len(b.removing) }

// Clear drops every staged operation without flushing it.
func (b *ObjectBulker) Clear() {
	b.creating = nil
	b.removing = make(map[string]*Result)
}

// Flush issues every staged operation to the HAL client, chunked at
// maxBulkSize, removes before creates — same ordering rationale as
// EntityBulker.Flush.
func (b *ObjectBulker) Flush(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.BulkerFlushDuration, b.name)

	b.flushRemoving(ctx)
	b.flushCreating(ctx)
	return nil
}

func (b *ObjectBulker) flushRemoving(ctx context.Context) {
	if len(b.removing) == 0 {
		return
	}
	metrics.BulkerPendingEntries.WithLabelValues(b.name, "remove").Set(float64(len(b.removing)))

	oids := make([]string, 0, len(b.removing))
	for oid := range b.removing {
		oids = append(oids, oid)
	}

	for _, r := range chunks(len(oids), b.maxBulkSize) {
		chunk := oids[r[0]:r[1]]
		metrics.BulkerFlushChunkSize.WithLabelValues(b.name).Observe(float64(len(chunk)))

		results, err := b.client.BulkRemove(ctx, b.objType, chunk)
		if err != nil {
			log.WithComponent(b.name).Error().Err(err).Msg("bulk object remove failed")
		}
		byKey := indexResults(results)
		for _, oid := range chunk {
			applyResult(b.removing[oid], byKey, oid, err)
		}
	}

	b.removing = make(map[string]*Result)
}

func (b *ObjectBulker) flushCreating(ctx context.Context) {
	if len(b.creating) == 0 {
		return
	}
	metrics.BulkerPendingEntries.WithLabelValues(b.name, "create").Set(float64(len(b.creating)))

	for _, r := range chunks(len(b.creating), b.maxBulkSize) {
		staged := b.creating[r[0]:r[1]]
		entries := make([]hal.BulkEntry, 0, len(staged))
		for _, c := range staged {
			entries = append(entries, hal.BulkEntry{Attrs: c.attrs})
		}
		metrics.BulkerFlushChunkSize.WithLabelValues(b.name).Observe(float64(len(entries)))

		// Object creates carry no logical key, so results line up
		// positionally with the request rather than by key.
		results, err := b.client.BulkCreate(ctx, b.objType, entries)
		if err != nil {
			log.WithComponent(b.name).Error().Err(err).Msg("bulk object create failed")
		}
		for i, c := range staged {
			if i < len(results) {
				c.res.Status = results[i].Status
				c.res.Err = results[i].Err
				if results[i].Status == taskstatus.HALSuccess {
					*c.out = results[i].OID
				} else {
					*c.out = NullOID
				}
				continue
			}
			c.res.Status = taskstatus.HALFailure
			c.res.Err = err
			*c.out = NullOID
		}
	}

	b.creating = nil
}
