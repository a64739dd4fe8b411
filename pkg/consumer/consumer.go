// Package consumer implements the coalescing queue that sits between a
// table's desired-state notifications and an orch's sweep, grounded on
// orchagent's Consumer::addToSync. Two mutations against the same key
// collapse into one before an orch ever sees them — a SET followed by
// another SET merges fields, a SET followed by a DEL drops the pending
// SET entirely — except a DEL followed by a SET, which orchagent keeps
// as two separate staged operations so a dependent orch can still
// observe "this key was deleted, then recreated" rather than losing the
// delete.
package consumer

import (
	"sync"

	"github.com/cuemby/switchorch/pkg/db"
	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/cuemby/switchorch/pkg/metrics"
	"github.com/cuemby/switchorch/pkg/taskstatus"
	"github.com/elliotchance/orderedmap/v2"
)

// shadowSuffix stages a SET arriving behind a still-unprocessed DEL for
// the same key under its own storage slot, so both operations are
// visible to a sweep at once even though each KeyOpFieldValues.Key still
// names the same logical key.
const shadowSuffix = "#SET"

// Task is one item pulled from a consumer's pending queue. ID is an
// opaque handle back to the storage slot it came from — pass it to
// Complete or Erase once it has been handled, never parse or construct
// it.
type Task struct {
	ID string
	kofv.KeyOpFieldValues
}

// Consumer coalesces a table's stream of mutations into a pending queue
// an orch sweeps. It carries its own lock because db.NamespaceHandle's
// Subscribe delivers off of whatever goroutine is servicing the
// underlying transport (a Redis pub/sub reader, the boltdb broker) while
// the select loop drains it from the main goroutine.
type Consumer struct {
	table string
	ns    db.NamespaceHandle

	mu      sync.Mutex
	pending *orderedmap.OrderedMap[string, kofv.KeyOpFieldValues]
}

// New returns a consumer coalescing mutations for table, read from ns.
func New(table string, ns db.NamespaceHandle) *Consumer {
	return &Consumer{
		table:   table,
		ns:      ns,
		pending: orderedmap.NewOrderedMap[string, kofv.KeyOpFieldValues](),
	}
}

// Table returns the name of the table this consumer coalesces.
func (c *Consumer) Table() string {
	return c.table
}

// Subscribe returns the raw notification channel for this consumer's
// table, for the select loop to read from and feed into AddOne.
func (c *Consumer) Subscribe() (<-chan kofv.KeyOpFieldValues, func(), error) {
	return c.ns.Subscribe(c.table)
}

// AddToSync coalesces a batch of mutations into the pending queue, in
// order.
func (c *Consumer) AddToSync(entries []kofv.KeyOpFieldValues) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.addOne(e)
	}
	c.reportDepth()
}

// AddOne coalesces a single mutation into the pending queue.
func (c *Consumer) AddOne(entry kofv.KeyOpFieldValues) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addOne(entry)
	c.reportDepth()
}

func (c *Consumer) addOne(entry kofv.KeyOpFieldValues) {
	storageKey := entry.Key
	existing, hasPrimary := c.pending.Get(storageKey)

	if !hasPrimary {
		c.pending.Set(storageKey, entry.Clone())
		return
	}

	if existing.Op == entry.Op {
		if entry.Op == kofv.OpSet {
			c.pending.Set(storageKey, mergeSet(existing, entry))
			return
		}
		// A DEL following a DEL replaces the staged one and cancels any
		// set still staged behind this key's shadow slot.
		c.pending.Set(storageKey, entry.Clone())
		c.pending.Delete(storageKey + shadowSuffix)
		return
	}

	if existing.Op == kofv.OpSet && entry.Op == kofv.OpDel {
		// A delete cancels any pending set outright, including one
		// still staged behind this key's shadow slot.
		c.pending.Set(storageKey, entry.Clone())
		c.pending.Delete(storageKey + shadowSuffix)
		return
	}

	// existing.Op == OpDel && entry.Op == OpSet: the delete must still
	// reach the orch before this set does, so stage the set behind a
	// shadow slot instead of overwriting the delete.
	shadowKey := storageKey + shadowSuffix
	if shadow, ok := c.pending.Get(shadowKey); ok {
		c.pending.Set(shadowKey, mergeSet(shadow, entry))
	} else {
		c.pending.Set(shadowKey, entry.Clone())
	}
}

// mergeSet folds incoming's fields onto existing's: each incoming field
// already present in existing is removed from its old position and
// re-appended with its new value; fields incoming does not mention keep
// their original position. This is ConsumerStateTable's field merge
// rule, not a plain overwrite — the resulting field order is part of
// the wire contract.
func mergeSet(existing, incoming kofv.KeyOpFieldValues) kofv.KeyOpFieldValues {
	merged := existing.Fields.Clone()
	for _, kv := range incoming.Fields.Slice() {
		merged.Delete(kv[0])
		merged.Set(kv[0], kv[1])
	}
	return kofv.KeyOpFieldValues{Key: existing.Key, Op: kofv.OpSet, Fields: merged}
}

// Pending returns a snapshot of every currently staged task, in arrival
// order. The snapshot does not remove anything from the queue — call
// Complete or Erase once a task has actually been handled.
func (c *Consumer) Pending() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Task, 0, c.pending.Len())
	for el := c.pending.Front(); el != nil; el = el.Next() {
		out = append(out, Task{ID: el.Key, KeyOpFieldValues: el.Value.Clone()})
	}
	return out
}

// Len reports how many tasks are currently staged.
func (c *Consumer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}

// Complete records a task's outcome. A terminal status (anything but
// NeedRetry) drops the task from the queue; NeedRetry leaves it staged
// for the next sweep.
func (c *Consumer) Complete(id string, status taskstatus.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics.ConsumerTasksTotal.WithLabelValues(c.table, status.String()).Inc()
	if status.Terminal() {
		c.pending.Delete(id)
		c.reportDepth()
	}
}

// Erase unconditionally drops a staged task, used when an orch discards
// work outright (a warm-restart flush, a shutdown) rather than resolving
// it through the normal status path.
func (c *Consumer) Erase(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Delete(id)
	c.reportDepth()
}

func (c *Consumer) reportDepth() {
	metrics.ConsumerQueueDepth.WithLabelValues(c.table).Set(float64(c.pending.Len()))
}
