package orch

import (
	"context"

	"github.com/cuemby/switchorch/pkg/consumer"
	"github.com/cuemby/switchorch/pkg/metrics"
	"github.com/cuemby/switchorch/pkg/taskstatus"
)

// Handler reduces one coalesced task to its outcome. table is the
// consumer's table, for a handler shared across more than one
// consumer.
type Handler func(ctx context.Context, table string, task consumer.Task) taskstatus.Status

// Base is the embeddable half of Orch: it holds a name and the set of
// consumers an orch sweeps, and implements Sweep, the per-iteration
// walk orchagent's Orch::doTask performs over its own consumer map.
// Base carries no lock; an orch built on it is only ever touched from
// the engine's single select loop goroutine.
type Base struct {
	name      string
	consumers []*consumer.Consumer
}

// NewBase returns a Base named name, sweeping the given consumers.
func NewBase(name string, consumers ...*consumer.Consumer) Base {
	return Base{name: name, consumers: consumers}
}

// Name satisfies Orch.
func (b *Base) Name() string {
	return b.name
}

// Consumers returns the consumers this orch sweeps, for an engine
// wiring up subscriptions at registration time.
func (b *Base) Consumers() []*consumer.Consumer {
	return b.consumers
}

// Sweep walks every consumer's pending queue in arrival order, calling
// handle for each task and resolving it via handle's returned status.
// A NeedRetry task is left staged and counted against OrchRetriesTotal;
// every other status is terminal and drops the task from its queue.
func (b *Base) Sweep(ctx context.Context, handle Handler) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.OrchSweepDuration, b.name)

	for _, c := range b.consumers {
		table := c.Table()
		for _, task := range c.Pending() {
			status := handle(ctx, table, task)
			if status == taskstatus.NeedRetry {
				metrics.OrchRetriesTotal.WithLabelValues(b.name, table).Inc()
			}
			c.Complete(task.ID, status)
		}
	}

	metrics.OrchSweepCyclesTotal.WithLabelValues(b.name).Inc()
}

// Idle reports whether every consumer this orch sweeps is empty, the
// condition orchdaemon.cpp's warm-restart freeze check polls for before
// it will let a module report itself ready.
func (b *Base) Idle() bool {
	for _, c := range b.consumers {
		if c.Len() > 0 {
			return false
		}
	}
	return true
}
