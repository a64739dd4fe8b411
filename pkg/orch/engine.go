package orch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/switchorch/pkg/consumer"
	"github.com/cuemby/switchorch/pkg/hal"
	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/cuemby/switchorch/pkg/log"
)

// selectTimeout bounds how long Engine.Run waits for a notification
// before sweeping anyway, matching orchdaemon.cpp's select() timeout —
// a sweep happens on a steady cadence even when nothing new arrived, so
// a NeedRetry task left over from a prior sweep still gets retried.
const selectTimeout = time.Second

type notification struct {
	table string
	entry kofv.KeyOpFieldValues
}

// Engine is the process-wide select loop, grounded on orchagent's
// OrchDaemon: every iteration it waits for a table notification (or the
// select timeout), lets every registered orch sweep whatever is now
// pending regardless of which table fired, then flushes the HAL's
// buffered pipeline so the next sweep sees consistent state.
//
// Go's select statement needs a static case list, but Engine's consumer
// set is built at Register time. Rather than reach for reflect.Select,
// each subscribed consumer gets its own small forwarding goroutine that
// feeds a single shared channel the main loop actually selects on —
// pure plumbing, not business logic, so the single-goroutine rule for
// the rest of the engine still holds: only Engine.Run's goroutine ever
// calls DoTask, Sweep, or touches a bulker.
type Engine struct {
	hal hal.Client

	orchs  []Orch
	bakers []Baker

	byTable  map[string]*consumer.Consumer
	notifyCh chan notification

	wg      sync.WaitGroup
	cancels []func()

	afterFirstTick func()
	firstTickDone  bool
}

// NewEngine returns an engine driving HAL calls through client.
func NewEngine(client hal.Client) *Engine {
	return &Engine{
		hal:      client,
		byTable:  make(map[string]*consumer.Consumer),
		notifyCh: make(chan notification, 256),
	}
}

// Register adds o to the engine, subscribing to every consumer it
// reads from so their notifications feed o's next sweep. cs should be
// the same consumers o.DoTask sweeps.
func (e *Engine) Register(o Orch, cs ...*consumer.Consumer) error {
	e.orchs = append(e.orchs, o)
	if baker, ok := o.(Baker); ok {
		e.bakers = append(e.bakers, baker)
	}

	for _, c := range cs {
		ch, cancel, err := c.Subscribe()
		if err != nil {
			return fmt.Errorf("orch: subscribe %s for %s: %w", c.Table(), o.Name(), err)
		}
		e.byTable[c.Table()] = c
		e.cancels = append(e.cancels, cancel)

		table := c.Table()
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for entry := range ch {
				e.notifyCh <- notification{table: table, entry: entry}
			}
		}()
	}
	return nil
}

// Bake runs every registered orch's Bake, in registration order,
// matching orchdaemon.cpp's warm-restart boot sequence step of baking
// every orch before any doTask sweep runs.
func (e *Engine) Bake(ctx context.Context) error {
	for _, b := range e.bakers {
		if err := b.Bake(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WarmRestoreSyncUp drives the remainder of the warm-restart boot
// sequence after Bake: orchagent's orchdaemon.cpp sweeps every orch
// three times in a row to let multi-orch dependency chains resolve
// (a route orch's NeedRetry on sweep one can clear by sweep three, once
// the orch it depends on has caught up), then flushes the HAL pipeline
// once reconciliation settles.
func (e *Engine) WarmRestoreSyncUp(ctx context.Context) error {
	for i := 0; i < 3; i++ {
		e.sweepAll(ctx)
	}
	return e.hal.FlushPipeline(ctx)
}

// ReplayComplete reports whether the named orch's replay set, if it has
// one, has fully drained. An orch that does not implement Replayer has
// nothing to replay and is always considered complete.
func (e *Engine) ReplayComplete(name string) bool {
	for _, o := range e.orchs {
		if o.Name() != name {
			continue
		}
		if r, ok := o.(Replayer); ok {
			return r.ReplayRemaining() == 0
		}
		return true
	}
	return true
}

// AfterFirstTick registers fn to run exactly once, right after Run's
// first select-timeout-driven sweep — as opposed to one triggered by an
// incoming notification. This is the point orchdaemon.cpp treats as
// "the main loop is up and running," used to gate a state transition on
// the loop genuinely being live rather than firing it eagerly during
// boot before Run has even started.
func (e *Engine) AfterFirstTick(fn func()) {
	e.afterFirstTick = fn
}

// Idle reports whether every registered orch has fully drained its
// pending work, the condition orchdaemon.cpp's warm-restart freeze
// check requires before a restart can proceed.
func (e *Engine) Idle() bool {
	for _, o := range e.orchs {
		if idler, ok := o.(interface{ Idle() bool }); ok {
			if !idler.Idle() {
				return false
			}
		}
	}
	return true
}

// Run drives the select loop until ctx is cancelled: on a notification
// or the select timeout it routes any buffered entry into its
// consumer's queue, sweeps every orch, and flushes the HAL pipeline.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(selectTimeout)
	defer ticker.Stop()

	for {
		tick := false
		select {
		case <-ctx.Done():
			return
		case n := <-e.notifyCh:
			if c, ok := e.byTable[n.table]; ok {
				c.AddOne(n.entry)
			}
			e.drainPending()
		case <-ticker.C:
			tick = true
		}

		e.sweepAll(ctx)

		if err := e.hal.FlushPipeline(ctx); err != nil {
			log.WithComponent("engine").Error().Err(err).Msg("hal pipeline flush failed")
		}

		if tick && !e.firstTickDone {
			e.firstTickDone = true
			if e.afterFirstTick != nil {
				e.afterFirstTick()
			}
		}
	}
}

// drainPending folds in any further notifications already buffered in
// notifyCh without blocking, so a burst of mutations delivered between
// two select wakeups is coalesced into the same sweep instead of
// trickling in one sweep at a time.
func (e *Engine) drainPending() {
	for {
		select {
		case n := <-e.notifyCh:
			if c, ok := e.byTable[n.table]; ok {
				c.AddOne(n.entry)
			}
		default:
			return
		}
	}
}

func (e *Engine) sweepAll(ctx context.Context) {
	for _, o := range e.orchs {
		o.DoTask(ctx)
	}
}

// Stop cancels every subscription and waits for the forwarding
// goroutines to exit, for a clean shutdown.
func (e *Engine) Stop() {
	for _, cancel := range e.cancels {
		cancel()
	}
	e.wg.Wait()
}
