// Package orch defines the shared dispatch contract every convergence
// module implements, and the select-loop engine that drives them,
// grounded on orchagent's Orch base class and orchdaemon.cpp's
// OrchDaemon::start.
//
// An orch owns one or more pkg/consumer queues and reduces each pending
// task to a taskstatus.Status via whatever HAL calls the task requires
// (usually through a pkg/bulker). Base gives an orch the common
// sweep-and-dispatch loop; Engine gives the process the outer select
// loop that decides when a sweep happens at all.
package orch

import "context"

// Orch is the contract the engine drives. Name labels the orch's
// metrics and log lines; DoTask gives it one chance per engine
// iteration to make whatever progress it can against its pending work.
type Orch interface {
	Name() string
	DoTask(ctx context.Context)
}

// Baker is implemented by an orch that restores in-memory state from a
// running ASIC ahead of warm-restart reconciliation, matching
// orchagent's bake(). Not every orch needs one — an orch with no
// ASIC-resident state beyond what CONFIG_DB already describes has
// nothing to bake.
type Baker interface {
	Bake(ctx context.Context) error
}

// Replayer is implemented by an orch whose Bake populates a set of keys
// discovered in the running ASIC that it expects CONFIG_DB's replay to
// reconfirm before warm-restart reconciliation may proceed, matching
// orchdaemon.cpp's per-orch replay-map drain check ahead of the
// REPLAYED state transition. An orch with nothing to bake has nothing
// to replay and does not need to implement this.
type Replayer interface {
	ReplayRemaining() int
}
