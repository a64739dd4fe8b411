// Package bulkrouteorch implements a bulk-staged route orch,
// demonstrating bulker.h's two-phase flow end to end: stage every
// pending route into an EntityBulker, flush once, then walk the same
// staged set again to read back each entry's status and decide
// erase-vs-retry. It is grounded on orchagent's gRouteBulker (visible
// in flex_counter/flowcounterrouteorch.cpp's constructor as
// `gRouteBulker(sai_route_api, gMaxBulkSize)`) and on that file's CRM
// route-entry counter bookkeeping around bind/unbind of a route entry.
package bulkrouteorch

import (
	"context"
	"strings"

	"github.com/cuemby/switchorch/pkg/bulker"
	"github.com/cuemby/switchorch/pkg/consumer"
	"github.com/cuemby/switchorch/pkg/hal"
	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/cuemby/switchorch/pkg/log"
	"github.com/cuemby/switchorch/pkg/orch"
	"github.com/cuemby/switchorch/pkg/refcrm"
	"github.com/cuemby/switchorch/pkg/response"
	"github.com/cuemby/switchorch/pkg/taskstatus"
)

// Table is the CONFIG_DB table this orch consumes.
const Table = "ROUTE_TABLE"

// ObjectType is this orch's HAL object kind. A route entry is
// self-identifying by key (vrf-qualified prefix), so it is bulked
// through EntityBulker rather than an oid-bearing object type.
const ObjectType hal.ObjectType = "ROUTE"

// crmResource is the CRM resource name this orch's route count is
// tracked under.
const crmResource = "ipv4_route"

// vrfObjectType is the HAL object kind a route's owning VRF is
// registered under in the reference graph, matching vrforch.ObjectType.
const vrfObjectType hal.ObjectType = "VRF"

// defaultVRF is the implicit VRF a route with no "Vrf:" prefix on its
// key belongs to. It is never itself a VRF_TABLE row, so routes against
// it never register a reference.
const defaultVRF = "default"

// staged pairs one consumer task with the *bulker.Result the bulker
// will fill in once Flush runs.
type staged struct {
	task   consumer.Task
	result *bulker.Result
}

// Orch stages route creates/removes into an EntityBulker every sweep,
// flushes once, then resolves each entry's outcome.
type Orch struct {
	orch.Base

	bulker    *bulker.EntityBulker
	refs      *refcrm.Registry
	publisher *response.Publisher
	consumer  *consumer.Consumer

	pending []staged
}

// New returns a bulk route orch sweeping c, staging bulk HAL calls
// through client in chunks of at most maxBulkSize.
func New(c *consumer.Consumer, client hal.Client, refs *refcrm.Registry, publisher *response.Publisher, maxBulkSize int) *Orch {
	return &Orch{
		Base:      orch.NewBase("bulkrouteorch", c),
		bulker:    bulker.NewEntityBulker("bulkrouteorch", client, ObjectType, maxBulkSize),
		refs:      refs,
		publisher: publisher,
		consumer:  c,
	}
}

// Name satisfies orch.Orch.
func (o *Orch) Name() string { return "bulkrouteorch" }

// DoTask stages this sweep's pending routes, flushes the bulker once,
// then resolves every staged entry against its result.
func (o *Orch) DoTask(ctx context.Context) {
	o.stage()
	if err := o.bulker.Flush(ctx); err != nil {
		log.WithComponent("bulkrouteorch").Error().Err(err).Msg("bulk flush failed")
	}
	o.resolve(ctx)
}

func (o *Orch) stage() {
	o.pending = o.pending[:0]
	for _, task := range o.consumer.Pending() {
		var res *bulker.Result
		switch task.Op {
		case kofv.OpSet:
			res = o.bulker.CreateEntry(task.Key, attrsFromFields(task.Fields))
		case kofv.OpDel:
			res = o.bulker.RemoveEntry(task.Key)
		default:
			o.consumer.Complete(task.ID, taskstatus.Invalid)
			continue
		}
		o.pending = append(o.pending, staged{task: task, result: res})
	}
}

func (o *Orch) resolve(ctx context.Context) {
	for _, s := range o.pending {
		status := taskstatus.Classify(s.result.Status, false, taskstatus.PolicyFail)

		switch status {
		case taskstatus.Success, taskstatus.Ignore:
			o.postProcess(s.task)
			_ = o.publisher.Publish(Table, s.task.Key, s.task.Fields, taskstatus.Success, nil, false, false)
		case taskstatus.NeedRetry:
			// leave staged; retried on the next sweep.
		default:
			log.WithComponent("bulkrouteorch").Error().Str("prefix", s.task.Key).Err(s.result.Err).Msg("bulk route call failed")
			_ = o.publisher.Publish(Table, s.task.Key, s.task.Fields, status, s.result.Err, true, false)
		}

		o.consumer.Complete(s.task.ID, status)
	}
}

// postProcess applies this entry's side effects once its HAL call has
// resolved successfully: a CRM usage count increment for a newly
// created route, a decrement for one just removed, and a reference
// graph edge from the route to its owning VRF (vrforch refuses to
// delete a VRF while any route still references it).
func (o *Orch) postProcess(task consumer.Task) {
	switch task.Op {
	case kofv.OpSet:
		o.refs.IncUsage(crmResource, "switch")
		if vrf, ok := vrfFromKey(task.Key); ok {
			o.refs.SetReference(string(vrfObjectType), vrf, "route", refcrm.ReferrerKey(Table, task.Key))
		}
	case kofv.OpDel:
		o.refs.DecUsage(crmResource, "switch")
		o.refs.ReleaseReferences(Table, task.Key)
	}
}

// vrfFromKey splits a route key of the form "Vrf_name:prefix" into its
// owning VRF name, matching vrfmgr.cpp/routeorch.cpp's key convention
// for VRF-scoped routes. A key with no colon belongs to the default
// VRF, which is never itself a reference target.
func vrfFromKey(key string) (string, bool) {
	vrf, _, ok := strings.Cut(key, ":")
	if !ok || vrf == defaultVRF {
		return "", false
	}
	return vrf, true
}

func attrsFromFields(fields *kofv.FieldValues) []hal.Attr {
	if fields == nil {
		return nil
	}
	pairs := fields.Slice()
	attrs := make([]hal.Attr, 0, len(pairs))
	for _, p := range pairs {
		attrs = append(attrs, hal.Attr{ID: p[0], Value: p[1]})
	}
	return attrs
}
