// Package response implements the write-then-notify contract an orch uses
// to report a task's outcome, grounded on orchagent's
// response_publisher.cpp: a successful write's resulting state is
// committed to APPL_STATE_DB before the outcome is announced on the
// table's response channel, so a subscriber woken by the notification is
// guaranteed to read the row it names.
package response

import (
	"fmt"

	"github.com/cuemby/switchorch/pkg/db"
	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/cuemby/switchorch/pkg/log"
	"github.com/cuemby/switchorch/pkg/metrics"
	"github.com/cuemby/switchorch/pkg/recorder"
	"github.com/cuemby/switchorch/pkg/taskstatus"
)

// Channel is the notification channel a table's responses are published
// on, matching response_publisher.cpp's literal naming convention.
func Channel(table string) string {
	return fmt.Sprintf("APPL_DB_%s_RESPONSE_CHANNEL", table)
}

// Publisher writes task outcomes to APPL_STATE_DB and announces them on
// each table's response channel.
type Publisher struct {
	ns       db.NamespaceHandle
	recorder *recorder.Recorder
}

// NewPublisher returns a publisher writing to ns (an APPL_STATE_DB
// handle). If rec is non-nil every write and every notification is also
// appended to rec's journal.
func NewPublisher(ns db.NamespaceHandle, rec *recorder.Recorder) *Publisher {
	return &Publisher{ns: ns, recorder: rec}
}

// Publish reports the outcome of applying intentAttrs to (table, key). A
// Success status writes intentAttrs into APPL_STATE_DB as the state this
// orch now asserts; any other status leaves APPL_STATE_DB untouched. Use
// PublishWithState when the applied state differs from the fields the
// desired-state write carried — a create that filled in ASIC-assigned
// defaults, for instance.
func (p *Publisher) Publish(table, key string, intentAttrs *kofv.FieldValues, status taskstatus.Status, taskErr error, fromHAL, replace bool) error {
	var stateAttrs *kofv.FieldValues
	if status == taskstatus.Success {
		stateAttrs = intentAttrs
	}
	return p.PublishWithState(table, key, intentAttrs, stateAttrs, status, taskErr, fromHAL, replace)
}

// PublishWithState is Publish's explicit-state form.
func (p *Publisher) PublishWithState(table, key string, intentAttrs, stateAttrs *kofv.FieldValues, status taskstatus.Status, taskErr error, fromHAL, replace bool) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ResponsePublishDuration, table)

	hasIntent := intentAttrs != nil && intentAttrs.Len() > 0
	hasState := stateAttrs != nil && stateAttrs.Len() > 0

	// Write to APPL_STATE_DB only if a write is being performed with
	// resulting state attributes, or this is a successful delete.
	if (hasIntent && hasState) || (status == taskstatus.Success && !hasIntent) {
		op := kofv.OpDel
		if hasIntent {
			op = kofv.OpSet
		}
		if err := p.writeState(table, key, stateAttrs, op, replace); err != nil {
			metrics.ResponsePublishTotal.WithLabelValues(table, "write_error").Inc()
			return err
		}
	}

	if err := p.notify(table, key, intentAttrs, status, taskErr, fromHAL); err != nil {
		metrics.ResponsePublishTotal.WithLabelValues(table, "write_error").Inc()
		return err
	}

	metrics.ResponsePublishTotal.WithLabelValues(table, status.String()).Inc()
	return nil
}

// writeState writes (or removes) a key's row in APPL_STATE_DB, following
// writeToDB's NULL-sentinel and replace-deletes-first rules.
func (p *Publisher) writeState(table, key string, attrs *kofv.FieldValues, op kofv.Op, replace bool) error {
	if op == kofv.OpDel {
		if err := p.ns.Del(table, key); err != nil {
			return fmt.Errorf("response: del state %s/%s: %w", table, key, err)
		}
		if p.recorder != nil {
			p.recorder.Record(recorder.Line{Table: table, Key: key, Op: kofv.OpDel, Fields: kofv.NewFieldValues()})
		}
		return nil
	}

	if replace {
		if err := p.ns.Del(table, key); err != nil {
			return fmt.Errorf("response: replace state %s/%s: %w", table, key, err)
		}
	}

	row := attrs.Clone()
	if row.Len() == 0 {
		row.Set("NULL", "NULL")
	}

	_, existed, err := p.ns.Get(table, key)
	if err != nil {
		return fmt.Errorf("response: read state %s/%s: %w", table, key, err)
	}

	if !existed {
		if err := p.ns.Set(table, key, row); err != nil {
			return fmt.Errorf("response: set state %s/%s: %w", table, key, err)
		}
		if p.recorder != nil {
			p.recorder.Record(recorder.Line{Table: table, Key: key, Op: op, Fields: row})
		}
		return nil
	}

	// The row already exists: a NULL sentinel only belongs in a brand-new
	// row, so strip it before writing.
	stripped := kofv.NewFieldValues()
	for _, kv := range row.Slice() {
		if kv[0] == "NULL" {
			continue
		}
		stripped.Set(kv[0], kv[1])
	}
	if stripped.Len() == 0 {
		return nil
	}
	if err := p.ns.Set(table, key, stripped); err != nil {
		return fmt.Errorf("response: set state %s/%s: %w", table, key, err)
	}
	if p.recorder != nil {
		p.recorder.Record(recorder.Line{Table: table, Key: key, Op: op, Fields: stripped})
	}
	return nil
}

// notify announces status on table's response channel, prepending the
// error message — prefixed "[SAI] " when the failure originated in the
// HAL layer, "[OrchAgent] " otherwise — as the first field.
func (p *Publisher) notify(table, key string, intentAttrs *kofv.FieldValues, status taskstatus.Status, taskErr error, fromHAL bool) error {
	errStr := ""
	if taskErr != nil {
		prefix := "[OrchAgent] "
		if fromHAL {
			prefix = "[SAI] "
		}
		errStr = prefix + taskErr.Error()
	}

	msg := kofv.NewFieldValues()
	msg.Set("err_str", errStr)
	msg.Set("status", status.String())
	for _, kv := range intentAttrs.Slice() {
		msg.Set(kv[0], kv[1])
	}

	channel := Channel(table)
	if err := p.ns.Set(channel, key, msg); err != nil {
		return fmt.Errorf("response: notify %s/%s: %w", channel, key, err)
	}
	log.WithKey(channel, key).Debug().Str("status", status.String()).Msg("published response")

	if p.recorder != nil {
		p.recorder.Record(recorder.Line{Table: channel, Key: key, Op: kofv.OpSet, Fields: msg})
	}
	return nil
}

// Subscribe returns a channel of response notifications for table, for
// callers that wait synchronously on an orch's outcome.
func (p *Publisher) Subscribe(table string) (<-chan kofv.KeyOpFieldValues, func(), error) {
	return p.ns.Subscribe(Channel(table))
}
