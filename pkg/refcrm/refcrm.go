// Package refcrm implements reference accounting for created HAL objects
// and CRM-style resource usage counters, grounded on orchagent's
// m_syncdObjects/m_default* reference maps and crmorch.cpp's per-resource
// CrmResourceEntry. Both live in the same registry because a resource's
// CRM count and its object reference count are updated by the same
// create/remove path in every orch.
//
// Registry carries no internal locking: switchorch's convergence engine is
// single-threaded, and every call into a Registry happens from the same
// select loop goroutine.
package refcrm

import "github.com/cuemby/switchorch/pkg/metrics"

// ref tracks one created object: its HAL-assigned oid, how many other
// objects currently reference it, and whether a remove was requested
// while references remained (orchagent's "pending removal" bit).
type ref struct {
	oid           string
	refs          int
	pendingRemove bool
}

// counter is one CRM-tracked resource's usage accounting.
type counter struct {
	used      int
	watermark int
}

// Referrer identifies one edge in the reference graph: a referring
// object (built via ReferrerKey) and the field on it that holds the
// reference.
type Referrer struct {
	Key   string
	Field string
}

// ReferrerKey formats an object type and name into the composite key
// SetReference, ReleaseReferences and the referrers returned by
// WhoReferences use to identify a referrer or a target. Two objects of
// the same name but different type never collide.
func ReferrerKey(objType, name string) string {
	return objType + ":" + name
}

// Registry is a nested type -> name -> ref map plus a resource -> scope ->
// counter map, matching orchagent's split between "objects this orch
// created" and "how much of a finite ASIC resource is in use." It also
// holds a target-keyed reference graph, matching m_syncdObjects's use as
// a dependency map: a pool object accumulates a multiset of (type, name,
// field) referrers and refuses deletion while any remain.
type Registry struct {
	objects map[string]map[string]*ref
	usage   map[string]map[string]*counter

	referrers map[string][]Referrer // target key -> referrers
	outgoing  map[string][]string   // referrer key -> target keys it references
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		objects:   make(map[string]map[string]*ref),
		usage:     make(map[string]map[string]*counter),
		referrers: make(map[string][]Referrer),
		outgoing:  make(map[string][]string),
	}
}

func (r *Registry) bucket(objType string) map[string]*ref {
	b := r.objects[objType]
	if b == nil {
		b = make(map[string]*ref)
		r.objects[objType] = b
	}
	return b
}

// SetObject records that name of the given type now maps to oid, with a
// zero reference count. It is called once, right after a successful HAL
// create.
func (r *Registry) SetObject(objType, name, oid string) {
	r.bucket(objType)[name] = &ref{oid: oid}
}

// OID returns the oid registered for name, if any.
func (r *Registry) OID(objType, name string) (string, bool) {
	ref, ok := r.objects[objType][name]
	if !ok {
		return "", false
	}
	return ref.oid, true
}

// IncRef increments name's reference count, reporting whether name is
// known to the registry.
func (r *Registry) IncRef(objType, name string) bool {
	ref, ok := r.objects[objType][name]
	if !ok {
		return false
	}
	ref.refs++
	return true
}

// DecRef decrements name's reference count. If the count reaches zero and
// a remove was deferred while references remained, Remove is re-run and
// its result is returned; otherwise DecRef reports false (nothing to
// clean up yet).
func (r *Registry) DecRef(objType, name string) bool {
	ref, ok := r.objects[objType][name]
	if !ok || ref.refs == 0 {
		return false
	}
	ref.refs--
	if ref.refs == 0 && ref.pendingRemove {
		delete(r.objects[objType], name)
		return true
	}
	return false
}

// RefCount returns name's current reference count, or 0 if unknown.
func (r *Registry) RefCount(objType, name string) int {
	if ref, ok := r.objects[objType][name]; ok {
		return ref.refs
	}
	return 0
}

// Remove requests removal of name. If no references remain, it deletes
// the entry immediately and returns true (the caller may issue the HAL
// remove). If references remain, it marks the entry pending-removal and
// returns false — the caller must retry (taskstatus.NeedRetry) until a
// matching DecRef drops the count to zero.
func (r *Registry) Remove(objType, name string) bool {
	ref, ok := r.objects[objType][name]
	if !ok {
		return true
	}
	if ref.refs > 0 {
		ref.pendingRemove = true
		return false
	}
	delete(r.objects[objType], name)
	return true
}

// PendingRemoval reports whether name is waiting on outstanding references
// to drop before it can be removed.
func (r *Registry) PendingRemoval(objType, name string) bool {
	ref, ok := r.objects[objType][name]
	return ok && ref.pendingRemove
}

// SetReference records that field on the object identified by refKey
// (built via ReferrerKey) references name of objType. Call once per
// successful create of the referring object.
func (r *Registry) SetReference(objType, name, field, refKey string) {
	target := ReferrerKey(objType, name)
	r.referrers[target] = append(r.referrers[target], Referrer{Key: refKey, Field: field})
	r.outgoing[refKey] = append(r.outgoing[refKey], target)
}

// ReleaseReferences drops every reference the object identified by
// objType/name holds on other objects, matching orchagent's practice of
// clearing a deleted object's outgoing references from every target it
// touched. Call once the referring object itself has been removed.
func (r *Registry) ReleaseReferences(objType, name string) {
	refKey := ReferrerKey(objType, name)
	for _, target := range r.outgoing[refKey] {
		refs := r.referrers[target]
		kept := refs[:0]
		for _, ref := range refs {
			if ref.Key != refKey {
				kept = append(kept, ref)
			}
		}
		if len(kept) == 0 {
			delete(r.referrers, target)
		} else {
			r.referrers[target] = kept
		}
	}
	delete(r.outgoing, refKey)
}

// IsReferenced reports whether any other object currently references
// name of objType.
func (r *Registry) IsReferenced(objType, name string) bool {
	return len(r.referrers[ReferrerKey(objType, name)]) > 0
}

// WhoReferences returns the referrers currently holding a reference to
// name of objType, for logging a delete-deferred hint naming exactly
// what is blocking removal.
func (r *Registry) WhoReferences(objType, name string) []Referrer {
	refs := r.referrers[ReferrerKey(objType, name)]
	out := make([]Referrer, len(refs))
	copy(out, refs)
	return out
}

// MarkPendingRemove flags name of objType as pending removal, mirroring
// Remove's own pending bit for objects tracked only through SetObject
// without ever going through IncRef/DecRef.
func (r *Registry) MarkPendingRemove(objType, name string) {
	if ref, ok := r.objects[objType][name]; ok {
		ref.pendingRemove = true
	}
}

func (r *Registry) counterFor(resource, scope string) *counter {
	b := r.usage[resource]
	if b == nil {
		b = make(map[string]*counter)
		r.usage[resource] = b
	}
	c := b[scope]
	if c == nil {
		c = &counter{}
		b[scope] = c
	}
	return c
}

// IncUsage increments a CRM resource's usage count for scope and advances
// its high watermark if the new count exceeds it.
func (r *Registry) IncUsage(resource, scope string) {
	c := r.counterFor(resource, scope)
	c.used++
	if c.used > c.watermark {
		c.watermark = c.used
	}
}

// DecUsage decrements a CRM resource's usage count for scope. It never
// goes below zero; a caller decrementing past zero indicates a bookkeeping
// bug upstream, not a condition this package recovers from silently
// wrapping.
func (r *Registry) DecUsage(resource, scope string) {
	c := r.counterFor(resource, scope)
	if c.used > 0 {
		c.used--
	}
}

// Usage returns the current usage count for a resource/scope pair.
func (r *Registry) Usage(resource, scope string) int {
	return r.counterFor(resource, scope).used
}

// Watermark returns the high watermark usage count for a resource/scope pair.
func (r *Registry) Watermark(resource, scope string) int {
	return r.counterFor(resource, scope).watermark
}

// Snapshot satisfies metrics.CRMSource, exporting every tracked
// resource/scope pair's current usage and watermark for periodic gauge
// collection.
func (r *Registry) Snapshot() []metrics.CRMUsage {
	out := make([]metrics.CRMUsage, 0, len(r.usage))
	for resource, scopes := range r.usage {
		for scope, c := range scopes {
			out = append(out, metrics.CRMUsage{
				Resource:  resource,
				Scope:     scope,
				Used:      c.used,
				Watermark: c.watermark,
			})
		}
	}
	return out
}
