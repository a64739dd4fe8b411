// Package hal defines the hardware abstraction layer interface orchs and
// bulkers call into to push state to the ASIC. switchorch never implements
// a real SAI binding itself — that transport is an external collaborator,
// the same way orchagent treats libsai as something it links against, not
// something it writes. What this package does own is the Client contract,
// a circuit-breaker decorator around it, and an in-memory reference
// implementation (pkg/hal/fake) for tests.
package hal

import (
	"context"
	"io"

	"github.com/cuemby/switchorch/pkg/taskstatus"
)

// ObjectType names a kind of ASIC object (VRF, route, next hop group, ...).
// switchorch treats it as an opaque string; per-object-type meaning is the
// business of the orchs built on top of this package, not this package
// itself.
type ObjectType string

// Attr is a single SAI-style attribute: an implementation-defined ID and
// its string-encoded value.
type Attr struct {
	ID    string
	Value string
}

// BulkEntry is one member of a bulk create/set request.
type BulkEntry struct {
	Key   string
	Attrs []Attr
}

// BulkResult is one member's outcome from a bulk call. OID is populated
// by BulkCreate with the created object's oid; pkg/bulker.ObjectBulker
// reads it, while EntityBulker, whose objects are identified by key, does
// not.
type BulkResult struct {
	Key    string
	OID    string
	Status taskstatus.HALStatus
	Err    error
}

// Client is the hardware abstraction layer contract. Every method may
// return taskstatus.HALFailure alongside a non-nil error; callers reduce
// the pair into a taskstatus.Status via taskstatus.Classify.
type Client interface {
	Create(ctx context.Context, objType ObjectType, key string, attrs []Attr) (oid string, status taskstatus.HALStatus, err error)
	Remove(ctx context.Context, objType ObjectType, oid string) (taskstatus.HALStatus, error)
	Set(ctx context.Context, objType ObjectType, oid string, attr Attr) (taskstatus.HALStatus, error)
	Get(ctx context.Context, objType ObjectType, oid string) ([]Attr, error)
	// Lookup resolves an object by its business key rather than its
	// oid, the query orchagent issues during warm-boot resync to
	// recover the oid of an object created in a prior process
	// lifetime without recreating it. found is false if no such
	// object exists in the HAL.
	Lookup(ctx context.Context, objType ObjectType, key string) (oid string, found bool, err error)

	BulkCreate(ctx context.Context, objType ObjectType, entries []BulkEntry) ([]BulkResult, error)
	BulkRemove(ctx context.Context, objType ObjectType, oids []string) ([]BulkResult, error)
	BulkSet(ctx context.Context, objType ObjectType, entries []BulkEntry) ([]BulkResult, error)

	SwitchAttribute(ctx context.Context, attr Attr) (taskstatus.HALStatus, error)
	// FlushPipeline forces any HAL-side buffering to drain before
	// returning, the point at which a bulker's staged calls are
	// guaranteed visible to subsequent Get calls.
	FlushPipeline(ctx context.Context) error
	// Dump writes a human-readable snapshot of HAL-owned object state,
	// used by the SIGHUP state dump (pkg/signals).
	Dump(w io.Writer) error
}
