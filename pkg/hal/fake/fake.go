// Package fake is an in-memory reference implementation of hal.Client,
// used by orch and bulker tests as a stand-in for a real SAI binding. It
// has no notion of ASIC resource limits or partial bulk failure beyond
// what a test configures via InUse/NotImplAttrs/NotImplTypes.
package fake

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/switchorch/pkg/hal"
	"github.com/cuemby/switchorch/pkg/taskstatus"
)

type object struct {
	objType hal.ObjectType
	key     string
	attrs   map[string]string
}

// Client is a goroutine-safe, in-memory hal.Client. BulkEntry.Key carries
// a logical key for Create calls. Set, Remove and their bulk forms accept
// either an oid returned by Create or, for an object created with a key,
// that key, which is how pkg/bulker.EntityBulker addresses entry-style
// objects.
type Client struct {
	mu sync.Mutex

	objects map[string]*object // oid -> object
	byKey   map[string]string  // objType|key -> oid
	nextOID int

	// InUse forces Remove(oid) to report OBJECT_IN_USE for the given oids.
	InUse map[string]bool
	// NotImplAttrs forces Set to report ATTR_NOT_IMPLEMENTED for the given attribute IDs.
	NotImplAttrs map[string]bool
	// NotImplTypes forces Create to report NOT_IMPLEMENTED for the given object types.
	NotImplTypes map[hal.ObjectType]bool

	// Calls records Create, Remove, Set and SwitchAttribute invocations in
	// order (bulk calls record one entry per member), for test assertions
	// about bulk ordering and call counts. Lookup, Get, FlushPipeline and
	// Dump are not recorded.
	Calls []string
}

// New returns an empty fake HAL client.
func New() *Client {
	return &Client{
		objects:      make(map[string]*object),
		byKey:        make(map[string]string),
		InUse:        make(map[string]bool),
		NotImplAttrs: make(map[string]bool),
		NotImplTypes: make(map[hal.ObjectType]bool),
	}
}

func objKey(objType hal.ObjectType, key string) string {
	return string(objType) + "|" + key
}

func (c *Client) Create(ctx context.Context, objType hal.ObjectType, key string, attrs []hal.Attr) (string, taskstatus.HALStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, fmt.Sprintf("Create(%s,%s)", objType, key))

	if c.NotImplTypes[objType] {
		return "", taskstatus.HALNotImplemented, nil
	}
	// An empty key means an oid-bearing object with no business key of
	// its own (pkg/bulker.ObjectBulker's callers); such creates never
	// dedupe against byKey, since every one is logically distinct.
	if key != "" {
		if oid, exists := c.byKey[objKey(objType, key)]; exists {
			return oid, taskstatus.HALItemAlreadyExists, nil
		}
	}

	c.nextOID++
	oid := fmt.Sprintf("oid:0x%x", c.nextOID)
	obj := &object{objType: objType, key: key, attrs: make(map[string]string)}
	for _, a := range attrs {
		obj.attrs[a.ID] = a.Value
	}
	c.objects[oid] = obj
	if key != "" {
		c.byKey[objKey(objType, key)] = oid
	}
	return oid, taskstatus.HALSuccess, nil
}

// Lookup satisfies hal.Client, resolving a previously created object by
// its business key via the same byKey index Create populates.
func (c *Client) Lookup(ctx context.Context, objType hal.ObjectType, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	oid, ok := c.byKey[objKey(objType, key)]
	return oid, ok, nil
}

func (c *Client) Remove(ctx context.Context, objType hal.ObjectType, oid string) (taskstatus.HALStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, fmt.Sprintf("Remove(%s,%s)", objType, oid))

	if c.InUse[oid] {
		return taskstatus.HALObjectInUse, nil
	}
	obj, ok := c.objects[oid]
	if !ok {
		if id, found := c.byKey[objKey(objType, oid)]; found {
			oid, obj, ok = id, c.objects[id], true
		}
	}
	if !ok {
		return taskstatus.HALFailure, fmt.Errorf("fake hal: remove unknown oid %s", oid)
	}
	delete(c.objects, oid)
	delete(c.byKey, objKey(obj.objType, obj.key))
	return taskstatus.HALSuccess, nil
}

func (c *Client) Set(ctx context.Context, objType hal.ObjectType, oid string, attr hal.Attr) (taskstatus.HALStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, fmt.Sprintf("Set(%s,%s,%s)", objType, oid, attr.ID))

	if c.NotImplAttrs[attr.ID] {
		return taskstatus.HALAttrNotImplemented, nil
	}
	obj, ok := c.objects[oid]
	if !ok {
		if id, found := c.byKey[objKey(objType, oid)]; found {
			obj, ok = c.objects[id], true
		}
	}
	if !ok {
		return taskstatus.HALFailure, fmt.Errorf("fake hal: set unknown oid %s", oid)
	}
	obj.attrs[attr.ID] = attr.Value
	return taskstatus.HALSuccess, nil
}

func (c *Client) Get(ctx context.Context, objType hal.ObjectType, oid string) ([]hal.Attr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, ok := c.objects[oid]
	if !ok {
		return nil, fmt.Errorf("fake hal: get unknown oid %s", oid)
	}
	attrs := make([]hal.Attr, 0, len(obj.attrs))
	for id, v := range obj.attrs {
		attrs = append(attrs, hal.Attr{ID: id, Value: v})
	}
	return attrs, nil
}

func (c *Client) BulkCreate(ctx context.Context, objType hal.ObjectType, entries []hal.BulkEntry) ([]hal.BulkResult, error) {
	results := make([]hal.BulkResult, 0, len(entries))
	for _, e := range entries {
		oid, status, err := c.Create(ctx, objType, e.Key, e.Attrs)
		results = append(results, hal.BulkResult{Key: e.Key, OID: oid, Status: status, Err: err})
	}
	return results, nil
}

func (c *Client) BulkRemove(ctx context.Context, objType hal.ObjectType, oids []string) ([]hal.BulkResult, error) {
	results := make([]hal.BulkResult, 0, len(oids))
	for _, oid := range oids {
		status, err := c.Remove(ctx, objType, oid)
		results = append(results, hal.BulkResult{Key: oid, Status: status, Err: err})
	}
	return results, nil
}

func (c *Client) BulkSet(ctx context.Context, objType hal.ObjectType, entries []hal.BulkEntry) ([]hal.BulkResult, error) {
	results := make([]hal.BulkResult, 0, len(entries))
	for _, e := range entries {
		var status taskstatus.HALStatus
		var err error
		for _, a := range e.Attrs {
			status, err = c.Set(ctx, objType, e.Key, a)
			if err != nil || status != taskstatus.HALSuccess {
				break
			}
		}
		results = append(results, hal.BulkResult{Key: e.Key, Status: status, Err: err})
	}
	return results, nil
}

func (c *Client) SwitchAttribute(ctx context.Context, attr hal.Attr) (taskstatus.HALStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, fmt.Sprintf("SwitchAttribute(%s)", attr.ID))
	return taskstatus.HALSuccess, nil
}

func (c *Client) FlushPipeline(ctx context.Context) error {
	return nil
}

func (c *Client) Dump(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for oid, obj := range c.objects {
		if _, err := fmt.Fprintf(w, "%s %s %s %v\n", oid, obj.objType, obj.key, obj.attrs); err != nil {
			return err
		}
	}
	return nil
}
