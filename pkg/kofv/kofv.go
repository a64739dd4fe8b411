// Package kofv implements the KeyOpFieldValues tuple, switchorch's wire
// representation for a single table mutation, and the insertion-ordered
// field map it carries. Field order matters: two SET operations on the
// same field set but different orders are different wire payloads, so
// field storage uses an ordered map rather than a plain Go map.
package kofv

import "github.com/elliotchance/orderedmap/v2"

// Op is the operation carried by a KeyOpFieldValues tuple.
type Op string

const (
	OpSet Op = "SET"
	OpDel Op = "DEL"
)

// FieldValues is an insertion-ordered field=value map. Re-setting an
// existing field updates its value in place without moving it to the back,
// matching swss-common's std::vector<FieldValueTuple> append-then-merge
// behavior for attribute lists.
type FieldValues struct {
	*orderedmap.OrderedMap[string, string]
}

// NewFieldValues returns an empty ordered field map.
func NewFieldValues() *FieldValues {
	return &FieldValues{orderedmap.NewOrderedMap[string, string]()}
}

// Clone returns a deep copy preserving field order.
func (fv *FieldValues) Clone() *FieldValues {
	clone := NewFieldValues()
	if fv == nil || fv.OrderedMap == nil {
		return clone
	}
	for el := fv.Front(); el != nil; el = el.Next() {
		clone.Set(el.Key, el.Value)
	}
	return clone
}

// Slice returns the fields as an ordered slice of [field, value] pairs, the
// shape a recorder or response row writes to disk.
func (fv *FieldValues) Slice() [][2]string {
	if fv == nil || fv.OrderedMap == nil {
		return nil
	}
	out := make([][2]string, 0, fv.Len())
	for el := fv.Front(); el != nil; el = el.Next() {
		out = append(out, [2]string{el.Key, el.Value})
	}
	return out
}

// FromSlice builds a FieldValues from ordered [field, value] pairs, the
// shape a database row or a recorded line decodes into.
func FromSlice(pairs [][2]string) *FieldValues {
	fv := NewFieldValues()
	for _, p := range pairs {
		fv.Set(p[0], p[1])
	}
	return fv
}

// KeyOpFieldValues is the unit of work a Consumer delivers to an Orch: one
// table key, the operation that was last coalesced for it, and — for SET —
// the fields that should now hold.
type KeyOpFieldValues struct {
	Key    string
	Op     Op
	Fields *FieldValues
}

// Clone returns a deep copy of the tuple.
func (t KeyOpFieldValues) Clone() KeyOpFieldValues {
	return KeyOpFieldValues{Key: t.Key, Op: t.Op, Fields: t.Fields.Clone()}
}
