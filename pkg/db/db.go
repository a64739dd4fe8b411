// Package db defines the namespace-segmented key/value database that
// consumers read from and response publishers write to, plus two
// implementations: redisdb (production, backed by a real Redis server the
// way swss-common's DBConnector is) and boltdb (a deterministic,
// single-process double for tests and standalone runs). Neither
// implementation reimplements swss-common's wire protocol; both satisfy
// the same Database interface so a Consumer or Publisher never knows which
// one it is talking to.
package db

import "github.com/cuemby/switchorch/pkg/kofv"

// Namespace identifies one of switchorch's logical databases. Each maps to
// its own Redis DB index in production and its own bolt bucket namespace
// in the boltdb double.
type Namespace string

const (
	ConfigDB           Namespace = "CONFIG_DB"
	ApplDB             Namespace = "APPL_DB"
	ApplStateDB        Namespace = "APPL_STATE_DB"
	StateDB            Namespace = "STATE_DB"
	CountersDB         Namespace = "COUNTERS_DB"
	FlexCounterDB      Namespace = "FLEX_COUNTER_DB"
	FlexCounterGroupDB Namespace = "FLEX_COUNTER_GROUP_DB"
)

// Separator returns the character joining a table name and key within a
// row key for this namespace. CONFIG_DB uses swss-common's historical '|'
// separator; every APPL/STATE/COUNTERS namespace uses ':'.
func (n Namespace) Separator() string {
	if n == ConfigDB {
		return "|"
	}
	return ":"
}

func (n Namespace) redisIndex() int {
	switch n {
	case ApplDB:
		return 0
	case CountersDB:
		return 2
	case ConfigDB:
		return 4
	case FlexCounterDB:
		return 5
	case StateDB:
		return 6
	case ApplStateDB:
		return 7
	case FlexCounterGroupDB:
		return 8
	default:
		return 0
	}
}

// Database is a handle to a running database, segmented into namespaces.
type Database interface {
	Namespace(ns Namespace) NamespaceHandle
	Close() error
}

// NamespaceHandle is a single namespace's table storage and notification
// transport. Set replaces a row's fields wholesale — it is not a field
// merge — matching ProducerStateTable::set semantics; callers that want
// merge-before-write behavior (the Consumer's coalescing table) merge in
// memory before calling Set.
type NamespaceHandle interface {
	Set(table, key string, fields *kofv.FieldValues) error
	Del(table, key string) error
	Get(table, key string) (*kofv.FieldValues, bool, error)
	Keys(table string) ([]string, error)
	// Subscribe returns a channel of row mutations published on table and
	// a cancel function that stops delivery and releases the channel.
	Subscribe(table string) (<-chan kofv.KeyOpFieldValues, func(), error)
}

// notifyPayload is the wire shape switchorch's own db layer uses to carry
// a row mutation over a pub/sub channel, whether that channel is a real
// Redis PUBLISH or the boltdb double's in-process broker.
type notifyPayload struct {
	Key    string      `json:"key"`
	Op     kofv.Op     `json:"op"`
	Fields [][2]string `json:"fields,omitempty"`
}
