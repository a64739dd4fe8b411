package db

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/switchorch/pkg/events"
	"github.com/cuemby/switchorch/pkg/kofv"
	bolt "go.etcd.io/bbolt"
)

// BoltDatabase is a deterministic, single-file Database double for tests
// and standalone runs with no Redis server available. It buckets rows by
// namespace and table the way the teacher's BoltStore buckets by entity
// type, and emulates Redis pub/sub with an in-process events.Broker.
type BoltDatabase struct {
	db     *bolt.DB
	broker *events.Broker
}

// NewBoltDatabase opens (creating if absent) a bolt file at path.
func NewBoltDatabase(path string) (*BoltDatabase, error) {
	bdb, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	broker := events.NewBroker()
	broker.Start()
	return &BoltDatabase{db: bdb, broker: broker}, nil
}

func (d *BoltDatabase) Namespace(ns Namespace) NamespaceHandle {
	return &boltNamespace{db: d.db, broker: d.broker, ns: ns}
}

func (d *BoltDatabase) Close() error {
	d.broker.Stop()
	return d.db.Close()
}

type boltNamespace struct {
	db     *bolt.DB
	broker *events.Broker
	ns     Namespace
}

func (n *boltNamespace) bucketName(table string) []byte {
	return []byte(string(n.ns) + "|" + table)
}

func (n *boltNamespace) channel(table string) string {
	return string(n.ns) + ":" + table
}

func (n *boltNamespace) Set(table, key string, fields *kofv.FieldValues) error {
	data, err := json.Marshal(fields.Slice())
	if err != nil {
		return err
	}

	err = n.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(n.bucketName(table))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("db: set %s|%s: %w", table, key, err)
	}

	notif, err := json.Marshal(notifyPayload{Key: key, Op: kofv.OpSet, Fields: fields.Slice()})
	if err != nil {
		return err
	}
	n.broker.Publish(n.channel(table), string(notif))
	return nil
}

func (n *boltNamespace) Del(table, key string) error {
	err := n.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucketName(table))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("db: del %s|%s: %w", table, key, err)
	}

	notif, err := json.Marshal(notifyPayload{Key: key, Op: kofv.OpDel})
	if err != nil {
		return err
	}
	n.broker.Publish(n.channel(table), string(notif))
	return nil
}

func (n *boltNamespace) Get(table, key string) (*kofv.FieldValues, bool, error) {
	var fv *kofv.FieldValues
	found := false

	err := n.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucketName(table))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		var pairs [][2]string
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		fv = kofv.FromSlice(pairs)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("db: get %s|%s: %w", table, key, err)
	}
	return fv, found, nil
}

func (n *boltNamespace) Keys(table string) ([]string, error) {
	var keys []string
	err := n.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucketName(table))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("db: keys %s: %w", table, err)
	}
	return keys, nil
}

func (n *boltNamespace) Subscribe(table string) (<-chan kofv.KeyOpFieldValues, func(), error) {
	sub := n.broker.Subscribe(n.channel(table))
	out := make(chan kofv.KeyOpFieldValues, 256)
	stop := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-sub:
				if !ok {
					return
				}
				var p notifyPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					continue
				}
				out <- kofv.KeyOpFieldValues{Key: p.Key, Op: p.Op, Fields: kofv.FromSlice(p.Fields)}
			case <-stop:
				return
			}
		}
	}()

	cancel := func() {
		close(stop)
		n.broker.Unsubscribe(n.channel(table), sub)
	}
	return out, cancel, nil
}
