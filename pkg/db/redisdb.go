package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/redis/go-redis/v9"
)

// RedisDatabase is the production Database, one *redis.Client per process
// shared across namespaces by selecting a DB index per call, the way
// swss-common's DBConnector pool keeps one connection per logical database.
type RedisDatabase struct {
	client *redis.Client
}

// NewRedisDatabase dials addr with go-redis's default pool settings.
func NewRedisDatabase(addr string, password string) *RedisDatabase {
	return &RedisDatabase{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// NewRedisDatabaseFromClient wraps an already-configured client, letting
// callers (and tests using miniredis) control dial options themselves.
func NewRedisDatabaseFromClient(client *redis.Client) *RedisDatabase {
	return &RedisDatabase{client: client}
}

func (d *RedisDatabase) Namespace(ns Namespace) NamespaceHandle {
	return &redisNamespace{client: d.client, ns: ns}
}

func (d *RedisDatabase) Close() error {
	return d.client.Close()
}

type redisNamespace struct {
	client *redis.Client
	ns     Namespace
}

func (n *redisNamespace) rowKey(table, key string) string {
	return fmt.Sprintf("%s%s%s", table, n.ns.Separator(), key)
}

func (n *redisNamespace) channel(table string) string {
	return fmt.Sprintf("%s_CHANNEL@%d", table, n.ns.redisIndex())
}

func (n *redisNamespace) Set(table, key string, fields *kofv.FieldValues) error {
	ctx := context.Background()
	rk := n.rowKey(table, key)
	pairs := fields.Slice()

	pipe := n.client.TxPipeline()
	pipe.Del(ctx, rk)
	if len(pairs) == 0 {
		pipe.HSet(ctx, rk, "NULL", "NULL")
	} else {
		args := make([]interface{}, 0, len(pairs)*2)
		for _, p := range pairs {
			args = append(args, p[0], p[1])
		}
		pipe.HSet(ctx, rk, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("db: set %s: %w", rk, err)
	}

	payload, err := json.Marshal(notifyPayload{Key: key, Op: kofv.OpSet, Fields: pairs})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel(table), payload).Err()
}

func (n *redisNamespace) Del(table, key string) error {
	ctx := context.Background()
	rk := n.rowKey(table, key)
	if err := n.client.Del(ctx, rk).Err(); err != nil {
		return fmt.Errorf("db: del %s: %w", rk, err)
	}

	payload, err := json.Marshal(notifyPayload{Key: key, Op: kofv.OpDel})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel(table), payload).Err()
}

// Get reads a row's fields in the order Redis reports them for HKEYS,
// which for the small hashes a single table row holds reflects insertion
// order (Redis stores small hashes as a listpack, not a hash table).
func (n *redisNamespace) Get(table, key string) (*kofv.FieldValues, bool, error) {
	ctx := context.Background()
	rk := n.rowKey(table, key)

	exists, err := n.client.Exists(ctx, rk).Result()
	if err != nil {
		return nil, false, fmt.Errorf("db: exists %s: %w", rk, err)
	}
	if exists == 0 {
		return nil, false, nil
	}

	names, err := n.client.HKeys(ctx, rk).Result()
	if err != nil {
		return nil, false, fmt.Errorf("db: hkeys %s: %w", rk, err)
	}
	fv := kofv.NewFieldValues()
	if len(names) == 1 && names[0] == "NULL" {
		return fv, true, nil
	}

	values, err := n.client.HMGet(ctx, rk, names...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("db: hmget %s: %w", rk, err)
	}
	for i, name := range names {
		if s, ok := values[i].(string); ok {
			fv.Set(name, s)
		}
	}
	return fv, true, nil
}

func (n *redisNamespace) Keys(table string) ([]string, error) {
	ctx := context.Background()
	prefix := table + n.ns.Separator()
	pattern := prefix + "*"

	rks, err := n.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("db: keys %s: %w", pattern, err)
	}
	keys := make([]string, 0, len(rks))
	for _, rk := range rks {
		keys = append(keys, strings.TrimPrefix(rk, prefix))
	}
	return keys, nil
}

func (n *redisNamespace) Subscribe(table string) (<-chan kofv.KeyOpFieldValues, func(), error) {
	ctx := context.Background()
	sub := n.client.Subscribe(ctx, n.channel(table))

	out := make(chan kofv.KeyOpFieldValues, 256)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var p notifyPayload
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				continue
			}
			out <- kofv.KeyOpFieldValues{Key: p.Key, Op: p.Op, Fields: kofv.FromSlice(p.Fields)}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
