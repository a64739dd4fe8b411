package db

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisDatabase(t *testing.T) *RedisDatabase {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDatabaseFromClient(client)
}

func TestRedisNamespaceSetGetPreservesFieldOrder(t *testing.T) {
	rdb := newTestRedisDatabase(t)
	ns := rdb.Namespace(ApplDB)

	fv := kofv.NewFieldValues()
	fv.Set("vni", "100")
	fv.Set("admin_status", "up")
	fv.Set("mtu", "9100")

	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_red", fv))

	got, found, err := ns.Get("VRF_TABLE", "Vrf_red")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, fv.Slice(), got.Slice())
}

func TestRedisNamespaceSetWithNoFieldsWritesNullSentinel(t *testing.T) {
	rdb := newTestRedisDatabase(t)
	ns := rdb.Namespace(ApplDB)

	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_red", kofv.NewFieldValues()))

	got, found, err := ns.Get("VRF_TABLE", "Vrf_red")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, got.Slice())
}

func TestRedisNamespaceDel(t *testing.T) {
	rdb := newTestRedisDatabase(t)
	ns := rdb.Namespace(ApplDB)

	fv := kofv.NewFieldValues()
	fv.Set("vni", "100")
	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_red", fv))
	require.NoError(t, ns.Del("VRF_TABLE", "Vrf_red"))

	_, found, err := ns.Get("VRF_TABLE", "Vrf_red")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisNamespaceKeysTrimsTablePrefix(t *testing.T) {
	rdb := newTestRedisDatabase(t)
	ns := rdb.Namespace(ConfigDB)

	fv := kofv.NewFieldValues()
	fv.Set("x", "1")
	require.NoError(t, ns.Set("VRF", "Vrf_red", fv))
	require.NoError(t, ns.Set("VRF", "Vrf_blue", fv))

	keys, err := ns.Keys("VRF")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Vrf_red", "Vrf_blue"}, keys)
}

func TestRedisNamespaceSubscribeDeliversNotification(t *testing.T) {
	rdb := newTestRedisDatabase(t)
	ns := rdb.Namespace(ApplDB)

	ch, cancel, err := ns.Subscribe("VRF_TABLE")
	require.NoError(t, err)
	defer cancel()

	// Give the subscription goroutine a moment to register with miniredis
	// before publishing, since Subscribe here is asynchronous.
	time.Sleep(10 * time.Millisecond)

	fv := kofv.NewFieldValues()
	fv.Set("vni", "100")
	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_red", fv))

	select {
	case tuple := <-ch:
		require.Equal(t, "Vrf_red", tuple.Key)
		require.Equal(t, kofv.OpSet, tuple.Op)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SET notification")
	}
}
