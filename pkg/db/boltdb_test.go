package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/stretchr/testify/require"
)

func newTestBoltDatabase(t *testing.T) *BoltDatabase {
	t.Helper()
	path := filepath.Join(t.TempDir(), "switchorch.db")
	bdb, err := NewBoltDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	return bdb
}

func TestBoltNamespaceSetGet(t *testing.T) {
	bdb := newTestBoltDatabase(t)
	ns := bdb.Namespace(ConfigDB)

	fv := kofv.NewFieldValues()
	fv.Set("vrf_name", "Vrf_red")
	fv.Set("fallback", "false")

	require.NoError(t, ns.Set("VRF", "Vrf_red", fv))

	got, found, err := ns.Get("VRF", "Vrf_red")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][2]string{{"vrf_name", "Vrf_red"}, {"fallback", "false"}}, got.Slice())
}

func TestBoltNamespaceGetMissingIsNotFound(t *testing.T) {
	bdb := newTestBoltDatabase(t)
	ns := bdb.Namespace(ApplDB)

	_, found, err := ns.Get("VRF_TABLE", "nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestBoltNamespaceDel(t *testing.T) {
	bdb := newTestBoltDatabase(t)
	ns := bdb.Namespace(ApplDB)

	fv := kofv.NewFieldValues()
	fv.Set("vni", "100")
	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_red", fv))
	require.NoError(t, ns.Del("VRF_TABLE", "Vrf_red"))

	_, found, err := ns.Get("VRF_TABLE", "Vrf_red")
	require.NoError(t, err)
	require.False(t, found)
}

func TestBoltNamespaceKeys(t *testing.T) {
	bdb := newTestBoltDatabase(t)
	ns := bdb.Namespace(ApplDB)

	fv := kofv.NewFieldValues()
	fv.Set("vni", "100")
	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_red", fv))
	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_blue", fv))

	keys, err := ns.Keys("VRF_TABLE")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Vrf_red", "Vrf_blue"}, keys)
}

func TestBoltNamespaceSubscribeDeliversSetAndDel(t *testing.T) {
	bdb := newTestBoltDatabase(t)
	ns := bdb.Namespace(ApplDB)

	ch, cancel, err := ns.Subscribe("VRF_TABLE")
	require.NoError(t, err)
	defer cancel()

	fv := kofv.NewFieldValues()
	fv.Set("vni", "100")
	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_red", fv))

	select {
	case tuple := <-ch:
		require.Equal(t, "Vrf_red", tuple.Key)
		require.Equal(t, kofv.OpSet, tuple.Op)
		require.Equal(t, [][2]string{{"vni", "100"}}, tuple.Fields.Slice())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SET notification")
	}

	require.NoError(t, ns.Del("VRF_TABLE", "Vrf_red"))

	select {
	case tuple := <-ch:
		require.Equal(t, "Vrf_red", tuple.Key)
		require.Equal(t, kofv.OpDel, tuple.Op)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for DEL notification")
	}
}

func TestBoltNamespacesAreIsolated(t *testing.T) {
	bdb := newTestBoltDatabase(t)
	config := bdb.Namespace(ConfigDB)
	appl := bdb.Namespace(ApplDB)

	fv := kofv.NewFieldValues()
	fv.Set("x", "1")
	require.NoError(t, config.Set("VRF", "Vrf_red", fv))

	_, found, err := appl.Get("VRF", "Vrf_red")
	require.NoError(t, err)
	require.False(t, found, "ApplDB should not see a row written under ConfigDB")
}
