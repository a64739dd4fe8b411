package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddLinkIsIdempotent(t *testing.T) {
	l := New()
	require.NoError(t, l.AddLink(context.Background(), "Vrf_red", "vrf", map[string]string{"table": "1001"}))
	require.NoError(t, l.AddLink(context.Background(), "Vrf_red", "vrf", map[string]string{"table": "1002"}))

	table, ok := l.Table("Vrf_red")
	require.True(t, ok)
	require.Equal(t, "1001", table)
}

func TestDelLinkRemovesBinding(t *testing.T) {
	l := New()
	require.NoError(t, l.AddLink(context.Background(), "Vrf_red", "vrf", map[string]string{"table": "1001"}))
	require.NoError(t, l.DelLink(context.Background(), "Vrf_red"))

	exists, err := l.LinkExists(context.Background(), "Vrf_red")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSetMasterEnslaves(t *testing.T) {
	l := New()
	require.NoError(t, l.AddLink(context.Background(), "Vrf_red", "vrf", map[string]string{"table": "1001"}))
	require.NoError(t, l.AddLink(context.Background(), "Ethernet0", "dummy", nil))
	require.NoError(t, l.SetMaster(context.Background(), "Ethernet0", "Vrf_red"))

	require.Equal(t, "Vrf_red", l.Master("Ethernet0"))
}

func TestExistingVRFsReportsVRFTypeLinksOnly(t *testing.T) {
	l := New()
	require.NoError(t, l.AddLink(context.Background(), "Vrf_red", "vrf", map[string]string{"table": "1001"}))
	require.NoError(t, l.AddLink(context.Background(), "Ethernet0", "dummy", nil))

	vrfs, err := l.ExistingVRFs(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]uint32{"Vrf_red": 1001}, vrfs)
}

func TestAddAndDelAddr(t *testing.T) {
	l := New()
	require.NoError(t, l.AddLink(context.Background(), "Ethernet0", "dummy", nil))
	require.NoError(t, l.AddAddr(context.Background(), "Ethernet0", "10.0.0.1/24"))
	require.NoError(t, l.DelAddr(context.Background(), "Ethernet0", "10.0.0.1/24"))
}
