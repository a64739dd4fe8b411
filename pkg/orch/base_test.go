package orch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cuemby/switchorch/pkg/consumer"
	"github.com/cuemby/switchorch/pkg/db"
	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/cuemby/switchorch/pkg/taskstatus"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T, table string) (*consumer.Consumer, db.NamespaceHandle) {
	t.Helper()
	bdb, err := db.NewBoltDatabase(filepath.Join(t.TempDir(), "switchorch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	ns := bdb.Namespace(db.ConfigDB)
	return consumer.New(table, ns), ns
}

func TestSweepResolvesSuccessAndDropsTask(t *testing.T) {
	c, _ := newTestConsumer(t, "VRF_TABLE")
	fv := kofv.NewFieldValues()
	fv.Set("admin_status", "up")
	c.AddOne(kofv.KeyOpFieldValues{Key: "Vrf_red", Op: kofv.OpSet, Fields: fv})

	b := NewBase("vrforch", c)
	b.Sweep(context.Background(), func(ctx context.Context, table string, task consumer.Task) taskstatus.Status {
		require.Equal(t, "VRF_TABLE", table)
		return taskstatus.Success
	})

	require.Equal(t, 0, c.Len())
	require.True(t, b.Idle())
}

func TestSweepLeavesNeedRetryStaged(t *testing.T) {
	c, _ := newTestConsumer(t, "VRF_TABLE")
	c.AddOne(kofv.KeyOpFieldValues{Key: "Vrf_red", Op: kofv.OpSet, Fields: kofv.NewFieldValues()})

	b := NewBase("vrforch", c)
	b.Sweep(context.Background(), func(ctx context.Context, table string, task consumer.Task) taskstatus.Status {
		return taskstatus.NeedRetry
	})

	require.Equal(t, 1, c.Len())
	require.False(t, b.Idle())
}

func TestSweepAcrossMultipleConsumers(t *testing.T) {
	vrf, _ := newTestConsumer(t, "VRF_TABLE")
	route, _ := newTestConsumer(t, "ROUTE_TABLE")
	vrf.AddOne(kofv.KeyOpFieldValues{Key: "Vrf_red", Op: kofv.OpSet, Fields: kofv.NewFieldValues()})
	route.AddOne(kofv.KeyOpFieldValues{Key: "10.0.0.0/24", Op: kofv.OpSet, Fields: kofv.NewFieldValues()})

	var seen []string
	b := NewBase("multi", vrf, route)
	b.Sweep(context.Background(), func(ctx context.Context, table string, task consumer.Task) taskstatus.Status {
		seen = append(seen, table)
		return taskstatus.Success
	})

	require.Equal(t, []string{"VRF_TABLE", "ROUTE_TABLE"}, seen)
}
