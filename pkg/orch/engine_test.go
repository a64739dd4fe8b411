package orch

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/switchorch/pkg/consumer"
	"github.com/cuemby/switchorch/pkg/db"
	"github.com/cuemby/switchorch/pkg/hal/fake"
	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/cuemby/switchorch/pkg/taskstatus"
	"github.com/stretchr/testify/require"
)

type countingOrch struct {
	Base
	sweeps  int32
	handler Handler
}

func (o *countingOrch) DoTask(ctx context.Context) {
	atomic.AddInt32(&o.sweeps, 1)
	o.Sweep(ctx, o.handler)
}

func newBoltNS(t *testing.T) db.NamespaceHandle {
	t.Helper()
	bdb, err := db.NewBoltDatabase(filepath.Join(t.TempDir(), "switchorch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	return bdb.Namespace(db.ConfigDB)
}

func TestEngineRunSweepsOnNotification(t *testing.T) {
	ns := newBoltNS(t)
	c := consumer.New("VRF_TABLE", ns)

	var handled int32
	o := &countingOrch{
		Base: NewBase("vrforch", c),
		handler: func(ctx context.Context, table string, task consumer.Task) taskstatus.Status {
			atomic.AddInt32(&handled, 1)
			return taskstatus.Success
		},
	}

	e := NewEngine(fake.New())
	require.NoError(t, e.Register(o, c))

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	defer func() {
		cancel()
		e.Stop()
	}()

	fv := kofv.NewFieldValues()
	fv.Set("admin_status", "up")
	require.NoError(t, ns.Set("VRF_TABLE", "Vrf_red", fv))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&handled) == 1
	}, time.Second, 5*time.Millisecond)
	require.True(t, o.Idle())
}

func TestEngineIdleReflectsAllOrchs(t *testing.T) {
	ns := newBoltNS(t)
	c := consumer.New("VRF_TABLE", ns)
	c.AddOne(kofv.KeyOpFieldValues{Key: "Vrf_red", Op: kofv.OpSet, Fields: kofv.NewFieldValues()})

	o := &countingOrch{
		Base:    NewBase("vrforch", c),
		handler: func(ctx context.Context, table string, task consumer.Task) taskstatus.Status { return taskstatus.NeedRetry },
	}

	e := NewEngine(fake.New())
	require.NoError(t, e.Register(o, c))
	require.False(t, e.Idle())
}

func TestEngineBakeRunsRegisteredBakers(t *testing.T) {
	ns := newBoltNS(t)
	c := consumer.New("VRF_TABLE", ns)

	baked := false
	o := &bakingOrch{
		countingOrch: countingOrch{
			Base:    NewBase("vrforch", c),
			handler: func(ctx context.Context, table string, task consumer.Task) taskstatus.Status { return taskstatus.Success },
		},
		bake: func(ctx context.Context) error {
			baked = true
			return nil
		},
	}

	e := NewEngine(fake.New())
	require.NoError(t, e.Register(o, c))
	require.NoError(t, e.Bake(context.Background()))
	require.True(t, baked)
}

type bakingOrch struct {
	countingOrch
	bake func(ctx context.Context) error
}

func (o *bakingOrch) Bake(ctx context.Context) error {
	return o.bake(ctx)
}

type replayingOrch struct {
	countingOrch
	remaining int32
}

func (o *replayingOrch) ReplayRemaining() int {
	return int(atomic.LoadInt32(&o.remaining))
}

func TestEngineReplayCompleteReflectsReplayer(t *testing.T) {
	ns := newBoltNS(t)
	c := consumer.New("VRF_TABLE", ns)

	o := &replayingOrch{
		countingOrch: countingOrch{Base: NewBase("vrforch", c)},
		remaining:    1,
	}

	e := NewEngine(fake.New())
	require.NoError(t, e.Register(o, c))

	require.False(t, e.ReplayComplete("vrforch"))
	atomic.StoreInt32(&o.remaining, 0)
	require.True(t, e.ReplayComplete("vrforch"))
}

func TestEngineReplayCompleteTrueForNonReplayer(t *testing.T) {
	ns := newBoltNS(t)
	c := consumer.New("VRF_TABLE", ns)
	o := &countingOrch{Base: NewBase("vrforch", c)}

	e := NewEngine(fake.New())
	require.NoError(t, e.Register(o, c))

	require.True(t, e.ReplayComplete("vrforch"))
}

func TestEngineAfterFirstTickFiresOnceOnFirstTimeoutSweep(t *testing.T) {
	ns := newBoltNS(t)
	c := consumer.New("VRF_TABLE", ns)
	o := &countingOrch{
		Base:    NewBase("vrforch", c),
		handler: func(ctx context.Context, table string, task consumer.Task) taskstatus.Status { return taskstatus.Success },
	}

	e := NewEngine(fake.New())
	require.NoError(t, e.Register(o, c))

	var fired int32
	e.AfterFirstTick(func() { atomic.AddInt32(&fired, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	defer func() {
		cancel()
		e.Stop()
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, 3*time.Second, 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestEngineWarmRestoreSyncUpSweepsThreeTimes(t *testing.T) {
	ns := newBoltNS(t)
	c := consumer.New("VRF_TABLE", ns)

	o := &countingOrch{
		Base:    NewBase("vrforch", c),
		handler: func(ctx context.Context, table string, task consumer.Task) taskstatus.Status { return taskstatus.Success },
	}

	e := NewEngine(fake.New())
	require.NoError(t, e.Register(o, c))
	require.NoError(t, e.WarmRestoreSyncUp(context.Background()))
	require.Equal(t, int32(3), atomic.LoadInt32(&o.sweeps))
}
