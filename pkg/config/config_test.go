package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/switchorch/pkg/db"
	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T) (*Loader, db.NamespaceHandle) {
	t.Helper()
	bdb, err := db.NewBoltDatabase(filepath.Join(t.TempDir(), "switchorch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })

	cfg := bdb.Namespace(db.ConfigDB)
	return NewLoader(cfg), cfg
}

func TestDefaultsWithNoConfigRows(t *testing.T) {
	l, _ := newTestLoader(t)

	require.Equal(t, time.Second, l.SelectLoopTimeout())
	require.Equal(t, 1000, l.MaxBulkSize())
	require.Equal(t, "info", l.LogLevel())
	require.False(t, l.RecorderEnabled())
	require.Equal(t, "", l.RecorderPath())
	require.False(t, l.WarmRestartEnabled("vrforch"))
	require.Equal(t, 5*time.Second, l.WarmRestartTimer("vrforch"))
}

func TestDaemonRowOverridesDefaults(t *testing.T) {
	l, cfg := newTestLoader(t)

	fv := kofv.NewFieldValues()
	fv.Set("select_loop_timeout_ms", "500")
	fv.Set("max_bulk_size", "250")
	fv.Set("log_level", "debug")
	fv.Set("recorder_enable", "true")
	fv.Set("recorder_path", "/var/log/switchorch.rec")
	require.NoError(t, cfg.Set(DaemonTable, daemonKey, fv))

	require.Equal(t, 500*time.Millisecond, l.SelectLoopTimeout())
	require.Equal(t, 250, l.MaxBulkSize())
	require.Equal(t, "debug", l.LogLevel())
	require.True(t, l.RecorderEnabled())
	require.Equal(t, "/var/log/switchorch.rec", l.RecorderPath())
}

func TestMalformedDaemonFieldsFallBackToDefaults(t *testing.T) {
	l, cfg := newTestLoader(t)

	fv := kofv.NewFieldValues()
	fv.Set("select_loop_timeout_ms", "not-a-number")
	fv.Set("max_bulk_size", "-5")
	require.NoError(t, cfg.Set(DaemonTable, daemonKey, fv))

	require.Equal(t, time.Second, l.SelectLoopTimeout())
	require.Equal(t, 1000, l.MaxBulkSize())
}

func TestWarmRestartEnabledAndTimerPerModule(t *testing.T) {
	l, cfg := newTestLoader(t)

	fv := kofv.NewFieldValues()
	fv.Set("enable", "true")
	fv.Set("vrforch_timer", "30")
	require.NoError(t, cfg.Set(WarmRestartTable, "vrforch", fv))

	require.True(t, l.WarmRestartEnabled("vrforch"))
	require.Equal(t, 30*time.Second, l.WarmRestartTimer("vrforch"))

	require.False(t, l.WarmRestartEnabled("bulkrouteorch"))
	require.Equal(t, 5*time.Second, l.WarmRestartTimer("bulkrouteorch"))
}

func TestWarmRestartTimerOutOfRangeFallsBackToDefault(t *testing.T) {
	l, cfg := newTestLoader(t)

	fv := kofv.NewFieldValues()
	fv.Set("enable", "true")
	fv.Set("vrforch_timer", "99999")
	require.NoError(t, cfg.Set(WarmRestartTable, "vrforch", fv))

	require.Equal(t, 5*time.Second, l.WarmRestartTimer("vrforch"))
}
