package signals

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/cuemby/switchorch/pkg/hal/fake"
	"github.com/cuemby/switchorch/pkg/recorder"
	"github.com/stretchr/testify/require"
)

func TestSIGHUPRotatesRecorderAndDumpsHAL(t *testing.T) {
	dir := t.TempDir()
	recPath := filepath.Join(dir, "journal.rec")
	dumpPath := filepath.Join(dir, "dump.txt")

	rec, err := recorder.New(recPath, "test")
	require.NoError(t, err)
	defer rec.Close()

	client := fake.New()
	_, _, err = client.Create(context.Background(), "VRF", "Vrf_red", nil)
	require.NoError(t, err)

	h := New(rec, client, dumpPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.Wait(ctx)
		close(done)
	}()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))

	require.Eventually(t, func() bool {
		_, err := os.Stat(dumpPath)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(dumpPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "Vrf_red")

	cancel()
	<-done
}

func TestSIGTERMReturnsFromWait(t *testing.T) {
	h := New(nil, nil, "")

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		h.Wait(ctx)
		close(done)
	}()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after SIGTERM")
	}
}

func TestContextCancellationReturnsFromWait(t *testing.T) {
	h := New(nil, nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Wait(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}
