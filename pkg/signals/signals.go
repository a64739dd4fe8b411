// Package signals wires switchorchd's process signal handling, grounded
// on cmd/warren/main.go's inline signal.Notify/select pattern but
// generalized into a reusable handler. SIGHUP rotates the recorder
// journal and dumps HAL state to disk — the debug-dump convention
// orchagent's own SIGHUP handler follows — while SIGINT/SIGTERM request
// a graceful shutdown of the select loop.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/switchorch/pkg/hal"
	"github.com/cuemby/switchorch/pkg/log"
	"github.com/cuemby/switchorch/pkg/recorder"
)

// Handler reacts to SIGHUP by rotating the recorder journal and dumping
// HAL state, and reports SIGINT/SIGTERM/context cancellation as a
// request to shut down.
type Handler struct {
	recorder *recorder.Recorder
	hal      hal.Client
	dumpPath string
}

// New returns a signal handler. rec may be nil if recording is disabled;
// dumpPath may be empty to skip the SIGHUP state dump.
func New(rec *recorder.Recorder, client hal.Client, dumpPath string) *Handler {
	return &Handler{recorder: rec, hal: client, dumpPath: dumpPath}
}

// Wait blocks until SIGINT or SIGTERM arrives, or ctx is done, handling
// any number of SIGHUP signals along the way without returning for them.
func (h *Handler) Wait(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				h.rotate()
				continue
			}
			return
		}
	}
}

// rotate performs SIGHUP's two actions: rotate the recorder journal (a
// no-op if recording is disabled) and dump HAL state to dumpPath (a
// no-op if dumpPath is empty).
func (h *Handler) rotate() {
	if h.recorder != nil {
		if err := h.recorder.Rotate(); err != nil {
			log.WithComponent("signals").Error().Err(err).Msg("recorder rotate failed")
		}
	}
	if h.hal == nil || h.dumpPath == "" {
		return
	}
	if err := h.dump(); err != nil {
		log.WithComponent("signals").Error().Err(err).Msg("hal state dump failed")
	}
}

func (h *Handler) dump() error {
	f, err := os.Create(h.dumpPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return h.hal.Dump(f)
}
