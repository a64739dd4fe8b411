// Package config reads switchorchd's process knobs out of CONFIG_DB at
// startup, grounded on warm_restart.cpp's checkWarmStart/getWarmStartTimer
// (a config-table hget with a parsed, range-checked fallback default) and
// on cmd/warren/main.go's flag defaults, redirected here to database reads
// per spec.md §6 rather than environment variables or CLI flags.
package config

import (
	"strconv"
	"time"

	"github.com/cuemby/switchorch/pkg/db"
)

// DaemonTable holds the single "daemon" row of process-wide knobs.
const DaemonTable = "SWITCHORCH_DAEMON_TABLE"

// WarmRestartTable holds one row per module, matching CFG_WARM_RESTART_TABLE_NAME:
// an "enable" field and a "<module>_timer" field, both read the way
// warm_restart.cpp's checkWarmStart/getWarmStartTimer do.
const WarmRestartTable = "WARM_RESTART"

const daemonKey = "daemon"

const (
	defaultSelectLoopTimeout = time.Second
	defaultMaxBulkSize       = 1000
	defaultLogLevel          = "info"
	defaultWarmRestartTimer  = 5 * time.Second
	maxWarmRestartTimer      = 9999
)

// Loader wraps CONFIG_DB reads with typed accessors and defaults, so a
// missing or malformed row never blocks startup.
type Loader struct {
	cfg db.NamespaceHandle
}

// NewLoader returns a loader reading from cfg, a CONFIG_DB handle.
func NewLoader(cfg db.NamespaceHandle) *Loader {
	return &Loader{cfg: cfg}
}

func (l *Loader) daemonField(name string) (string, bool) {
	fv, found, err := l.cfg.Get(DaemonTable, daemonKey)
	if err != nil || !found {
		return "", false
	}
	return fv.Get(name)
}

// SelectLoopTimeout returns how long the engine's select loop waits
// before an unconditional sweep, defaulting to one second.
func (l *Loader) SelectLoopTimeout() time.Duration {
	v, ok := l.daemonField("select_loop_timeout_ms")
	if !ok {
		return defaultSelectLoopTimeout
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return defaultSelectLoopTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// MaxBulkSize returns the chunk size a Bulker's Flush issues bulk HAL
// calls in, defaulting to 1000.
func (l *Loader) MaxBulkSize() int {
	v, ok := l.daemonField("max_bulk_size")
	if !ok {
		return defaultMaxBulkSize
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultMaxBulkSize
	}
	return n
}

// LogLevel returns the configured zerolog level name, defaulting to "info".
func (l *Loader) LogLevel() string {
	v, ok := l.daemonField("log_level")
	if !ok || v == "" {
		return defaultLogLevel
	}
	return v
}

// RecorderEnabled reports whether the recorder journal should be opened.
func (l *Loader) RecorderEnabled() bool {
	v, ok := l.daemonField("recorder_enable")
	return ok && v == "true"
}

// RecorderPath returns the journal file path to open when RecorderEnabled
// is true.
func (l *Loader) RecorderPath() string {
	v, _ := l.daemonField("recorder_path")
	return v
}

// DumpPath returns the file path a SIGHUP-triggered HAL state dump is
// written to, empty to disable the dump.
func (l *Loader) DumpPath() string {
	v, _ := l.daemonField("dump_path")
	return v
}

func (l *Loader) warmRestartField(module, name string) (string, bool) {
	fv, found, err := l.cfg.Get(WarmRestartTable, module)
	if err != nil || !found {
		return "", false
	}
	return fv.Get(name)
}

// WarmRestartEnabled reports whether module should attempt a warm
// restart, per CFG_WARM_RESTART_TABLE_NAME's per-module "enable" field.
func (l *Loader) WarmRestartEnabled(module string) bool {
	v, ok := l.warmRestartField(module, "enable")
	return ok && v == "true"
}

// WarmRestartTimer returns module's configured reconciliation timer,
// falling back to a 5 second default for a missing, zero, or
// out-of-range value, matching getWarmStartTimer's validation.
func (l *Loader) WarmRestartTimer(module string) time.Duration {
	v, ok := l.warmRestartField(module, module+"_timer")
	if !ok {
		return defaultWarmRestartTimer
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 || seconds > maxWarmRestartTimer {
		return defaultWarmRestartTimer
	}
	return time.Duration(seconds) * time.Second
}
