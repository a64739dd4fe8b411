// Package recorder implements switchorch's append-only journal files,
// grounded on swss-common's lib/recorder.cpp RecWriter: every line is
// prefixed with a timestamp, the file is opened in append mode, and a log
// rotation leaves the path unchanged (so logrotate can move the old file
// aside and this process starts writing a fresh one under the same name
// after Rotate runs).
package recorder

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/cuemby/switchorch/pkg/log"
	"github.com/cuemby/switchorch/pkg/metrics"
)

// Line is one journal entry: a header string identifying what mutated,
// followed by the field/value pairs that mutation carried.
type Line struct {
	Table  string
	Key    string
	Op     kofv.Op
	Fields *kofv.FieldValues
}

// Recorder appends lines to a single journal file.
type Recorder struct {
	mu      sync.Mutex
	path    string
	journal string
	f       *os.File
}

// New opens path in append mode, creating it if necessary, and returns a
// Recorder that labels its metrics under journal.
func New(path, journal string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}
	r := &Recorder{path: path, journal: journal, f: f}
	if _, err := fmt.Fprintf(f, "%s|recording started\n", timestamp()); err != nil {
		log.WithComponent("recorder").Warn().Err(err).Str("journal", journal).Msg("failed to write recorder start marker")
	}
	return r, nil
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02.15:04:05.000000")
}

// Record appends one line built from header and fields, in the
// "<timestamp>|<header>|field:value|field:value" shape RecWriter::record
// writes.
func (r *Recorder) Record(line Line) {
	r.mu.Lock()
	defer r.mu.Unlock()

	header := line.Table + ":" + line.Key + "|" + string(line.Op)
	s := timestamp() + "|" + header
	for _, kv := range line.Fields.Slice() {
		s += "|" + kv[0] + ":" + kv[1]
	}

	if _, err := fmt.Fprintln(r.f, s); err != nil {
		log.WithComponent("recorder").Error().Err(err).Str("journal", r.journal).Msg("failed to append recorder line")
		return
	}
	metrics.RecorderWritesTotal.WithLabelValues(r.journal).Inc()
}

// Rotate closes and reopens the journal at the same path, the action a
// SIGHUP-driven log rotation takes: logrotate has already moved the old
// file aside, and this call starts a fresh one under the original name.
func (r *Recorder) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.f.Close(); err != nil {
		return fmt.Errorf("recorder: close %s for rotate: %w", r.path, err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("recorder: reopen %s after rotate: %w", r.path, err)
	}
	r.f = f
	return nil
}

// Close closes the underlying journal file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
