// Package directory implements the service directory every package that
// needs a shared collaborator (a HAL client, a CRM registry, a warm-restart
// registry, a recorder) looks up by name, instead of reaching into a web of
// pointers passed down through constructors or ambient package-level
// globals. It is deliberately untyped at the registration boundary — each
// caller knows the concrete type it put in and the concrete type it
// expects back, the same contract swss-common's gDirectory has always had
// with its consumers.
package directory

import "fmt"

// Well-known keys for the collaborators switchorchd registers during
// startup wiring, before any Orch's DoTask runs.
const (
	KeyDatabase    = "database"
	KeyHAL         = "hal"
	KeyRefCRM      = "refcrm"
	KeyWarmRestart = "warmrestart"
	KeyPublisher   = "publisher"
	KeyRecorder    = "recorder"
)

// Directory is a name-keyed registry of process-wide collaborators,
// populated once during startup wiring and read thereafter. It carries no
// locking: switchorch's daemon wires everything before starting its single
// select loop, and nothing mutates the directory after that point.
type Directory struct {
	entries map[string]interface{}
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{entries: make(map[string]interface{})}
}

// Set registers a collaborator under name, overwriting any prior entry.
func (d *Directory) Set(name string, value interface{}) {
	d.entries[name] = value
}

// Get returns the collaborator registered under name, or nil if none was set.
func (d *Directory) Get(name string) interface{} {
	return d.entries[name]
}

// MustGet returns the collaborator registered under name, panicking if it
// was never set. It is meant for use during startup wiring, after which a
// missing dependency is a programming error, not a runtime condition.
func (d *Directory) MustGet(name string) interface{} {
	v, ok := d.entries[name]
	if !ok {
		panic(fmt.Sprintf("directory: no entry registered for %q", name))
	}
	return v
}

// Has reports whether name has a registered entry.
func (d *Directory) Has(name string) bool {
	_, ok := d.entries[name]
	return ok
}
