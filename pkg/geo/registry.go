package geo

import (
	"sync"
)

// Registry holds the current reference table and swaps it atomically on
// reload. An empty directory means the embedded table.
type Registry struct {
	mu    sync.RWMutex
	table *Table
	dir   string
}

// NewRegistry creates a registry reading its table from dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// Load reads the reference table. The previous table stays in place if
// loading fails.
func (r *Registry) Load() error {
	var (
		t   *Table
		err error
	)
	if r.dir == "" {
		t = Default()
	} else if t, err = LoadTable(r.dir); err != nil {
		return err
	}

	r.mu.Lock()
	r.table = t
	r.mu.Unlock()
	return nil
}

// Reload re-reads the table from disk (hot reload).
func (r *Registry) Reload() error {
	return r.Load()
}

// Table returns the current table, loading the embedded one if Load was never
// called.
func (r *Registry) Table() *Table {
	r.mu.RLock()
	t := r.table
	r.mu.RUnlock()
	if t == nil {
		return Default()
	}
	return t
}

// Classify classifies a raw department code against the current table.
func (r *Registry) Classify(raw string) Classification {
	return r.Table().Classify(raw)
}

// Version returns "<id>@<version>" of the current table.
func (r *Registry) Version() string {
	m := r.Table().Manifest
	return m.ID + "@" + m.Version
}
