package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Adapter fetches one public source and stores it as a dataset: a UTF-8 CSV
// with normalised column names, its gob snapshot and a manifest.
type Adapter interface {
	// ID returns the unique identifier of this adapter (e.g. "dvf-fr").
	ID() string
	// Dataset returns the dataset it produces (e.g. "transactions").
	Dataset() string
	// Description returns a human-readable description.
	Description() string
	// DefaultURL returns the default source URL used for seeding the database.
	DefaultURL() string
	// License returns the license of the source (e.g. "Licence Ouverte 2.0").
	License() string
	// Import fetches sourceURL (http(s), file:// or a local path) and writes
	// the dataset into a subdirectory of outputDir named after Dataset().
	Import(ctx context.Context, sourceURL, outputDir string) (*Manifest, error)
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// Register adds an adapter to the global registry. Registering the same ID
// twice panics.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := adapters[a.ID()]; dup {
		panic("importer: Register called twice for adapter " + a.ID())
	}
	adapters[a.ID()] = a
}

// Get returns a registered adapter by ID, or an error if not found.
func Get(id string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[id]
	if !ok {
		return nil, fmt.Errorf("unknown import source: %q", id)
	}
	return a, nil
}

// ForDataset returns the adapters producing dataset, sorted by ID.
func ForDataset(dataset string) []Adapter {
	var out []Adapter
	for _, a := range All() {
		if a.Dataset() == dataset {
			out = append(out, a)
		}
	}
	return out
}

// All returns all registered adapters sorted by ID.
func All() []Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
