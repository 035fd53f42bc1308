package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// Data and manifest file names inside a dataset directory.
const (
	DataFile     = "data.csv"
	ManifestFile = "manifest.yaml"
)

// Manifest describes an imported dataset.
type Manifest struct {
	ID         string    `yaml:"id" json:"id"`
	Adapter    string    `yaml:"adapter" json:"adapter"`
	Version    string    `yaml:"version" json:"version"`
	Source     string    `yaml:"source" json:"source"`
	SourceURL  string    `yaml:"source_url" json:"source_url"`
	License    string    `yaml:"license" json:"license"`
	DataFile   string    `yaml:"data_file" json:"data_file"`
	Rows       int       `yaml:"rows" json:"rows"`
	Columns    []string  `yaml:"columns" json:"columns"`
	ImportedAt time.Time `yaml:"imported_at" json:"imported_at"`
}

// DatasetPath returns the data file of a dataset under dataDir.
func DatasetPath(dataDir, dataset string) string {
	return filepath.Join(dataDir, dataset, DataFile)
}

// writeDataset stores f as dataDir/<m.ID>/data.csv with its gob snapshot
// and manifest. Rows, Columns, DataFile and ImportedAt are filled in.
func writeDataset(dataDir string, f *frame.Frame, m *Manifest) (*Manifest, error) {
	dir := filepath.Join(dataDir, m.ID)
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	csvPath := filepath.Join(dir, DataFile)
	if err := frame.WriteCSVFile(csvPath, f); err != nil {
		return nil, err
	}
	if err := frame.SaveGob(frame.SnapshotPath(csvPath), f); err != nil {
		return nil, fmt.Errorf("save gob: %w", err)
	}

	m.DataFile = DataFile
	m.Rows = f.Len()
	m.Columns = f.Columns()
	m.ImportedAt = time.Now().UTC().Truncate(time.Second)
	if m.Version == "" {
		m.Version = m.ImportedAt.Format("2006-01")
	}
	if err := writeManifest(dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

// writeManifest writes a Manifest as YAML to dir/manifest.yaml.
func writeManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

// LoadManifest reads dir/manifest.yaml.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", dir, err)
	}
	return &m, nil
}

// ListManifests returns the manifests of every dataset directory under
// dataDir, skipping directories without one.
func ListManifests(dataDir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := LoadManifest(filepath.Join(dataDir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
