package geo

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// Manifest describes a versioned geographic reference table: where it comes
// from, how its data file is laid out and how regions fold into zones.
type Manifest struct {
	ID        string              `yaml:"id" json:"id"`
	Version   string              `yaml:"version" json:"version"`
	Source    string              `yaml:"source" json:"source"`
	SourceURL string              `yaml:"source_url" json:"source_url,omitempty"`
	License   string              `yaml:"license" json:"license"`
	DataFile  string              `yaml:"data_file" json:"data_file"`
	Format    FormatSpec          `yaml:"format" json:"-"`
	Zones     map[string][]string `yaml:"zones" json:"zones"`
	Paris     ParisSpec           `yaml:"paris" json:"-"`
	Unknown   Sentinels           `yaml:"unknown" json:"unknown"`
}

// FormatSpec describes the CSV layout of the departments file.
type FormatSpec struct {
	Delimiter    string `yaml:"delimiter"`
	Encoding     string `yaml:"encoding"`
	HasHeader    bool   `yaml:"has_header"`
	CodeColumn   string `yaml:"code_column"`
	NameColumn   string `yaml:"name_column"`
	RegionColumn string `yaml:"region_column"`
}

// ParisSpec lists the department codes of Paris proper and its inner/outer ring.
type ParisSpec struct {
	Paris    []string `yaml:"paris"`
	Banlieue []string `yaml:"banlieue"`
}

// Sentinels are the labels returned for codes the table does not know.
type Sentinels struct {
	Region string `yaml:"region" json:"region"`
	Zone   string `yaml:"zone" json:"zone"`
}

const (
	defaultUnknownRegion = "Région inconnue"
	defaultUnknownZone   = "Zone inconnue"
)

// LoadManifest reads and parses manifest.yaml from fsys.
func LoadManifest(fsys fs.FS, path string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest %s: missing id", path)
	}
	if m.DataFile == "" {
		m.DataFile = "departements.csv"
	}
	if m.Format.CodeColumn == "" {
		m.Format.CodeColumn = "code"
	}
	if m.Format.NameColumn == "" {
		m.Format.NameColumn = "nom"
	}
	if m.Format.RegionColumn == "" {
		m.Format.RegionColumn = "region"
	}
	if m.Unknown.Region == "" {
		m.Unknown.Region = defaultUnknownRegion
	}
	if m.Unknown.Zone == "" {
		m.Unknown.Zone = defaultUnknownZone
	}
	return &m, nil
}
