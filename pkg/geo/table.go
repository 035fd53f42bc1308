package geo

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// Departement is one row of the reference table.
type Departement struct {
	Code   string `json:"code"`
	Name   string `json:"nom"`
	Region string `json:"region"`
	Zone   string `json:"zone"`
}

// Classification is the result of classifying a raw department code.
// Known is false when the code is not in the reference table, in which case
// Region and Zone carry the table's sentinels.
type Classification struct {
	Input  string `json:"input"`
	Code   string `json:"code"`
	Name   string `json:"nom,omitempty"`
	Region string `json:"region"`
	Zone   string `json:"zone"`
	Known  bool   `json:"known"`
}

// Paris/IDF split labels.
const (
	ParisLabel    = "Paris"
	BanlieueLabel = "Banlieue IDF"
	AutreLabel    = "Autre"
)

// Table is an immutable, loaded reference table.
type Table struct {
	Manifest *Manifest

	deps       map[string]Departement
	regionZone map[string]string
	paris      map[string]string
	byLabel    map[string]string // normalised name -> code
}

// LoadTable reads manifest.yaml and its data file from dir.
func LoadTable(dir string) (*Table, error) {
	return LoadTableFS(os.DirFS(dir), ".")
}

// LoadTableFS reads manifest.yaml and its data file from dir inside fsys.
func LoadTableFS(fsys fs.FS, dir string) (*Table, error) {
	m, err := LoadManifest(fsys, path.Join(dir, "manifest.yaml"))
	if err != nil {
		return nil, err
	}

	t := &Table{
		Manifest:   m,
		deps:       make(map[string]Departement),
		regionZone: make(map[string]string),
		paris:      make(map[string]string),
		byLabel:    make(map[string]string),
	}
	for zone, regions := range m.Zones {
		for _, r := range regions {
			t.regionZone[NormalizeLabel(r)] = zone
		}
	}
	for _, c := range m.Paris.Paris {
		t.paris[NormalizeCode(c)] = ParisLabel
	}
	for _, c := range m.Paris.Banlieue {
		t.paris[NormalizeCode(c)] = BanlieueLabel
	}

	f, err := fsys.Open(path.Join(dir, m.DataFile))
	if err != nil {
		return nil, fmt.Errorf("geo %s: open data file: %w", m.ID, err)
	}
	defer f.Close()

	if err := t.loadCSV(f); err != nil {
		return nil, fmt.Errorf("geo %s: %w", m.ID, err)
	}
	return t, nil
}

func (t *Table) loadCSV(f io.Reader) error {
	reader, err := frame.DecodeReader(f, t.Manifest.Format.Encoding)
	if err != nil {
		return err
	}

	r := csv.NewReader(reader)
	if delim := t.Manifest.Format.Delimiter; delim != "" {
		r.Comma = []rune(delim)[0]
	}
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	codeIdx, nameIdx, regionIdx := 0, 1, 2
	if t.Manifest.Format.HasHeader {
		header, err := r.Read()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		idx := make(map[string]int, len(header))
		for i, h := range header {
			idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
		}
		var ok bool
		if codeIdx, ok = idx[t.Manifest.Format.CodeColumn]; !ok {
			return fmt.Errorf("code column %q not found in header %v", t.Manifest.Format.CodeColumn, header)
		}
		if regionIdx, ok = idx[t.Manifest.Format.RegionColumn]; !ok {
			return fmt.Errorf("region column %q not found in header %v", t.Manifest.Format.RegionColumn, header)
		}
		if nameIdx, ok = idx[t.Manifest.Format.NameColumn]; !ok {
			nameIdx = -1
		}
	}

	var unzoned []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if codeIdx >= len(record) || regionIdx >= len(record) {
			continue
		}
		code := NormalizeCode(record[codeIdx])
		if code == "" {
			continue
		}
		d := Departement{
			Code:   code,
			Region: strings.TrimSpace(record[regionIdx]),
		}
		if nameIdx >= 0 && nameIdx < len(record) {
			d.Name = strings.TrimSpace(record[nameIdx])
		}
		zone, ok := t.regionZone[NormalizeLabel(d.Region)]
		if !ok {
			zone = t.Manifest.Unknown.Zone
			unzoned = append(unzoned, code)
		}
		d.Zone = zone
		t.deps[code] = d
		if d.Name != "" {
			t.byLabel[NormalizeLabel(d.Name)] = code
		}
	}

	if len(unzoned) > 0 {
		slog.Warn("departments whose region has no zone", "table", t.Manifest.ID, "codes", unzoned)
	}
	if len(t.deps) == 0 {
		return fmt.Errorf("no departments in %s", t.Manifest.DataFile)
	}
	return nil
}

// Classify maps a raw department code to its canonical code, name, region
// and zone. It never fails: unknown or blank codes get the sentinels.
func (t *Table) Classify(raw string) Classification {
	code := NormalizeCode(raw)
	if d, ok := t.deps[code]; ok {
		return Classification{Input: raw, Code: code, Name: d.Name, Region: d.Region, Zone: d.Zone, Known: true}
	}
	return Classification{
		Input:  raw,
		Code:   code,
		Region: t.Manifest.Unknown.Region,
		Zone:   t.Manifest.Unknown.Zone,
	}
}

// ZoneOf returns the zone of a region name, or the zone sentinel.
func (t *Table) ZoneOf(region string) string {
	if z, ok := t.regionZone[NormalizeLabel(region)]; ok {
		return z
	}
	return t.Manifest.Unknown.Zone
}

// ParisZone splits departments into Paris, its suburbs and the rest.
func (t *Table) ParisZone(raw string) string {
	if z, ok := t.paris[NormalizeCode(raw)]; ok {
		return z
	}
	return AutreLabel
}

// CodeByName finds a department code from its name, ignoring case and accents.
func (t *Table) CodeByName(name string) (string, bool) {
	c, ok := t.byLabel[NormalizeLabel(name)]
	return c, ok
}

// Departements returns all departments sorted by code.
func (t *Table) Departements() []Departement {
	out := make([]Departement, 0, len(t.deps))
	for _, d := range t.deps {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Regions returns the distinct region names, sorted.
func (t *Table) Regions() []string {
	seen := make(map[string]bool)
	for _, d := range t.deps {
		seen[d.Region] = true
	}
	return sortedKeys(seen)
}

// Zones returns the zone names declared by the manifest, sorted.
func (t *Table) Zones() []string {
	seen := make(map[string]bool, len(t.Manifest.Zones))
	for z := range t.Manifest.Zones {
		seen[z] = true
	}
	return sortedKeys(seen)
}

// Len returns the number of departments.
func (t *Table) Len() int { return len(t.deps) }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
