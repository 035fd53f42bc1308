package geo

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTable(t *testing.T, dir, version, data string) {
	t.Helper()
	manifest := `id: geo-test
version: "` + version + `"
source: test
data_file: deps.csv
format:
  delimiter: ","
  has_header: true
  code_column: code
  name_column: nom
  region_column: region
zones:
  Nord: [Normandie]
  Sud: [Corse]
unknown:
  region: inconnue
  zone: hors-zone
`
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "deps.csv"), []byte(data), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
}

func TestRegistry_EmbeddedByDefault(t *testing.T) {
	reg := NewRegistry("")
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reg.Classify("2A").Region; got != "Corse" {
		t.Errorf("Region = %q, want Corse", got)
	}
	if reg.Version() != "geo-fr@2024-01" {
		t.Errorf("Version = %q", reg.Version())
	}
}

func TestRegistry_DirectoryAndReload(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "1", "code,nom,region\n14,Calvados,Normandie\n2A,Corse-du-Sud,Corse\n")

	reg := NewRegistry(dir)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := reg.Classify("14")
	if c.Zone != "Nord" || c.Name != "Calvados" {
		t.Errorf("Classify(14) = %+v", c)
	}
	if c := reg.Classify("75"); c.Known || c.Region != "inconnue" || c.Zone != "hors-zone" {
		t.Errorf("Classify(75) = %+v, want custom sentinels", c)
	}

	writeTable(t, dir, "2", "code,nom,region\n14,Calvados,Normandie\n75,Paris,Île-de-France\n")
	if err := reg.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if reg.Version() != "geo-test@2" {
		t.Errorf("Version = %q, want geo-test@2", reg.Version())
	}
	c = reg.Classify("75")
	if !c.Known || c.Zone != "hors-zone" {
		t.Errorf("Classify(75) after reload = %+v, want known with unzoned region", c)
	}
}

func TestRegistry_FailedReloadKeepsTable(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "1", "code,nom,region\n14,Calvados,Normandie\n")

	reg := NewRegistry(dir)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	os.Remove(filepath.Join(dir, "deps.csv"))
	if err := reg.Reload(); err == nil {
		t.Fatal("Reload should fail without data file")
	}
	if !reg.Classify("14").Known {
		t.Error("previous table should still be served")
	}
}

func TestLoadTable_MissingCodeColumn(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "1", "dep,nom,region\n14,Calvados,Normandie\n")
	if _, err := LoadTable(dir); err == nil {
		t.Fatal("expected error for missing code column")
	}
}
