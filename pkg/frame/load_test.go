package frame

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.gob")
	f, _ := FromColumns([]string{"a", "b"}, [][]string{{"1", ""}, {"x", "y"}})
	if err := SaveGob(path, f); err != nil {
		t.Fatalf("SaveGob: %v", err)
	}
	back, err := LoadGob(path)
	if err != nil {
		t.Fatalf("LoadGob: %v", err)
	}
	if back.Len() != 2 || back.Value(1, "b") != "y" || back.Value(1, "a") != "" {
		t.Errorf("rows = %v %v", back.Row(0), back.Row(1))
	}
}

func TestLoad_PrefersFreshSnapshot(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(csvPath, []byte("a\nfrom-csv\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	snap, _ := FromColumns([]string{"a"}, [][]string{{"from-gob"}})
	if err := SaveGob(SnapshotPath(csvPath), snap); err != nil {
		t.Fatalf("SaveGob: %v", err)
	}

	f, err := Load(csvPath, ReadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.Value(0, "a"); got != "from-gob" {
		t.Errorf("value = %q, want from-gob", got)
	}

	// A newer CSV wins over a stale snapshot.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(csvPath, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	f, err = Load(csvPath, ReadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.Value(0, "a"); got != "from-csv" {
		t.Errorf("value = %q, want from-csv", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), ReadOptions{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestSnapshotPath(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"d/data.csv", "d/data.gob"},
		{"d/full.csv.gz", "d/full.gob"},
		{"d/book.xlsx", ""},
	}
	for _, tt := range tests {
		if got := SnapshotPath(tt.input); got != tt.want {
			t.Errorf("SnapshotPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")
	f, _ := FromColumns([]string{"code_departement", "mean"}, [][]string{{"01", "2A"}, {"1500.5", "3000"}})
	g, _ := FromColumns([]string{"zone"}, [][]string{{"Nord"}})
	if err := WriteXLSX(path, []Sheet{{Name: "prix_departement_global", Frame: f}, {Name: "zones", Frame: g}}); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	back, err := Load(path, ReadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Len() != 2 || back.Value(0, "code_departement") != "01" || back.Value(1, "code_departement") != "2A" {
		t.Errorf("rows = %v %v", back.Row(0), back.Row(1))
	}
	if n := ParseNum(back.Value(0, "mean")); !n.Valid || n.V != 1500.5 {
		t.Errorf("mean = %q", back.Value(0, "mean"))
	}
	zones, err := ReadXLSX(path, "zones", ReadOptions{})
	if err != nil {
		t.Fatalf("ReadXLSX zones: %v", err)
	}
	if zones.Value(0, "zone") != "Nord" {
		t.Errorf("zones = %v", zones.Row(0))
	}
}
