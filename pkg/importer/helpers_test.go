package importer

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/climmo/pkg/frame"
)

func TestDownloadFile(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("code;nom\n75;Paris\n"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "deps.csv")
	if err := downloadFile(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("downloadFile: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "code;nom") {
		t.Errorf("content = %q", data)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want one retry", calls)
	}
}

func TestDownloadFileCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := downloadFile(ctx, ts.URL, filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestFetchLocal(t *testing.T) {
	src := filepath.Join(t.TempDir(), "risques.csv")
	if err := os.WriteFile(src, []byte("a;b\n1;2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, source := range []string{src, "file://" + src} {
		dir := t.TempDir()
		got, err := fetch(context.Background(), source, dir)
		if err != nil {
			t.Fatalf("fetch(%q): %v", source, err)
		}
		if got != filepath.Join(dir, "risques.csv") {
			t.Errorf("fetch(%q) = %q", source, got)
		}
		if _, err := os.Stat(got); err != nil {
			t.Errorf("fetched file missing: %v", err)
		}
	}

	if _, err := fetch(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), t.TempDir()); err == nil {
		t.Fatal("expected error for a missing local source")
	}
}

func TestFetchTableZip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "cog.zip")
	out, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	readme, _ := zw.Create("LISEZMOI.pdf")
	readme.Write([]byte("%PDF"))
	w, _ := zw.Create("v_commune_2024.csv")
	w.Write([]byte("TYPECOM,COM,DEP,LIBELLE\nCOM,75056,75,Paris\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	out.Close()

	f, err := fetchTable(context.Background(), archive, t.TempDir(), frame.ReadOptions{})
	if err != nil {
		t.Fatalf("fetchTable: %v", err)
	}
	if f.Len() != 1 || f.Value(0, "libelle") != "Paris" {
		t.Errorf("frame = %v rows, libelle %q", f.Len(), f.Value(0, "libelle"))
	}
}

func TestFetchTableZipWithoutTable(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "empty.zip")
	out, _ := os.Create(archive)
	zw := zip.NewWriter(out)
	w, _ := zw.Create("notice.pdf")
	w.Write([]byte("%PDF"))
	zw.Close()
	out.Close()

	if _, err := fetchTable(context.Background(), archive, t.TempDir(), frame.ReadOptions{}); err == nil {
		t.Fatal("expected error for an archive without a table")
	}
}

func TestKeepColumns(t *testing.T) {
	f := frame.New("code_postal", "valeur_fonciere", "type_local")
	f.AppendRow("75001", "250000", "Appartement")

	got := keepColumns(f, []string{"type_local", "valeur_fonciere", "surface_reelle_bati"})
	want := []string{"type_local", "valeur_fonciere"}
	if cols := got.Columns(); strings.Join(cols, ",") != strings.Join(want, ",") {
		t.Errorf("columns = %v, want %v", cols, want)
	}
}

func TestWriteDatasetAndManifests(t *testing.T) {
	dataDir := t.TempDir()
	f := frame.New("code_commune", "commune")
	f.AppendRow("75056", "Paris")
	f.AppendRow("13055", "Marseille")

	m, err := writeDataset(dataDir, f, &Manifest{ID: "communes", Adapter: "insee-communes-fr", Source: "INSEE COG"})
	if err != nil {
		t.Fatalf("writeDataset: %v", err)
	}
	if m.Rows != 2 || m.DataFile != DataFile || m.Version == "" || m.ImportedAt.IsZero() {
		t.Errorf("manifest = %+v", m)
	}

	csvPath := DatasetPath(dataDir, "communes")
	for _, p := range []string{csvPath, frame.SnapshotPath(csvPath), filepath.Join(dataDir, "communes", ManifestFile)} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}

	back, err := frame.Load(csvPath, frame.ReadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Len() != 2 || back.Value(1, "commune") != "Marseille" {
		t.Errorf("reloaded frame: %d rows", back.Len())
	}

	// A stray directory without a manifest is ignored.
	os.MkdirAll(filepath.Join(dataDir, "_download"), 0o755)
	list, err := ListManifests(dataDir)
	if err != nil {
		t.Fatalf("ListManifests: %v", err)
	}
	if len(list) != 1 || list[0].Adapter != "insee-communes-fr" || list[0].Rows != 2 {
		t.Fatalf("manifests = %+v", list)
	}
}

func TestListManifestsMissingDir(t *testing.T) {
	list, err := ListManifests(filepath.Join(t.TempDir(), "absent"))
	if err != nil || list != nil {
		t.Fatalf("ListManifests = %v, %v", list, err)
	}
}
