package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// stubAdapter is an Adapter whose Import returns a canned manifest or error.
type stubAdapter struct {
	id, dataset, url string
	rows             int
	err              error
	gotURL           string
}

func (s *stubAdapter) ID() string          { return s.id }
func (s *stubAdapter) Dataset() string     { return s.dataset }
func (s *stubAdapter) Description() string { return "stub " + s.dataset }
func (s *stubAdapter) DefaultURL() string  { return s.url }
func (s *stubAdapter) License() string     { return "Licence Ouverte 2.0" }
func (s *stubAdapter) Import(_ context.Context, sourceURL, _ string) (*Manifest, error) {
	s.gotURL = sourceURL
	if s.err != nil {
		return nil, s.err
	}
	return &Manifest{ID: s.dataset, Adapter: s.id, Rows: s.rows}, nil
}

func openTestSources(t *testing.T) *SourceDB {
	t.Helper()
	sdb, err := OpenSourceDB(filepath.Join(t.TempDir(), "climmo.db"))
	if err != nil {
		t.Fatalf("OpenSourceDB: %v", err)
	}
	t.Cleanup(func() { sdb.Close() })
	return sdb
}

func TestSeedKeepsOverrides(t *testing.T) {
	sdb := openTestSources(t)

	dvf := &stubAdapter{id: "dvf-fr", dataset: "transactions", url: "https://example.org/dvf.csv.gz"}
	if err := sdb.Seed([]Adapter{dvf}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := sdb.SetURL("dvf-fr", "/srv/dvf/2024.csv"); err != nil {
		t.Fatalf("SetURL: %v", err)
	}

	// A restart seeds again; the override must survive.
	if err := sdb.Seed([]Adapter{dvf}); err != nil {
		t.Fatalf("Seed again: %v", err)
	}
	got, err := sdb.GetURL("dvf-fr")
	if err != nil {
		t.Fatalf("GetURL: %v", err)
	}
	if got != "/srv/dvf/2024.csv" {
		t.Errorf("url = %q, want the override", got)
	}

	sources, err := sdb.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 1 || sources[0].Dataset != "transactions" {
		t.Fatalf("sources = %+v", sources)
	}
	if sources[0].LastCheck != nil {
		t.Error("fresh source should not have a check yet")
	}
}

func TestSetURLUnknownAdapter(t *testing.T) {
	sdb := openTestSources(t)
	if err := sdb.SetURL("nope", "https://example.org"); err == nil {
		t.Fatal("expected error for an adapter that was never seeded")
	}
	if _, err := sdb.GetURL("nope"); err == nil {
		t.Fatal("expected error from GetURL")
	}
}

func TestUpdateCheck(t *testing.T) {
	sdb := openTestSources(t)
	if err := sdb.Seed([]Adapter{&stubAdapter{id: "risques-fr", dataset: "risques", url: "https://example.org/r.csv"}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := sdb.UpdateCheck("risques-fr", 503, "service unavailable"); err != nil {
		t.Fatalf("UpdateCheck: %v", err)
	}
	sources, _ := sdb.ListSources()
	src := sources[0]
	if src.LastStatus == nil || *src.LastStatus != 503 {
		t.Errorf("last_status = %v", src.LastStatus)
	}
	if src.LastError == nil || *src.LastError != "service unavailable" {
		t.Errorf("last_error = %v", src.LastError)
	}

	if err := sdb.UpdateCheck("risques-fr", 200, ""); err != nil {
		t.Fatalf("UpdateCheck: %v", err)
	}
	sources, _ = sdb.ListSources()
	if sources[0].LastError != nil {
		t.Errorf("last_error should be cleared, got %q", *sources[0].LastError)
	}
}

func TestRunLog(t *testing.T) {
	sdb := openTestSources(t)

	okID, err := sdb.StartRun("build")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	failID, err := sdb.StartRun("import:dvf-fr")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := sdb.FinishRun(okID, 42, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := sdb.FinishRun(failID, 0, errors.New("HTTP 404")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	openID, _ := sdb.StartRun("build")

	runs, err := sdb.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != openID || runs[0].Status != StatusRunning || runs[0].FinishedAt != nil {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].Status != StatusFailed || runs[1].Error == nil || *runs[1].Error != "HTTP 404" {
		t.Errorf("failed run = %+v", runs[1])
	}
	if runs[2].Status != StatusOK || runs[2].Rows != 42 || runs[2].FinishedAt == nil {
		t.Errorf("ok run = %+v", runs[2])
	}

	limited, err := sdb.ListRuns(1)
	if err != nil {
		t.Fatalf("ListRuns(1): %v", err)
	}
	if len(limited) != 1 || limited[0].ID != openID {
		t.Errorf("ListRuns(1) = %+v", limited)
	}
}
