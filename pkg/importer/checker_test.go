package importer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/no-head.zip":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if r.Header.Get("Range") != "bytes=0-0" {
				t.Errorf("fallback GET without range: %q", r.Header.Get("Range"))
			}
			w.WriteHeader(http.StatusPartialContent)
		case "/dvf.csv.gz":
			w.WriteHeader(http.StatusOK)
		case "/moved.csv":
			w.Header().Set("Location", "/elsewhere.csv")
			w.WriteHeader(http.StatusMovedPermanently)
		case "/broken.csv":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sdb := openTestSources(t)
	seed := []Adapter{
		&stubAdapter{id: "dvf-fr", dataset: "transactions", url: srv.URL + "/dvf.csv.gz"},
		&stubAdapter{id: "moved", dataset: "moved", url: srv.URL + "/moved.csv"},
		&stubAdapter{id: "broken", dataset: "broken", url: srv.URL + "/broken.csv"},
		&stubAdapter{id: "gone", dataset: "gone", url: srv.URL + "/gone.csv"},
		&stubAdapter{id: "dead", dataset: "dead", url: "http://127.0.0.1:1/x.csv"},
		&stubAdapter{id: "local", dataset: "local", url: "/srv/data/risques.csv"},
		&stubAdapter{id: "no-head", dataset: "communes", url: srv.URL + "/no-head.zip"},
	}
	if err := sdb.Seed(seed); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sum := NewChecker(sdb, logger, time.Hour).CheckAll(context.Background())
	if sum.OK != 3 || sum.Failed != 3 || sum.Skipped != 1 {
		t.Errorf("summary = %+v", sum)
	}

	sources, err := sdb.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	byID := make(map[string]Source)
	for _, s := range sources {
		byID[s.AdapterID] = s
	}

	tests := []struct {
		id     string
		status int
		hasErr bool
	}{
		{"dvf-fr", 200, false},
		{"moved", 301, false},
		{"broken", 500, false},
		{"gone", 404, false},
		{"dead", 0, true},
		{"no-head", 206, false},
	}
	for _, tt := range tests {
		src := byID[tt.id]
		if src.LastStatus == nil || *src.LastStatus != tt.status {
			t.Errorf("%s: status = %v, want %d", tt.id, src.LastStatus, tt.status)
		}
		if got := src.LastError != nil && *src.LastError != ""; got != tt.hasErr {
			t.Errorf("%s: has error = %v, want %v", tt.id, got, tt.hasErr)
		}
	}
	if byID["local"].LastCheck != nil {
		t.Error("local source should not be checked over HTTP")
	}
}

func TestCheckAllEmpty(t *testing.T) {
	sdb := openTestSources(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if sum := NewChecker(sdb, logger, time.Hour).CheckAll(context.Background()); sum != (CheckSummary{}) {
		t.Errorf("summary = %+v", sum)
	}
}

func TestCheckerStopsOnCancel(t *testing.T) {
	sdb := openTestSources(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewChecker(sdb, logger, time.Hour).Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("checker did not stop after cancel")
	}
}
