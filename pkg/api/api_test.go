package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/climmo/pkg/cache"
	"github.com/hazyhaar/climmo/pkg/geo"
	"github.com/hazyhaar/climmo/pkg/report"
)

const transactionsCSV = `annee,code_departement,commune,type_local,valeur_fonciere,surface_reelle_bati
2020,75,Paris,Appartement,500000,50
2021,75,Paris,Appartement,550000,50
2022,75,Paris,Appartement,600000,50
2022,92,Nanterre,Appartement,300000,50
2020,69,Lyon,Maison,400000,100
2022,69,Lyon,Maison,500000,100
`

func testDeps(t *testing.T) Deps {
	t.Helper()
	dir := t.TempDir()
	paths := report.Paths{
		Transactions: filepath.Join(dir, "dvf.csv"),
		Risques:      filepath.Join(dir, "risques.csv"),
	}
	if err := os.WriteFile(paths.Transactions, []byte(transactionsCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	set := report.DefaultSettings()
	set.MinTransactions = 1
	reg := geo.NewRegistry("")
	return Deps{
		Reports: report.NewService(paths, set, reg, cache.NewFrames(4), nil, logger),
		Geo:     reg,
		DataDir: dir,
		Logger:  logger,
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, rd))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestStatusCodes(t *testing.T) {
	h := NewRouter(testDeps(t))
	tests := []struct {
		method, target, body string
		want                 int
	}{
		{"GET", "/v1/health", "", http.StatusOK},
		{"GET", "/metrics", "", http.StatusOK},
		{"GET", "/v1/geo/departements", "", http.StatusOK},
		{"GET", "/v1/geo/classify/92", "", http.StatusOK},
		{"GET", "/v1/geo/classify/batch", "", http.StatusMethodNotAllowed},
		{"POST", "/v1/geo/classify/batch", `{"codes":[]}`, http.StatusBadRequest},
		{"POST", "/v1/geo/classify/batch", `not json`, http.StatusBadRequest},
		{"GET", "/v1/filters", "", http.StatusOK},
		{"GET", "/v1/filters?dataset=cadastre", "", http.StatusBadRequest},
		{"GET", "/v1/reports/immobilier", "", http.StatusOK},
		{"GET", "/v1/reports/immobilier?annee=deux", "", http.StatusBadRequest},
		{"GET", "/v1/reports/immobilier?prix_min=abc", "", http.StatusBadRequest},
		{"GET", "/v1/reports/climat", "", http.StatusNotFound},
		{"GET", "/v1/reports/conclusion?departement=75", "", http.StatusOK},
		{"GET", "/v1/aggregate?by=code_departement", "", http.StatusOK},
		{"GET", "/v1/aggregate", "", http.StatusBadRequest},
		{"GET", "/v1/aggregate?by=nope", "", http.StatusBadRequest},
		{"GET", "/v1/compare?by=code_departement&from=2020&to=2022", "", http.StatusOK},
		{"GET", "/v1/trend?horizon=2", "", http.StatusOK},
		{"GET", "/v1/trend?horizon=500", "", http.StatusBadRequest},
		{"GET", "/v1/datasets", "", http.StatusOK},
		{"POST", "/v1/cache/invalidate", "", http.StatusOK},
		{"OPTIONS", "/v1/reports/immobilier", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		rec := do(t, h, tt.method, tt.target, tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.target, rec.Code, tt.want, rec.Body.String())
		}
	}
}

func TestClassify(t *testing.T) {
	h := NewRouter(testDeps(t))

	var c geo.Classification
	decode(t, do(t, h, "GET", "/v1/geo/classify/2a", ""), &c)
	if !c.Known || c.Code != "2A" || c.Zone != "Sud" {
		t.Errorf("2a = %+v", c)
	}

	var batch batchResponse
	decode(t, do(t, h, "POST", "/v1/geo/classify/batch", `{"codes":["92","1.0","20"]}`), &batch)
	if len(batch.Results) != 3 {
		t.Fatalf("results = %+v", batch.Results)
	}
	if r := batch.Results[0]; r.Name != "Hauts-de-Seine" || r.Zone != "Centre" {
		t.Errorf("92 = %+v", r)
	}
	if r := batch.Results[1]; r.Code != "01" || !r.Known {
		t.Errorf("1.0 = %+v", r)
	}
	if r := batch.Results[2]; r.Known || r.Zone != "Zone inconnue" {
		t.Errorf("20 = %+v", r)
	}
	if batch.Version == "" {
		t.Error("missing table version")
	}

	codes := make([]string, MaxBatch+1)
	for i := range codes {
		codes[i] = "75"
	}
	body, _ := json.Marshal(httpBatchRequest{Codes: codes})
	if rec := do(t, h, "POST", "/v1/geo/classify/batch", string(body)); rec.Code != http.StatusBadRequest {
		t.Errorf("oversized batch = %d, want 400", rec.Code)
	}
}

func TestImmobilierReport(t *testing.T) {
	h := NewRouter(testDeps(t))

	var rep report.Immobilier
	decode(t, do(t, h, "GET", "/v1/reports/immobilier?zone=Centre&type=appartement", ""), &rep)
	if rep.KPI.Transactions != 4 {
		t.Errorf("transactions = %d, want 4", rep.KPI.Transactions)
	}
	if rep.Filter.Zone != "Centre" || rep.Filter.PrixMin != 50 {
		t.Errorf("filter = %+v", rep.Filter)
	}

	var opts struct {
		Departements []struct {
			Code string `json:"code"`
		} `json:"departements"`
	}
	decode(t, do(t, h, "GET", "/v1/filters?zone=Centre", ""), &opts)
	if len(opts.Departements) != 3 {
		t.Errorf("departements = %+v", opts.Departements)
	}
}

func TestErrorBody(t *testing.T) {
	h := NewRouter(testDeps(t))
	rec := do(t, h, "GET", "/v1/reports/climat", "")
	var body map[string]string
	decode(t, rec, &body)
	if !strings.Contains(body["error"], "dataset missing") {
		t.Errorf("error = %q", body["error"])
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}
}

func TestCharts(t *testing.T) {
	h := NewRouter(testDeps(t))
	for _, target := range []string{
		"/v1/charts/trend.png?horizon=2",
		"/v1/charts/trend.png?by=zone",
		"/v1/charts/departements.png?top=2",
	} {
		rec := do(t, h, "GET", target, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d (%s)", target, rec.Code, rec.Body.String())
			continue
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s content type = %q", target, ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Errorf("%s is not a PNG", target)
		}
	}
	if rec := do(t, h, "GET", "/v1/charts/trend.png?departement=13", ""); rec.Code != http.StatusNotFound {
		t.Errorf("empty chart = %d, want 404", rec.Code)
	}
}

func TestDatasetsAndInvalidate(t *testing.T) {
	d := testDeps(t)
	h := NewRouter(d)

	if rec := do(t, h, "GET", "/v1/reports/immobilier", ""); rec.Code != http.StatusOK {
		t.Fatalf("immobilier = %d", rec.Code)
	}
	var ds datasetsResponse
	decode(t, do(t, h, "GET", "/v1/datasets", ""), &ds)
	if len(ds.Datasets) != 3 {
		t.Fatalf("datasets = %+v", ds.Datasets)
	}
	if tx := ds.Datasets[0]; tx.Name != report.Transactions || !tx.Exists || !tx.Cached || tx.Rows != 6 {
		t.Errorf("transactions = %+v", tx)
	}
	if rq := ds.Datasets[1]; rq.Exists || rq.Cached {
		t.Errorf("risques = %+v", rq)
	}

	var inv invalidateResponse
	body := `{"path":"` + filepath.ToSlash(d.Reports.Paths().Transactions) + `"}`
	decode(t, do(t, h, "POST", "/v1/cache/invalidate", body), &inv)
	if inv.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", inv.Dropped)
	}
	if n := d.Reports.Frames().Len(); n != 0 {
		t.Errorf("cached frames = %d, want 0", n)
	}
}

func TestRequestID(t *testing.T) {
	h := NewRouter(testDeps(t))
	req := httptest.NewRequest("GET", "/v1/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q", got)
	}
}

func TestMCPTools(t *testing.T) {
	srv := NewMCPServer(testDeps(t), "test")
	ctx := context.Background()

	list := srv.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	out, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, name := range []string{"classify_departement", "report_immobilier", "project_trend", "compare_periods"} {
		if !bytes.Contains(out, []byte(`"`+name+`"`)) {
			t.Errorf("tools/list misses %s", name)
		}
	}

	call := srv.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"classify_departement","arguments":{"codes":"92, 29"}}}`))
	out, err = json.Marshal(call)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(out, []byte("Hauts-de-Seine")) || !bytes.Contains(out, []byte("Finist")) {
		t.Errorf("tools/call = %s", out)
	}
}
