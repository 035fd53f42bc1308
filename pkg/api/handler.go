package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/climmo/pkg/chart"
	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/kit"
	"github.com/hazyhaar/climmo/pkg/logger"
	"github.com/hazyhaar/climmo/pkg/metrics"
	"github.com/hazyhaar/climmo/pkg/report"
)

const defaultChartTop = 20

// NewRouter returns an http.Handler with all Climmo API routes.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	h := &handler{endpoints: newEndpoints(d), d: d}

	mux.HandleFunc("GET /v1/health", h.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /v1/geo/departements", h.handleDepartements)
	mux.HandleFunc("GET /v1/geo/classify/batch", methodNotAllowed) // prevent GET on batch
	mux.HandleFunc("POST /v1/geo/classify/batch", h.handleClassifyBatch)
	mux.HandleFunc("GET /v1/geo/classify/{code}", h.handleClassify)

	mux.HandleFunc("GET /v1/filters", h.handleFilters)
	mux.HandleFunc("GET /v1/reports/immobilier", h.handleImmobilier)
	mux.HandleFunc("GET /v1/reports/climat", h.handleClimat)
	mux.HandleFunc("GET /v1/reports/conclusion", h.handleConclusion)

	mux.HandleFunc("GET /v1/aggregate", h.handleAggregate)
	mux.HandleFunc("GET /v1/compare", h.handleCompare)
	mux.HandleFunc("GET /v1/trend", h.handleTrend)

	mux.HandleFunc("GET /v1/charts/trend.png", h.handleTrendChart)
	mux.HandleFunc("GET /v1/charts/departements.png", h.handleDepartementsChart)

	mux.HandleFunc("POST /v1/cache/invalidate", h.handleInvalidate)
	mux.HandleFunc("GET /v1/datasets", h.handleDatasets)

	var out http.Handler = metrics.Middleware(mux)
	if d.Logger != nil {
		out = logger.AccessMiddleware(d.Logger)(out)
	}
	return cors(requestID(out))
}

type handler struct {
	*endpoints
	d Deps
}

// --- geo ---

func (h *handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if strings.TrimSpace(code) == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	h.serve(w, r, h.classify, &classifyReq{Code: code})
}

type httpBatchRequest struct {
	Codes []string `json:"codes"`
}

func (h *handler) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	var req httpBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.serve(w, r, h.classifyBatch, &classifyBatchReq{Codes: req.Codes})
}

func (h *handler) handleDepartements(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.departements, nil)
}

// --- reports ---

func (h *handler) handleFilters(w http.ResponseWriter, r *http.Request) {
	flt, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serve(w, r, h.filters, &filtersReq{Dataset: r.URL.Query().Get("dataset"), Filter: flt})
}

func (h *handler) handleImmobilier(w http.ResponseWriter, r *http.Request) {
	flt, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serve(w, r, h.immobilier, &flt)
}

func (h *handler) handleClimat(w http.ResponseWriter, r *http.Request) {
	flt, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	top, err := queryInt(r, "top")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	risk := r.URL.Query().Get("risque")
	if risk == "" {
		risk = r.URL.Query().Get("risk")
	}
	h.serve(w, r, h.climat, &report.ClimatParams{Filter: flt, Risk: risk, Top: top})
}

func (h *handler) handleConclusion(w http.ResponseWriter, r *http.Request) {
	flt, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serve(w, r, h.conclusion, &flt)
}

// --- generic queries ---

func (h *handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	flt, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minCount, err := queryInt(r, "min_count")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	h.serve(w, r, h.aggregate, &report.AggregateQuery{
		Dataset:  q.Get("dataset"),
		By:       splitList(q.Get("by")),
		Metric:   q.Get("metric"),
		MinCount: minCount,
		Filter:   flt,
	})
}

func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	flt, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	h.serve(w, r, h.compare, &report.CompareQuery{
		Dataset: q.Get("dataset"),
		By:      splitList(q.Get("by")),
		Metric:  q.Get("metric"),
		Period:  q.Get("period"),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Filter:  flt,
	})
}

func (h *handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	tq, err := parseTrend(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serve(w, r, h.trend, tq)
}

// --- charts ---

func (h *handler) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	tq, err := parseTrend(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.trend(r.Context(), tq)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	res := resp.(*report.TrendResult)
	proj := make(map[string]int, len(res.Projections))
	for i, p := range res.Projections {
		proj[p.Group] = i
	}
	series := make([]chart.Series, 0, len(res.Series))
	for _, s := range res.Series {
		cs := chart.Series{Name: s.Nom, Points: s.Points}
		if i, ok := proj[s.Nom]; ok {
			cs.Projection = res.Projections[i].Projections
		}
		series = append(series, cs)
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		title = "Évolution " + res.Metric
	}
	h.writePNG(w, func(buf *bytes.Buffer) error {
		return chart.Trend(buf, chart.Labels{Title: title, X: "Année", Y: res.Metric}, series)
	})
}

func (h *handler) handleDepartementsChart(w http.ResponseWriter, r *http.Request) {
	flt, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	top, err := queryInt(r, "top")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if top <= 0 {
		top = defaultChartTop
	}
	resp, err := h.immobilier(r.Context(), &flt)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	deps := append([]report.DepartementPrix(nil), resp.(*report.Immobilier).Departements...)
	sort.SliceStable(deps, func(i, j int) bool { return deps[i].PrixM2 > deps[j].PrixM2 })
	if len(deps) > top {
		deps = deps[:top]
	}
	names := make([]string, len(deps))
	values := make([]float64, len(deps))
	for i, d := range deps {
		names[i] = d.Code
		if d.Nom != "" {
			names[i] = d.Nom
		}
		values[i] = d.PrixM2
	}
	h.writePNG(w, func(buf *bytes.Buffer) error {
		return chart.Bars(buf, chart.Labels{Title: "Prix moyen au m² par département", Y: "€/m²"}, names, values)
	})
}

func (h *handler) writePNG(w http.ResponseWriter, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// --- cache and datasets ---

func (h *handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	var req invalidateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.serve(w, r, h.invalidate, &req)
}

func (h *handler) handleDatasets(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.datasets, nil)
}

// --- health ---

type healthResponse struct {
	Status       string `json:"status"`
	GeoVersion   string `json:"geo_version"`
	Departements int    `json:"departements"`
	CachedFrames int    `json:"cached_frames"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.d.Geo != nil {
		resp.GeoVersion = h.d.Geo.Version()
		resp.Departements = h.d.Geo.Table().Len()
	}
	if h.d.Reports != nil {
		resp.CachedFrames = h.d.Reports.Frames().Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

func (h *handler) serve(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, req any) {
	resp, err := ep(r.Context(), req)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, report.ErrDatasetMissing):
		return http.StatusNotFound
	case errors.Is(err, report.ErrBadQuery),
		errors.Is(err, frame.ErrColumnMissing),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// parseFilter reads the report filter from the query string.
func parseFilter(r *http.Request) (report.Filter, error) {
	q := r.URL.Query()
	flt := report.Filter{
		Zone:        q.Get("zone"),
		Region:      q.Get("region"),
		Departement: q.Get("departement"),
		Commune:     q.Get("commune"),
		Type:        q.Get("type"),
	}
	var err error
	if flt.Annee, err = queryInt(r, "annee"); err != nil {
		return flt, err
	}
	if flt.PrixMin, err = queryFloat(r, "prix_min"); err != nil {
		return flt, err
	}
	if flt.PrixMax, err = queryFloat(r, "prix_max"); err != nil {
		return flt, err
	}
	return flt, nil
}

func parseTrend(r *http.Request) (*report.TrendQuery, error) {
	flt, err := parseFilter(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	tq := &report.TrendQuery{
		Dataset: q.Get("dataset"),
		Metric:  q.Get("metric"),
		By:      q.Get("by"),
		Filter:  flt,
	}
	if tq.FromYear, err = queryInt(r, "from_year"); err != nil {
		return nil, err
	}
	if tq.Horizon, err = queryInt(r, "horizon"); err != nil {
		return nil, err
	}
	if tq.MinCount, err = queryInt(r, "min_count"); err != nil {
		return nil, err
	}
	if q.Has("floor") {
		v, err := queryFloat(r, "floor")
		if err != nil {
			return nil, err
		}
		tq.Floor = &v
	}
	return tq, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n := frame.ParseNum(v)
	if !n.Valid {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n.V, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// requestID carries the caller's X-Request-Id into the endpoint context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-Id"); id != "" {
			r = r.WithContext(kit.WithRequestID(r.Context(), id))
			w.Header().Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
