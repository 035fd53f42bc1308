// Package api exposes the geographic classifier and the report service over
// JSON HTTP and as MCP tools. Both transports dispatch to the same
// kit.Endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hazyhaar/climmo/pkg/geo"
	"github.com/hazyhaar/climmo/pkg/importer"
	"github.com/hazyhaar/climmo/pkg/kit"
	"github.com/hazyhaar/climmo/pkg/metrics"
	"github.com/hazyhaar/climmo/pkg/report"
)

// MaxBatch is the largest number of codes a batch classification accepts.
const MaxBatch = 500

// errBadRequest marks request errors detected before reaching the service.
var errBadRequest = errors.New("bad request")

// Deps are the services behind the API.
type Deps struct {
	Reports *report.Service
	Geo     *geo.Registry
	// DataDir is where imported datasets and their manifests live.
	DataDir string
	Logger  *slog.Logger
}

// Shared request/response types used by both HTTP and MCP transports.

type classifyReq struct {
	Code string
}

type classifyBatchReq struct {
	Codes []string
}

type batchResponse struct {
	Version string               `json:"version"`
	Results []geo.Classification `json:"results"`
}

type departementsResponse struct {
	Version      string            `json:"version"`
	Zones        []string          `json:"zones"`
	Regions      []string          `json:"regions"`
	Departements []geo.Departement `json:"departements"`
}

type filtersReq struct {
	Dataset string
	Filter  report.Filter
}

type filtersResponse struct {
	*report.Options
	Notices []string `json:"notices,omitempty"`
}

type invalidateReq struct {
	Path string `json:"path"`
}

type invalidateResponse struct {
	Dropped int `json:"dropped"`
}

type datasetInfo struct {
	Name     string             `json:"name"`
	Path     string             `json:"path"`
	Exists   bool               `json:"exists"`
	Cached   bool               `json:"cached"`
	Rows     int                `json:"rows,omitempty"`
	Manifest *importer.Manifest `json:"manifest,omitempty"`
}

type datasetsResponse struct {
	Datasets []datasetInfo        `json:"datasets"`
	Imported []*importer.Manifest `json:"imported"`
}

type endpoints struct {
	classify      kit.Endpoint
	classifyBatch kit.Endpoint
	departements  kit.Endpoint
	filters       kit.Endpoint
	immobilier    kit.Endpoint
	climat        kit.Endpoint
	conclusion    kit.Endpoint
	aggregate     kit.Endpoint
	compare       kit.Endpoint
	trend         kit.Endpoint
	invalidate    kit.Endpoint
	datasets      kit.Endpoint
}

func newEndpoints(d Deps) *endpoints {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	logged := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Logging(d.Logger, name)(ep)
	}
	return &endpoints{
		classify:      logged("classify", classifyEndpoint(d.Geo)),
		classifyBatch: logged("classify_batch", classifyBatchEndpoint(d.Geo)),
		departements:  logged("departements", departementsEndpoint(d.Geo)),
		filters:       logged("filters", filtersEndpoint(d.Reports)),
		immobilier:    logged("immobilier", immobilierEndpoint(d.Reports)),
		climat:        logged("climat", climatEndpoint(d.Reports)),
		conclusion:    logged("conclusion", conclusionEndpoint(d.Reports)),
		aggregate:     logged("aggregate", aggregateEndpoint(d.Reports)),
		compare:       logged("compare", compareEndpoint(d.Reports)),
		trend:         logged("trend", trendEndpoint(d.Reports)),
		invalidate:    logged("invalidate", invalidateEndpoint(d.Reports)),
		datasets:      logged("datasets", datasetsEndpoint(d.Reports, d.DataDir)),
	}
}

func classifyEndpoint(reg *geo.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*classifyReq)
		c := reg.Classify(req.Code)
		if !c.Known {
			metrics.ClassifyUnknownTotal.Inc()
		}
		return c, nil
	}
}

func classifyBatchEndpoint(reg *geo.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*classifyBatchReq)
		if len(req.Codes) == 0 {
			return nil, fmt.Errorf("%w: codes array is empty", errBadRequest)
		}
		if len(req.Codes) > MaxBatch {
			return nil, fmt.Errorf("%w: too many codes (max %d, got %d)", errBadRequest, MaxBatch, len(req.Codes))
		}
		t := reg.Table()
		results := make([]geo.Classification, len(req.Codes))
		for i, c := range req.Codes {
			results[i] = t.Classify(c)
			if !results[i].Known {
				metrics.ClassifyUnknownTotal.Inc()
			}
		}
		return batchResponse{Version: reg.Version(), Results: results}, nil
	}
}

func departementsEndpoint(reg *geo.Registry) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		t := reg.Table()
		return departementsResponse{
			Version:      reg.Version(),
			Zones:        t.Zones(),
			Regions:      t.Regions(),
			Departements: t.Departements(),
		}, nil
	}
}

func filtersEndpoint(svc *report.Service) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*filtersReq)
		ds := req.Dataset
		if ds == "" {
			ds = report.Transactions
		}
		if ds != report.Transactions && ds != report.Risques {
			return nil, fmt.Errorf("%w: dataset %q", report.ErrBadQuery, ds)
		}
		opts, notices, err := svc.Options(ds, req.Filter)
		if err != nil {
			return nil, err
		}
		return filtersResponse{Options: opts, Notices: notices}, nil
	}
}

func immobilierEndpoint(svc *report.Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Immobilier(ctx, *request.(*report.Filter))
	}
}

func climatEndpoint(svc *report.Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Climat(ctx, *request.(*report.ClimatParams))
	}
}

func conclusionEndpoint(svc *report.Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Conclusion(ctx, *request.(*report.Filter))
	}
}

func aggregateEndpoint(svc *report.Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Aggregate(ctx, *request.(*report.AggregateQuery))
	}
}

func compareEndpoint(svc *report.Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Compare(ctx, *request.(*report.CompareQuery))
	}
}

func trendEndpoint(svc *report.Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Trend(ctx, *request.(*report.TrendQuery))
	}
}

func invalidateEndpoint(svc *report.Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*invalidateReq)
		return invalidateResponse{Dropped: svc.Invalidate(ctx, req.Path)}, nil
	}
}

func datasetsEndpoint(svc *report.Service, dataDir string) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		cached := make(map[string]int)
		for _, e := range svc.Frames().Entries() {
			cached[e.Path] = e.Rows
		}
		paths := svc.Paths()
		var out datasetsResponse
		for _, ds := range []struct{ name, path string }{
			{report.Transactions, paths.Transactions},
			{report.Risques, paths.Risques},
			{report.Communes, paths.Communes},
		} {
			info := datasetInfo{Name: ds.name, Path: ds.path}
			if ds.path != "" {
				if _, err := os.Stat(ds.path); err == nil {
					info.Exists = true
				}
				if rows, ok := cached[filepath.Clean(ds.path)]; ok {
					info.Cached, info.Rows = true, rows
				}
			}
			out.Datasets = append(out.Datasets, info)
		}

		manifests, err := importer.ListManifests(dataDir)
		if err != nil {
			return nil, fmt.Errorf("list imported datasets: %w", err)
		}
		sort.Slice(manifests, func(i, j int) bool { return manifests[i].ID < manifests[j].ID })
		out.Imported = manifests
		for i := range out.Datasets {
			for _, m := range manifests {
				if m.ID == out.Datasets[i].Name {
					out.Datasets[i].Manifest = m
				}
			}
		}
		return out, nil
	}
}
