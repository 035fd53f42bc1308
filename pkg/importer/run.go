package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/climmo/pkg/metrics"
)

// Run imports one adapter into dataDir. The source URL comes from sources
// when it has one for the adapter, else the adapter default; the run is
// recorded in the etl_runs table. sources may be nil.
func Run(ctx context.Context, a Adapter, sources *SourceDB, dataDir string, logger *slog.Logger) (*Manifest, error) {
	url := a.DefaultURL()
	var runID int64
	if sources != nil {
		if u, err := sources.GetURL(a.ID()); err == nil && u != "" {
			url = u
		}
		id, err := sources.StartRun("import:" + a.ID())
		if err != nil {
			logger.Warn("run log unavailable", "adapter", a.ID(), "error", err)
		}
		runID = id
	}

	start := time.Now()
	m, err := a.Import(ctx, url, dataDir)
	rows := 0
	if m != nil {
		rows = m.Rows
	}
	if sources != nil && runID != 0 {
		if ferr := sources.FinishRun(runID, rows, err); ferr != nil {
			logger.Warn("run log update failed", "adapter", a.ID(), "error", ferr)
		}
	}
	if err != nil {
		metrics.ImportRunsTotal.WithLabelValues(a.ID(), StatusFailed).Inc()
		logger.Error("import failed", "adapter", a.ID(), "url", url, "error", err)
		return nil, err
	}
	metrics.ImportRunsTotal.WithLabelValues(a.ID(), StatusOK).Inc()
	logger.Info("import complete", "adapter", a.ID(), "dataset", m.ID, "rows", m.Rows, "duration", time.Since(start))
	return m, nil
}
