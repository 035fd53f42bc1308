package importer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/climmo/pkg/metrics"
)

// Checker periodically probes every remote import source, records the result
// in the SourceDB and exports it as the climmo_source_up gauge.
type Checker struct {
	sources  *SourceDB
	logger   *slog.Logger
	interval time.Duration
	client   *http.Client
}

// CheckSummary counts the outcome of one pass over the sources.
type CheckSummary struct {
	OK      int `json:"ok"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// NewChecker creates a Checker that will verify source URLs every interval.
// Redirects are not followed: a moved source is reported with its 3xx status.
func NewChecker(sources *SourceDB, logger *slog.Logger, interval time.Duration) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		sources:  sources,
		logger:   logger,
		interval: interval,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Start runs an immediate check then repeats every interval until ctx is cancelled.
func (c *Checker) Start(ctx context.Context) {
	c.CheckAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll probes every http(s) source and persists the result. Local paths
// and file:// sources are skipped.
func (c *Checker) CheckAll(ctx context.Context) CheckSummary {
	var sum CheckSummary
	sources, err := c.sources.ListSources()
	if err != nil {
		c.logger.Error("source check: impossible de lister les sources", "error", err)
		return sum
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			return sum
		}
		if !isRemote(src.SourceURL) {
			sum.Skipped++
			continue
		}
		if c.checkSource(ctx, src) {
			sum.OK++
		} else {
			sum.Failed++
		}
	}

	if len(sources) > 0 {
		c.logger.Info("source check complete", "ok", sum.OK, "failed", sum.Failed, "skipped", sum.Skipped)
	}
	return sum
}

func (c *Checker) checkSource(ctx context.Context, src Source) bool {
	status, checkErr := c.probe(ctx, src.SourceURL)
	errMsg := ""
	if checkErr != nil {
		errMsg = checkErr.Error()
	}
	if err := c.sources.UpdateCheck(src.AdapterID, status, errMsg); err != nil {
		c.logger.Error("source check: echec mise a jour", "adapter", src.AdapterID, "error", err)
	}

	up := status >= 200 && status < 400
	if up {
		metrics.SourceUp.WithLabelValues(src.AdapterID).Set(1)
	} else {
		metrics.SourceUp.WithLabelValues(src.AdapterID).Set(0)
		c.logger.Warn("source inaccessible",
			"adapter", src.AdapterID,
			"dataset", src.Dataset,
			"url", src.SourceURL,
			"status", status,
			"error", errMsg,
		)
	}
	return up
}

// probe sends a HEAD request. Some open data portals refuse HEAD on file
// downloads; those get a single-byte ranged GET instead. On network error
// the status is 0.
func (c *Checker) probe(ctx context.Context, url string) (int, error) {
	status, err := c.do(ctx, http.MethodHead, url)
	if err != nil || (status != http.StatusMethodNotAllowed && status != http.StatusNotImplemented) {
		return status, err
	}
	return c.do(ctx, http.MethodGet, url)
}

func (c *Checker) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, url, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
