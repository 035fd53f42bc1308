package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/metrics"
)

// RunLog records build runs (implemented by importer.SourceDB).
type RunLog interface {
	StartRun(job string) (int64, error)
	FinishRun(id int64, rows int, err error) error
}

// Input holds the cleaned datasets. Either may be nil; its summaries are
// then skipped.
type Input struct {
	Transactions *frame.Frame
	Risks        *frame.Frame
}

// Summary reports what a build produced.
type Summary struct {
	Tables   []string      `json:"tables"`
	Rows     int           `json:"rows"`
	Sinks    []string      `json:"sinks"`
	Duration time.Duration `json:"duration"`
}

// Builder computes the summaries and hands them to every sink.
type Builder struct {
	Sinks   []Sink
	Runs    RunLog
	Logger  *slog.Logger
	Options Options
}

// Build computes the summary tables of in and writes them to all sinks. The
// first sink error aborts the build.
func (b *Builder) Build(ctx context.Context, in Input) (*Summary, error) {
	start := time.Now()
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var runID int64
	if b.Runs != nil {
		id, err := b.Runs.StartRun("build")
		if err != nil {
			logger.Warn("run log unavailable", "error", err)
		}
		runID = id
	}

	sum, err := b.build(ctx, in, logger)
	rows := 0
	if sum != nil {
		rows = sum.Rows
	}
	if b.Runs != nil && runID != 0 {
		if ferr := b.Runs.FinishRun(runID, rows, err); ferr != nil {
			logger.Warn("run log update failed", "error", ferr)
		}
	}
	if err != nil {
		return nil, err
	}

	sum.Duration = time.Since(start)
	metrics.BuildDurationSeconds.Observe(sum.Duration.Seconds())
	logger.Info("build complete", "tables", len(sum.Tables), "rows", sum.Rows, "sinks", sum.Sinks, "duration", sum.Duration)
	return sum, nil
}

func (b *Builder) build(ctx context.Context, in Input, logger *slog.Logger) (*Summary, error) {
	if in.Transactions == nil && in.Risks == nil {
		return nil, errors.New("build: no dataset")
	}
	if len(b.Sinks) == 0 {
		return nil, errors.New("build: no sink")
	}
	opts := b.Options
	if opts.TopN == 0 {
		opts = DefaultOptions()
	}

	var tables []Table
	if in.Transactions != nil {
		ts, err := Transactions(in.Transactions, opts)
		if err != nil {
			return nil, fmt.Errorf("transactions: %w", err)
		}
		tables = append(tables, ts...)
	}
	if in.Risks != nil {
		ts, err := Risks(in.Risks)
		if err != nil {
			return nil, fmt.Errorf("risques: %w", err)
		}
		tables = append(tables, ts...)
	}

	sum := &Summary{}
	for _, t := range tables {
		sum.Tables = append(sum.Tables, t.Name)
		sum.Rows += t.Frame.Len()
	}

	for _, s := range b.Sinks {
		if err := s.Write(ctx, tables); err != nil {
			return nil, fmt.Errorf("sink %s: %w", s.Name(), err)
		}
		metrics.BuildTablesTotal.WithLabelValues(s.Name()).Add(float64(len(tables)))
		logger.Debug("sink written", "sink", s.Name(), "tables", len(tables))
		sum.Sinks = append(sum.Sinks, s.Name())
	}
	return sum, nil
}
