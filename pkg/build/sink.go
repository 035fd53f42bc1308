package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// Sink receives the summary tables of one build.
type Sink interface {
	Name() string
	Write(ctx context.Context, tables []Table) error
}

// CSVSink writes one <name>.csv per table into Dir.
type CSVSink struct {
	Dir string
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(ctx context.Context, tables []Table) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := frame.WriteCSVFile(filepath.Join(s.Dir, t.Name+".csv"), t.Frame); err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}
	}
	return nil
}

// XLSXSink writes all tables into one workbook, one sheet per table.
type XLSXSink struct {
	Path string
}

func (s *XLSXSink) Name() string { return "xlsx" }

func (s *XLSXSink) Write(_ context.Context, tables []Table) error {
	sheets := make([]frame.Sheet, len(tables))
	for i, t := range tables {
		sheets[i] = frame.Sheet{Name: t.Name, Frame: t.Frame}
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	return frame.WriteXLSX(s.Path, sheets)
}
