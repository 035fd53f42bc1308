package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/climmo/pkg/build"
	"github.com/hazyhaar/climmo/pkg/importer"
	"github.com/hazyhaar/climmo/pkg/report"
)

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	dataDir := fs.String("data-dir", "", "dataset directory (default: data_dir from config)")
	outDir := fs.String("out", "", "output directory for the CSV tables (default: results_dir from config)")
	xlsxPath := fs.String("xlsx", "", "also write every table to this XLSX workbook")
	pgDSN := fs.String("pg", "", "also publish the tables to this Postgres DSN (default: postgres.dsn from config)")
	from := fs.Int("from", 0, "first year of the evolution tables")
	to := fs.Int("to", 0, "last year of the evolution tables")
	fs.Parse(args)

	a := setupWith(*cfgPath, func(c *config) {
		if *dataDir != "" {
			c.DataDir = *dataDir
			c.Datasets = report.Paths{}
			c.fillDatasets()
		}
	})
	cfg := a.cfg
	if *outDir == "" {
		*outDir = cfg.ResultsDir
	}
	if *pgDSN == "" {
		*pgDSN = cfg.Postgres.DSN
	}

	tx, _, err := a.reports.Dataset(report.Transactions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur transactions: %v\n", err)
		os.Exit(1)
	}
	in := build.Input{Transactions: tx}
	if risks, _, err := a.reports.Dataset(report.Risques); err == nil {
		in.Risks = risks
	} else if errors.Is(err, report.ErrDatasetMissing) {
		fmt.Println("Risques climatiques absents, tables de risque ignorées")
	} else {
		fmt.Fprintf(os.Stderr, "Erreur risques: %v\n", err)
		os.Exit(1)
	}

	sinks := []build.Sink{&build.CSVSink{Dir: *outDir}}
	if *xlsxPath != "" {
		sinks = append(sinks, &build.XLSXSink{Path: *xlsxPath})
	}
	if *pgDSN != "" {
		pg, err := build.OpenPostgres(*pgDSN, cfg.Postgres.Prefix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur Postgres: %v\n", err)
			os.Exit(1)
		}
		defer pg.Close()
		sinks = append(sinks, pg)
	}

	opts := build.DefaultOptions()
	opts.MinCount = cfg.Filters.MinTransactions
	if *from > 0 {
		opts.EvolutionFrom = *from
	}
	if *to > 0 {
		opts.EvolutionTo = *to
	}

	b := &build.Builder{Sinks: sinks, Logger: a.logger, Options: opts}
	sdb, err := importer.OpenSourceDB(filepath.Join(cfg.DataDir, "sources.db"))
	if err != nil {
		a.logger.Warn("run log unavailable", "error", err)
	} else {
		defer sdb.Close()
		b.Runs = sdb
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	sum, err := b.Build(ctx, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur build: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d tables, %d lignes -> %s (%s)\n", len(sum.Tables), sum.Rows, strings.Join(sum.Sinks, ", "), sum.Duration.Round(time.Millisecond))
	for _, t := range sum.Tables {
		fmt.Printf("  %s\n", t)
	}
}
