package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/climmo/pkg/importer"
	"github.com/hazyhaar/climmo/pkg/logger"
)

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	source := fs.String("source", "", "adapter ID to import (e.g. dvf-fr)")
	all := fs.Bool("all", false, "import all available sources")
	dataset := fs.String("dataset", "", "import every source of a dataset (transactions, risques, communes)")
	check := fs.Bool("check", false, "check that every source URL answers, then exit")
	dataDir := fs.String("data-dir", "data", "output directory for datasets")
	setURL := fs.String("set-url", "", "record a new source URL for --source instead of importing")
	runs := fs.Int("runs", 0, "show the last N import and build runs")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	fs.Parse(args)

	log := logger.Setup(*logLevel, "text")

	// Open source DB and seed defaults.
	sdb, err := importer.OpenSourceDB(filepath.Join(*dataDir, "sources.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur ouverture sources.db: %v\n", err)
		os.Exit(1)
	}
	defer sdb.Close()

	if err := sdb.Seed(importer.All()); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur seed sources: %v\n", err)
		os.Exit(1)
	}

	if *runs > 0 {
		printRuns(sdb, *runs)
		return
	}

	if *check {
		sum := importer.NewChecker(sdb, log, 0).CheckAll(context.Background())
		fmt.Printf("Sources: %d OK, %d en échec, %d locales\n", sum.OK, sum.Failed, sum.Skipped)
		printSources(sdb)
		if sum.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	if *setURL != "" {
		if *source == "" {
			fmt.Fprintln(os.Stderr, "Erreur: --set-url demande --source")
			os.Exit(1)
		}
		if err := sdb.SetURL(*source, *setURL); err != nil {
			fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("[%s] URL enregistrée: %s\n", *source, *setURL)
		return
	}

	if !*all && *source == "" && *dataset == "" {
		fmt.Println("Sources disponibles :")
		fmt.Println()
		printSources(sdb)
		fmt.Println()
		fmt.Println("Usage :")
		fmt.Println("  climmo import --source <id> [--data-dir <dir>]")
		fmt.Println("  climmo import --all [--data-dir <dir>]")
		fmt.Println("  climmo import --dataset risques")
		fmt.Println("  climmo import --check")
		fmt.Println("  climmo import --source <id> --set-url <url>")
		fmt.Println("  climmo import --runs 10")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	if *all || *dataset != "" {
		adapters := importer.All()
		if *dataset != "" {
			adapters = importer.ForDataset(*dataset)
			if len(adapters) == 0 {
				fmt.Fprintf(os.Stderr, "Erreur: aucune source pour le jeu de données %q\n", *dataset)
				os.Exit(1)
			}
		}
		failed := 0
		for _, a := range adapters {
			if !importOne(ctx, a, sdb, *dataDir, log) {
				failed++
			}
		}
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	a, err := importer.Get(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
		fmt.Println("\nSources disponibles :")
		for _, a := range importer.All() {
			fmt.Printf("  %s\n", a.ID())
		}
		os.Exit(1)
	}
	if !importOne(ctx, a, sdb, *dataDir, log) {
		os.Exit(1)
	}
}

func importOne(ctx context.Context, a importer.Adapter, sdb *importer.SourceDB, dataDir string, log *slog.Logger) bool {
	fmt.Printf("[%s] Import en cours...\n", a.ID())
	m, err := importer.Run(ctx, a, sdb, dataDir, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[%s] ERREUR: %v\n", a.ID(), err)
		return false
	}
	fmt.Printf("[%s] OK -> %s (%d lignes)\n", a.ID(), importer.DatasetPath(dataDir, m.ID), m.Rows)
	return true
}

func printSources(sdb *importer.SourceDB) {
	sources, err := sdb.ListSources()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
		return
	}
	for _, src := range sources {
		status := ""
		if src.LastStatus != nil {
			status = fmt.Sprintf("  [%d]", *src.LastStatus)
		}
		fmt.Printf("  %-20s  %s  (-> %s)%s\n", src.AdapterID, src.Description, src.Dataset, status)
	}
}

func printRuns(sdb *importer.SourceDB, n int) {
	runs, err := sdb.ListRuns(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
		os.Exit(1)
	}
	for _, r := range runs {
		started := time.Unix(r.StartedAt, 0).Format("2006-01-02 15:04")
		msg := ""
		if r.Error != nil {
			msg = "  " + *r.Error
		}
		fmt.Printf("  %4d  %-24s  %s  %-8s  %8d lignes%s\n", r.ID, r.Job, started, r.Status, r.Rows, msg)
	}
}
