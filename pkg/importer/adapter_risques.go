package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/climmo/pkg/frame"
)

func init() {
	Register(&risquesAdapter{})
}

type risquesAdapter struct{}

func (a *risquesAdapter) ID() string      { return "risques-fr" }
func (a *risquesAdapter) Dataset() string { return "risques" }
func (a *risquesAdapter) Description() string {
	return "ONRN exposition des populations aux risques climatiques (PMUN, R_ATM, R_INO, R_MVT, R_FEU)"
}
func (a *risquesAdapter) DefaultURL() string {
	return "https://www.onrn.fr/exports/exposition_population_risques_climatiques.csv"
}
func (a *risquesAdapter) License() string { return "Licence Ouverte 2.0" }

// populationColumns are the accepted spellings of the exposed population
// once headers are normalised.
var populationColumns = []string{"population_exposee", "pmun_2014", "pop_exposee"}

func (a *risquesAdapter) Import(ctx context.Context, sourceURL, outputDir string) (*Manifest, error) {
	dlDir := filepath.Join(outputDir, "_download", a.Dataset())
	if err := ensureDir(dlDir); err != nil {
		return nil, err
	}
	defer os.RemoveAll(dlDir)

	// ONRN exports are Latin-1 with ';' separators.
	f, err := fetchTable(ctx, sourceURL, dlDir, frame.ReadOptions{Encoding: "windows-1252"})
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if _, ok := f.Resolve(populationColumns...); !ok {
		return nil, fmt.Errorf("%w: population_exposee (colonnes %v)", frame.ErrColumnMissing, f.Columns())
	}
	fmt.Printf("  %d lignes d'exposition\n", f.Len())

	return writeDataset(outputDir, f, &Manifest{
		ID:        a.Dataset(),
		Adapter:   a.ID(),
		Source:    "ONRN",
		SourceURL: sourceURL,
		License:   a.License(),
	})
}
