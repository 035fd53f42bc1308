package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/climmo/pkg/frame"
)

func init() {
	Register(&dvfAdapter{})
}

// DVF columns kept after import. The geo-dvf export and the raw DGFiP files
// ("Valeur fonciere", "Type local", ...) both normalise to these names.
var dvfColumns = []string{
	"id_mutation", "date_mutation", "annee", "nature_mutation",
	"valeur_fonciere", "code_departement", "code_commune", "nom_commune", "commune",
	"type_local", "surface_reelle_bati", "nombre_pieces_principales",
}

type dvfAdapter struct{}

func (a *dvfAdapter) ID() string          { return "dvf-fr" }
func (a *dvfAdapter) Dataset() string     { return "transactions" }
func (a *dvfAdapter) Description() string { return "DVF demandes de valeurs foncieres (DGFiP, Etalab geo-dvf)" }
func (a *dvfAdapter) DefaultURL() string {
	return "https://files.data.gouv.fr/geo-dvf/latest/csv/2024/full.csv.gz"
}
func (a *dvfAdapter) License() string { return "Licence Ouverte 2.0" }

func (a *dvfAdapter) Import(ctx context.Context, sourceURL, outputDir string) (*Manifest, error) {
	dlDir := filepath.Join(outputDir, "_download", a.Dataset())
	if err := ensureDir(dlDir); err != nil {
		return nil, err
	}
	defer os.RemoveAll(dlDir)

	f, err := fetchTable(ctx, sourceURL, dlDir, frame.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	for _, required := range []string{"valeur_fonciere", "surface_reelle_bati"} {
		if !f.Has(required) {
			return nil, fmt.Errorf("%w: %s (colonnes %v)", frame.ErrColumnMissing, required, f.Columns())
		}
	}
	f = keepColumns(f, dvfColumns)
	fmt.Printf("  %d mutations\n", f.Len())

	return writeDataset(outputDir, f, &Manifest{
		ID:        a.Dataset(),
		Adapter:   a.ID(),
		Source:    "DGFiP DVF",
		SourceURL: sourceURL,
		License:   a.License(),
	})
}
