package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/geo"
)

func init() {
	Register(&inseeCommunesAdapter{})
}

type inseeCommunesAdapter struct{}

func (a *inseeCommunesAdapter) ID() string          { return "insee-communes-fr" }
func (a *inseeCommunesAdapter) Dataset() string     { return "communes" }
func (a *inseeCommunesAdapter) Description() string { return "INSEE COG communes de France" }
func (a *inseeCommunesAdapter) DefaultURL() string {
	return "https://www.insee.fr/fr/statistiques/fichier/7766585/v_commune_2024.csv"
}
func (a *inseeCommunesAdapter) License() string { return "Licence Ouverte 2.0" }

func (a *inseeCommunesAdapter) Import(ctx context.Context, sourceURL, outputDir string) (*Manifest, error) {
	dlDir := filepath.Join(outputDir, "_download", a.Dataset())
	if err := ensureDir(dlDir); err != nil {
		return nil, err
	}
	defer os.RemoveAll(dlDir)

	raw, err := fetchTable(ctx, sourceURL, dlDir, frame.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	f, err := communesFrame(raw)
	if err != nil {
		return nil, err
	}
	fmt.Printf("  %d communes\n", f.Len())

	return writeDataset(outputDir, f, &Manifest{
		ID:        a.Dataset(),
		Adapter:   a.ID(),
		Source:    "INSEE COG",
		SourceURL: sourceURL,
		License:   a.License(),
	})
}

// communesFrame reduces the INSEE COG file (columns TYPECOM, COM, DEP,
// LIBELLE...) to code_commune, code_departement, commune. Only actual
// communes (TYPECOM = COM) are kept.
func communesFrame(raw *frame.Frame) (*frame.Frame, error) {
	com, err := raw.Column("com")
	if err != nil {
		return nil, err
	}
	nameCol, ok := raw.Resolve("libelle", "nccenr", "ncc")
	if !ok {
		return nil, fmt.Errorf("%w: libelle (colonnes %v)", frame.ErrColumnMissing, raw.Columns())
	}
	names, _ := raw.Column(nameCol)
	typecom, _ := raw.Column("typecom")
	deps, _ := raw.Column("dep")

	out := frame.New("code_commune", "code_departement", "commune")
	for i := range com {
		if typecom != nil {
			if tc := strings.TrimSpace(typecom[i]); tc != "" && tc != "COM" {
				continue
			}
		}
		code := geo.NormalizeCommune(com[i])
		name := strings.TrimSpace(names[i])
		if code == "" || name == "" {
			continue
		}
		dep := geo.DepartementFromCommune(code)
		if deps != nil && deps[i] != "" {
			dep = geo.NormalizeCode(deps[i])
		}
		out.AppendRow(code, dep, name)
	}
	return out, nil
}
