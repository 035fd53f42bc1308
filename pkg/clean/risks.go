package clean

import (
	"fmt"

	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/geo"
)

var riskAliases = map[string][]string{
	ColPopulation:     {"pmun_2014", "pop_exposee"},
	ColRisqueGlobal:   {"risque_climatique"},
	ColRisqueChaleur:  {"r_atm_2016"},
	ColRisqueInond:    {"r_ino_2016"},
	ColRisqueSecheres: {"r_mvt_2016"},
	ColRisqueFeux:     {"r_feu_2016"},
	ColCodeCommune:    {"codgeo", "code_insee", "insee_com", "com"},
	ColCommune:        {"nom_commune", "libgeo", "libelle"},
}

// Risks renames the indicator columns to their canonical names, normalises
// commune and department codes and derives the geography columns.
// population_exposee is required. Missing risk indices are reported as
// notices. When communes is not nil and the dataset has no commune name,
// names are filled from it by commune code.
func Risks(src *frame.Frame, t *geo.Table, communes *frame.Frame) (*frame.Frame, Report, error) {
	rep := Report{RowsIn: src.Len()}
	f, _ := src.Select(src.Columns()...)
	applyAliases(f, riskAliases, &rep)

	if !f.Has(ColPopulation) {
		return nil, rep, fmt.Errorf("%w: %s", frame.ErrColumnMissing, ColPopulation)
	}
	for _, c := range RiskColumns {
		if !f.Has(c) {
			rep.notice("indicateur %s absent", c)
		}
	}

	if f.Has(ColAnnee) {
		years, err := f.Nums(ColAnnee)
		if err != nil {
			return nil, rep, err
		}
		if err := f.Set(ColAnnee, yearLabels(years)); err != nil {
			return nil, rep, err
		}
	}
	if err := normalizeCommunes(f); err != nil {
		return nil, rep, err
	}
	depRaw, err := departementCodes(f)
	if err != nil {
		return nil, rep, err
	}
	code, name, region, zone, paris := geography(t, depRaw)

	if f.Has(ColNomDep) {
		given, _ := f.Column(ColNomDep)
		for i, g := range given {
			if g != "" {
				name[i] = g
			}
		}
	}
	for _, c := range []struct {
		name   string
		values []string
	}{
		{ColCodeDep, code},
		{ColNomDep, name},
		{ColRegion, region},
		{ColZone, zone},
		{ColZoneParis, paris},
	} {
		if err := f.Set(c.name, c.values); err != nil {
			return nil, rep, err
		}
	}

	if !f.Has(ColCommune) && f.Has(ColCodeCommune) {
		if communes == nil {
			rep.notice("noms de communes indisponibles")
		} else if names, ok := CommuneNames(communes); ok {
			cc, _ := f.Column(ColCodeCommune)
			col := make([]string, len(cc))
			for i, c := range cc {
				col[i] = names[c]
			}
			if err := f.Set(ColCommune, col); err != nil {
				return nil, rep, err
			}
		} else {
			rep.notice("référentiel des communes sans colonnes code/nom reconnues")
		}
	}

	rep.RowsKept = f.Len()
	return f, rep, nil
}

// CommuneNames maps normalised INSEE commune codes to names from a commune
// reference frame (INSEE COG layout or a code/name pair).
func CommuneNames(communes *frame.Frame) (map[string]string, bool) {
	codeCol, ok := communes.Resolve("com", "code_commune", "codgeo", "code_insee", "insee_com")
	if !ok {
		return nil, false
	}
	nameCol, ok := communes.Resolve("libelle", "nom_commune", "nccenr", "commune", "libgeo")
	if !ok {
		return nil, false
	}
	codes, _ := communes.Column(codeCol)
	names, _ := communes.Column(nameCol)
	out := make(map[string]string, len(codes))
	for i, c := range codes {
		if n := geo.NormalizeCommune(c); n != "" {
			if _, dup := out[n]; !dup {
				out[n] = names[i]
			}
		}
	}
	return out, true
}
