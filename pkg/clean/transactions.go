package clean

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/geo"
)

// TransactionOptions bounds the rows kept by Transactions.
type TransactionOptions struct {
	MinYear int
	MaxYear int
	// Types matches type_local case-insensitively; nil keeps every type.
	Types *regexp.Regexp
}

// DefaultTypes keeps houses and flats.
var DefaultTypes = regexp.MustCompile(`(?i)maison|appartement`)

// DefaultTransactionOptions keeps houses and flats sold from 2000 to 2025.
func DefaultTransactionOptions() TransactionOptions {
	return TransactionOptions{MinYear: 2000, MaxYear: 2025, Types: DefaultTypes}
}

var transactionAliases = map[string][]string{
	ColCommune:   {"nom_commune", "ville"},
	ColSurface:   {"surface"},
	ColValeur:    {"valeur"},
	ColCodeDep:   {"departement", "dep"},
	ColTypeLocal: {"type"},
}

// Drop reasons reported by Transactions.
const (
	DropYear  = "annee"
	DropValue = "valeur_surface"
	DropType  = "type_local"
)

// Transactions keeps the sales with a year in range, a strictly positive
// value and area, and a matching property type, then derives prix_m2,
// annee, the geography columns and classe_surface. valeur_fonciere and
// surface_reelle_bati are required; the department code may come from the
// commune code.
func Transactions(src *frame.Frame, t *geo.Table, opts TransactionOptions) (*frame.Frame, Report, error) {
	rep := Report{RowsIn: src.Len()}
	f, _ := src.Select(src.Columns()...)
	applyAliases(f, transactionAliases, &rep)

	valeur, err := f.Nums(ColValeur)
	if err != nil {
		return nil, rep, err
	}
	surface, err := f.Nums(ColSurface)
	if err != nil {
		return nil, rep, err
	}
	depRaw, err := departementCodes(f)
	if err != nil {
		return nil, rep, err
	}
	years, err := yearColumn(f)
	if err != nil {
		return nil, rep, err
	}
	var types []string
	if opts.Types != nil {
		if types, err = f.Column(ColTypeLocal); err != nil {
			rep.notice("colonne %s absente : pas de filtre par type de bien", ColTypeLocal)
			types = nil
		}
	}
	if !f.Has(ColCommune) {
		rep.notice("colonne %s absente : les classements par commune seront vides", ColCommune)
	}

	keep := make([]bool, f.Len())
	for r := range keep {
		y := years[r]
		if !y.Valid || (opts.MinYear != 0 && y.V < float64(opts.MinYear)) || (opts.MaxYear != 0 && y.V > float64(opts.MaxYear)) {
			rep.drop(DropYear)
			continue
		}
		if !valeur[r].Valid || !surface[r].Valid || valeur[r].V <= 0 || surface[r].V <= 0 {
			rep.drop(DropValue)
			continue
		}
		if types != nil && !opts.Types.MatchString(types[r]) {
			rep.drop(DropType)
			continue
		}
		keep[r] = true
	}

	idx := make([]int, 0, len(keep))
	for r, k := range keep {
		if k {
			idx = append(idx, r)
		}
	}
	out := f.Filter(func(r int) bool { return keep[r] })
	rep.RowsKept = out.Len()

	n := len(idx)
	annee := make([]string, n)
	v, s, prix := make([]frame.Num, n), make([]frame.Num, n), make([]frame.Num, n)
	classe := make([]string, n)
	raw := make([]string, n)
	for i, r := range idx {
		annee[i] = yearLabel(years[r])
		v[i], s[i] = valeur[r], surface[r]
		prix[i] = PricePerArea(valeur[r], surface[r])
		classe[i] = SurfaceClass(surface[r].V)
		raw[i] = depRaw[r]
	}
	code, name, region, zone, paris := geography(t, raw)

	for _, c := range []struct {
		name   string
		values []string
	}{
		{ColAnnee, annee},
		{ColCodeDep, code},
		{ColNomDep, name},
		{ColRegion, region},
		{ColZone, zone},
		{ColZoneParis, paris},
		{ColClasseSurface, classe},
	} {
		if err := out.Set(c.name, c.values); err != nil {
			return nil, rep, err
		}
	}
	if err := normalizeCommunes(out); err != nil {
		return nil, rep, err
	}
	for _, c := range []struct {
		name   string
		values []frame.Num
	}{
		{ColValeur, v},
		{ColSurface, s},
		{ColPrixM2, prix},
	} {
		if err := out.SetNums(c.name, c.values); err != nil {
			return nil, rep, err
		}
	}
	return out, rep, nil
}

// PricePerArea is value/area when both are strictly positive, missing
// otherwise.
func PricePerArea(value, area frame.Num) frame.Num {
	if !value.Valid || !area.Valid || value.V <= 0 || area.V <= 0 {
		return frame.Num{}
	}
	return frame.Some(value.V / area.V)
}

// SurfaceClass buckets a built area: <=30, 30-60, 60-90, >90. Bounds are
// inclusive on the right. Non-positive areas have no class.
func SurfaceClass(area float64) string {
	switch {
	case area <= 0:
		return ""
	case area <= 30:
		return "<=30"
	case area <= 60:
		return "30-60"
	case area <= 90:
		return "60-90"
	default:
		return ">90"
	}
}

// SurfaceClasses lists the classes in ascending order.
var SurfaceClasses = []string{"<=30", "30-60", "60-90", ">90"}

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// ParseYear extracts the year of a mutation date written as yyyy-mm-dd
// (optionally followed by a time) or dd/mm/yyyy.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Year(), true
		}
	}
	return 0, false
}

func yearColumn(f *frame.Frame) ([]frame.Num, error) {
	if f.Has(ColAnnee) {
		return f.Nums(ColAnnee)
	}
	dates, err := f.Column(ColDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s ou %s", frame.ErrColumnMissing, ColAnnee, ColDate)
	}
	out := make([]frame.Num, len(dates))
	for i, d := range dates {
		if y, ok := ParseYear(d); ok {
			out[i] = frame.Some(float64(y))
		}
	}
	return out, nil
}

// yearLabel formats a parsed year as plain digits ("2020.0" -> "2020"), or ""
// when it is missing.
func yearLabel(y frame.Num) string {
	if !y.Valid {
		return ""
	}
	return strconv.Itoa(int(y.V))
}

func yearLabels(years []frame.Num) []string {
	out := make([]string, len(years))
	for i, y := range years {
		out[i] = yearLabel(y)
	}
	return out
}

// normalizeCommunes rewrites code_commune to five-character INSEE codes when
// the column exists.
func normalizeCommunes(f *frame.Frame) error {
	if !f.Has(ColCodeCommune) {
		return nil
	}
	cc, _ := f.Column(ColCodeCommune)
	norm := make([]string, len(cc))
	for i, c := range cc {
		norm[i] = geo.NormalizeCommune(c)
	}
	return f.Set(ColCodeCommune, norm)
}

// departementCodes returns the raw department code of every row, read from
// code_departement or taken from the first two characters of code_commune.
func departementCodes(f *frame.Frame) ([]string, error) {
	if f.Has(ColCodeDep) {
		return f.Column(ColCodeDep)
	}
	cc, err := f.Column(ColCodeCommune)
	if err != nil {
		return nil, fmt.Errorf("%w: %s ou %s", frame.ErrColumnMissing, ColCodeDep, ColCodeCommune)
	}
	out := make([]string, len(cc))
	for i, c := range cc {
		out[i] = geo.DepartementFromCommune(geo.NormalizeCommune(c))
	}
	return out, nil
}
