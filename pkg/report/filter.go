package report

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hazyhaar/climmo/pkg/clean"
	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/geo"
)

// Filter selects the rows a report works on. Empty fields (and the
// dashboard's "Toutes"/"Tous" choices) select everything. Text fields
// compare case and accent insensitively; Departement accepts a code or a
// name, Commune a name or an INSEE code.
type Filter struct {
	Zone        string  `json:"zone,omitempty"`
	Region      string  `json:"region,omitempty"`
	Departement string  `json:"departement,omitempty"`
	Commune     string  `json:"commune,omitempty"`
	Type        string  `json:"type,omitempty"`
	Annee       int     `json:"annee,omitempty"`
	PrixMin     float64 `json:"prix_min,omitempty"`
	PrixMax     float64 `json:"prix_max,omitempty"`
}

type dim uint8

const (
	byZone dim = 1 << iota
	byRegion
	byDepartement
	byCommune
	byType
	byYear
	byPrice

	geoDims = byZone | byRegion | byDepartement | byCommune
	allDims = geoDims | byType | byYear | byPrice
)

func selectsAll(v string) bool {
	switch geo.NormalizeLabel(v) {
	case "", "toutes", "tous", "tous les departements":
		return true
	}
	return false
}

// labelMatcher compares cells to a wanted label, memoising per distinct cell.
type labelMatcher struct {
	want string
	memo map[string]bool
}

func newLabelMatcher(v string) *labelMatcher {
	return &labelMatcher{want: geo.NormalizeLabel(v), memo: make(map[string]bool)}
}

func (m *labelMatcher) match(cell string) bool {
	ok, seen := m.memo[cell]
	if !seen {
		ok = geo.NormalizeLabel(cell) == m.want
		m.memo[cell] = ok
	}
	return ok
}

// apply returns the rows of f matching the filter on the given dimensions.
// Dimensions whose column is absent are not filtered.
func (flt Filter) apply(f *frame.Frame, dims dim) *frame.Frame {
	var preds []func(int) bool

	text := func(d dim, value, col string) {
		if dims&d == 0 || selectsAll(value) {
			return
		}
		cells, err := f.Column(col)
		if err != nil {
			return
		}
		m := newLabelMatcher(value)
		preds = append(preds, func(r int) bool { return m.match(cells[r]) })
	}
	text(byZone, flt.Zone, clean.ColZone)
	text(byRegion, flt.Region, clean.ColRegion)
	text(byType, flt.Type, clean.ColTypeLocal)

	if dims&byDepartement != 0 && !selectsAll(flt.Departement) {
		codes, _ := f.Column(clean.ColCodeDep)
		names, _ := f.Column(clean.ColNomDep)
		code := geo.NormalizeCode(flt.Departement)
		m := newLabelMatcher(flt.Departement)
		if codes != nil || names != nil {
			preds = append(preds, func(r int) bool {
				return (codes != nil && codes[r] == code) || (names != nil && m.match(names[r]))
			})
		}
	}
	if dims&byCommune != 0 && !selectsAll(flt.Commune) {
		names, _ := f.Column(clean.ColCommune)
		codes, _ := f.Column(clean.ColCodeCommune)
		code := geo.NormalizeCommune(flt.Commune)
		m := newLabelMatcher(flt.Commune)
		if codes != nil || names != nil {
			preds = append(preds, func(r int) bool {
				return (codes != nil && code != "" && codes[r] == code) || (names != nil && m.match(names[r]))
			})
		}
	}
	if dims&byYear != 0 && flt.Annee != 0 {
		if years, err := f.Nums(clean.ColAnnee); err == nil {
			y := float64(flt.Annee)
			preds = append(preds, func(r int) bool { return years[r].Valid && years[r].V == y })
		}
	}
	if dims&byPrice != 0 && (flt.PrixMin > 0 || flt.PrixMax > 0) {
		if prix, err := f.Nums(clean.ColPrixM2); err == nil {
			lo, hi := flt.PrixMin, flt.PrixMax
			preds = append(preds, func(r int) bool {
				p := prix[r]
				return p.Valid && p.V >= lo && (hi <= 0 || p.V <= hi)
			})
		}
	}

	if len(preds) == 0 {
		return f
	}
	return f.Filter(func(r int) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	})
}

// withBand fills an unset price band from the settings.
func (flt Filter) withBand(s Settings) Filter {
	if flt.PrixMin == 0 && flt.PrixMax == 0 {
		flt.PrixMin, flt.PrixMax = s.PrixMin, s.PrixMax
	}
	return flt
}

// DepartementOption is one selectable department.
type DepartementOption struct {
	Code string `json:"code"`
	Nom  string `json:"nom"`
}

// Options are the choices offered by the filter controls. Each level is
// restricted by the levels above it: regions by the zone, departments by
// zone and region, communes, types and years by zone, region and
// department.
type Options struct {
	Zones        []string            `json:"zones"`
	Regions      []string            `json:"regions"`
	Departements []DepartementOption `json:"departements"`
	Communes     []string            `json:"communes,omitempty"`
	Types        []string            `json:"types,omitempty"`
	Annees       []int               `json:"annees,omitempty"`
}

// FilterOptions computes the cascading options of f for the current filter.
func FilterOptions(f *frame.Frame, flt Filter) *Options {
	o := &Options{
		Zones:   sortedLabels(f.Distinct(clean.ColZone)),
		Regions: sortedLabels(flt.apply(f, byZone).Distinct(clean.ColRegion)),
	}

	deps := flt.apply(f, byZone|byRegion)
	codes, _ := deps.Column(clean.ColCodeDep)
	names, _ := deps.Column(clean.ColNomDep)
	seen := make(map[string]bool)
	for r, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		d := DepartementOption{Code: c}
		if names != nil {
			d.Nom = names[r]
		}
		o.Departements = append(o.Departements, d)
	}
	sort.Slice(o.Departements, func(i, j int) bool { return o.Departements[i].Code < o.Departements[j].Code })

	scope := flt.apply(f, byZone|byRegion|byDepartement)
	o.Communes = sortedLabels(scope.Distinct(clean.ColCommune))
	o.Types = sortedLabels(scope.Distinct(clean.ColTypeLocal))
	for _, y := range scope.Distinct(clean.ColAnnee) {
		if n := frame.ParseNum(y); n.Valid {
			o.Annees = append(o.Annees, int(n.V))
		}
	}
	sort.Ints(o.Annees)
	return o
}

// Options returns the cascading filter options of a dataset.
func (s *Service) Options(dataset string, flt Filter) (*Options, []string, error) {
	f, notices, err := s.Dataset(dataset)
	if err != nil {
		return nil, nil, err
	}
	return FilterOptions(f, flt), notices, nil
}

// sortedLabels sorts in French collation order ("Île-de-France" among the I).
func sortedLabels(v []string) []string {
	out := append([]string(nil), v...)
	collate.New(language.French).SortStrings(out)
	return out
}
