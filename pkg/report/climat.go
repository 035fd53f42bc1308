package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/hazyhaar/climmo/pkg/aggregate"
	"github.com/hazyhaar/climmo/pkg/clean"
	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/trend"
)

// ClimatParams are the parameters of the climate report.
type ClimatParams struct {
	Filter Filter `json:"filtre"`
	// Risk is the risk index the KPIs and series use; empty means the
	// global index.
	Risk string `json:"risque,omitempty"`
	// Top is the number of communes ranked by exposure; 0 means the
	// configured default.
	Top int `json:"top,omitempty"`
}

// ClimatKPI are the headline figures of the selection.
type ClimatKPI struct {
	Population    float64   `json:"population_exposee"`
	PartNationale frame.Num `json:"part_nationale_pct"`
	Departements  int       `json:"nb_departements"`
	RisqueMoyen   frame.Num `json:"risque_moyen"`
}

// DepartementRisque is one department's exposure.
type DepartementRisque struct {
	Code       string               `json:"code_departement"`
	Nom        string               `json:"nom_departement"`
	Zone       string               `json:"zone"`
	Region     string               `json:"region"`
	Population float64              `json:"population_exposee"`
	Risques    map[string]frame.Num `json:"risques"`
}

// Exposition is the exposed population of one zone or region.
type Exposition struct {
	Nom        string    `json:"nom"`
	Population float64   `json:"population_exposee"`
	Part       frame.Num `json:"part_pct"`
}

// CommuneRisque is one commune of the exposure ranking.
type CommuneRisque struct {
	Commune     string  `json:"commune"`
	CodeCommune string  `json:"code_commune"`
	Departement string  `json:"nom_departement"`
	Zone        string  `json:"zone"`
	Region      string  `json:"region"`
	Population  float64 `json:"population_exposee"`
}

// ProfilZone is the mean of each risk index over a zone's departments.
type ProfilZone struct {
	Zone    string               `json:"zone"`
	Risques map[string]frame.Num `json:"risques"`
}

// Synthese names the most exposed zone and department.
type Synthese struct {
	Zone                  string  `json:"zone,omitempty"`
	PopulationZone        float64 `json:"population_zone"`
	Departement           string  `json:"departement,omitempty"`
	PopulationDepartement float64 `json:"population_departement"`
}

// Climat is the climate exposure report.
type Climat struct {
	Params              ClimatParams            `json:"parametres"`
	Risque              string                  `json:"risque"`
	Libelle             string                  `json:"libelle"`
	KPI                 ClimatKPI               `json:"kpi"`
	Departements        []DepartementRisque     `json:"departements"`
	Zones               []Exposition            `json:"zones"`
	Regions             []Exposition            `json:"top_regions"`
	Communes            []CommuneRisque         `json:"top_communes"`
	Profil              []ProfilZone            `json:"profil_zones"`
	Series              []Serie                 `json:"series_zones,omitempty"`
	PrevisionPopulation []trend.Projection      `json:"prevision_population,omitempty"`
	PrevisionRisque     []trend.GroupProjection `json:"prevision_risque,omitempty"`
	ZonesSansPrevision  []string                `json:"zones_sans_prevision,omitempty"`
	Synthese            Synthese                `json:"synthese"`
	Notices             []string                `json:"notices,omitempty"`
}

const topRegions = 10

// Climat computes the climate exposure report.
func (s *Service) Climat(ctx context.Context, p ClimatParams) (*Climat, error) {
	if p.Top <= 0 {
		p.Top = s.settings.TopCommunes
	}
	return cached(ctx, s, "climat", p, []string{Risques}, func() (*Climat, error) {
		risks, notices, err := s.Dataset(Risques)
		if err != nil {
			return nil, err
		}
		return BuildClimat(risks, p, s.settings, notices), nil
	})
}

// BuildClimat computes the report over cleaned risk records.
func BuildClimat(risks *frame.Frame, p ClimatParams, set Settings, notices []string) *Climat {
	rep := &Climat{Params: p, Notices: append([]string(nil), notices...)}
	note := func(format string, args ...any) { rep.Notices = append(rep.Notices, fmt.Sprintf(format, args...)) }

	rep.Risque = riskColumn(risks, p.Risk, note)
	rep.Libelle = clean.RiskLabels[rep.Risque]
	if p.Top <= 0 {
		p.Top = set.TopCommunes
	}

	present := presentRisks(risks)
	sel := p.Filter.apply(risks, geoDims|byYear)
	if sel.Len() == 0 {
		note("aucune commune pour ces filtres")
	}
	total := sumOf(risks, clean.ColPopulation)

	rep.Departements = departementRisques(sel, present)
	rep.KPI.Population = sumOf(sel, clean.ColPopulation)
	rep.KPI.PartNationale = share(rep.KPI.Population, total)
	rep.KPI.Departements = len(rep.Departements)
	if rep.Risque != "" {
		var vs []float64
		for _, d := range rep.Departements {
			if v := d.Risques[rep.Risque]; v.Valid {
				vs = append(vs, v.V)
			}
		}
		if len(vs) > 0 {
			rep.KPI.RisqueMoyen = frame.Some(aggregate.Summarize(vs).Mean)
		}
	}

	popTotal := rep.KPI.Population
	rep.Zones = expositions(sel, clean.ColZone, popTotal, -1)
	rep.Regions = expositions(sel, clean.ColRegion, popTotal, topRegions)
	rep.Communes = topCommunes(sel, p.Top, note)
	rep.Profil = profilZones(rep.Departements, present)

	if !risks.Has(clean.ColAnnee) {
		note("pas de colonne annee : séries et prévisions climatiques indisponibles")
	} else {
		rep.PrevisionPopulation = populationForecast(sel, set)
		if rep.PrevisionPopulation == nil {
			note("prévision de population indisponible : au moins 2 années nécessaires")
		}
		if rep.Risque != "" {
			series := p.Filter.apply(risks, byRegion|byDepartement)
			rep.Series, _ = trendByGroup(series, clean.ColZone, rep.Risque)
			byZone := make(map[string][]trend.Point, len(rep.Series))
			for _, s := range rep.Series {
				byZone[s.Nom] = s.Points
			}
			rep.PrevisionRisque, rep.ZonesSansPrevision = trend.ProjectGroups(byZone, trend.Range(set.ClimateFrom, set.ClimateTo))
			if len(rep.ZonesSansPrevision) > 0 {
				note("zones sans prévision (moins de 2 années) : %s", strings.Join(rep.ZonesSansPrevision, ", "))
			}
		}
	}

	if len(rep.Zones) > 0 {
		top := slices.MaxFunc(rep.Zones, func(a, b Exposition) int { return cmp.Compare(a.Population, b.Population) })
		rep.Synthese.Zone, rep.Synthese.PopulationZone = top.Nom, top.Population
	}
	if len(rep.Departements) > 0 {
		top := slices.MaxFunc(rep.Departements, func(a, b DepartementRisque) int { return cmp.Compare(a.Population, b.Population) })
		rep.Synthese.Departement, rep.Synthese.PopulationDepartement = top.Nom, top.Population
		if top.Nom == "" {
			rep.Synthese.Departement = top.Code
		}
	}
	return rep
}

// riskColumn resolves the requested risk index, falling back to the global
// index and then to the first index present.
func riskColumn(f *frame.Frame, want string, note func(string, ...any)) string {
	if want != "" && !slices.Contains(clean.RiskColumns, want) {
		note("indicateur %q inconnu : %s utilisé", want, clean.ColRisqueGlobal)
		want = ""
	}
	if want == "" {
		want = clean.ColRisqueGlobal
	}
	if f.Has(want) {
		return want
	}
	for _, c := range clean.RiskColumns {
		if f.Has(c) {
			note("indicateur %s absent : %s utilisé", want, c)
			return c
		}
	}
	note("aucun indicateur de risque dans les données")
	return ""
}

func presentRisks(f *frame.Frame) []string {
	var out []string
	for _, c := range clean.RiskColumns {
		if f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func departementRisques(f *frame.Frame, risks []string) []DepartementRisque {
	keys := []string{clean.ColCodeDep, clean.ColZone, clean.ColRegion}
	names := depNames(f)
	reds := []aggregate.Reduction{{Column: clean.ColPopulation, Op: aggregate.Sum}}
	for _, r := range risks {
		reds = append(reds, aggregate.Reduction{Column: r, Op: aggregate.Mean})
	}
	agg, err := aggregate.Reduce(f, keys, reds...)
	if err != nil {
		return nil
	}
	pop, _ := agg.Nums(clean.ColPopulation)
	out := make([]DepartementRisque, agg.Len())
	for r := range out {
		d := DepartementRisque{
			Code:       agg.Value(r, clean.ColCodeDep),
			Nom:        names[agg.Value(r, clean.ColCodeDep)],
			Zone:       agg.Value(r, clean.ColZone),
			Region:     agg.Value(r, clean.ColRegion),
			Population: pop[r].V,
			Risques:    make(map[string]frame.Num, len(risks)),
		}
		for _, c := range risks {
			d.Risques[c] = frame.ParseNum(agg.Value(r, c))
		}
		out[r] = d
	}
	return out
}

// expositions sums the exposed population by col, largest first, keeping
// the first n (all when n < 0).
func expositions(f *frame.Frame, col string, total float64, n int) []Exposition {
	agg, err := aggregate.Reduce(f, []string{col}, aggregate.Reduction{Column: clean.ColPopulation, Op: aggregate.Sum})
	if err != nil {
		return nil
	}
	pop, _ := agg.Nums(clean.ColPopulation)
	out := make([]Exposition, agg.Len())
	for r := range out {
		out[r] = Exposition{Nom: agg.Value(r, col), Population: pop[r].V, Part: share(pop[r].V, total)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Population > out[j].Population })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// topCommunes ranks communes by exposed population. Rows without a commune
// code or name are left out.
func topCommunes(f *frame.Frame, n int, note func(string, ...any)) []CommuneRisque {
	keys := []string{clean.ColZone, clean.ColRegion, clean.ColCodeDep, clean.ColCodeCommune, clean.ColCommune}
	for _, k := range keys[3:] {
		if !f.Has(k) {
			note("colonne %s absente : pas de classement des communes", k)
			return nil
		}
	}
	agg, err := aggregate.Reduce(f, keys, aggregate.Reduction{Column: clean.ColPopulation, Op: aggregate.Sum})
	if err != nil {
		return nil
	}
	names := depNames(f)
	pop, _ := agg.Nums(clean.ColPopulation)
	out := make([]CommuneRisque, agg.Len())
	for r := range out {
		out[r] = CommuneRisque{
			Zone:        agg.Value(r, clean.ColZone),
			Region:      agg.Value(r, clean.ColRegion),
			Departement: names[agg.Value(r, clean.ColCodeDep)],
			CodeCommune: agg.Value(r, clean.ColCodeCommune),
			Commune:     agg.Value(r, clean.ColCommune),
			Population:  pop[r].V,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Population > out[j].Population })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func profilZones(deps []DepartementRisque, risks []string) []ProfilZone {
	byZone := make(map[string][]DepartementRisque)
	for _, d := range deps {
		byZone[d.Zone] = append(byZone[d.Zone], d)
	}
	zones := make([]string, 0, len(byZone))
	for z := range byZone {
		zones = append(zones, z)
	}
	sort.Strings(zones)

	out := make([]ProfilZone, 0, len(zones))
	for _, z := range zones {
		pz := ProfilZone{Zone: z, Risques: make(map[string]frame.Num, len(risks))}
		for _, c := range risks {
			var vs []float64
			for _, d := range byZone[z] {
				if v := d.Risques[c]; v.Valid {
					vs = append(vs, v.V)
				}
			}
			if len(vs) > 0 {
				pz.Risques[c] = frame.Some(aggregate.Summarize(vs).Mean)
			} else {
				pz.Risques[c] = frame.Num{}
			}
		}
		out = append(out, pz)
	}
	return out
}

func populationForecast(f *frame.Frame, set Settings) []trend.Projection {
	agg, err := aggregate.Reduce(f, []string{clean.ColAnnee}, aggregate.Reduction{Column: clean.ColPopulation, Op: aggregate.Sum})
	if err != nil {
		return nil
	}
	pts, err := trend.Series(agg, clean.ColAnnee, clean.ColPopulation)
	if err != nil {
		return nil
	}
	p, ok := trend.Project(pts, trend.Range(set.ClimateFrom, set.ClimateTo))
	if !ok {
		return nil
	}
	return p
}

func sumOf(f *frame.Frame, col string) float64 {
	nums, err := f.Nums(col)
	if err != nil {
		return 0
	}
	var s float64
	for _, n := range nums {
		if n.Valid {
			s += n.V
		}
	}
	return s
}

// share is part/total in percent, missing when total is 0.
func share(part, total float64) frame.Num {
	if total == 0 {
		return frame.Num{}
	}
	return frame.Some(part / total * 100)
}

// depNames maps department codes to the first non-empty name seen.
func depNames(f *frame.Frame) map[string]string {
	out := make(map[string]string)
	codes, err := f.Column(clean.ColCodeDep)
	if err != nil {
		return out
	}
	for r, c := range codes {
		if out[c] == "" {
			out[c] = f.Value(r, clean.ColNomDep)
		}
	}
	return out
}
