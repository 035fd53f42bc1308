package report

import (
	"context"
	"fmt"

	"github.com/hazyhaar/climmo/pkg/aggregate"
	"github.com/hazyhaar/climmo/pkg/clean"
	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/geo"
	"github.com/hazyhaar/climmo/pkg/trend"
)

// lowVolume is the yearly sales count below which a trend is flagged as
// fragile.
const lowVolume = 50

// ImmobilierKPI are the headline figures of the selection.
type ImmobilierKPI struct {
	PrixMoyen     frame.Num `json:"prix_moyen_m2"`
	PrixMedian    frame.Num `json:"prix_median_m2"`
	Transactions  int       `json:"nb_transactions"`
	ValeurMoyenne frame.Num `json:"valeur_fonciere_moyenne"`

	// Evolution is the change of PrixMoyen against the previous year, set
	// only when a year is selected.
	Evolution       frame.Num `json:"evolution_pct"`
	AnneePrecedente int       `json:"annee_precedente,omitempty"`
}

// DepartementPrix is one row of the department ranking.
type DepartementPrix struct {
	Code   string    `json:"code_departement"`
	Nom    string    `json:"nom_departement"`
	PrixM2 float64   `json:"prix_m2"`
	Nb     int       `json:"nb"`
	Indice frame.Num `json:"indice_100"`
}

// AnneePrix is one year of the price series.
type AnneePrix struct {
	Annee         int       `json:"annee"`
	PrixM2        float64   `json:"prix_m2"`
	Nb            int       `json:"nb"`
	MoyenneMobile frame.Num `json:"moyenne_mobile_3"`
}

// TypePrix are the statistics of one property type.
type TypePrix struct {
	Type  string          `json:"type_local"`
	Stats aggregate.Stats `json:"stats"`
}

// CommunePrix is one commune of the rankings.
type CommunePrix struct {
	Commune     string  `json:"commune"`
	Departement string  `json:"departement"`
	PrixM2      float64 `json:"prix_m2"`
	Nb          int     `json:"nb"`
}

// Serie is a named (year, value) series.
type Serie struct {
	Nom    string        `json:"nom"`
	Points []trend.Point `json:"points"`
}

// ParisBanlieue compares Paris with its suburbs.
type ParisBanlieue struct {
	Paris    frame.Num `json:"paris"`
	Banlieue frame.Num `json:"banlieue_idf"`
}

// Immobilier is the property price report.
type Immobilier struct {
	Filter        Filter             `json:"filtre"`
	KPI           ImmobilierKPI      `json:"kpi"`
	Departements  []DepartementPrix  `json:"departements"`
	Evolution     []AnneePrix        `json:"evolution"`
	Types         []TypePrix         `json:"types"`
	Top           []CommunePrix      `json:"top_communes"`
	Bottom        []CommunePrix      `json:"bottom_communes"`
	Prevision     []trend.Projection `json:"prevision,omitempty"`
	ParisBanlieue ParisBanlieue      `json:"paris_banlieue"`
	Zones         []Serie            `json:"zones"`
	Notices       []string           `json:"notices,omitempty"`
}

// Immobilier computes the property price report for flt. Unless the filter
// sets a price band, the dashboard band from the settings applies.
func (s *Service) Immobilier(ctx context.Context, flt Filter) (*Immobilier, error) {
	flt = flt.withBand(s.settings)
	return cached(ctx, s, "immobilier", flt, []string{Transactions}, func() (*Immobilier, error) {
		tx, notices, err := s.Dataset(Transactions)
		if err != nil {
			return nil, err
		}
		return BuildImmobilier(tx, flt, s.settings, notices), nil
	})
}

// BuildImmobilier computes the report over cleaned transactions.
func BuildImmobilier(tx *frame.Frame, flt Filter, set Settings, notices []string) *Immobilier {
	rep := &Immobilier{Filter: flt, Notices: append([]string(nil), notices...)}
	note := func(format string, args ...any) { rep.Notices = append(rep.Notices, fmt.Sprintf(format, args...)) }

	base := flt.apply(tx, byPrice)
	sel := flt.apply(tx, allDims)
	if sel.Len() == 0 {
		note("aucune transaction pour ces filtres")
	}

	rep.KPI = immobilierKPI(tx, sel, flt)
	if flt.Annee != 0 && !rep.KPI.Evolution.Valid {
		note("pas de comparaison possible avec %d", flt.Annee-1)
	}

	rep.Departements = departementPrix(flt.apply(tx, allDims&^(byDepartement|byCommune)))

	series := flt.apply(tx, allDims&^byYear)
	rep.Evolution = evolution(series, set.MinTransactions)
	for _, e := range rep.Evolution {
		if e.Nb < lowVolume {
			note("certaines années reposent sur moins de %d transactions : tendance à interpréter avec prudence", lowVolume)
			break
		}
	}

	if res, err := aggregate.GroupBy(sel, []string{clean.ColTypeLocal}, clean.ColPrixM2); err == nil {
		for _, g := range res.Groups {
			rep.Types = append(rep.Types, TypePrix{Type: g.Key[0], Stats: g.Stats})
		}
	}

	if sel.Has(clean.ColCommune) {
		keys := []string{clean.ColCommune, clean.ColCodeDep}
		if sel.Has(clean.ColNomDep) {
			keys[1] = clean.ColNomDep
		}
		if res, err := aggregate.GroupBy(sel, keys, clean.ColPrixM2); err == nil {
			rep.Top = communePrix(res.Top(20))
			rep.Bottom = communePrix(res.Bottom(20))
		}
	} else {
		note("colonne commune absente : pas de classement des communes")
	}

	rep.Prevision = forecast(rep.Evolution, set.ForecastYears)
	if rep.Prevision == nil {
		note("prévision indisponible : il faut au moins 3 années avec %d transactions ou plus", set.MinTransactions)
	}

	pb := flt.apply(tx, byType|byYear|byPrice)
	if res, err := aggregate.GroupBy(pb, []string{clean.ColZoneParis}, clean.ColPrixM2); err == nil {
		if st, ok := res.Lookup(geo.ParisLabel); ok {
			rep.ParisBanlieue.Paris = frame.Some(st.Mean)
		}
		if st, ok := res.Lookup(geo.BanlieueLabel); ok {
			rep.ParisBanlieue.Banlieue = frame.Some(st.Mean)
		}
	}

	if zs, err := trendByGroup(base, clean.ColZone, clean.ColPrixM2); err == nil {
		rep.Zones = zs
	}
	return rep
}

func immobilierKPI(tx, sel *frame.Frame, flt Filter) ImmobilierKPI {
	var k ImmobilierKPI
	k.Transactions = sel.Len()
	if st, ok := summarize(sel, clean.ColPrixM2); ok {
		k.PrixMoyen, k.PrixMedian = frame.Some(st.Mean), frame.Some(st.Median)
	}
	if st, ok := summarize(sel, clean.ColValeur); ok {
		k.ValeurMoyenne = frame.Some(st.Mean)
	}
	if flt.Annee != 0 {
		prev := flt
		prev.Annee--
		if st, ok := summarize(prev.apply(tx, allDims), clean.ColPrixM2); ok {
			k.Evolution = aggregate.PctChange(frame.Some(st.Mean), k.PrixMoyen)
			k.AnneePrecedente = prev.Annee
		}
	}
	return k
}

func departementPrix(f *frame.Frame) []DepartementPrix {
	keys := []string{clean.ColCodeDep}
	if f.Has(clean.ColNomDep) {
		keys = append(keys, clean.ColNomDep)
	}
	res, err := aggregate.GroupBy(f, keys, clean.ColPrixM2)
	if err != nil {
		return nil
	}
	means := make([]float64, len(res.Groups))
	for i, g := range res.Groups {
		means[i] = g.Stats.Mean
	}
	idx := aggregate.Index100(means)
	out := make([]DepartementPrix, len(res.Groups))
	for i, g := range res.Groups {
		d := DepartementPrix{Code: g.Key[0], PrixM2: g.Stats.Mean, Nb: g.Stats.Count, Indice: idx[i]}
		if len(g.Key) > 1 {
			d.Nom = g.Key[1]
		}
		out[i] = d
	}
	return out
}

// evolution is the yearly mean price restricted to years with at least
// minCount sales, with a centred 3-year rolling mean.
func evolution(f *frame.Frame, minCount int) []AnneePrix {
	res, err := aggregate.GroupBy(f, []string{clean.ColAnnee}, clean.ColPrixM2)
	if err != nil {
		return nil
	}
	res = res.MinCount(minCount)
	out := make([]AnneePrix, 0, len(res.Groups))
	means := make([]float64, 0, len(res.Groups))
	for _, g := range res.Groups {
		y := frame.ParseNum(g.Key[0])
		if !y.Valid {
			continue
		}
		out = append(out, AnneePrix{Annee: int(y.V), PrixM2: g.Stats.Mean, Nb: g.Stats.Count})
		means = append(means, g.Stats.Mean)
	}
	for i, m := range aggregate.RollingMean(means, 3) {
		out[i].MoyenneMobile = m
	}
	return out
}

// forecast projects the yearly series n years past its last year, floored
// at 0. It needs at least three years.
func forecast(ev []AnneePrix, n int) []trend.Projection {
	if len(ev) == 0 {
		return nil
	}
	pts := make([]trend.Point, len(ev))
	for i, e := range ev {
		pts[i] = trend.Point{X: float64(e.Annee), Y: e.PrixM2}
	}
	last, _ := trend.LastYear(pts)
	p, ok := trend.Project(pts, trend.Years(last, n), trend.WithFloor(0), trend.MinPoints(3))
	if !ok {
		return nil
	}
	return p
}

func communePrix(gs []aggregate.Group) []CommunePrix {
	out := make([]CommunePrix, len(gs))
	for i, g := range gs {
		out[i] = CommunePrix{Commune: g.Key[0], Departement: g.Key[1], PrixM2: g.Stats.Mean, Nb: g.Stats.Count}
	}
	return out
}

// trendByGroup returns the yearly mean of metric for each value of group.
func trendByGroup(f *frame.Frame, group, metric string) ([]Serie, error) {
	res, err := aggregate.GroupBy(f, []string{group, clean.ColAnnee}, metric)
	if err != nil {
		return nil, err
	}
	var out []Serie
	for _, g := range res.Groups {
		y := frame.ParseNum(g.Key[1])
		if !y.Valid {
			continue
		}
		if len(out) == 0 || out[len(out)-1].Nom != g.Key[0] {
			out = append(out, Serie{Nom: g.Key[0]})
		}
		s := &out[len(out)-1]
		s.Points = append(s.Points, trend.Point{X: y.V, Y: g.Stats.Mean})
	}
	return out, nil
}

func summarize(f *frame.Frame, col string) (aggregate.Stats, bool) {
	nums, err := f.Nums(col)
	if err != nil {
		return aggregate.Stats{}, false
	}
	vs := make([]float64, 0, len(nums))
	for _, n := range nums {
		if n.Valid {
			vs = append(vs, n.V)
		}
	}
	if len(vs) == 0 {
		return aggregate.Stats{}, false
	}
	return aggregate.Summarize(vs), true
}
