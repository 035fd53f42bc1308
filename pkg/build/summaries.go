// Package build produces the pre-aggregated summary tables read by the
// dashboard and writes them to one or more sinks.
package build

import (
	"fmt"
	"strconv"

	"github.com/hazyhaar/climmo/pkg/aggregate"
	"github.com/hazyhaar/climmo/pkg/clean"
	"github.com/hazyhaar/climmo/pkg/frame"
)

// Table is one named summary.
type Table struct {
	Name  string
	Frame *frame.Frame
}

// Options tunes the summaries.
type Options struct {
	// EvolutionFrom and EvolutionTo are the years compared by the
	// evolution_* tables.
	EvolutionFrom int
	EvolutionTo   int
	// TopN is the length of the ranking tables.
	TopN int
	// MinCount is the sales threshold of top20_villes_min30.
	MinCount int
}

// DefaultOptions compares 2020 with 2025 and ranks 20 communes with at
// least 30 sales.
func DefaultOptions() Options {
	return Options{EvolutionFrom: 2020, EvolutionTo: 2025, TopN: 20, MinCount: 30}
}

var lightColumns = []string{
	clean.ColAnnee, clean.ColCodeDep, clean.ColCommune, clean.ColTypeLocal,
	clean.ColValeur, clean.ColSurface, clean.ColPrixM2, clean.ColZone, clean.ColRegion,
}

// level is one geographic breakdown with a global, a yearly and an
// evolution table.
type level struct {
	keys      []string
	global    string
	yearly    string
	evolution string
}

var levels = []level{
	{[]string{clean.ColCommune, clean.ColCodeDep}, "prix_par_ville_global", "prix_par_ville_annee", "evolution_villes"},
	{[]string{clean.ColCodeDep}, "prix_departement_global", "prix_departement_annee", "evolution_departement"},
	{[]string{clean.ColRegion}, "prix_region_global", "prix_region_annee", "evolution_region"},
	{[]string{clean.ColZone}, "prix_zone_global", "prix_zone_annee", "evolution_zone"},
}

// Transactions computes the price summaries from cleaned transactions.
// Evolution tables are produced only when both compared years are present.
func Transactions(tx *frame.Frame, opts Options) ([]Table, error) {
	for _, c := range []string{clean.ColAnnee, clean.ColPrixM2, clean.ColCodeDep, clean.ColCommune} {
		if !tx.Has(c) {
			return nil, fmt.Errorf("%w: %s", frame.ErrColumnMissing, c)
		}
	}

	var out []Table
	add := func(name string, f *frame.Frame) { out = append(out, Table{Name: name, Frame: f}) }

	var present []string
	for _, c := range lightColumns {
		if tx.Has(c) {
			present = append(present, c)
		}
	}
	light, err := tx.Select(present...)
	if err != nil {
		return nil, err
	}
	add("dvf_light", light)

	from, to := strconv.Itoa(opts.EvolutionFrom), strconv.Itoa(opts.EvolutionTo)
	years := make(map[string]bool)
	for _, y := range tx.Distinct(clean.ColAnnee) {
		years[y] = true
	}
	withEvolution := years[from] && years[to]

	for _, lv := range levels {
		if !hasAll(tx, lv.keys) {
			continue
		}
		global, err := aggregate.GroupBy(tx, lv.keys, clean.ColPrixM2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", lv.global, err)
		}
		add(lv.global, global.Frame())

		yearly, err := aggregate.GroupBy(tx, append([]string{clean.ColAnnee}, lv.keys...), clean.ColPrixM2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", lv.yearly, err)
		}
		add(lv.yearly, yearly.Frame())

		if withEvolution {
			deltas, err := aggregate.Compare(tx, lv.keys, clean.ColAnnee, clean.ColPrixM2, from, to)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", lv.evolution, err)
			}
			add(lv.evolution+"_"+from+"_"+to, aggregate.DeltaFrame(lv.keys, from, to, deltas))
		}
	}

	if tx.Has(clean.ColTypeLocal) {
		byType, err := aggregate.GroupBy(tx, []string{clean.ColAnnee, clean.ColTypeLocal}, clean.ColPrixM2)
		if err != nil {
			return nil, err
		}
		add("prix_type_annee", byType.Frame())

		if tx.Has(clean.ColClasseSurface) {
			bySurface, err := aggregate.GroupBy(tx,
				[]string{clean.ColAnnee, clean.ColClasseSurface, clean.ColTypeLocal}, clean.ColPrixM2)
			if err != nil {
				return nil, err
			}
			add("prix_par_surface_type_annee", bySurface.Frame())
		}
	}

	rankings, err := lastYearRankings(tx, opts.TopN)
	if err != nil {
		return nil, err
	}
	out = append(out, rankings...)

	communes, err := aggregate.GroupBy(tx, []string{clean.ColCommune, clean.ColCodeDep}, clean.ColPrixM2)
	if err != nil {
		return nil, err
	}
	top := communes.MinCount(opts.MinCount).Top(opts.TopN)
	add(fmt.Sprintf("top%d_villes_min%d", opts.TopN, opts.MinCount),
		aggregate.GroupsFrame([]string{clean.ColCommune, clean.ColCodeDep}, top))

	return out, nil
}

// lastYearRankings ranks communes by mean price per m2 over the most recent
// year.
func lastYearRankings(tx *frame.Frame, n int) ([]Table, error) {
	years, err := tx.Nums(clean.ColAnnee)
	if err != nil {
		return nil, err
	}
	last, ok := maxNum(years)
	if !ok {
		return nil, nil
	}
	lastYear := frame.FormatFloat(last)
	sub := tx.Filter(func(r int) bool { return years[r].Valid && years[r].V == last })

	res, err := aggregate.GroupBy(sub, []string{clean.ColCommune, clean.ColCodeDep}, clean.ColPrixM2)
	if err != nil {
		return nil, err
	}
	rank := func(gs []aggregate.Group) *frame.Frame {
		f := frame.New(clean.ColCommune, clean.ColCodeDep, clean.ColPrixM2, clean.ColAnnee)
		for _, g := range gs {
			f.AppendRow(g.Key[0], g.Key[1], frame.FormatFloat(g.Stats.Mean), lastYear)
		}
		return f
	}
	return []Table{
		{Name: fmt.Sprintf("top%d_villes_plus_cheres", n), Frame: rank(res.Top(n))},
		{Name: fmt.Sprintf("bottom%d_villes_moins_cheres", n), Frame: rank(res.Bottom(n))},
	}, nil
}

// Risks computes risques_departement: exposed population summed and each
// available risk index averaged per department.
func Risks(risks *frame.Frame) ([]Table, error) {
	if !risks.Has(clean.ColPopulation) {
		return nil, fmt.Errorf("%w: %s", frame.ErrColumnMissing, clean.ColPopulation)
	}
	var keys []string
	for _, k := range []string{clean.ColCodeDep, clean.ColNomDep, clean.ColZone, clean.ColRegion} {
		if risks.Has(k) {
			keys = append(keys, k)
		}
	}
	reds := []aggregate.Reduction{{Column: clean.ColPopulation, Op: aggregate.Sum}}
	for _, c := range clean.RiskColumns {
		if risks.Has(c) {
			reds = append(reds, aggregate.Reduction{Column: c, Op: aggregate.Mean})
		}
	}
	f, err := aggregate.Reduce(risks, keys, reds...)
	if err != nil {
		return nil, fmt.Errorf("risques_departement: %w", err)
	}
	return []Table{{Name: "risques_departement", Frame: f}}, nil
}

func hasAll(f *frame.Frame, cols []string) bool {
	for _, c := range cols {
		if !f.Has(c) {
			return false
		}
	}
	return true
}

func maxNum(ns []frame.Num) (float64, bool) {
	var (
		best float64
		ok   bool
	)
	for _, n := range ns {
		if n.Valid && (!ok || n.V > best) {
			best, ok = n.V, true
		}
	}
	return best, ok
}
