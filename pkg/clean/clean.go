// Package clean derives the analysis columns of the two source datasets:
// property transactions (price per square metre, year, geography, surface
// class) and climate-risk indicators (canonical risk columns, geography).
// Cleaning never mutates its input; it returns a new frame and a Report.
package clean

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/geo"
)

// Column names produced by cleaning.
const (
	ColAnnee          = "annee"
	ColDate           = "date_mutation"
	ColCodeDep        = "code_departement"
	ColNomDep         = "nom_departement"
	ColRegion         = "region"
	ColZone           = "zone"
	ColZoneParis      = "zone_paris"
	ColCommune        = "commune"
	ColCodeCommune    = "code_commune"
	ColTypeLocal      = "type_local"
	ColValeur         = "valeur_fonciere"
	ColSurface        = "surface_reelle_bati"
	ColPrixM2         = "prix_m2"
	ColClasseSurface  = "classe_surface"
	ColPopulation     = "population_exposee"
	ColRisqueGlobal   = "risque_global"
	ColRisqueChaleur  = "risque_chaleur"
	ColRisqueInond    = "risque_inondation"
	ColRisqueSecheres = "risque_secheresse"
	ColRisqueFeux     = "risque_feux"
)

// RiskColumns lists the risk indices, global index first.
var RiskColumns = []string{ColRisqueGlobal, ColRisqueChaleur, ColRisqueInond, ColRisqueSecheres, ColRisqueFeux}

// RiskLabels are the display names of the risk indices.
var RiskLabels = map[string]string{
	ColRisqueGlobal:   "Risque global (pondéré)",
	ColRisqueChaleur:  "Chaleur / canicule",
	ColRisqueInond:    "Inondation",
	ColRisqueSecheres: "Mouvements de terrain / sécheresse",
	ColRisqueFeux:     "Feux de forêt",
}

// Report summarises a cleaning pass.
type Report struct {
	RowsIn   int               `json:"rows_in"`
	RowsKept int               `json:"rows_kept"`
	Dropped  map[string]int    `json:"dropped,omitempty"`
	Renamed  map[string]string `json:"renamed,omitempty"`
	Notices  []string          `json:"notices,omitempty"`
}

func (r *Report) drop(reason string) {
	if r.Dropped == nil {
		r.Dropped = make(map[string]int)
	}
	r.Dropped[reason]++
}

func (r *Report) notice(format string, args ...any) {
	r.Notices = append(r.Notices, fmt.Sprintf(format, args...))
}

// String renders the report on one line for logs and the CLI.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d rows kept", r.RowsKept, r.RowsIn)
	reasons := make([]string, 0, len(r.Dropped))
	for k := range r.Dropped {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		fmt.Fprintf(&b, ", %d dropped (%s)", r.Dropped[k], k)
	}
	return b.String()
}

// geography derives the department columns of every row from its raw code.
func geography(t *geo.Table, raw []string) (code, name, region, zone, paris []string) {
	n := len(raw)
	code, name, region, zone, paris = make([]string, n), make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	for i, r := range raw {
		c := t.Classify(r)
		code[i], name[i], region[i], zone[i] = c.Code, c.Name, c.Region, c.Zone
		paris[i] = t.ParisZone(c.Code)
	}
	return code, name, region, zone, paris
}

// applyAliases renames alias columns to their canonical name when the
// canonical column is absent. The first alias present wins.
func applyAliases(f *frame.Frame, aliases map[string][]string, rep *Report) {
	targets := make([]string, 0, len(aliases))
	for t := range aliases {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for _, target := range targets {
		if f.Has(target) {
			continue
		}
		src, ok := f.Resolve(aliases[target]...)
		if !ok {
			continue
		}
		for o, n := range f.Rename(map[string]string{src: target}) {
			if rep.Renamed == nil {
				rep.Renamed = make(map[string]string)
			}
			rep.Renamed[o] = n
		}
	}
}
