package report

import (
	"context"
	"errors"

	"github.com/hazyhaar/climmo/pkg/aggregate"
	"github.com/hazyhaar/climmo/pkg/clean"
	"github.com/hazyhaar/climmo/pkg/frame"
)

// Lecture is the local-versus-national reading of one indicator.
type Lecture struct {
	Local    frame.Num           `json:"local"`
	National frame.Num           `json:"national"`
	Position aggregate.Position  `json:"position"`
	Phrase   string              `json:"lecture"`
	Carte    []ValeurDepartement `json:"carte,omitempty"`
}

// ValeurDepartement is one department of a map.
type ValeurDepartement struct {
	Code   string  `json:"code_departement"`
	Nom    string  `json:"nom_departement"`
	Valeur float64 `json:"valeur"`
}

// Conclusion puts the selection's prices and climate exposure next to the
// national figures.
type Conclusion struct {
	Filter  Filter   `json:"filtre"`
	Prix    Lecture  `json:"prix_m2"`
	Risque  Lecture  `json:"risque"`
	Notices []string `json:"notices,omitempty"`
}

var (
	prixPhrases = map[aggregate.Position]string{
		aggregate.Below:       "moins cher",
		aggregate.Average:     "dans la moyenne",
		aggregate.Above:       "plus cher",
		aggregate.Unavailable: "non disponible",
	}
	risquePhrases = map[aggregate.Position]string{
		aggregate.Below:       "moins exposé",
		aggregate.Average:     "dans la moyenne",
		aggregate.Above:       "plus exposé",
		aggregate.Unavailable: "non disponible",
	}
)

// Conclusion computes the conclusion report. The transactions dataset is
// required; without the risk dataset the climate reading is "non
// disponible" and a notice says why. No default price band is applied: only
// an explicit prix_min/prix_max narrows the selection.
func (s *Service) Conclusion(ctx context.Context, flt Filter) (*Conclusion, error) {
	return cached(ctx, s, "conclusion", flt, []string{Transactions, Risques}, func() (*Conclusion, error) {
		tx, notices, err := s.Dataset(Transactions)
		if err != nil {
			return nil, err
		}
		risks, riskNotices, err := s.Dataset(Risques)
		switch {
		case err == nil:
			notices = append(notices, riskNotices...)
		case errors.Is(err, ErrDatasetMissing):
			notices = append(notices, "données climatiques indisponibles : "+err.Error())
			risks = nil
		default:
			return nil, err
		}
		return BuildConclusion(tx, risks, flt, s.settings.Tolerance, notices), nil
	})
}

// BuildConclusion compares the filtered selection with the whole dataset:
// the national means ignore every filter, type and year included.
// risks may be nil.
func BuildConclusion(tx, risks *frame.Frame, flt Filter, tol float64, notices []string) *Conclusion {
	rep := &Conclusion{Filter: flt, Notices: append([]string(nil), notices...)}

	local := flt.apply(tx, allDims)
	if local.Len() == 0 {
		rep.Notices = append(rep.Notices, "aucune transaction pour ces filtres")
	}
	rep.Prix = lecture(local, tx, clean.ColPrixM2, tol, prixPhrases)

	if risks == nil {
		rep.Risque = Lecture{Position: aggregate.Unavailable, Phrase: risquePhrases[aggregate.Unavailable]}
		return rep
	}
	col := clean.ColRisqueGlobal
	if !risks.Has(col) {
		rep.Notices = append(rep.Notices, "indicateur "+col+" absent des données climatiques")
	}
	rep.Risque = lecture(flt.apply(risks, geoDims|byYear), risks, col, tol, risquePhrases)
	return rep
}

func lecture(local, national *frame.Frame, col string, tol float64, phrases map[aggregate.Position]string) Lecture {
	var l Lecture
	if st, ok := summarize(local, col); ok {
		l.Local = frame.Some(st.Mean)
	}
	if st, ok := summarize(national, col); ok {
		l.National = frame.Some(st.Mean)
	}
	l.Position = aggregate.CompareToReference(l.Local, l.National, tol)
	l.Phrase = phrases[l.Position]
	l.Carte = carte(local, col)
	return l
}

// carte is the mean of col per department, departments without a value
// left out.
func carte(f *frame.Frame, col string) []ValeurDepartement {
	res, err := aggregate.GroupBy(f, []string{clean.ColCodeDep}, col)
	if err != nil {
		return nil
	}
	names := depNames(f)
	out := make([]ValeurDepartement, len(res.Groups))
	for i, g := range res.Groups {
		out[i] = ValeurDepartement{Code: g.Key[0], Nom: names[g.Key[0]], Valeur: g.Stats.Mean}
	}
	return out
}
