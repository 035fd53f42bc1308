package aggregate

import (
	"strings"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// Delta is the change of a group's mean metric between two periods.
type Delta struct {
	Key  []string  `json:"key"`
	From float64   `json:"from"`
	To   float64   `json:"to"`
	Abs  float64   `json:"variation_abs"`
	Pct  frame.Num `json:"variation_pct"`
}

// Compare pivots the mean of metric per (keys, period) into two periods and
// returns, for each key present in both, the absolute and percentage change
// from the first to the second. The percentage is missing when the first
// period's mean is 0.
func Compare(f *frame.Frame, keys []string, period, metric, from, to string) ([]Delta, error) {
	res, err := GroupBy(f, append(append([]string(nil), keys...), period), metric)
	if err != nil {
		return nil, err
	}

	type pair struct {
		key      []string
		from, to frame.Num
	}
	pairs := make(map[string]*pair)
	var order []string
	for _, g := range res.Groups {
		p := g.Key[len(g.Key)-1]
		if p != from && p != to {
			continue
		}
		key := g.Key[:len(g.Key)-1]
		id := strings.Join(key, keySep)
		pp, ok := pairs[id]
		if !ok {
			pp = &pair{key: key}
			pairs[id] = pp
			order = append(order, id)
		}
		if p == from {
			pp.from = frame.Some(g.Stats.Mean)
		} else {
			pp.to = frame.Some(g.Stats.Mean)
		}
	}

	var out []Delta
	for _, id := range order {
		p := pairs[id]
		if !p.from.Valid || !p.to.Valid {
			continue
		}
		d := Delta{Key: p.key, From: p.from.V, To: p.to.V, Abs: p.to.V - p.from.V}
		if p.from.V != 0 {
			d.Pct = frame.Some(100 * d.Abs / p.from.V)
		}
		out = append(out, d)
	}
	return out, nil
}

// DeltaFrame renders deltas with the key columns, one column per period
// named after it, then variation_abs and variation_pct.
func DeltaFrame(keys []string, from, to string, deltas []Delta) *frame.Frame {
	out := frame.New(append(append([]string(nil), keys...), from, to, "variation_abs", "variation_pct")...)
	for _, d := range deltas {
		row := append([]string(nil), d.Key...)
		row = append(row,
			frame.FormatFloat(d.From),
			frame.FormatFloat(d.To),
			frame.FormatFloat(d.Abs),
			d.Pct.String(),
		)
		out.AppendRow(row...)
	}
	return out
}
