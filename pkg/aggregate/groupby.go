package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// Group is one distinct key combination and its statistics.
type Group struct {
	Key   []string `json:"key"`
	Stats Stats    `json:"stats"`
}

// Result is the output of GroupBy, with groups in ascending key order.
type Result struct {
	Keys   []string `json:"keys"`
	Metric string   `json:"metric"`
	Groups []Group  `json:"groups"`
}

// StatColumns are the statistic columns written by Result.Frame.
var StatColumns = []string{"count", "mean", "median", "min", "max"}

const keySep = "\x1f"

// GroupBy returns one group per distinct combination of the key columns, with
// the statistics of metric over the rows where metric is present. Rows with
// a missing metric or an empty key cell do not take part.
func GroupBy(f *frame.Frame, keys []string, metric string) (*Result, error) {
	nums, err := f.Nums(metric)
	if err != nil {
		return nil, err
	}
	keyCols, err := columns(f, keys)
	if err != nil {
		return nil, err
	}

	values := make(map[string][]float64)
	labels := make(map[string][]string)
	for r, n := range nums {
		if !n.Valid {
			continue
		}
		key, ok := rowKey(keyCols, r)
		if !ok {
			continue
		}
		id := strings.Join(key, keySep)
		if _, seen := labels[id]; !seen {
			labels[id] = key
		}
		values[id] = append(values[id], n.V)
	}

	res := &Result{Keys: append([]string(nil), keys...), Metric: metric}
	for id, vs := range values {
		res.Groups = append(res.Groups, Group{Key: labels[id], Stats: Summarize(vs)})
	}
	sortGroups(res.Groups)
	return res, nil
}

// MinCount returns a copy keeping only the groups with at least n rows.
func (r *Result) MinCount(n int) *Result {
	out := &Result{Keys: r.Keys, Metric: r.Metric}
	for _, g := range r.Groups {
		if g.Stats.Count >= n {
			out.Groups = append(out.Groups, g)
		}
	}
	return out
}

// Lookup returns the statistics of one key combination.
func (r *Result) Lookup(key ...string) (Stats, bool) {
	want := strings.Join(key, keySep)
	for _, g := range r.Groups {
		if strings.Join(g.Key, keySep) == want {
			return g.Stats, true
		}
	}
	return Stats{}, false
}

// Top returns the n groups with the highest mean, highest first.
func (r *Result) Top(n int) []Group { return r.ranked(n, true) }

// Bottom returns the n groups with the lowest mean, lowest first.
func (r *Result) Bottom(n int) []Group { return r.ranked(n, false) }

func (r *Result) ranked(n int, desc bool) []Group {
	gs := make([]Group, len(r.Groups))
	copy(gs, r.Groups)
	sort.SliceStable(gs, func(i, j int) bool {
		if desc {
			return gs[i].Stats.Mean > gs[j].Stats.Mean
		}
		return gs[i].Stats.Mean < gs[j].Stats.Mean
	})
	if n >= 0 && n < len(gs) {
		gs = gs[:n]
	}
	return gs
}

// Frame renders the result as a table: key columns then count, mean,
// median, min, max.
func (r *Result) Frame() *frame.Frame {
	return GroupsFrame(r.Keys, r.Groups)
}

// GroupsFrame renders groups as a table with the given key column names.
func GroupsFrame(keys []string, groups []Group) *frame.Frame {
	out := frame.New(append(append([]string(nil), keys...), StatColumns...)...)
	for _, g := range groups {
		row := append([]string(nil), g.Key...)
		row = append(row,
			strconv.Itoa(g.Stats.Count),
			frame.FormatFloat(g.Stats.Mean),
			frame.FormatFloat(g.Stats.Median),
			frame.FormatFloat(g.Stats.Min),
			frame.FormatFloat(g.Stats.Max),
		)
		out.AppendRow(row...)
	}
	return out
}

func columns(f *frame.Frame, names []string) ([][]string, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("aggregate: no key column")
	}
	cols := make([][]string, len(names))
	for i, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

func rowKey(cols [][]string, r int) ([]string, bool) {
	key := make([]string, len(cols))
	for i, c := range cols {
		if c[r] == "" {
			return nil, false
		}
		key[i] = c[r]
	}
	return key, true
}

func sortGroups(gs []Group) {
	sort.Slice(gs, func(i, j int) bool { return lessKey(gs[i].Key, gs[j].Key) })
}

// lessKey orders keys element by element, numerically when both elements
// are numbers ("9" < "10") and as text otherwise.
func lessKey(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		na, nb := frame.ParseNum(a[i]), frame.ParseNum(b[i])
		if na.Valid && nb.Valid && na.V != nb.V {
			return na.V < nb.V
		}
		return a[i] < b[i]
	}
	return false
}
