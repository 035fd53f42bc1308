package trend

import (
	"sort"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// Series reads (x, y) points from two numeric columns of f, skipping rows
// where either is missing.
func Series(f *frame.Frame, x, y string) ([]Point, error) {
	xs, err := f.Nums(x)
	if err != nil {
		return nil, err
	}
	ys, err := f.Nums(y)
	if err != nil {
		return nil, err
	}
	var out []Point
	for i := range xs {
		if xs[i].Valid && ys[i].Valid {
			out = append(out, Point{X: xs[i].V, Y: ys[i].V})
		}
	}
	Sort(out)
	return out, nil
}

// GroupSeries splits the (x, y) points of f by the value of the group column.
// Rows with an empty group are skipped.
func GroupSeries(f *frame.Frame, group, x, y string) (map[string][]Point, error) {
	groups, err := f.Column(group)
	if err != nil {
		return nil, err
	}
	xs, err := f.Nums(x)
	if err != nil {
		return nil, err
	}
	ys, err := f.Nums(y)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Point)
	for i, g := range groups {
		if g == "" || !xs[i].Valid || !ys[i].Valid {
			continue
		}
		out[g] = append(out[g], Point{X: xs[i].V, Y: ys[i].V})
	}
	for _, pts := range out {
		Sort(pts)
	}
	return out, nil
}

// GroupProjection is the projection of one group's series.
type GroupProjection struct {
	Group       string       `json:"groupe"`
	Projections []Projection `json:"projections"`
}

// ProjectGroups projects each group's series at years. Groups that cannot be
// projected are returned in skipped. Both results are sorted by group.
func ProjectGroups(series map[string][]Point, years []int, opts ...Option) (projected []GroupProjection, skipped []string) {
	names := make([]string, 0, len(series))
	for g := range series {
		names = append(names, g)
	}
	sort.Strings(names)
	for _, g := range names {
		p, ok := Project(series[g], years, opts...)
		if !ok {
			skipped = append(skipped, g)
			continue
		}
		projected = append(projected, GroupProjection{Group: g, Projections: p})
	}
	return projected, skipped
}
