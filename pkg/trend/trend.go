// Package trend fits a straight line through a (year, value) series by
// ordinary least squares and extrapolates it. Projections are not bounded
// unless the caller asks for a floor.
package trend

import (
	"math"
	"sort"

	"github.com/hazyhaar/climmo/pkg/frame"
	"gonum.org/v1/gonum/stat"
)

// Point is one observation of the series.
type Point struct {
	X float64 `json:"annee"`
	Y float64 `json:"valeur"`
}

// Line is y = Intercept + Slope*x.
type Line struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
}

// At evaluates the line at x.
func (l Line) At(x float64) float64 { return l.Intercept + l.Slope*x }

// Projection is the extrapolated value for one future year.
type Projection struct {
	Year  int     `json:"annee"`
	Value float64 `json:"valeur"`
}

type options struct {
	floor     frame.Num
	minPoints int
}

// Option tunes Project.
type Option func(*options)

// WithFloor clamps projected values to at least v.
func WithFloor(v float64) Option {
	return func(o *options) { o.floor = frame.Some(v) }
}

// MinPoints requires at least n distinct years before projecting. Values
// below 2 are ignored.
func MinPoints(n int) Option {
	return func(o *options) { o.minPoints = n }
}

// Fit returns the least-squares line through points. ok is false when the
// series has fewer than two distinct x values once non-finite points are
// dropped.
func Fit(points []Point) (line Line, ok bool) {
	xs, ys := finite(points)
	if distinct(xs) < 2 {
		return Line{}, false
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return Line{Intercept: alpha, Slope: beta}, true
}

// Project fits points and evaluates the line at each of years. ok is false
// when no line can be fitted or the series is shorter than MinPoints.
func Project(points []Point, years []int, opts ...Option) ([]Projection, bool) {
	o := options{minPoints: 2}
	for _, fn := range opts {
		fn(&o)
	}
	xs, _ := finite(points)
	if distinct(xs) < max(o.minPoints, 2) {
		return nil, false
	}
	line, ok := Fit(points)
	if !ok {
		return nil, false
	}
	out := make([]Projection, len(years))
	for i, y := range years {
		v := line.At(float64(y))
		if o.floor.Valid && v < o.floor.V {
			v = o.floor.V
		}
		out[i] = Projection{Year: y, Value: v}
	}
	return out, true
}

// Years returns the n years following last: last+1 .. last+n.
func Years(last, n int) []int {
	out := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, last+i)
	}
	return out
}

// Range returns the years from..to inclusive.
func Range(from, to int) []int {
	var out []int
	for y := from; y <= to; y++ {
		out = append(out, y)
	}
	return out
}

// LastYear returns the largest x of the series, truncated to an integer.
func LastYear(points []Point) (int, bool) {
	xs, _ := finite(points)
	if len(xs) == 0 {
		return 0, false
	}
	last := xs[0]
	for _, x := range xs[1:] {
		last = math.Max(last, x)
	}
	return int(last), true
}

// Sort orders a series by x.
func Sort(points []Point) {
	sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })
}

func finite(points []Point) (xs, ys []float64) {
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			continue
		}
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	return xs, ys
}

func distinct(xs []float64) int {
	seen := make(map[float64]bool, len(xs))
	for _, x := range xs {
		seen[x] = true
	}
	return len(seen)
}
