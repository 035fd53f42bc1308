// Package chart renders the dashboard's trend and ranking charts as PNG
// images with gonum/plot.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/hazyhaar/climmo/pkg/trend"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("chart: no data")

// Default image size.
const (
	Width  = 16 * vg.Centimeter
	Height = 10 * vg.Centimeter
)

// Series is an observed series and its optional projection, drawn dashed.
type Series struct {
	Name       string
	Points     []trend.Point
	Projection []trend.Projection
}

// Labels are the title and axis labels of a chart.
type Labels struct {
	Title string
	X     string
	Y     string
}

func newPlot(l Labels) *plot.Plot {
	p := plot.New()
	p.Title.Text = l.Title
	p.Title.TextStyle.Font.Size = vg.Points(13)
	p.X.Label.Text = l.X
	p.Y.Label.Text = l.Y
	p.Add(plotter.NewGrid())
	return p
}

// Trend draws one line per series, with the projection continuing it as a
// dashed line from the last observed point.
func Trend(w io.Writer, l Labels, series []Series) error {
	p := newPlot(l)
	p.Legend.Top = true

	drawn := 0
	for i, s := range series {
		col := plotutil.Color(i)
		if len(s.Points) > 0 {
			obs := make(plotter.XYs, len(s.Points))
			for j, pt := range s.Points {
				obs[j] = plotter.XY{X: pt.X, Y: pt.Y}
			}
			line, points, err := plotter.NewLinePoints(obs)
			if err != nil {
				return fmt.Errorf("series %s: %w", s.Name, err)
			}
			line.Color = col
			line.Width = vg.Points(1.5)
			points.Color = col
			points.Shape = draw.CircleGlyph{}
			p.Add(line, points)
			p.Legend.Add(s.Name, line)
			drawn++
		}
		if len(s.Projection) > 0 {
			var proj plotter.XYs
			if n := len(s.Points); n > 0 {
				proj = append(proj, plotter.XY{X: s.Points[n-1].X, Y: s.Points[n-1].Y})
			}
			for _, pr := range s.Projection {
				proj = append(proj, plotter.XY{X: float64(pr.Year), Y: pr.Value})
			}
			line, err := plotter.NewLine(proj)
			if err != nil {
				return fmt.Errorf("projection %s: %w", s.Name, err)
			}
			line.Color = col
			line.Width = vg.Points(1.5)
			line.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
			p.Add(line)
			if len(s.Points) == 0 {
				p.Legend.Add(s.Name+" (projection)", line)
			}
			drawn++
		}
	}
	if drawn == 0 {
		return ErrNoData
	}
	p.X.Tick.Marker = yearTicks{}
	return write(w, p)
}

// Bars draws a vertical bar per label, in the given order.
func Bars(w io.Writer, l Labels, names []string, values []float64) error {
	if len(values) == 0 {
		return ErrNoData
	}
	if len(names) != len(values) {
		return fmt.Errorf("chart: %d names for %d values", len(names), len(values))
	}
	p := newPlot(l)

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(12))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.YAlign = draw.YCenter
	p.X.Tick.Label.XAlign = draw.XRight
	p.Y.Min = math.Min(0, p.Y.Min)
	return write(w, p)
}

func write(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// yearTicks labels whole years only.
type yearTicks struct{}

func (yearTicks) Ticks(lo, hi float64) []plot.Tick {
	step := math.Max(1, math.Ceil((hi-lo)/8))
	var out []plot.Tick
	for y := math.Ceil(lo); y <= hi; y += step {
		out = append(out, plot.Tick{Value: y, Label: fmt.Sprintf("%.0f", y)})
	}
	return out
}
