package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/climmo/pkg/aggregate"
	"github.com/hazyhaar/climmo/pkg/clean"
	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/trend"
)

// ErrBadQuery is returned for query parameters that cannot be served.
var ErrBadQuery = errors.New("invalid query")

const maxHorizon = 30

// AggregateQuery groups a dataset by any of its columns.
type AggregateQuery struct {
	Dataset  string   `json:"dataset"`
	By       []string `json:"by"`
	Metric   string   `json:"metric"`
	MinCount int      `json:"min_count,omitempty"`
	Filter   Filter   `json:"filtre"`
}

// CompareQuery compares the mean metric per key between two periods.
type CompareQuery struct {
	Dataset string   `json:"dataset"`
	By      []string `json:"by"`
	Metric  string   `json:"metric"`
	Period  string   `json:"period"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Filter  Filter   `json:"filtre"`
}

// CompareResult lists the keys present in both periods.
type CompareResult struct {
	Keys   []string          `json:"keys"`
	Period string            `json:"period"`
	From   string            `json:"from"`
	To     string            `json:"to"`
	Deltas []aggregate.Delta `json:"deltas"`
}

// TrendQuery projects the yearly mean of a metric, for the whole selection
// or for each value of By.
type TrendQuery struct {
	Dataset  string   `json:"dataset"`
	Metric   string   `json:"metric"`
	By       string   `json:"by,omitempty"`
	FromYear int      `json:"from_year,omitempty"`
	Horizon  int      `json:"horizon,omitempty"`
	MinCount int      `json:"min_count,omitempty"`
	Floor    *float64 `json:"floor,omitempty"`
	Filter   Filter   `json:"filtre"`
}

// TrendResult holds the observed series and their projections. Series that
// cannot be projected are listed in Skipped.
type TrendResult struct {
	Metric      string                  `json:"metric"`
	By          string                  `json:"by,omitempty"`
	Series      []Serie                 `json:"series"`
	Projections []trend.GroupProjection `json:"projections"`
	Skipped     []string                `json:"skipped,omitempty"`
}

// AllLabel names the series of an ungrouped trend.
const AllLabel = "ensemble"

func defaultMetric(dataset string) string {
	if dataset == Risques {
		return clean.ColPopulation
	}
	return clean.ColPrixM2
}

func checkDataset(name string) (string, error) {
	switch name {
	case "":
		return Transactions, nil
	case Transactions, Risques:
		return name, nil
	}
	return "", fmt.Errorf("%w: dataset %q", ErrBadQuery, name)
}

// Aggregate runs an AggregateQuery.
func (s *Service) Aggregate(ctx context.Context, q AggregateQuery) (*aggregate.Result, error) {
	ds, err := checkDataset(q.Dataset)
	if err != nil {
		return nil, err
	}
	q.Dataset = ds
	if len(q.By) == 0 {
		return nil, fmt.Errorf("%w: by is required", ErrBadQuery)
	}
	if q.Metric == "" {
		q.Metric = defaultMetric(ds)
	}
	return cached(ctx, s, "aggregate", q, []string{ds}, func() (*aggregate.Result, error) {
		f, _, err := s.Dataset(ds)
		if err != nil {
			return nil, err
		}
		res, err := aggregate.GroupBy(q.Filter.apply(f, allDims), q.By, q.Metric)
		if err != nil {
			return nil, err
		}
		if q.MinCount > 0 {
			res = res.MinCount(q.MinCount)
		}
		return res, nil
	})
}

// Compare runs a CompareQuery. The period column defaults to annee.
func (s *Service) Compare(ctx context.Context, q CompareQuery) (*CompareResult, error) {
	ds, err := checkDataset(q.Dataset)
	if err != nil {
		return nil, err
	}
	q.Dataset = ds
	if q.Period == "" {
		q.Period = clean.ColAnnee
	}
	if q.Metric == "" {
		q.Metric = defaultMetric(ds)
	}
	if len(q.By) == 0 || q.From == "" || q.To == "" {
		return nil, fmt.Errorf("%w: by, from and to are required", ErrBadQuery)
	}
	return cached(ctx, s, "compare", q, []string{ds}, func() (*CompareResult, error) {
		f, _, err := s.Dataset(ds)
		if err != nil {
			return nil, err
		}
		flt := q.Filter
		flt.Annee = 0
		deltas, err := aggregate.Compare(flt.apply(f, allDims), q.By, q.Period, q.Metric, q.From, q.To)
		if err != nil {
			return nil, err
		}
		return &CompareResult{Keys: q.By, Period: q.Period, From: q.From, To: q.To, Deltas: deltas}, nil
	})
}

// Trend runs a TrendQuery. The horizon defaults to the configured forecast
// horizon; years with fewer than MinCount rows are left out of each series.
func (s *Service) Trend(ctx context.Context, q TrendQuery) (*TrendResult, error) {
	ds, err := checkDataset(q.Dataset)
	if err != nil {
		return nil, err
	}
	q.Dataset = ds
	if q.Metric == "" {
		q.Metric = defaultMetric(ds)
	}
	if q.Horizon == 0 {
		q.Horizon = s.settings.ForecastYears
	}
	if q.Horizon < 1 || q.Horizon > maxHorizon {
		return nil, fmt.Errorf("%w: horizon must be between 1 and %d", ErrBadQuery, maxHorizon)
	}
	return cached(ctx, s, "trend", q, []string{ds}, func() (*TrendResult, error) {
		f, _, err := s.Dataset(ds)
		if err != nil {
			return nil, err
		}
		flt := q.Filter
		flt.Annee = 0
		return BuildTrend(flt.apply(f, allDims), q)
	})
}

// BuildTrend computes the series and projections of q over f.
func BuildTrend(f *frame.Frame, q TrendQuery) (*TrendResult, error) {
	keys := []string{clean.ColAnnee}
	if q.By != "" {
		keys = []string{q.By, clean.ColAnnee}
	}
	res, err := aggregate.GroupBy(f, keys, q.Metric)
	if err != nil {
		return nil, err
	}
	if q.MinCount > 0 {
		res = res.MinCount(q.MinCount)
	}

	out := &TrendResult{Metric: q.Metric, By: q.By}
	series := make(map[string][]trend.Point)
	var order []string
	for _, g := range res.Groups {
		name, year := AllLabel, g.Key[len(g.Key)-1]
		if q.By != "" {
			name = g.Key[0]
		}
		n := frame.ParseNum(year)
		if !n.Valid || int(n.V) < q.FromYear {
			continue
		}
		y := int(n.V)
		if _, ok := series[name]; !ok {
			order = append(order, name)
		}
		series[name] = append(series[name], trend.Point{X: float64(y), Y: g.Stats.Mean})
	}
	last := 0
	for _, name := range order {
		out.Series = append(out.Series, Serie{Nom: name, Points: series[name]})
		if y, ok := trend.LastYear(series[name]); ok && y > last {
			last = y
		}
	}
	if last == 0 {
		return out, nil
	}

	var opts []trend.Option
	if q.Floor != nil {
		opts = append(opts, trend.WithFloor(*q.Floor))
	}
	out.Projections, out.Skipped = trend.ProjectGroups(series, trend.Years(last, q.Horizon), opts...)
	return out, nil
}
