// Package report is the single parameterised reporting service behind the
// dashboard pages: property prices (immobilier), climate exposure (climat),
// the local-versus-national conclusion and the generic aggregate, compare
// and trend queries. Datasets are loaded once, cleaned, and kept in a
// cache.Frames keyed by file path and modification time.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/hazyhaar/climmo/pkg/cache"
	"github.com/hazyhaar/climmo/pkg/clean"
	"github.com/hazyhaar/climmo/pkg/frame"
	"github.com/hazyhaar/climmo/pkg/geo"
)

// ErrDatasetMissing is returned when the file of a dataset a report needs
// does not exist or is not configured.
var ErrDatasetMissing = errors.New("dataset missing")

// Dataset names.
const (
	Transactions = "transactions"
	Risques      = "risques"
	Communes     = "communes"
)

// Paths locates the dataset files.
type Paths struct {
	Transactions string `yaml:"transactions" json:"transactions"`
	Risques      string `yaml:"risques" json:"risques"`
	Communes     string `yaml:"communes" json:"communes"`
}

// Settings holds the thresholds of the reports.
type Settings struct {
	MinYear         int     `yaml:"min_year"`
	MaxYear         int     `yaml:"max_year"`
	PrixMin         float64 `yaml:"prix_min"`
	PrixMax         float64 `yaml:"prix_max"`
	MinTransactions int     `yaml:"min_transactions"`
	Tolerance       float64 `yaml:"tolerance"`
	ForecastYears   int     `yaml:"forecast_years"`
	ClimateFrom     int     `yaml:"climate_from"`
	ClimateTo       int     `yaml:"climate_to"`
	TopCommunes     int     `yaml:"top_communes"`
}

// DefaultSettings returns the dashboard defaults.
func DefaultSettings() Settings {
	return Settings{
		MinYear:         2000,
		MaxYear:         2025,
		PrixMin:         50,
		PrixMax:         30000,
		MinTransactions: 30,
		Tolerance:       0.02,
		ForecastYears:   3,
		ClimateFrom:     2026,
		ClimateTo:       2030,
		TopCommunes:     10,
	}
}

// Service computes reports over the configured datasets.
type Service struct {
	paths    Paths
	settings Settings
	geo      *geo.Registry
	frames   *cache.Frames
	results  *cache.Results
	logger   *slog.Logger

	mu      sync.Mutex
	notices map[string][]string
}

// NewService wires a report service. results may be nil (no shared cache).
func NewService(paths Paths, settings Settings, reg *geo.Registry, frames *cache.Frames, results *cache.Results, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if frames == nil {
		frames = cache.NewFrames(8)
	}
	return &Service{
		paths:    paths,
		settings: settings,
		geo:      reg,
		frames:   frames,
		results:  results,
		logger:   logger,
		notices:  make(map[string][]string),
	}
}

// Settings returns the thresholds in use.
func (s *Service) Settings() Settings { return s.settings }

// Paths returns the dataset locations.
func (s *Service) Paths() Paths { return s.paths }

// Frames exposes the frame cache.
func (s *Service) Frames() *cache.Frames { return s.frames }

func (s *Service) path(name string) string {
	switch name {
	case Transactions:
		return s.paths.Transactions
	case Risques:
		return s.paths.Risques
	case Communes:
		return s.paths.Communes
	}
	return ""
}

// Dataset returns the cleaned frame of a dataset with the notices produced
// while cleaning it.
func (s *Service) Dataset(name string) (*frame.Frame, []string, error) {
	var load cache.Loader
	switch name {
	case Transactions:
		load = s.loadTransactions
	case Risques:
		load = s.loadRisks
	case Communes:
		load = loadRaw
	default:
		return nil, nil, fmt.Errorf("unknown dataset %q", name)
	}
	path := s.path(name)
	if path == "" {
		return nil, nil, fmt.Errorf("%w: %s (chemin non configuré)", ErrDatasetMissing, name)
	}
	f, err := s.frames.Get(path, load)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s (%s)", ErrDatasetMissing, name, path)
		}
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	s.mu.Lock()
	notices := append([]string(nil), s.notices[path]...)
	s.mu.Unlock()
	return f, notices, nil
}

func loadRaw(path string) (*frame.Frame, error) {
	return frame.Load(path, frame.ReadOptions{})
}

func (s *Service) loadTransactions(path string) (*frame.Frame, error) {
	raw, err := loadRaw(path)
	if err != nil {
		return nil, err
	}
	opts := clean.TransactionOptions{MinYear: s.settings.MinYear, MaxYear: s.settings.MaxYear, Types: clean.DefaultTypes}
	f, rep, err := clean.Transactions(raw, s.geo.Table(), opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("transactions loaded", "path", path, "report", rep.String())
	s.setNotices(path, rep)
	return f, nil
}

func (s *Service) loadRisks(path string) (*frame.Frame, error) {
	raw, err := loadRaw(path)
	if err != nil {
		return nil, err
	}
	var communes *frame.Frame
	if s.paths.Communes != "" {
		if c, _, err := s.Dataset(Communes); err == nil {
			communes = c
		} else {
			s.logger.Debug("communes reference unavailable", "error", err)
		}
	}
	f, rep, err := clean.Risks(raw, s.geo.Table(), communes)
	if err != nil {
		return nil, err
	}
	s.logger.Info("risks loaded", "path", path, "report", rep.String())
	s.setNotices(path, rep)
	return f, nil
}

func (s *Service) setNotices(path string, rep clean.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices[path] = rep.Notices
}

// Invalidate drops a cached dataset, or every cached dataset and shared
// result when path is empty. It returns the number of entries dropped.
func (s *Service) Invalidate(ctx context.Context, path string) int {
	if path != "" {
		if s.frames.Invalidate(path) {
			return 1
		}
		return 0
	}
	n := s.frames.Purge()
	if s.results.Enabled() {
		removed, err := s.results.Purge(ctx)
		if err != nil {
			s.logger.Warn("result cache purge failed", "error", err)
		}
		n += removed
	}
	s.mu.Lock()
	s.notices = make(map[string][]string)
	s.mu.Unlock()
	return n
}

// resultKey identifies a computed result by kind, parameters, reference
// table and dataset versions. ok is false when a dataset file cannot be
// stat'ed.
func (s *Service) resultKey(kind string, params any, datasets ...string) (string, bool) {
	p, err := json.Marshal(params)
	if err != nil {
		return "", false
	}
	parts := []string{kind, s.geo.Version(), string(p)}
	for _, d := range datasets {
		v, err := cache.Version(s.path(d))
		if err != nil {
			return "", false
		}
		parts = append(parts, d, v)
	}
	return cache.Key(parts...), true
}

// cached serves a result from the shared cache when enabled, computing and
// storing it otherwise.
func cached[T any](ctx context.Context, s *Service, kind string, params any, datasets []string, compute func() (*T, error)) (*T, error) {
	if !s.results.Enabled() {
		return compute()
	}
	key, ok := s.resultKey(kind, params, datasets...)
	if ok {
		var v T
		if s.results.Get(ctx, key, &v) {
			return &v, nil
		}
	}
	v, err := compute()
	if err == nil && ok {
		s.results.Set(ctx, key, v)
	}
	return v, err
}
