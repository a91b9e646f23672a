package seifa

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/lox/ausdex/internal/dates"
	"github.com/lox/ausdex/internal/metrics"
)

// Service answers SEIFA queries against a dataset, memoizing one
// interpolator per (suburb, metric, fill, kind). Entries are never evicted;
// construct a new Service to rebuild.
type Service struct {
	dataset  *Dataset
	resolver *Resolver
	logger   *log.Logger
	fuzzy    bool

	mu    sync.Mutex
	cache map[cacheKey]*Interpolator
}

type Option func(*Service)

// WithLogger sets where non-fatal warnings are written.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithFuzzyMatch substitutes the closest known suburb for unknown names.
func WithFuzzyMatch(enabled bool) Option {
	return func(s *Service) { s.fuzzy = enabled }
}

func NewService(dataset *Dataset, opts ...Option) *Service {
	s := &Service{
		dataset: dataset,
		logger:  log.Default(),
		cache:   make(map[cacheKey]*Interpolator),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = NewResolver(dataset, s.fuzzy)
	return s
}

func (s *Service) Dataset() *Dataset {
	return s.dataset
}

// Resolve maps a suburb query onto a dataset key, warning when a fuzzy
// substitution is made.
func (s *Service) Resolve(ctx context.Context, suburb, lga string) (Resolution, error) {
	if err := s.dataset.EnsureLoaded(ctx); err != nil {
		return Resolution{}, err
	}
	res := s.resolver.Resolve(suburb, lga)
	if res.Substituted {
		metrics.SeifaWarnings.WithLabelValues("fuzzy_substitution").Inc()
		s.logger.Printf("seifa: warning: suburb %q not found, using closest match %q", res.Query, res.Key)
	}
	return res, nil
}

// Interpolator returns the cached interpolant for a resolved suburb key,
// building it on first use.
func (s *Service) Interpolator(ctx context.Context, key string, p Params) (*Interpolator, error) {
	p, err := p.validate()
	if err != nil {
		return nil, err
	}
	if err := s.dataset.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	ck := newCacheKey(key, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ip, ok := s.cache[ck]; ok {
		metrics.InterpolatorCache.WithLabelValues(string(p.Metric), "hit").Inc()
		return ip, nil
	}
	ip := s.build(key, p)
	s.cache[ck] = ip
	metrics.InterpolatorCache.WithLabelValues(string(p.Metric), "build").Inc()
	return ip, nil
}

func (s *Service) build(key string, p Params) *Interpolator {
	type point struct{ x, y float64 }
	var points []point
	for _, r := range s.dataset.Records(key) {
		v, _ := r.Score(string(p.Metric))
		if !v.Valid || math.IsNaN(v.Float64) {
			continue
		}
		points = append(points, point{r.Year, v.Float64})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].x < points[j].x })

	if len(points) == 1 && (p.Fill.Mode == FillExtrapolate || p.Fill.Mode == FillBoundary) {
		metrics.SeifaWarnings.WithLabelValues("single_observation").Inc()
		s.logger.Printf("seifa: warning: %s has a single %s observation (%g), returning a constant", key, p.Metric, points[0].x)
		return flatInterpolator(points[0].y)
	}
	if len(points) < 2 {
		s.warnMissing(key, p.Metric, len(points))
		return nanInterpolator()
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, pt := range points {
		xs[i], ys[i] = pt.x, pt.y
	}
	return newPiecewise(xs, ys, p.Fill, p.Kind)
}

func (s *Service) warnMissing(key string, metric Metric, rows int) {
	if rows == 1 {
		metrics.SeifaWarnings.WithLabelValues("single_observation").Inc()
		s.logger.Printf("seifa: warning: %s has a single %s observation, cannot interpolate under this fill policy", key, metric)
		return
	}
	if s.dataset.HasSuburb(key) {
		metrics.SeifaWarnings.WithLabelValues("no_data").Inc()
		s.logger.Printf("seifa: warning: %s has no %s data", key, metric)
		return
	}
	metrics.SeifaWarnings.WithLabelValues("unknown_suburb").Inc()
	msg := fmt.Sprintf("seifa: warning: %s not found in dataset", key)
	if suggestions := s.dataset.Suggest(key, maxSuggestions); len(suggestions) > 0 {
		msg += fmt.Sprintf(", did you mean %s?", strings.Join(suggestions, ", "))
	}
	s.logger.Print(msg)
}

// InterpolateOne evaluates a single decimal year for one suburb.
func (s *Service) InterpolateOne(ctx context.Context, year float64, suburb, lga string, p Params) (float64, error) {
	out, err := s.InterpolateYears(ctx, []float64{year}, suburb, lga, p)
	if err != nil {
		return math.NaN(), err
	}
	return out[0], nil
}

// InterpolateYears evaluates many decimal years for one suburb.
func (s *Service) InterpolateYears(ctx context.Context, years []float64, suburb, lga string, p Params) ([]float64, error) {
	res, err := s.Resolve(ctx, suburb, lga)
	if err != nil {
		return nil, err
	}
	ip, err := s.Interpolator(ctx, res.Key, p)
	if err != nil {
		return nil, err
	}
	return Evaluate(ip, years), nil
}

// Query is one row of a batch request.
type Query struct {
	When   dates.DateLike
	Suburb string
	LGA    string
}

// InterpolateMany evaluates a batch. Rows are grouped by resolved suburb so
// each interpolant is fetched once; results come back in input order.
func (s *Service) InterpolateMany(ctx context.Context, queries []Query, p Params) ([]float64, error) {
	if _, err := p.validate(); err != nil {
		return nil, err
	}
	whens := make([]dates.DateLike, len(queries))
	for i, q := range queries {
		whens[i] = q.When
	}
	years, err := dates.DecimalYears(whens)
	if err != nil {
		return nil, err
	}

	type group struct {
		rows  []int
		years []float64
	}
	resolved := make(map[[2]string]string)
	groups := make(map[string]*group)
	var order []string
	for i, q := range queries {
		key, ok := resolved[[2]string{q.Suburb, q.LGA}]
		if !ok {
			res, err := s.Resolve(ctx, q.Suburb, q.LGA)
			if err != nil {
				return nil, err
			}
			key = res.Key
			resolved[[2]string{q.Suburb, q.LGA}] = key
		}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, i)
		g.years = append(g.years, years[i])
	}

	out := make([]float64, len(queries))
	for _, key := range order {
		g := groups[key]
		ip, err := s.Interpolator(ctx, key, p)
		if err != nil {
			return nil, err
		}
		for j, v := range Evaluate(ip, g.years) {
			out[g.rows[j]] = v
		}
	}
	return out, nil
}

// InterpolateColumns is InterpolateMany over parallel columns. lgas may be
// nil; otherwise every column must have the same length.
func (s *Service) InterpolateColumns(ctx context.Context, whens []dates.DateLike, suburbs, lgas []string, p Params) ([]float64, error) {
	if len(whens) != len(suburbs) {
		return nil, fmt.Errorf("%w: %d dates for %d suburbs", ErrLengthMismatch, len(whens), len(suburbs))
	}
	if lgas != nil && len(lgas) != len(suburbs) {
		return nil, fmt.Errorf("%w: %d LGAs for %d suburbs", ErrLengthMismatch, len(lgas), len(suburbs))
	}
	queries := make([]Query, len(suburbs))
	for i := range suburbs {
		queries[i] = Query{When: whens[i], Suburb: suburbs[i]}
		if lgas != nil {
			queries[i].LGA = lgas[i]
		}
	}
	return s.InterpolateMany(ctx, queries, p)
}
