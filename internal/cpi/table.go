package cpi

import (
	"errors"
	"fmt"

	"github.com/lox/ausdex/internal/dates"
	"github.com/lox/ausdex/internal/location"
	"github.com/lox/ausdex/internal/metrics"
	"github.com/lox/ausdex/internal/models"
)

var ErrNoSeries = errors.New("no CPI series for location")

// Table holds one series per location.
type Table struct {
	series map[location.Location]*Series
}

func NewTable(points map[location.Location][]Point) (*Table, error) {
	t := &Table{series: make(map[location.Location]*Series, len(points))}
	for loc, pts := range points {
		s, err := NewSeries(pts)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", loc, err)
		}
		t.series[loc] = s
	}
	return t, nil
}

// TableFromObservations groups stored or parsed observations by location.
func TableFromObservations(obs []models.CPIObservation) (*Table, error) {
	points := make(map[location.Location][]Point)
	for _, o := range obs {
		loc, err := location.Parse(o.Location)
		if err != nil {
			return nil, err
		}
		points[loc] = append(points[loc], Point{Date: o.QuarterDate, Value: o.Value})
	}
	return NewTable(points)
}

func (t *Table) Series(loc location.Location) (*Series, error) {
	s, ok := t.series[loc]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSeries, loc)
	}
	return s, nil
}

// Locations lists the locations present, in location.All order.
func (t *Table) Locations() []location.Location {
	var out []location.Location
	for _, loc := range location.All {
		if _, ok := t.series[loc]; ok {
			out = append(out, loc)
		}
	}
	return out
}

// At returns the CPI in force at d, NaN before the series starts.
func (t *Table) At(d dates.DateLike, loc location.Location) (float64, error) {
	s, err := t.Series(loc)
	if err != nil {
		return 0, err
	}
	date, err := dates.Normalize(d)
	if err != nil {
		return 0, err
	}
	metrics.CPILookups.WithLabelValues(loc.String()).Inc()
	return s.At(date), nil
}

// AtAll is the vector form of At.
func (t *Table) AtAll(ds []dates.DateLike, loc location.Location) ([]float64, error) {
	s, err := t.Series(loc)
	if err != nil {
		return nil, err
	}
	ts, err := dates.NormalizeAll(ds)
	if err != nil {
		return nil, err
	}
	metrics.CPILookups.WithLabelValues(loc.String()).Add(float64(len(ts)))
	return s.AtAll(ts), nil
}
