// Package cpi looks up the Consumer Price Index in force at a date and uses
// it to adjust monetary values for inflation.
package cpi

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lox/ausdex/internal/dates"
)

var (
	ErrDuplicateDate = errors.New("duplicate CPI date")
	ErrEmptySeries   = errors.New("empty CPI series")
)

// RBA inflation target band, in force from 17 August 1992.
var (
	TargetBandStart = time.Date(1992, time.August, 17, 0, 0, 0, 0, time.UTC)
	TargetBandLow   = 2.0
	TargetBandHigh  = 3.0
)

// Point is a published index number and the date it takes effect.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is a right-continuous step function: each value holds from its
// date until the next point's date. Immutable once built.
type Series struct {
	points []Point
}

// NewSeries sorts points by date. Dates must be unique.
func NewSeries(points []Point) (*Series, error) {
	if len(points) == 0 {
		return nil, ErrEmptySeries
	}
	sorted := make([]Point, len(points))
	for i, p := range points {
		sorted[i] = Point{Date: dates.Day(p.Date), Value: p.Value}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDate, sorted[i].Date.Format("2006-01-02"))
		}
	}
	return &Series{points: sorted}, nil
}

func (s *Series) Len() int { return len(s.points) }

// Start is the earliest date the series is valid for.
func (s *Series) Start() time.Time { return s.points[0].Date }

// End is the date of the latest published quarter.
func (s *Series) End() time.Time { return s.points[len(s.points)-1].Date }

// Points returns a copy of the series.
func (s *Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// At returns the value of the last point dated on or before t, or NaN when t
// precedes the series.
func (s *Series) At(t time.Time) float64 {
	t = dates.Day(t)
	if t.Before(s.points[0].Date) {
		return math.NaN()
	}
	// First index strictly after t, then step back one.
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Date.After(t) })
	return s.points[i-1].Value
}

// AtAll evaluates At for each date, preserving order.
func (s *Series) AtAll(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = s.At(t)
	}
	return out
}

// Between returns the points dated within [start, end]. A zero start or end
// leaves that side open.
func (s *Series) Between(start, end time.Time) []Point {
	var out []Point
	for _, p := range s.points {
		if !start.IsZero() && p.Date.Before(dates.Day(start)) {
			continue
		}
		if !end.IsZero() && p.Date.After(dates.Day(end)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ChangePoint is the percentage change from the corresponding quarter of the
// previous year.
type ChangePoint struct {
	Date         time.Time
	Percent      float64
	InTargetBand bool
}

// Change computes year-on-year percentage changes for points within
// [start, end]. Points without a value exactly one year earlier are skipped.
func (s *Series) Change(start, end time.Time) []ChangePoint {
	byDate := make(map[time.Time]float64, len(s.points))
	for _, p := range s.points {
		byDate[p.Date] = p.Value
	}

	var out []ChangePoint
	for _, p := range s.Between(start, end) {
		prev, ok := byDate[p.Date.AddDate(-1, 0, 0)]
		if !ok || prev == 0 {
			continue
		}
		pct := (p.Value/prev - 1) * 100
		out = append(out, ChangePoint{
			Date:         p.Date,
			Percent:      pct,
			InTargetBand: !p.Date.Before(TargetBandStart) && pct >= TargetBandLow && pct <= TargetBandHigh,
		})
	}
	return out
}
