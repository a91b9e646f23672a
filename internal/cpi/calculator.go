package cpi

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/ausdex/internal/dates"
	"github.com/lox/ausdex/internal/location"
)

var ErrLengthMismatch = errors.New("length mismatch")

// Calculator adjusts values for inflation using a CPI table.
type Calculator struct {
	table *Table
	now   func() time.Time
}

func NewCalculator(table *Table) *Calculator {
	return &Calculator{table: table, now: time.Now}
}

// SetClock replaces the wall clock used when no evaluation date is given.
func (c *Calculator) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Calculator) Table() *Table {
	return c.table
}

// Adjust returns value * CPI(evaluation) / CPI(original). A None evaluation
// date means now. Dates before the series start give NaN.
func (c *Calculator) Adjust(value float64, original, evaluation dates.DateLike, loc location.Location) (float64, error) {
	if evaluation.IsNone() {
		evaluation = dates.Time(c.now())
	}
	originalCPI, err := c.table.At(original, loc)
	if err != nil {
		return 0, fmt.Errorf("original date: %w", err)
	}
	evaluationCPI, err := c.table.At(evaluation, loc)
	if err != nil {
		return 0, fmt.Errorf("evaluation date: %w", err)
	}
	return value * evaluationCPI / originalCPI, nil
}

// AdjustAll adjusts a column of values, each to its own pair of dates.
// values, originals and evaluations broadcast: each must have length 1 or
// the common length n. An empty evaluations slice means now for every row.
func (c *Calculator) AdjustAll(values []float64, originals, evaluations []dates.DateLike, loc location.Location) ([]float64, error) {
	n := len(values)
	if len(originals) > n {
		n = len(originals)
	}
	if len(evaluations) > n {
		n = len(evaluations)
	}
	if err := broadcastable("values", len(values), n, false); err != nil {
		return nil, err
	}
	if err := broadcastable("original dates", len(originals), n, false); err != nil {
		return nil, err
	}
	if err := broadcastable("evaluation dates", len(evaluations), n, true); err != nil {
		return nil, err
	}

	now := dates.Time(c.now())
	evals := make([]dates.DateLike, len(evaluations))
	for i, e := range evaluations {
		if e.IsNone() {
			e = now
		}
		evals[i] = e
	}
	if len(evals) == 0 {
		evals = []dates.DateLike{now}
	}

	originalTimes, err := dates.NormalizeAll(originals)
	if err != nil {
		return nil, fmt.Errorf("original dates: %w", err)
	}
	evaluationTimes, err := dates.NormalizeAll(evals)
	if err != nil {
		return nil, fmt.Errorf("evaluation dates: %w", err)
	}

	s, err := c.table.Series(loc)
	if err != nil {
		return nil, err
	}
	originalCPI := s.AtAll(originalTimes)
	evaluationCPI := s.AtAll(evaluationTimes)

	out := make([]float64, n)
	for i := range out {
		out[i] = pick(values, i) * pick(evaluationCPI, i) / pick(originalCPI, i)
	}
	return out, nil
}

// Timeseries expresses value in compare-date dollars at every published
// quarter within [start, end]. None leaves that side open.
func (c *Calculator) Timeseries(compare, start, end dates.DateLike, value float64, loc location.Location) ([]Point, error) {
	compareDate, err := dates.Normalize(compare)
	if err != nil {
		return nil, fmt.Errorf("compare date: %w", err)
	}
	startDate, err := dates.Normalize(start)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	endDate, err := dates.Normalize(end)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}

	s, err := c.table.Series(loc)
	if err != nil {
		return nil, err
	}
	compareCPI := s.At(compareDate)

	points := s.Between(startDate, endDate)
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Date: p.Date, Value: value * compareCPI / p.Value}
	}
	return out, nil
}

func broadcastable(name string, got, n int, allowEmpty bool) error {
	if got == 1 || got == n || (allowEmpty && got == 0) {
		return nil
	}
	return fmt.Errorf("%w: %d %s for %d rows", ErrLengthMismatch, got, name, n)
}

func pick(xs []float64, i int) float64 {
	if len(xs) == 1 {
		return xs[0]
	}
	return xs[i]
}
