// Package dates converts the date representations accepted by the CPI and
// SEIFA lookups into calendar dates and decimal years.
package dates

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

var (
	ErrUnparseable = errors.New("unparseable date")
	ErrMixedKinds  = errors.New("mixed date kinds")
)

// Kind identifies which representation a DateLike carries.
type Kind int

const (
	KindNone Kind = iota
	KindYear
	KindDecimal
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindYear:
		return "year"
	case KindDecimal:
		return "decimal year"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "none"
	}
}

// DateLike is a closed variant over the supported date inputs. The zero
// value is None.
type DateLike struct {
	kind    Kind
	year    int
	decimal float64
	text    string
	t       time.Time
}

func None() DateLike { return DateLike{} }
func Year(y int) DateLike { return DateLike{kind: KindYear, year: y} }
func Decimal(y float64) DateLike { return DateLike{kind: KindDecimal, decimal: y} }
func String(s string) DateLike { return DateLike{kind: KindString, text: s} }
func Time(t time.Time) DateLike { return DateLike{kind: KindTime, t: t} }
func (d DateLike) Kind() Kind { return d.kind }
func (d DateLike) IsNone() bool { return d.kind == KindNone }

func (d DateLike) String() string {
	switch d.kind {
	case KindYear:
		return fmt.Sprintf("%d", d.year)
	case KindDecimal:
		return fmt.Sprintf("%g", d.decimal)
	case KindString:
		return d.text
	case KindTime:
		return d.t.Format(time.RFC3339)
	default:
		return "<none>"
	}
}

// Years, Decimals, Strings and Times build homogeneous vectors.
func Years(ys ...int) []DateLike {
	out := make([]DateLike, len(ys))
	for i, y := range ys {
		out[i] = Year(y)
	}
	return out
}

func Decimals(ys ...float64) []DateLike {
	out := make([]DateLike, len(ys))
	for i, y := range ys {
		out[i] = Decimal(y)
	}
	return out
}

func Strings(ss ...string) []DateLike {
	out := make([]DateLike, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

func Times(ts ...time.Time) []DateLike {
	out := make([]DateLike, len(ts))
	for i, t := range ts {
		out[i] = Time(t)
	}
	return out
}

// FromAny maps a loosely typed value (decoded JSON, CLI input) onto a
// DateLike. Integers are years, floats are decimal years.
func FromAny(v any) (DateLike, error) {
	switch x := v.(type) {
	case nil:
		return None(), nil
	case DateLike:
		return x, nil
	case time.Time:
		return Time(x), nil
	case *time.Time:
		if x == nil {
			return None(), nil
		}
		return Time(*x), nil
	case string:
		return String(x), nil
	case float32, float64:
		f, err := cast.ToFloat64E(x)
		if err != nil {
			return None(), fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return Decimal(f), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		y, err := cast.ToIntE(x)
		if err != nil {
			return None(), fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return Year(y), nil
	case json.Number:
		if y, err := x.Int64(); err == nil {
			return Year(int(y)), nil
		}
		f, err := x.Float64()
		if err != nil {
			return None(), fmt.Errorf("%w: %q", ErrUnparseable, x.String())
		}
		return Decimal(f), nil
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return None(), fmt.Errorf("%w: %T", ErrUnparseable, v)
		}
		return String(s), nil
	}
}

// Normalize returns the calendar date (midnight UTC) for d. None normalizes
// to the zero time, which precedes every CPI series.
func Normalize(d DateLike) (time.Time, error) {
	switch d.kind {
	case KindNone:
		return time.Time{}, nil
	case KindYear:
		return time.Date(d.year, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	case KindDecimal:
		return fromDecimal(d.decimal)
	case KindString:
		return Parse(d.text)
	case KindTime:
		return Day(d.t), nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown kind %d", ErrUnparseable, d.kind)
}

// NormalizeAll normalizes a homogeneous vector, preserving order.
func NormalizeAll(ds []DateLike) ([]time.Time, error) {
	if err := checkHomogeneous(ds); err != nil {
		return nil, err
	}
	out := make([]time.Time, len(ds))
	for i, d := range ds {
		t, err := Normalize(d)
		if err != nil {
			return nil, fmt.Errorf("date %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// DecimalYear maps d onto the decimal-year axis. Years and decimal years are
// already numeric and are returned unchanged. None is NaN.
func DecimalYear(d DateLike) (float64, error) {
	switch d.kind {
	case KindNone:
		return math.NaN(), nil
	case KindYear:
		return float64(d.year), nil
	case KindDecimal:
		return d.decimal, nil
	}
	t, err := Normalize(d)
	if err != nil {
		return math.NaN(), err
	}
	return ToDecimalYear(t), nil
}

// DecimalYears converts a homogeneous vector to decimal years.
func DecimalYears(ds []DateLike) ([]float64, error) {
	if err := checkHomogeneous(ds); err != nil {
		return nil, err
	}
	out := make([]float64, len(ds))
	for i, d := range ds {
		y, err := DecimalYear(d)
		if err != nil {
			return nil, fmt.Errorf("date %d: %w", i, err)
		}
		out[i] = y
	}
	return out, nil
}

// ToDecimalYear is year + (day_of_year - 1) / (365 + leap). It is not the
// exact inverse of the decimal-year to date conversion used by Normalize.
func ToDecimalYear(t time.Time) float64 {
	days := 365.0
	if IsLeap(t.Year()) {
		days = 366
	}
	return float64(t.Year()) + float64(t.YearDay()-1)/days
}

// Day truncates t to its calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func DaysInYear(year int) int {
	if IsLeap(year) {
		return 366
	}
	return 365
}

func fromDecimal(y float64) (time.Time, error) {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnparseable, y)
	}
	whole := math.Floor(y)
	year := int(whole)
	days := int((y - whole) * float64(DaysInYear(year)))
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days), nil
}

func checkHomogeneous(ds []DateLike) error {
	kind := KindNone
	for _, d := range ds {
		if d.kind == KindNone {
			continue
		}
		if kind == KindNone {
			kind = d.kind
			continue
		}
		if d.kind != kind {
			return fmt.Errorf("%w: %s and %s", ErrMixedKinds, kind, d.kind)
		}
	}
	return nil
}
