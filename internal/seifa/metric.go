// Package seifa interpolates ABS Socio-Economic Indexes for Areas scores for
// Victorian suburbs between census years.
package seifa

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

var (
	ErrUnknownMetric  = errors.New("unknown SEIFA metric")
	ErrUnknownFill    = errors.New("unknown fill policy")
	ErrUnknownKind    = errors.New("unknown interpolation kind")
	ErrLengthMismatch = errors.New("length mismatch")
)

// Metric names a SEIFA score column.
type Metric string

const (
	IER   Metric = "ier_score"   // index of economic resources
	IRSD  Metric = "irsd_score"  // relative socio-economic disadvantage
	IEO   Metric = "ieo_score"   // education and occupation
	IRSAD Metric = "irsad_score" // relative socio-economic advantage and disadvantage
	RIRSA Metric = "rirsa_score" // rural index of relative socio-economic advantage
	UIRSA Metric = "uirsa_score" // urban index of relative socio-economic advantage
)

var Metrics = []Metric{IER, IRSD, IEO, IRSAD, RIRSA, UIRSA}

func ParseMetric(s string) (Metric, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range Metrics {
		if s == string(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownMetric, s, metricNames())
}

func (m Metric) Valid() bool {
	for _, known := range Metrics {
		if m == known {
			return true
		}
	}
	return false
}

func metricNames() string {
	names := make([]string, len(Metrics))
	for i, m := range Metrics {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// FillMode selects what an interpolant returns outside the observed years.
type FillMode int

const (
	FillNull        FillMode = iota // NaN on both sides
	FillExtrapolate                 // extend the boundary segment
	FillBoundary                    // hold the first and last observed values
	FillValues                      // explicit (low, high)
)

type FillPolicy struct {
	Mode FillMode
	Low  float64
	High float64
}

var (
	Null        = FillPolicy{Mode: FillNull}
	Extrapolate = FillPolicy{Mode: FillExtrapolate}
	Boundary    = FillPolicy{Mode: FillBoundary}
)

// Values fills below the observed range with low and above it with high.
func Values(low, high float64) FillPolicy {
	return FillPolicy{Mode: FillValues, Low: low, High: high}
}

func (f FillPolicy) String() string {
	switch f.Mode {
	case FillNull:
		return "null"
	case FillExtrapolate:
		return "extrapolate"
	case FillBoundary:
		return "boundary_value"
	default:
		return fmt.Sprintf("(%g, %g)", f.Low, f.High)
	}
}

// ParseFillPolicy accepts "null", "extrapolate", "boundary_value", a single
// number used on both sides, or a "low,high" pair.
func ParseFillPolicy(s string) (FillPolicy, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null":
		return Null, nil
	case "extrapolate":
		return Extrapolate, nil
	case "boundary_value", "boundary":
		return Boundary, nil
	}

	parts := strings.Split(strings.Trim(s, "()[] "), ",")
	if len(parts) == 1 {
		v, err := parseFillNumber(parts[0])
		if err != nil {
			return FillPolicy{}, fmt.Errorf("%w: %q", ErrUnknownFill, s)
		}
		return Values(v, v), nil
	}
	if len(parts) == 2 {
		low, err := parseFillNumber(parts[0])
		if err != nil {
			return FillPolicy{}, fmt.Errorf("%w: %q", ErrUnknownFill, s)
		}
		high, err := parseFillNumber(parts[1])
		if err != nil {
			return FillPolicy{}, fmt.Errorf("%w: %q", ErrUnknownFill, s)
		}
		return Values(low, high), nil
	}
	return FillPolicy{}, fmt.Errorf("%w: %q", ErrUnknownFill, s)
}

// FillPolicyFromAny accepts a policy string or a two element numeric slice,
// as decoded from JSON.
func FillPolicyFromAny(v any) (FillPolicy, error) {
	switch x := v.(type) {
	case nil:
		return Null, nil
	case FillPolicy:
		return x, nil
	case string:
		return ParseFillPolicy(x)
	case []any:
		if len(x) != 2 {
			return FillPolicy{}, fmt.Errorf("%w: want 2 fill values, got %d", ErrUnknownFill, len(x))
		}
		low, err := fillValueFromAny(x[0])
		if err != nil {
			return FillPolicy{}, err
		}
		high, err := fillValueFromAny(x[1])
		if err != nil {
			return FillPolicy{}, err
		}
		return Values(low, high), nil
	case []float64:
		if len(x) != 2 {
			return FillPolicy{}, fmt.Errorf("%w: want 2 fill values, got %d", ErrUnknownFill, len(x))
		}
		return Values(x[0], x[1]), nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return FillPolicy{}, fmt.Errorf("%w: %v", ErrUnknownFill, v)
	}
	return Values(f, f), nil
}

func fillValueFromAny(v any) (float64, error) {
	if v == nil {
		return math.NaN(), nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnknownFill, v)
	}
	return f, nil
}

func parseFillNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// Kind is the interpolation method between observed years.
type Kind string

const (
	Linear   Kind = "linear"
	Nearest  Kind = "nearest"
	Previous Kind = "previous"
	Next     Kind = "next"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return Linear, nil
	case Linear, Nearest, Previous, Next:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Params selects the interpolant for a suburb.
type Params struct {
	Metric Metric
	Fill   FillPolicy
	Kind   Kind
}

func (p Params) validate() (Params, error) {
	if !p.Metric.Valid() {
		return p, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownMetric, p.Metric, metricNames())
	}
	if p.Fill.Mode != FillValues {
		p.Fill.Low, p.Fill.High = 0, 0
	}
	if p.Kind == "" {
		p.Kind = Linear
	}
	if _, err := ParseKind(string(p.Kind)); err != nil {
		return p, err
	}
	return p, nil
}

// cacheKey is comparable even when the fill values are NaN.
type cacheKey struct {
	suburb string
	metric Metric
	fill   FillMode
	low    uint64
	high   uint64
	kind   Kind
}

func newCacheKey(suburb string, p Params) cacheKey {
	return cacheKey{
		suburb: suburb,
		metric: p.Metric,
		fill:   p.Fill.Mode,
		low:    math.Float64bits(p.Fill.Low),
		high:   math.Float64bits(p.Fill.High),
		kind:   p.Kind,
	}
}
