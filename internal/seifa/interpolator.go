package seifa

import (
	"math"
	"sort"
)

type shape int

const (
	shapeNaN shape = iota
	shapeFlat
	shapePiecewise
)

// Interpolator maps a decimal year onto a score for one suburb and metric.
// It is immutable once built.
type Interpolator struct {
	shape shape
	flat  float64
	xs    []float64
	ys    []float64
	fill  FillPolicy
	kind  Kind
}

// nanInterpolator returns NaN for every query.
func nanInterpolator() *Interpolator {
	return &Interpolator{shape: shapeNaN}
}

// flatInterpolator returns v for every query.
func flatInterpolator(v float64) *Interpolator {
	return &Interpolator{shape: shapeFlat, flat: v}
}

// newPiecewise builds an interpolant over control points sorted by x. It
// needs at least two points.
func newPiecewise(xs, ys []float64, fill FillPolicy, kind Kind) *Interpolator {
	ip := &Interpolator{
		shape: shapePiecewise,
		xs:    xs,
		ys:    ys,
		fill:  fill,
		kind:  kind,
	}
	if kind == "" {
		ip.kind = Linear
	}
	switch fill.Mode {
	case FillBoundary:
		ip.fill = Values(ys[0], ys[len(ys)-1])
	case FillNull:
		ip.fill = Values(math.NaN(), math.NaN())
	case FillExtrapolate:
		if ip.kind != Linear {
			ip.fill = Values(ys[0], ys[len(ys)-1])
		}
	}
	return ip
}

// Domain returns the observed year range. ok is false unless the
// interpolant has at least two control points.
func (ip *Interpolator) Domain() (lo, hi float64, ok bool) {
	if ip.shape != shapePiecewise {
		return 0, 0, false
	}
	return ip.xs[0], ip.xs[len(ip.xs)-1], true
}

// At evaluates the interpolant at x without clamping.
func (ip *Interpolator) At(x float64) float64 {
	switch ip.shape {
	case shapeFlat:
		return ip.flat
	case shapeNaN:
		return math.NaN()
	}
	if math.IsNaN(x) {
		return math.NaN()
	}

	n := len(ip.xs)
	below, above := x < ip.xs[0], x > ip.xs[n-1]
	if below || above {
		if ip.fill.Mode != FillExtrapolate {
			if below {
				return ip.fill.Low
			}
			return ip.fill.High
		}
		return ip.linear(x)
	}

	switch ip.kind {
	case Nearest:
		return ip.nearest(x)
	case Previous:
		i := sort.Search(n, func(i int) bool { return ip.xs[i] > x }) - 1
		return ip.ys[i]
	case Next:
		i := sort.Search(n, func(i int) bool { return ip.xs[i] >= x })
		return ip.ys[i]
	}
	return ip.linear(x)
}

// linear evaluates the segment containing x, or the nearest boundary
// segment when x is outside the observed range.
func (ip *Interpolator) linear(x float64) float64 {
	n := len(ip.xs)
	hi := sort.SearchFloat64s(ip.xs, x)
	if hi < 1 {
		hi = 1
	}
	if hi > n-1 {
		hi = n - 1
	}
	lo := hi - 1

	dx := ip.xs[hi] - ip.xs[lo]
	if dx == 0 {
		return ip.ys[lo]
	}
	slope := (ip.ys[hi] - ip.ys[lo]) / dx
	return ip.ys[lo] + slope*(x-ip.xs[lo])
}

// nearest rounds half-way points down to the earlier observation.
func (ip *Interpolator) nearest(x float64) float64 {
	n := len(ip.xs)
	i := sort.Search(n-1, func(i int) bool {
		return (ip.xs[i]+ip.xs[i+1])/2 >= x
	})
	return ip.ys[i]
}

// Evaluate applies ip to each year in order. Negative results are clamped
// to zero; NaN passes through.
func Evaluate(ip *Interpolator, years []float64) []float64 {
	out := make([]float64, len(years))
	for i, y := range years {
		v := ip.At(y)
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out
}
