package raster

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Map applies fn to every pixel holding data.
func Map(g *Grid, fn func(float64) float64) *Grid {
	out := New(g.Width, g.Height, g.Bound)
	for i, v := range g.Data {
		if math.IsNaN(v) {
			continue
		}
		out.Data[i] = fn(v)
	}
	return out
}

// Combine applies fn pixel-wise; a pixel is no-data if either input is.
func Combine(a, b *Grid, fn func(a, b float64) float64) (*Grid, error) {
	if !a.sameShape(b) {
		return nil, fmt.Errorf("combine %s: %w", describe(a, b), ErrShapeMismatch)
	}
	out := New(a.Width, a.Height, a.Bound)
	for i := range a.Data {
		va, vb := a.Data[i], b.Data[i]
		if math.IsNaN(va) || math.IsNaN(vb) {
			continue
		}
		r := fn(va, vb)
		if math.IsInf(r, 0) {
			r = math.NaN()
		}
		out.Data[i] = r
	}
	return out, nil
}

// NormalizedDifference computes (a-b)/(a+b). A zero denominator yields no-data.
func NormalizedDifference(a, b *Grid) (*Grid, error) {
	return Combine(a, b, func(va, vb float64) float64 {
		return safeDivide(va-vb, va+vb)
	})
}

// Ratio computes num/den pixel-wise. A zero denominator yields no-data.
func Ratio(num, den *Grid) (*Grid, error) {
	return Combine(num, den, safeDivide)
}

func Subtract(a, b *Grid) (*Grid, error) {
	return Combine(a, b, func(va, vb float64) float64 { return va - vb })
}

// ClampMin replaces values below min with min.
func ClampMin(g *Grid, min float64) *Grid {
	return Map(g, func(v float64) float64 {
		if v < min {
			return min
		}
		return v
	})
}

// MaskWhere blanks every pixel of g whose mask value is rejected. Mask
// no-data pixels blank g as well.
func MaskWhere(g, mask *Grid, reject func(float64) bool) (*Grid, error) {
	if !g.sameShape(mask) {
		return nil, fmt.Errorf("mask %s: %w", describe(g, mask), ErrShapeMismatch)
	}
	out := New(g.Width, g.Height, g.Bound)
	for i, v := range g.Data {
		m := mask.Data[i]
		if math.IsNaN(m) || reject(m) {
			continue
		}
		out.Data[i] = v
	}
	return out, nil
}

// Median builds a per-pixel median over the grids, ignoring no-data.
func Median(grids []*Grid) (*Grid, error) {
	return reduce(grids, stats.Median)
}

// Mean builds a per-pixel mean over the grids, ignoring no-data.
func Mean(grids []*Grid) (*Grid, error) {
	return reduce(grids, stats.Mean)
}

func reduce(grids []*Grid, fn func(stats.Float64Data) (float64, error)) (*Grid, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("no grids to composite")
	}
	first := grids[0]
	for _, g := range grids[1:] {
		if !first.sameShape(g) {
			return nil, fmt.Errorf("composite %s: %w", describe(first, g), ErrShapeMismatch)
		}
	}

	out := New(first.Width, first.Height, first.Bound)
	values := make(stats.Float64Data, 0, len(grids))
	for i := range out.Data {
		values = values[:0]
		for _, g := range grids {
			if v := g.Data[i]; !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		v, err := fn(values)
		if err != nil {
			continue
		}
		out.Data[i] = v
	}
	return out, nil
}

func safeDivide(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

func describe(a, b *Grid) string {
	size := func(g *Grid) string {
		if g == nil {
			return "nil"
		}
		return fmt.Sprintf("%dx%d", g.Width, g.Height)
	}
	return size(a) + " vs " + size(b)
}
