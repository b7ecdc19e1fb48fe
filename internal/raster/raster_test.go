package raster

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBound = orb.Bound{Min: orb.Point{-47.02, -15.02}, Max: orb.Point{-47.0, -15.0}}

func TestNormalizedDifference(t *testing.T) {
	nir := FromRows([][]float64{{0.5, 0.3}, {0, math.NaN()}}, testBound)
	red := FromRows([][]float64{{0.1, 0.3}, {0, 0.2}}, testBound)

	ndvi, err := NormalizedDifference(nir, red)
	require.NoError(t, err)

	assert.InDelta(t, 0.4/0.6, ndvi.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, ndvi.At(1, 0))
	assert.True(t, math.IsNaN(ndvi.At(0, 1)), "zero denominator is no-data")
	assert.True(t, math.IsNaN(ndvi.At(1, 1)), "no-data input propagates")
}

func TestCombineShapeMismatch(t *testing.T) {
	a := New(2, 2, testBound)
	b := New(3, 2, testBound)

	_, err := Ratio(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMedianIgnoresNoData(t *testing.T) {
	nan := math.NaN()
	grids := []*Grid{
		FromRows([][]float64{{1, nan}}, testBound),
		FromRows([][]float64{{5, nan}}, testBound),
		FromRows([][]float64{{3, nan}}, testBound),
	}

	median, err := Median(grids)
	require.NoError(t, err)
	assert.Equal(t, 3.0, median.At(0, 0))
	assert.True(t, math.IsNaN(median.At(1, 0)))

	mean, err := Mean(grids)
	require.NoError(t, err)
	assert.Equal(t, 3.0, mean.At(0, 0))
}

func TestMaskWhere(t *testing.T) {
	values := FromRows([][]float64{{1, 2, 3}}, testBound)
	qa := FromRows([][]float64{{0, 1 << 10, math.NaN()}}, testBound)

	masked, err := MaskWhere(values, qa, func(v float64) bool { return int64(v)&(1<<10) != 0 })
	require.NoError(t, err)

	assert.Equal(t, 1.0, masked.At(0, 0))
	assert.True(t, math.IsNaN(masked.At(1, 0)))
	assert.True(t, math.IsNaN(masked.At(2, 0)))
	assert.Equal(t, 1, masked.ValidCount())
}

func TestSample(t *testing.T) {
	g := FromRows([][]float64{{1, 2}, {3, 4}}, testBound)

	v, ok := g.Sample(orb.Point{-47.015, -15.005})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = g.Sample(orb.Point{-47.005, -15.015})
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = g.Sample(orb.Point{-46.0, -15.0})
	assert.False(t, ok)
}

func TestClampMin(t *testing.T) {
	g := FromRows([][]float64{{-1, 0.5, math.NaN()}}, testBound)
	out := ClampMin(g, 0)
	assert.Equal(t, 0.0, out.At(0, 0))
	assert.Equal(t, 0.5, out.At(1, 0))
	assert.True(t, math.IsNaN(out.At(2, 0)))
}
