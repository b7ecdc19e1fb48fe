package zonal

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

var field = geometry.Region{Center: orb.Point{-47, -15}, Radius: 500, Shape: geometry.Circle}

func uniform(b orb.Bound, v float64) *raster.Grid {
	g := raster.New(20, 20, b)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func TestMeanUniformLayers(t *testing.T) {
	local := geometry.Region{Center: field.Center, Radius: 1000, Shape: geometry.Square}
	layers := map[string]*raster.Grid{
		"ndvi": uniform(local.Bound(), 0.6),
		"ndwi": uniform(local.Bound(), -0.1),
	}

	got := Mean(layers, field, 10)
	require.Len(t, got, 2)
	assert.True(t, got.Valid("ndvi"))
	assert.InDelta(t, 0.6, got["ndvi"].Value, 1e-9)
	assert.InDelta(t, -0.1, got.ValueOr("ndwi", 0), 1e-9)
}

func TestMeanAllNoData(t *testing.T) {
	layers := map[string]*raster.Grid{
		"rvi":  raster.New(4, 4, field.Bound()),
		"none": nil,
	}

	got := Mean(layers, field, 10)
	assert.False(t, got.Valid("rvi"))
	assert.False(t, got.Valid("none"))
	assert.Equal(t, 0.0, got.ValueOr("rvi", 0))
	assert.Equal(t, -1.0, got.ValueOr("missing", -1))
}

func TestMeanIgnoresPixelsOutsideRegion(t *testing.T) {
	local := geometry.Region{Center: field.Center, Radius: 1000, Shape: geometry.Square}
	g := uniform(local.Bound(), 1)
	// Corners of the local square lie outside the field circle.
	g.Set(0, 0, 100)
	g.Set(19, 19, 100)

	got := Mean(map[string]*raster.Grid{"ndvi": g}, field, 10)
	assert.InDelta(t, 1.0, got["ndvi"].Value, 1e-9)
}

func TestMeanSkipsNaN(t *testing.T) {
	g := uniform(field.Bound(), 0.5)
	for x := 0; x < g.Width; x++ {
		g.Set(x, 10, math.NaN())
	}
	got := Mean(map[string]*raster.Grid{"ndvi": g}, field, 10)
	assert.InDelta(t, 0.5, got["ndvi"].Value, 1e-9)
}

func TestLattice(t *testing.T) {
	points := Lattice(field, 100)
	assert.NotEmpty(t, points)
	for _, p := range points {
		assert.True(t, field.Contains(p))
	}

	tiny := geometry.Region{Center: field.Center, Radius: 1, Shape: geometry.Circle}
	assert.Equal(t, []orb.Point{tiny.Center}, Lattice(tiny, 100))
}
