package raster

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

var ErrShapeMismatch = errors.New("raster shapes do not match")

// Grid is a single-band raster in EPSG:4326. Data is row-major starting at the
// north-west corner; NaN marks no-data.
type Grid struct {
	Width  int
	Height int
	Bound  orb.Bound
	Data   []float64
}

func New(width, height int, bound orb.Bound) *Grid {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{Width: width, Height: height, Bound: bound, Data: data}
}

// FromRows builds a grid from rows of values, first row north.
func FromRows(rows [][]float64, bound orb.Bound) *Grid {
	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}
	g := New(width, height, bound)
	for y, row := range rows {
		copy(g.Data[y*width:(y+1)*width], row)
	}
	return g
}

func (g *Grid) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

func (g *Grid) Set(x, y int, v float64) {
	g.Data[y*g.Width+x] = v
}

func (g *Grid) Empty() bool {
	return g == nil || g.Width == 0 || g.Height == 0
}

// PixelSize returns the pixel size in degrees (lon, lat).
func (g *Grid) PixelSize() (float64, float64) {
	return (g.Bound.Max.X() - g.Bound.Min.X()) / float64(g.Width),
		(g.Bound.Max.Y() - g.Bound.Min.Y()) / float64(g.Height)
}

// Sample returns the value of the pixel covering p. ok is false when p falls
// outside the grid or the pixel is no-data.
func (g *Grid) Sample(p orb.Point) (float64, bool) {
	if g.Empty() || !g.Bound.Contains(p) {
		return math.NaN(), false
	}
	dx, dy := g.PixelSize()
	x := int(math.Floor((p.X() - g.Bound.Min.X()) / dx))
	y := int(math.Floor((g.Bound.Max.Y() - p.Y()) / dy))
	if x >= g.Width {
		x = g.Width - 1
	}
	if y >= g.Height {
		y = g.Height - 1
	}
	v := g.At(x, y)
	return v, !math.IsNaN(v)
}

// ValidCount counts pixels holding data.
func (g *Grid) ValidCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

func (g *Grid) sameShape(o *Grid) bool {
	return g != nil && o != nil && g.Width == o.Width && g.Height == o.Height
}

// Composite is a set of named bands built from one or more scenes.
type Composite struct {
	Bands  map[string]*Grid
	Scenes int
}

func (c Composite) Band(name string) (*Grid, bool) {
	g, ok := c.Bands[name]
	return g, ok && g != nil
}
