package zonal

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

const metersPerDegree = 111320.0

type Statistic struct {
	Value float64
	Valid bool
}

type Stats map[string]Statistic

// ValueOr returns the named statistic or def when it is missing or invalid.
func (s Stats) ValueOr(name string, def float64) float64 {
	if st, ok := s[name]; ok && st.Valid {
		return st.Value
	}
	return def
}

func (s Stats) Valid(name string) bool {
	return s[name].Valid
}

// Mean reduces each layer to the mean of its valid pixels inside region,
// sampled on a lattice spaced scale metres apart.
func Mean(layers map[string]*raster.Grid, region geometry.Region, scale float64) Stats {
	points := Lattice(region, scale)
	out := make(Stats, len(layers))
	for name, g := range layers {
		out[name] = reduce(g, points, stats.Mean)
	}
	return out
}

// Lattice returns the sampling points inside region. The center is used
// when no lattice point falls inside.
func Lattice(region geometry.Region, scale float64) []orb.Point {
	b := region.Bound()
	if scale <= 0 {
		return []orb.Point{region.Center}
	}
	dLat := scale / metersPerDegree
	dLon := dLat / math.Max(math.Cos(region.Center.Lat()*math.Pi/180), 1e-6)

	var points []orb.Point
	for lat := b.Min.Lat() + dLat/2; lat < b.Max.Lat(); lat += dLat {
		for lon := b.Min.Lon() + dLon/2; lon < b.Max.Lon(); lon += dLon {
			p := orb.Point{lon, lat}
			if region.Contains(p) {
				points = append(points, p)
			}
		}
	}
	if len(points) == 0 {
		points = append(points, region.Center)
	}
	return points
}

// Values samples g at the given points, keeping valid pixels only.
func Values(g *raster.Grid, points []orb.Point) stats.Float64Data {
	if g.Empty() {
		return nil
	}
	values := make(stats.Float64Data, 0, len(points))
	for _, p := range points {
		if v, ok := g.Sample(p); ok {
			values = append(values, v)
		}
	}
	return values
}

func reduce(g *raster.Grid, points []orb.Point, fn func(stats.Float64Data) (float64, error)) Statistic {
	values := Values(g, points)
	if len(values) == 0 {
		return Statistic{}
	}
	v, err := fn(values)
	if err != nil || math.IsNaN(v) {
		return Statistic{}
	}
	return Statistic{Value: v, Valid: true}
}
