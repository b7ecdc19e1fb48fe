package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

var ErrInvalidLocation = errors.New("invalid farm location")

const (
	MinRegionalRadius = 5000.0
	circleVertices    = 64
)

type Shape int

const (
	Circle Shape = iota
	Square
)

func (s Shape) String() string {
	if s == Square {
		return "square"
	}
	return "circle"
}

// Region is either a disk of Radius metres around Center or the square
// bounding box of that disk.
type Region struct {
	Center orb.Point
	Radius float64
	Shape  Shape
}

func (r Region) Bound() orb.Bound {
	return geo.NewBoundAroundPoint(r.Center, r.Radius)
}

func (r Region) Contains(p orb.Point) bool {
	if r.Shape == Square {
		return r.Bound().Contains(p)
	}
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(r.Center.Lat(), r.Center.Lon()))
	c := s2.CapFromCenterAngle(center, s1.Angle(r.Radius/orb.EarthRadius))
	return c.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon())))
}

// Polygon returns the region outline as a closed ring.
func (r Region) Polygon() orb.Polygon {
	if r.Shape == Square {
		return r.Bound().ToPolygon()
	}
	ring := make(orb.Ring, 0, circleVertices+1)
	for i := 0; i < circleVertices; i++ {
		bearing := 360.0 * float64(i) / circleVertices
		ring = append(ring, geo.PointAtBearingAndDistance(r.Center, bearing, r.Radius))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Extent is the ground width and height of the region bound in metres.
func (r Region) Extent() (float64, float64) {
	b := r.Bound()
	lat := r.Center.Lat()
	width := geo.Distance(orb.Point{b.Min.Lon(), lat}, orb.Point{b.Max.Lon(), lat})
	height := geo.Distance(orb.Point{r.Center.Lon(), b.Min.Lat()}, orb.Point{r.Center.Lon(), b.Max.Lat()})
	return width, height
}

// Regions are the three nested regions derived from one farm.
// Field is inside Local, which is inside Regional.
type Regions struct {
	Field       Region
	Local       Region
	Regional    Region
	FieldRadius float64
}

func FieldRadius(hectares float64) float64 {
	return math.Sqrt(hectares * 10000 / math.Pi)
}

func RegionalRadius(hectares float64) float64 {
	return math.Max(3*FieldRadius(hectares), MinRegionalRadius)
}

// Size derives the analysis regions of a farm centred at lat/lon with the
// given area in hectares.
func Size(lat, lon, hectares float64) (Regions, error) {
	switch {
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return Regions{}, fmt.Errorf("latitude %v: %w", lat, ErrInvalidLocation)
	case math.IsNaN(lon) || lon < -180 || lon > 180:
		return Regions{}, fmt.Errorf("longitude %v: %w", lon, ErrInvalidLocation)
	case math.IsNaN(hectares) || math.IsInf(hectares, 0) || hectares <= 0:
		return Regions{}, fmt.Errorf("size %v ha: %w", hectares, ErrInvalidLocation)
	}

	center := orb.Point{lon, lat}
	r := FieldRadius(hectares)
	return Regions{
		Field:       Region{Center: center, Radius: r, Shape: Circle},
		Local:       Region{Center: center, Radius: 2 * r, Shape: Square},
		Regional:    Region{Center: center, Radius: RegionalRadius(hectares), Shape: Square},
		FieldRadius: r,
	}, nil
}

// OverlayBounds returns [[minLat, minLon], [maxLat, maxLon]] of the region.
func OverlayBounds(r Region) [2][2]float64 {
	b := r.Bound()
	return [2][2]float64{
		{b.Min.Lat(), b.Min.Lon()},
		{b.Max.Lat(), b.Max.Lon()},
	}
}
