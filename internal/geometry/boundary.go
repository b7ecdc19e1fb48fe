package geometry

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrBoundaryNotFound = errors.New("boundary not found")

const squareMetersPerHectare = 10_000

// Boundary is a farm outline reduced to the inputs of Size.
type Boundary struct {
	FarmID    string
	Latitude  float64
	Longitude float64
	Hectares  float64
	Geometry  orb.Geometry
}

// LoadBoundary reads a GeoJSON FeatureCollection and returns the feature
// whose farm_id or plot_id property equals farmID. An empty farmID picks the
// first polygon.
func LoadBoundary(path, farmID string) (*Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, f := range fc.Features {
		id := featureID(f)
		if farmID != "" && id != farmID {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		return BoundaryOf(id, f.Geometry)
	}
	return nil, fmt.Errorf("farm %q in %s: %w", farmID, path, ErrBoundaryNotFound)
}

// BoundaryOf computes the centroid and geodesic area of a polygon.
func BoundaryOf(farmID string, g orb.Geometry) (*Boundary, error) {
	centroid, area := planar.CentroidArea(g)
	if area <= 0 {
		return nil, fmt.Errorf("farm %q has an empty outline: %w", farmID, ErrInvalidLocation)
	}
	return &Boundary{
		FarmID:    farmID,
		Latitude:  centroid.Lat(),
		Longitude: centroid.Lon(),
		Hectares:  geo.Area(g) / squareMetersPerHectare,
		Geometry:  g,
	}, nil
}

func featureID(f *geojson.Feature) string {
	for _, key := range []string{"farm_id", "plot_id", "id"} {
		if v, ok := f.Properties[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return ""
}
