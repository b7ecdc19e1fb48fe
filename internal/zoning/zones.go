package zoning

import (
	"context"
	"fmt"

	"github.com/yvy-orbital/yvy-field-service/internal/dataset"
)

const (
	DefaultZoneCount = 3
	NeutralColor     = "#cccccc"
)

var (
	zoneNames  = []string{"Low Productivity", "Medium Productivity", "High Productivity"}
	zoneColors = []string{"#ef4444", "#eab308", "#22c55e"}
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Zone struct {
	ID             int          `json:"id"`
	Name           string       `json:"name"`
	Color          string       `json:"color"`
	Coordinates    []Coordinate `json:"coordinates"`
	NDVIAvg        float64      `json:"ndvi_avg"`
	AreaPercentage float64      `json:"area_percentage"`
}

// Engine partitions pixel samples into productivity zones ordered by
// vegetation.
type Engine struct {
	Clusterer Clusterer
}

func NewEngine(c Clusterer) *Engine {
	if c == nil {
		c = NewKMeans()
	}
	return &Engine{Clusterer: c}
}

func (e *Engine) Zones(ctx context.Context, samples []dataset.PixelSample, k int) ([]Zone, error) {
	points := make([][2]float64, len(samples))
	for i, s := range samples {
		points[i] = [2]float64{s.NDVI, s.NDWI}
	}
	if err := validate(points, k); err != nil {
		return nil, err
	}

	c, err := e.Clusterer.Cluster(ctx, points, k)
	if err != nil {
		return nil, fmt.Errorf("cluster %d samples: %w", len(samples), err)
	}
	if len(c.Labels) != len(points) || len(c.Centroids) != k {
		return nil, fmt.Errorf("clusterer returned %d labels and %d centroids for %d samples, k=%d",
			len(c.Labels), len(c.Centroids), len(points), k)
	}
	for _, l := range c.Labels {
		if l < 0 || l >= k {
			return nil, fmt.Errorf("clusterer returned label %d outside 0..%d", l, k-1)
		}
	}
	c = OrderByVegetation(c)

	zones := make([]Zone, k)
	for id := range zones {
		name, color := ZoneStyle(id, k)
		zones[id] = Zone{
			ID:          id,
			Name:        name,
			Color:       color,
			Coordinates: []Coordinate{},
			NDVIAvg:     c.Centroids[id][0],
		}
	}
	for i, l := range c.Labels {
		zones[l].Coordinates = append(zones[l].Coordinates, Coordinate{Lat: samples[i].Latitude, Lon: samples[i].Longitude})
	}
	for i := range zones {
		zones[i].AreaPercentage = float64(len(zones[i].Coordinates)) / float64(len(samples))
	}
	return zones, nil
}

// ZoneStyle returns the display name and color of zone id out of k.
func ZoneStyle(id, k int) (string, string) {
	if k == DefaultZoneCount && id < len(zoneNames) {
		return zoneNames[id], zoneColors[id]
	}
	return fmt.Sprintf("Zone %d", id+1), NeutralColor
}
