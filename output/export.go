package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/yvy-orbital/yvy-field-service/internal/dataset"
	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
)

// ZonesGeoJSON encodes every zone as a MultiPoint feature of its member
// samples.
func ZonesGeoJSON(zones []zoning.Zone) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		points := make(orb.MultiPoint, len(z.Coordinates))
		for i, c := range z.Coordinates {
			points[i] = orb.Point{c.Lon, c.Lat}
		}
		f := geojson.NewFeature(points)
		f.ID = z.ID
		f.Properties["id"] = z.ID
		f.Properties["name"] = z.Name
		f.Properties["color"] = z.Color
		f.Properties["ndvi_avg"] = z.NDVIAvg
		f.Properties["area_percentage"] = z.AreaPercentage
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

func SaveZonesGeoJSON(zones []zoning.Zone, path string) error {
	data, err := ZonesGeoJSON(zones)
	if err != nil {
		return fmt.Errorf("failed to encode zones: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

type sampleRow struct {
	Latitude  float64 `csv:"latitude"`
	Longitude float64 `csv:"longitude"`
	NDVI      float64 `csv:"ndvi"`
	NDWI      float64 `csv:"ndwi"`
	ZoneID    int     `csv:"zone_id"`
	Zone      string  `csv:"zone"`
}

// SaveSamplesCSV writes one row per sample. labels[i] is the zone id of
// samples[i]; -1 or a missing label leaves the zone name empty.
func SaveSamplesCSV(samples []dataset.PixelSample, labels []int, zones []zoning.Zone, path string) error {
	names := make(map[int]string, len(zones))
	for _, z := range zones {
		names[z.ID] = z.Name
	}

	rows := make([]*sampleRow, len(samples))
	for i, s := range samples {
		id := -1
		if i < len(labels) {
			id = labels[i]
		}
		rows[i] = &sampleRow{
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			NDVI:      s.NDVI,
			NDWI:      s.NDWI,
			ZoneID:    id,
			Zone:      names[id],
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return nil
}

// LoadSamplesCSV reads a file written by SaveSamplesCSV, or any CSV with
// latitude, longitude, ndvi and ndwi columns.
func LoadSamplesCSV(path string) ([]dataset.PixelSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var samples []dataset.PixelSample
	if err := gocsv.UnmarshalFile(file, &samples); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	return samples, nil
}
