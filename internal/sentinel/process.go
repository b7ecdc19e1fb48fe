package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
)

const (
	maxPixels    = 2500
	metersPerDeg = 111_000.0
	crsWGS84     = "http://www.opengis.net/def/crs/EPSG/0/4326"
)

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (metersPerDeg / resolution)
	if pixels < 1 {
		return 1
	}
	if pixels > maxPixels {
		return maxPixels
	}
	return int(pixels)
}

// outputSize converts a geographic bound to pixel dimensions at resolution
// metres, correcting longitude spans for latitude.
func outputSize(b orb.Bound, resolution float64) (int, int) {
	if resolution <= 0 {
		resolution = 10
	}
	lat := b.Center().Lat() * math.Pi / 180
	width := calculatePixels((b.Max.Lon()-b.Min.Lon())*math.Cos(lat), resolution)
	height := calculatePixels(b.Max.Lat()-b.Min.Lat(), resolution)
	return width, height
}

// evalscript returns every requested band as FLOAT32 in request order and
// NaN where the provider has no data.
func evalscript(bands []imagery.Band) string {
	names := make([]string, 0, len(bands)+1)
	units := make([]string, 0, len(bands)+1)
	samples := make([]string, len(bands))
	nans := make([]string, len(bands))
	for i, b := range bands {
		names = append(names, fmt.Sprintf("%q", b.Name))
		u := b.Units
		if u == "" {
			u = "DN"
		}
		units = append(units, fmt.Sprintf("%q", u))
		samples[i] = "sample." + b.Name
		nans[i] = "NaN"
	}
	names = append(names, `"dataMask"`)
	units = append(units, `"DN"`)

	return fmt.Sprintf(`//VERSION=3
function setup() {
  return {
    input: [{ bands: [%s], units: [%s] }],
    output: { id: "default", bands: %d, sampleType: "FLOAT32" },
  };
}

function evaluatePixel(sample) {
  if (sample.dataMask === 0) {
    return [%s];
  }
  return [%s];
}
`, strings.Join(names, ", "), strings.Join(units, ", "), len(bands),
		strings.Join(nans, ", "), strings.Join(samples, ", "))
}

func processPayload(req imagery.SceneRequest, meta imagery.SceneMeta) map[string]interface{} {
	day := time.Date(meta.Date.Year(), meta.Date.Month(), meta.Date.Day(), 0, 0, 0, 0, time.UTC)
	dataFilter := map[string]interface{}{
		"timeRange": map[string]string{
			"from": day.Format(time.RFC3339),
			"to":   day.Add(24*time.Hour - time.Second).Format(time.RFC3339),
		},
	}
	if req.Collection.Type == imagery.Sentinel1GRD.Type {
		dataFilter["acquisitionMode"] = "IW"
		dataFilter["polarization"] = "DV"
	}

	width, height := outputSize(req.Bound, req.Resolution)
	b := req.Bound
	return map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"bbox":       []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
				"properties": map[string]string{"crs": crsWGS84},
			},
			"data": []map[string]interface{}{
				{
					"type":       req.Collection.Type,
					"dataFilter": dataFilter,
				},
			},
		},
		"output": map[string]interface{}{
			"width":  width,
			"height": height,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": evalscript(req.Bands),
	}
}

// Fetch renders one acquisition day through the Process API and decodes the
// GeoTIFF into per-band grids.
func (c *Client) Fetch(ctx context.Context, req imagery.SceneRequest, meta imagery.SceneMeta) (*imagery.Scene, error) {
	body, err := json.Marshal(processPayload(req, meta))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	content, err := c.post(ctx, c.cfg.ProcessURL, body, "image/tiff")
	if err != nil {
		return nil, fmt.Errorf("process %s %s: %w", req.Collection.Name, meta.ID, err)
	}

	bands, err := decodeTIFF(content, req.BandNames(), req.Bound)
	if err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", req.Collection.Name, meta.ID, err)
	}
	if bar := c.progress(); bar != nil {
		_ = bar.Add(1)
	}
	return &imagery.Scene{SceneMeta: meta, Bands: bands}, nil
}
