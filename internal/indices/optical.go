package indices

import (
	"context"
	"fmt"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

const (
	OpticalMaxCloudCover = 80.0
	ReflectanceScale     = 10000.0

	qa60Cloud  = 1 << 10
	qa60Cirrus = 1 << 11
)

const (
	Blue     = "B02"
	Green    = "B03"
	Red      = "B04"
	RedEdge1 = "B05"
	RedEdge2 = "B06"
	NIR      = "B08"
	SWIR     = "B11"
	QA60     = "QA60"
)

var reflectanceBands = []string{Blue, Green, Red, RedEdge1, RedEdge2, NIR, SWIR}

// Optical is the cloud-masked Sentinel-2 composite and its derived indices.
type Optical struct {
	Composite raster.Composite
	NDVI      *raster.Grid
	NDWI      *raster.Grid
	NDRE      *raster.Grid
}

func (o *Optical) Layers() map[string]*raster.Grid {
	return map[string]*raster.Grid{"ndvi": o.NDVI, "ndwi": o.NDWI, "ndre": o.NDRE}
}

func opticalBands() []imagery.Band {
	bands := make([]imagery.Band, 0, len(reflectanceBands)+1)
	for _, name := range reflectanceBands {
		bands = append(bands, imagery.Band{Name: name, Units: "DN"})
	}
	return append(bands, imagery.Band{Name: QA60, Units: "DN"})
}

// ComputeOptical builds a median Sentinel-2 composite over the region with
// cloudy and cirrus pixels removed, and derives NDVI, NDWI and NDRE.
func ComputeOptical(ctx context.Context, p imagery.Provider, region geometry.Region, window imagery.TimeWindow, resolution float64) (*Optical, error) {
	req := newRequest(imagery.Sentinel2L2A, opticalBands(), region, window, resolution)
	scenes, err := collect(ctx, p, req, cloudBelow(OpticalMaxCloudCover))
	if err != nil {
		return nil, err
	}

	masked := make([]*imagery.Scene, 0, len(scenes))
	for _, s := range scenes {
		m, err := maskClouds(s)
		if err != nil {
			return nil, err
		}
		masked = append(masked, m)
	}

	comp, err := composite(masked, reflectanceBands, raster.Median)
	if err != nil {
		return nil, err
	}
	return deriveOptical(comp)
}

func maskClouds(s *imagery.Scene) (*imagery.Scene, error) {
	qa, err := band(s, QA60)
	if err != nil {
		return nil, err
	}
	out := &imagery.Scene{SceneMeta: s.SceneMeta, Bands: make(map[string]*raster.Grid, len(reflectanceBands))}
	for _, name := range reflectanceBands {
		g, err := band(s, name)
		if err != nil {
			return nil, err
		}
		cleared, err := raster.MaskWhere(g, qa, func(v float64) bool {
			return int64(v)&(qa60Cloud|qa60Cirrus) != 0
		})
		if err != nil {
			return nil, fmt.Errorf("mask %s of %s: %w", name, s.ID, err)
		}
		out.Bands[name] = raster.Map(cleared, func(v float64) float64 { return v / ReflectanceScale })
	}
	return out, nil
}

func deriveOptical(c raster.Composite) (*Optical, error) {
	nir, _ := c.Band(NIR)
	red, _ := c.Band(Red)
	swir, _ := c.Band(SWIR)
	re1, _ := c.Band(RedEdge1)

	ndvi, err := raster.NormalizedDifference(nir, red)
	if err != nil {
		return nil, fmt.Errorf("ndvi: %w", err)
	}
	ndwi, err := raster.NormalizedDifference(nir, swir)
	if err != nil {
		return nil, fmt.Errorf("ndwi: %w", err)
	}
	ndre, err := raster.NormalizedDifference(nir, re1)
	if err != nil {
		return nil, fmt.Errorf("ndre: %w", err)
	}
	return &Optical{Composite: c, NDVI: ndvi, NDWI: ndwi, NDRE: ndre}, nil
}

// OpticalOTCI is the Sentinel-2 approximation (B6-B5)/(B5-B4).
func OpticalOTCI(c raster.Composite) (*raster.Grid, error) {
	re2, ok := c.Band(RedEdge2)
	if !ok {
		return nil, fmt.Errorf("otci: missing %s", RedEdge2)
	}
	re1, ok := c.Band(RedEdge1)
	if !ok {
		return nil, fmt.Errorf("otci: missing %s", RedEdge1)
	}
	red, ok := c.Band(Red)
	if !ok {
		return nil, fmt.Errorf("otci: missing %s", Red)
	}

	num, err := raster.Subtract(re2, re1)
	if err != nil {
		return nil, err
	}
	den, err := raster.Subtract(re1, red)
	if err != nil {
		return nil, err
	}
	return raster.Ratio(num, den)
}
