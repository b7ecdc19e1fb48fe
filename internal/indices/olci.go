package indices

import (
	"context"
	"fmt"
	"math"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

const (
	Oa08         = "B08"
	Oa11         = "B11"
	Oa12         = "B12"
	QualityFlags = "QUALITY_FLAGS"

	olciInvalidBit  = 1 << 27
	olciMaxRadiance = 500.0
)

var olciBands = []string{Oa08, Oa11, Oa12}

// ComputeOLCIChlorophyll derives the OLCI terrestrial chlorophyll index
// (Oa12-Oa11)/(Oa11-Oa08) from a median composite, clamped to >= 0.
func ComputeOLCIChlorophyll(ctx context.Context, p imagery.Provider, region geometry.Region, window imagery.TimeWindow, resolution float64) (*raster.Grid, error) {
	bands := []imagery.Band{
		{Name: Oa08, Units: "RADIANCE"},
		{Name: Oa11, Units: "RADIANCE"},
		{Name: Oa12, Units: "RADIANCE"},
		{Name: QualityFlags, Units: "DN"},
	}
	req := newRequest(imagery.Sentinel3OLCI, bands, region, window, resolution)
	scenes, err := collect(ctx, p, req, nil)
	if err != nil {
		return nil, err
	}

	masked := make([]*imagery.Scene, 0, len(scenes))
	for _, s := range scenes {
		m, err := maskOLCI(s)
		if err != nil {
			return nil, err
		}
		masked = append(masked, m)
	}

	comp, err := composite(masked, olciBands, raster.Median)
	if err != nil {
		return nil, err
	}
	oa08, _ := comp.Band(Oa08)
	oa11, _ := comp.Band(Oa11)
	oa12, _ := comp.Band(Oa12)

	num, err := raster.Subtract(oa12, oa11)
	if err != nil {
		return nil, fmt.Errorf("otci: %w", err)
	}
	den, err := raster.Subtract(oa11, oa08)
	if err != nil {
		return nil, fmt.Errorf("otci: %w", err)
	}
	otci, err := raster.Ratio(num, den)
	if err != nil {
		return nil, fmt.Errorf("otci: %w", err)
	}
	return raster.ClampMin(otci, 0), nil
}

// maskOLCI drops pixels flagged invalid and pixels where any radiance falls
// outside (0, 500).
func maskOLCI(s *imagery.Scene) (*imagery.Scene, error) {
	flags, err := band(s, QualityFlags)
	if err != nil {
		return nil, err
	}
	radiances := make([]*raster.Grid, 0, len(olciBands))
	for _, name := range olciBands {
		g, err := band(s, name)
		if err != nil {
			return nil, err
		}
		radiances = append(radiances, g)
	}

	valid := raster.New(flags.Width, flags.Height, flags.Bound)
	for i, f := range flags.Data {
		if math.IsNaN(f) || int64(f)&olciInvalidBit != 0 {
			continue
		}
		ok := true
		for _, g := range radiances {
			if i >= len(g.Data) {
				return nil, fmt.Errorf("scene %s: %w", s.ID, raster.ErrShapeMismatch)
			}
			if v := g.Data[i]; math.IsNaN(v) || v <= 0 || v >= olciMaxRadiance {
				ok = false
				break
			}
		}
		if ok {
			valid.Data[i] = 1
		}
	}

	out := &imagery.Scene{SceneMeta: s.SceneMeta, Bands: make(map[string]*raster.Grid, len(olciBands))}
	for i, name := range olciBands {
		g, err := raster.MaskWhere(radiances[i], valid, func(float64) bool { return false })
		if err != nil {
			return nil, fmt.Errorf("mask %s of %s: %w", name, s.ID, err)
		}
		out.Bands[name] = g
	}
	return out, nil
}
