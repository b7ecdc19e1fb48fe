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
	VV = "VV"
	VH = "VH"

	InterferometricWideSwath = "IW"
)

type Radar struct {
	Composite raster.Composite
	RVI       *raster.Grid
}

func (r *Radar) Layers() map[string]*raster.Grid {
	return map[string]*raster.Grid{"rvi": r.RVI}
}

func dualPolIW(m imagery.SceneMeta) bool {
	return m.HasPolarization(VV) && m.HasPolarization(VH) && m.InstrumentMode == InterferometricWideSwath
}

// ComputeRadar averages dual-polarised IW Sentinel-1 backscatter in linear
// power and derives RVI = 4*VH/(VV+VH).
func ComputeRadar(ctx context.Context, p imagery.Provider, region geometry.Region, window imagery.TimeWindow, resolution float64) (*Radar, error) {
	bands := []imagery.Band{{Name: VV, Units: "DB"}, {Name: VH, Units: "DB"}}
	req := newRequest(imagery.Sentinel1GRD, bands, region, window, resolution)
	scenes, err := collect(ctx, p, req, dualPolIW)
	if err != nil {
		return nil, err
	}

	linear := make([]*imagery.Scene, 0, len(scenes))
	for _, s := range scenes {
		out := &imagery.Scene{SceneMeta: s.SceneMeta, Bands: map[string]*raster.Grid{}}
		for _, name := range []string{VV, VH} {
			g, err := band(s, name)
			if err != nil {
				return nil, err
			}
			out.Bands[name] = raster.Map(g, dbToLinear)
		}
		linear = append(linear, out)
	}

	comp, err := composite(linear, []string{VV, VH}, raster.Mean)
	if err != nil {
		return nil, err
	}
	vv, _ := comp.Band(VV)
	vh, _ := comp.Band(VH)
	rvi, err := raster.Combine(vh, vv, func(vh, vv float64) float64 {
		if vv+vh == 0 {
			return math.NaN()
		}
		return 4 * vh / (vv + vh)
	})
	if err != nil {
		return nil, fmt.Errorf("rvi: %w", err)
	}
	return &Radar{Composite: comp, RVI: rvi}, nil
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/10)
}
