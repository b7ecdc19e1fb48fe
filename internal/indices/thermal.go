package indices

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

const (
	ThermalBand          = "B10"
	ThermalMaxCloudCover = 60.0

	lstScale  = 0.00341802
	lstOffset = 149.0
	kelvin    = 273.15
)

type Thermal struct {
	LST    *raster.Grid
	Scenes int
}

func (t *Thermal) Layers() map[string]*raster.Grid {
	return map[string]*raster.Grid{"temperature": t.LST}
}

// ComputeThermal merges Landsat 9 and Landsat 8 Collection 2 scenes with
// cloud cover below 60% and returns the median land surface temperature in
// degrees Celsius.
func ComputeThermal(ctx context.Context, p imagery.Provider, region geometry.Region, window imagery.TimeWindow, resolution float64) (*Thermal, error) {
	bands := []imagery.Band{{Name: ThermalBand, Units: "DN"}}

	var (
		scenes  []*imagery.Scene
		lastErr error
	)
	for _, c := range []imagery.Collection{imagery.Landsat9L2, imagery.Landsat8L2} {
		req := newRequest(c, bands, region, window, resolution)
		found, err := collect(ctx, p, req, cloudBelow(ThermalMaxCloudCover))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, imagery.ErrNoScenes) {
				logger.Log.WithFields(logrus.Fields{"collection": c.Name, "error": err}).Warn("thermal collection failed")
				lastErr = err
			}
			continue
		}
		scenes = append(scenes, found...)
	}
	if len(scenes) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("landsat in %s: %w", window, imagery.ErrNoScenes)
	}

	celsius := make([]*raster.Grid, 0, len(scenes))
	for _, s := range scenes {
		g, err := band(s, ThermalBand)
		if err != nil {
			return nil, err
		}
		celsius = append(celsius, raster.Map(g, toCelsius))
	}
	lst, err := raster.Median(celsius)
	if err != nil {
		return nil, fmt.Errorf("lst composite: %w", err)
	}
	return &Thermal{LST: lst, Scenes: len(scenes)}, nil
}

func toCelsius(dn float64) float64 {
	return dn*lstScale + lstOffset - kelvin
}
