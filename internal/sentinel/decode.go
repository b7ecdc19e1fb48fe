package sentinel

import (
	"fmt"
	"os"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"

	"github.com/yvy-orbital/yvy-field-service/internal/raster"
	"github.com/yvy-orbital/yvy-field-service/internal/utils"
)

var registerDrivers sync.Once

func openTIFF(path string) (*godal.Dataset, error) {
	registerDrivers.Do(godal.RegisterAll)

	var (
		ds  *godal.Dataset
		err error
	)
	ds, err = godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}))
	return ds, err
}

// decodeTIFF reads a multi-band GeoTIFF into one grid per name, in band
// order. The grid bound comes from the geotransform when present and falls
// back to the requested bound.
func decodeTIFF(content []byte, names []string, requested orb.Bound) (map[string]*raster.Grid, error) {
	f, err := os.CreateTemp("", "scene-*.tif")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(content); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	var grids map[string]*raster.Grid
	utils.ExecuteWithMutex(func() {
		grids, err = readBands(f.Name(), names, requested)
	})
	return grids, err
}

func readBands(path string, names []string, requested orb.Bound) (map[string]*raster.Grid, error) {
	ds, err := openTIFF(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF: %w", err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) < len(names) {
		return nil, fmt.Errorf("expected %d bands, got %d", len(names), len(bands))
	}
	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	bound := requested
	if gt, err := ds.GeoTransform(); err == nil && gt[1] != 0 && gt[5] != 0 {
		bound = orb.Bound{
			Min: orb.Point{gt[0], gt[3] + gt[5]*float64(height)},
			Max: orb.Point{gt[0] + gt[1]*float64(width), gt[3]},
		}
	}

	grids := make(map[string]*raster.Grid, len(names))
	for i, name := range names {
		data := make([]float64, width*height)
		if err := bands[i].Read(0, 0, data, width, height); err != nil {
			return nil, fmt.Errorf("failed to read band %s: %w", name, err)
		}
		g := raster.New(width, height, bound)
		copy(g.Data, data)
		grids[name] = g
	}
	return grids, nil
}
