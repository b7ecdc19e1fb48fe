package delivery

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/indices"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/properties"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
	"github.com/yvy-orbital/yvy-field-service/internal/storage"
	"github.com/yvy-orbital/yvy-field-service/internal/weather"
	"github.com/yvy-orbital/yvy-field-service/internal/zonal"
	"github.com/yvy-orbital/yvy-field-service/output"
)

type FarmRequest struct {
	FarmID    string
	Latitude  float64
	Longitude float64
	Hectares  float64
	// Start and End are optional YYYY-MM-DD overrides of the default window.
	Start string
	End   string
}

type AnalysisResult struct {
	Date           string        `json:"date"`
	NDVI           float64       `json:"ndvi"`
	NDWI           float64       `json:"ndwi"`
	NDRE           float64       `json:"ndre"`
	RVI            float64       `json:"rvi"`
	OTCI           float64       `json:"otci"`
	Temperature    float64       `json:"temperature"`
	SatelliteImage *string       `json:"satellite_image"`
	ThermalImage   *string       `json:"thermal_image"`
	Bounds         [2][2]float64 `json:"bounds"`
	RegionalNDVI   float64       `json:"regional_ndvi"`
	BiomassTHa     float64       `json:"biomass_t_ha"`
	TotalBiomass   float64       `json:"total_biomass"`
	CarbonStock    float64       `json:"carbon_stock"`
	CO2Equivalent  float64       `json:"co2_equivalent"`
	Alerts         []Alert       `json:"alerts"`

	// Weather is set only when a weather source is configured and answered.
	Weather *weather.Summary `json:"weather,omitempty"`
}

type ReadingStore interface {
	SaveReading(ctx context.Context, reading *storage.Reading) error
}

type WeatherSource interface {
	WindowSummary(ctx context.Context, lat, lon float64, window imagery.TimeWindow) (*weather.Summary, error)
}

type AlertNotifier interface {
	SendAlert(ctx context.Context, title, description string) error
}

// Settings are the sampling scales in metres and the thumbnail size.
type Settings struct {
	FieldScale    float64
	RegionalScale float64
	ThermalScale  float64
	OLCIScale     float64
	ThumbnailSize int
}

func SettingsFrom(a properties.Analysis) Settings {
	return Settings{
		FieldScale:    a.FieldScale,
		RegionalScale: a.RegionalScale,
		ThermalScale:  a.ThermalScale,
		OLCIScale:     a.OLCIScale,
		ThumbnailSize: a.ThumbnailSize,
	}
}

func DefaultSettings() Settings {
	return SettingsFrom(properties.Default().Analysis)
}

// Analyzer runs the farm analysis pipeline. Images, Readings, Notifier and
// Weather are optional.
type Analyzer struct {
	Provider imagery.Provider
	Images   output.ImageStore
	Readings ReadingStore
	Notifier AlertNotifier
	Weather  WeatherSource
	Settings Settings
	Now      func() time.Time
}

func NewAnalyzer(p imagery.Provider, images output.ImageStore) *Analyzer {
	return &Analyzer{Provider: p, Images: images, Settings: DefaultSettings(), Now: time.Now}
}

type sensors struct {
	optical, regional *indices.Optical
	radar             *indices.Radar
	thermal           *indices.Thermal
	weather           *weather.Summary

	opticalErr, regionalErr, radarErr, thermalErr, weatherErr error
}

// AnalyzeFarm computes the field indicators for one farm. Sensor, render and
// storage failures degrade the affected fields; only an invalid window or
// location aborts.
func (a *Analyzer) AnalyzeFarm(ctx context.Context, req FarmRequest) (*AnalysisResult, error) {
	window, err := imagery.ParseWindow(req.Start, req.End, a.now())
	if err != nil {
		return nil, err
	}
	regions, err := geometry.Size(req.Latitude, req.Longitude, req.Hectares)
	if err != nil {
		return nil, fmt.Errorf("failed to build farm geometry: %w", err)
	}

	log := logger.Log.WithFields(logrus.Fields{
		"farm":   req.FarmID,
		"lat":    req.Latitude,
		"lon":    req.Longitude,
		"window": window.String(),
	})
	s := a.acquire(ctx, regions, window)
	for sensor, err := range map[string]error{
		"optical": s.opticalErr, "radar": s.radarErr, "thermal": s.thermalErr, "regional": s.regionalErr, "weather": s.weatherErr,
	} {
		if err != nil {
			log.WithFields(logrus.Fields{"sensor": sensor, "error": err}).Warn("sensor degraded")
		}
	}

	result := &AnalysisResult{
		Date:    window.End.Format(imagery.DateLayout),
		Bounds:  geometry.OverlayBounds(regions.Local),
		Weather: s.weather,
	}

	field := zonal.Stats{}
	if s.optical != nil {
		merge(field, zonal.Mean(s.optical.Layers(), regions.Field, a.Settings.FieldScale))
		if otci, err := indices.OpticalOTCI(s.optical.Composite); err == nil {
			merge(field, zonal.Mean(map[string]*raster.Grid{"otci": otci}, regions.Field, a.Settings.FieldScale))
		}
	}
	if s.radar != nil {
		merge(field, zonal.Mean(s.radar.Layers(), regions.Field, a.Settings.FieldScale))
	}
	if s.thermal != nil {
		merge(field, zonal.Mean(s.thermal.Layers(), regions.Field, a.Settings.ThermalScale))
	}
	if !field.Valid("otci") {
		a.olciFallback(ctx, log, field, regions, window)
	}

	result.NDVI = field.ValueOr("ndvi", 0)
	result.NDWI = field.ValueOr("ndwi", 0)
	result.NDRE = field.ValueOr("ndre", 0)
	result.RVI = field.ValueOr("rvi", 0)
	result.OTCI = field.ValueOr("otci", 0)
	result.Temperature = field.ValueOr("temperature", 0)

	if s.regional != nil {
		regional := zonal.Mean(map[string]*raster.Grid{"ndvi": s.regional.NDVI}, regions.Regional, a.Settings.RegionalScale)
		result.RegionalNDVI = regional.ValueOr("ndvi", 0)
	}

	if s.optical != nil {
		result.SatelliteImage = a.render(ctx, log, "true color", func() (image.Image, error) {
			return output.RenderTrueColor(s.optical.Composite, regions.Local, a.Settings.ThumbnailSize)
		})
	}
	if s.thermal != nil && field.Valid("temperature") {
		result.ThermalImage = a.render(ctx, log, "thermal", func() (image.Image, error) {
			return output.RenderThermal(s.thermal.LST, regions.Regional, result.Temperature, a.Settings.ThumbnailSize)
		})
	}

	carbon := EstimateCarbon(result.NDVI, req.Hectares)
	result.BiomassTHa = carbon.BiomassPerHectare
	result.TotalBiomass = carbon.TotalBiomass
	result.CarbonStock = carbon.CarbonStock
	result.CO2Equivalent = carbon.CO2Equivalent

	result.Alerts = EvaluateAlerts(result, Measurements{
		NDVI:        field.Valid("ndvi"),
		NDWI:        field.Valid("ndwi"),
		Temperature: field.Valid("temperature"),
	})

	a.publish(ctx, log, req, window, result)
	return result, nil
}

// acquire runs every sensor calculator concurrently. A failing branch only
// records its own error.
func (a *Analyzer) acquire(ctx context.Context, regions geometry.Regions, window imagery.TimeWindow) *sensors {
	s := &sensors{}
	var g errgroup.Group
	if a.Weather != nil {
		center := regions.Field.Center
		g.Go(func() error {
			s.weather, s.weatherErr = a.Weather.WindowSummary(ctx, center.Lat(), center.Lon(), window)
			return nil
		})
	}
	if a.Provider == nil {
		err := imagery.ErrNoProvider
		s.opticalErr, s.radarErr, s.thermalErr, s.regionalErr = err, err, err, err
		_ = g.Wait()
		return s
	}
	g.Go(func() error {
		s.optical, s.opticalErr = indices.ComputeOptical(ctx, a.Provider, regions.Local, window, a.Settings.FieldScale)
		return nil
	})
	g.Go(func() error {
		s.radar, s.radarErr = indices.ComputeRadar(ctx, a.Provider, regions.Local, window, a.Settings.FieldScale)
		return nil
	})
	g.Go(func() error {
		s.thermal, s.thermalErr = indices.ComputeThermal(ctx, a.Provider, regions.Regional, window, a.Settings.ThermalScale)
		return nil
	})
	g.Go(func() error {
		s.regional, s.regionalErr = indices.ComputeOptical(ctx, a.Provider, regions.Regional, window, a.Settings.RegionalScale)
		return nil
	})
	_ = g.Wait()
	return s
}

func (a *Analyzer) olciFallback(ctx context.Context, log *logrus.Entry, field zonal.Stats, regions geometry.Regions, window imagery.TimeWindow) {
	if a.Provider == nil {
		return
	}
	otci, err := indices.ComputeOLCIChlorophyll(ctx, a.Provider, regions.Local, window, a.Settings.OLCIScale)
	if err != nil {
		log.WithFields(logrus.Fields{"sensor": "olci", "error": err}).Warn("sensor degraded")
		return
	}
	merge(field, zonal.Mean(map[string]*raster.Grid{"otci": otci}, regions.Field, a.Settings.OLCIScale))
}

func (a *Analyzer) render(ctx context.Context, log *logrus.Entry, name string, draw func() (image.Image, error)) *string {
	if a.Images == nil {
		return nil
	}
	img, err := draw()
	if err != nil {
		log.WithFields(logrus.Fields{"image": name, "error": err}).Warn("render failed")
		return nil
	}
	url, err := a.Images.Save(ctx, img)
	if err != nil {
		log.WithFields(logrus.Fields{"image": name, "error": err}).Warn("image store failed")
		return nil
	}
	return &url
}

func (a *Analyzer) publish(ctx context.Context, log *logrus.Entry, req FarmRequest, window imagery.TimeWindow, r *AnalysisResult) {
	if a.Readings != nil && req.FarmID != "" {
		reading := &storage.Reading{
			FarmID:        req.FarmID,
			Date:          window.End,
			NDVI:          r.NDVI,
			NDWI:          r.NDWI,
			NDRE:          r.NDRE,
			RVI:           r.RVI,
			OTCI:          r.OTCI,
			Temperature:   r.Temperature,
			RegionalNDVI:  r.RegionalNDVI,
			CarbonStock:   r.CarbonStock,
			CO2Equivalent: r.CO2Equivalent,
			Alerts:        alertTypes(r.Alerts),
		}
		if err := a.Readings.SaveReading(ctx, reading); err != nil {
			log.WithError(err).Error("failed to store reading")
		}
	}

	if a.Notifier != nil && len(r.Alerts) > 0 {
		lines := make([]string, len(r.Alerts))
		for i, al := range r.Alerts {
			lines[i] = fmt.Sprintf("**%s**: %s", al.Type, al.Message)
		}
		title := fmt.Sprintf("%d alerts for farm %s on %s", len(r.Alerts), farmLabel(req), r.Date)
		if err := a.Notifier.SendAlert(ctx, title, strings.Join(lines, "\n")); err != nil {
			log.WithError(err).Error("failed to send alerts")
		}
	}
}

func farmLabel(req FarmRequest) string {
	if req.FarmID != "" {
		return req.FarmID
	}
	return fmt.Sprintf("(%.4f, %.4f)", req.Latitude, req.Longitude)
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func merge(dst, src zonal.Stats) {
	for k, v := range src {
		dst[k] = v
	}
}
