package delivery

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvy-orbital/yvy-field-service/internal/dataset"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery/imagerytest"
	"github.com/yvy-orbital/yvy-field-service/internal/indices"
	"github.com/yvy-orbital/yvy-field-service/internal/storage"
	"github.com/yvy-orbital/yvy-field-service/internal/weather"
	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
)

var (
	testNow  = time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	sceneDay = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
)

type memImages struct {
	mu    sync.Mutex
	saved []image.Image
	err   error
}

func (m *memImages) Save(ctx context.Context, img image.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.saved = append(m.saved, img)
	return fmt.Sprintf("mem://%d.png", len(m.saved)), nil
}

type memReadings struct {
	saved []*storage.Reading
	list  []storage.Reading
	err   error
}

func (m *memReadings) SaveReading(ctx context.Context, r *storage.Reading) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *memReadings) ListReadings(ctx context.Context, farmID string, limit int) ([]storage.Reading, error) {
	return m.list, nil
}

type memNotifier struct {
	titles []string
	bodies []string
}

func (m *memNotifier) SendAlert(ctx context.Context, title, description string) error {
	m.titles = append(m.titles, title)
	m.bodies = append(m.bodies, description)
	return nil
}

type fixedWeather struct {
	summary *weather.Summary
	err     error
	window  imagery.TimeWindow
	lat     float64
}

func (f *fixedWeather) WindowSummary(ctx context.Context, lat, lon float64, window imagery.TimeWindow) (*weather.Summary, error) {
	f.lat, f.window = lat, window
	return f.summary, f.err
}

// farmProvider serves one scene per sensor with the given optical red/NIR
// and thermal DN.
func farmProvider(red, nir, thermalDN float64) *imagerytest.Provider {
	return imagerytest.NewProvider().
		AddScene(imagery.Sentinel2L2A, imagerytest.Scene{
			Meta: imagery.SceneMeta{ID: "s2", Date: sceneDay, CloudCover: 5, HasCloudCover: true},
			Values: map[string]float64{
				indices.Blue: 400, indices.Green: 700, indices.Red: red,
				indices.RedEdge1: 2000, indices.RedEdge2: 3000,
				indices.NIR: nir, indices.SWIR: 2500, indices.QA60: 0,
			},
		}).
		AddScene(imagery.Sentinel1GRD, imagerytest.Scene{
			Meta: imagery.SceneMeta{ID: "s1", Date: sceneDay, Polarizations: []string{indices.VV, indices.VH}, InstrumentMode: indices.InterferometricWideSwath},
			Values: map[string]float64{
				indices.VV: -10, indices.VH: -20,
			},
		}).
		AddScene(imagery.Landsat9L2, imagerytest.Scene{
			Meta:   imagery.SceneMeta{ID: "lc09", Date: sceneDay, CloudCover: 10, HasCloudCover: true},
			Values: map[string]float64{indices.ThermalBand: thermalDN},
		})
}

func celsiusDN(c float64) float64 {
	return (c + 273.15 - 149.0) / 0.00341802
}

func testAnalyzer(p imagery.Provider, images *memImages) *Analyzer {
	a := NewAnalyzer(p, nil)
	if images != nil {
		a.Images = images
	}
	a.Settings.ThumbnailSize = 64
	a.Now = func() time.Time { return testNow }
	return a
}

func TestAnalyzeFarm(t *testing.T) {
	images := &memImages{}
	readings := &memReadings{}
	notifier := &memNotifier{}
	a := testAnalyzer(farmProvider(1000, 5000, celsiusDN(30)), images)
	a.Readings = readings
	a.Notifier = notifier

	res, err := a.AnalyzeFarm(context.Background(), FarmRequest{
		FarmID: "farm-1", Latitude: -15, Longitude: -47, Hectares: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-31", res.Date)
	assert.InDelta(t, 4000.0/6000.0, res.NDVI, 1e-9)
	assert.InDelta(t, 2500.0/7500.0, res.NDWI, 1e-9)
	assert.InDelta(t, 3000.0/7000.0, res.NDRE, 1e-9)
	assert.InDelta(t, 4*0.01/(0.1+0.01), res.RVI, 1e-9)
	assert.InDelta(t, (0.3-0.2)/(0.2-0.1), res.OTCI, 1e-9)
	assert.InDelta(t, 30, res.Temperature, 1e-6)
	assert.InDelta(t, res.NDVI, res.RegionalNDVI, 1e-9)

	biomass := 180*res.NDVI - 40
	assert.InDelta(t, biomass, res.BiomassTHa, 1e-9)
	assert.InDelta(t, biomass*100, res.TotalBiomass, 1e-6)
	assert.InDelta(t, biomass*100*0.47, res.CarbonStock, 1e-6)
	assert.InDelta(t, biomass*100*0.47*3.67, res.CO2Equivalent, 1e-6)

	require.NotNil(t, res.SatelliteImage)
	require.NotNil(t, res.ThermalImage)
	assert.Len(t, images.saved, 2)
	assert.Less(t, res.Bounds[0][0], -15.0)
	assert.Greater(t, res.Bounds[1][1], -47.0)

	assert.Empty(t, res.Alerts)
	assert.Empty(t, notifier.titles)
	require.Len(t, readings.saved, 1)
	assert.Equal(t, "farm-1", readings.saved[0].FarmID)
	assert.Equal(t, res.NDVI, readings.saved[0].NDVI)
	assert.Empty(t, readings.saved[0].Alerts)
}

func TestAnalyzeFarmThermalFailure(t *testing.T) {
	p := farmProvider(1000, 5000, celsiusDN(30)).
		FailSearch(imagery.Landsat9L2, errors.New("landsat catalog unavailable")).
		FailSearch(imagery.Landsat8L2, errors.New("landsat catalog unavailable"))
	a := testAnalyzer(p, &memImages{})

	res, err := a.AnalyzeFarm(context.Background(), FarmRequest{Latitude: -15, Longitude: -47, Hectares: 100})
	require.NoError(t, err)

	assert.Zero(t, res.Temperature)
	assert.Nil(t, res.ThermalImage)

	assert.InDelta(t, 4000.0/6000.0, res.NDVI, 1e-9)
	assert.NotZero(t, res.NDWI)
	assert.NotZero(t, res.NDRE)
	assert.NotZero(t, res.RVI)
	assert.NotZero(t, res.OTCI)
	assert.NotZero(t, res.RegionalNDVI)
	assert.NotZero(t, res.CarbonStock)
	assert.NotNil(t, res.SatelliteImage)
}

func TestAnalyzeFarmNoImagery(t *testing.T) {
	a := testAnalyzer(imagerytest.NewProvider(), &memImages{})

	res, err := a.AnalyzeFarm(context.Background(), FarmRequest{Latitude: -15, Longitude: -47, Hectares: 100})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-31", res.Date)
	assert.Zero(t, res.NDVI)
	assert.Zero(t, res.RVI)
	assert.Zero(t, res.OTCI)
	assert.Zero(t, res.BiomassTHa)
	assert.Nil(t, res.SatelliteImage)
	assert.Nil(t, res.ThermalImage)
	assert.Empty(t, res.Alerts)
	assert.NotZero(t, res.Bounds)
}

func TestAnalyzeFarmWithoutProvider(t *testing.T) {
	a := testAnalyzer(nil, nil)

	res, err := a.AnalyzeFarm(context.Background(), FarmRequest{Latitude: -15, Longitude: -47, Hectares: 100})
	require.NoError(t, err)
	assert.Zero(t, res.NDVI)
	assert.Zero(t, res.Temperature)
	assert.Empty(t, res.Alerts)
}

func TestAnalyzeFarmWeather(t *testing.T) {
	w := &fixedWeather{summary: &weather.Summary{Days: 30, MeanTemperature: 24.5, TotalPrecipitation: 120, MeanHumidity: 70}}
	a := testAnalyzer(farmProvider(1000, 5000, celsiusDN(30)), nil)
	a.Weather = w

	res, err := a.AnalyzeFarm(context.Background(), FarmRequest{Latitude: -15, Longitude: -47, Hectares: 100})
	require.NoError(t, err)
	require.NotNil(t, res.Weather)
	assert.Equal(t, 120.0, res.Weather.TotalPrecipitation)
	assert.InDelta(t, -15, w.lat, 0.01)
	assert.Equal(t, "2024-01-31", w.window.End.Format(imagery.DateLayout))

	metrics := res.Metrics()
	require.Len(t, metrics, 14)
	assert.Equal(t, "120.0", metrics[12].Value)

	a.Weather = &fixedWeather{err: errors.New("archive down")}
	res, err = a.AnalyzeFarm(context.Background(), FarmRequest{Latitude: -15, Longitude: -47, Hectares: 100})
	require.NoError(t, err)
	assert.Nil(t, res.Weather)
	assert.NotZero(t, res.NDVI)
	assert.Len(t, res.Metrics(), 11)
}

func TestAnalyzeFarmOLCIFallback(t *testing.T) {
	// Red edge equal to red leaves the optical OTCI without a denominator.
	p := imagerytest.NewProvider().
		AddScene(imagery.Sentinel2L2A, imagerytest.Scene{
			Meta: imagery.SceneMeta{ID: "s2", Date: sceneDay},
			Values: map[string]float64{
				indices.Blue: 400, indices.Green: 700, indices.Red: 1000,
				indices.RedEdge1: 1000, indices.RedEdge2: 3000,
				indices.NIR: 5000, indices.SWIR: 2500, indices.QA60: 0,
			},
		}).
		AddScene(imagery.Sentinel3OLCI, imagerytest.Scene{
			Meta: imagery.SceneMeta{ID: "s3", Date: sceneDay},
			Values: map[string]float64{
				indices.Oa08: 50, indices.Oa11: 60, indices.Oa12: 90, indices.QualityFlags: 0,
			},
		})
	a := testAnalyzer(p, nil)

	res, err := a.AnalyzeFarm(context.Background(), FarmRequest{Latitude: -15, Longitude: -47, Hectares: 100})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, res.OTCI, 1e-9)
	assert.InDelta(t, 4000.0/6000.0, res.NDVI, 1e-9)
	assert.Nil(t, res.SatelliteImage)
}

func TestAnalyzeFarmAlerts(t *testing.T) {
	readings := &memReadings{}
	notifier := &memNotifier{}
	a := testAnalyzer(farmProvider(4000, 5000, celsiusDN(35)), &memImages{})
	a.Readings = readings
	a.Notifier = notifier

	res, err := a.AnalyzeFarm(context.Background(), FarmRequest{
		FarmID: "farm-2", Latitude: -15, Longitude: -47, Hectares: 10,
	})
	require.NoError(t, err)

	types := alertTypes(res.Alerts)
	assert.Equal(t, []string{AlertVegetationStress, AlertHeatStress}, types)
	require.Len(t, notifier.titles, 1)
	assert.Contains(t, notifier.titles[0], "farm-2")
	assert.Contains(t, notifier.bodies[0], AlertHeatStress)
	require.Len(t, readings.saved, 1)
	assert.Equal(t, types, readings.saved[0].Alerts)
}

func TestAnalyzeFarmStorageFailureIsNotFatal(t *testing.T) {
	a := testAnalyzer(farmProvider(1000, 5000, celsiusDN(30)), &memImages{err: errors.New("disk full")})
	a.Readings = &memReadings{err: errors.New("connection refused")}

	res, err := a.AnalyzeFarm(context.Background(), FarmRequest{
		FarmID: "farm-3", Latitude: -15, Longitude: -47, Hectares: 100,
	})
	require.NoError(t, err)
	assert.Nil(t, res.SatelliteImage)
	assert.Nil(t, res.ThermalImage)
	assert.NotZero(t, res.NDVI)
}

func TestAnalyzeFarmRejectsInput(t *testing.T) {
	a := testAnalyzer(imagerytest.NewProvider(), nil)

	_, err := a.AnalyzeFarm(context.Background(), FarmRequest{Latitude: -15, Longitude: -47, Hectares: 0})
	assert.Error(t, err)

	_, err = a.AnalyzeFarm(context.Background(), FarmRequest{Latitude: -15, Longitude: -47, Hectares: 10, End: "31/01/2024"})
	assert.ErrorIs(t, err, imagery.ErrInvalidWindow)
}

func TestEstimateCarbon(t *testing.T) {
	c := EstimateCarbon(0.3, 10)
	assert.InDelta(t, 14, c.BiomassPerHectare, 1e-9)
	assert.InDelta(t, 140, c.TotalBiomass, 1e-9)
	assert.InDelta(t, 140*0.47, c.CarbonStock, 1e-9)
	assert.InDelta(t, 140*0.47*3.67, c.CO2Equivalent, 1e-9)

	assert.Zero(t, EstimateCarbon(0.1, 10).BiomassPerHectare)
	assert.Zero(t, EstimateCarbon(0.1, 10).CO2Equivalent)
}

func TestEvaluateAlerts(t *testing.T) {
	r := &AnalysisResult{NDVI: 0.2, NDWI: -0.3, Temperature: 40}
	all := Measurements{NDVI: true, NDWI: true, Temperature: true}

	assert.Equal(t, []string{AlertVegetationStress, AlertDroughtRisk, AlertHeatStress},
		alertTypes(EvaluateAlerts(r, all)))
	assert.Empty(t, EvaluateAlerts(r, Measurements{}))
	assert.Empty(t, EvaluateAlerts(&AnalysisResult{NDVI: 0.4, NDWI: -0.15, Temperature: 32}, all))
}

func TestZoneFarmSynthetic(t *testing.T) {
	z := NewZoner(dataset.NewSampler(nil), nil)

	res, err := z.ZoneFarm(context.Background(), ZoneRequest{Latitude: -15, Longitude: -47, Hectares: 100, K: 3})
	require.NoError(t, err)

	assert.Equal(t, dataset.Synthetic, res.Samples.Source)
	assert.Len(t, res.Samples.Samples, 400)
	require.Len(t, res.Zones, 3)

	total := 0.0
	for i, zone := range res.Zones {
		name, color := zoning.ZoneStyle(i, 3)
		assert.Equal(t, i, zone.ID)
		assert.Equal(t, name, zone.Name)
		assert.Equal(t, color, zone.Color)
		total += zone.AreaPercentage
		if i > 0 {
			assert.LessOrEqual(t, res.Zones[i-1].NDVIAvg, zone.NDVIAvg)
		}
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Equal(t, "Low Productivity", res.Zones[0].Name)
	assert.Equal(t, "#22c55e", res.Zones[2].Color)

	for _, l := range res.Labels() {
		assert.True(t, l >= 0 && l < 3)
	}
}

func TestZoneFarmDefaultsAndValidation(t *testing.T) {
	z := NewZoner(nil, nil)

	res, err := z.ZoneFarm(context.Background(), ZoneRequest{Latitude: -15, Longitude: -47, Hectares: 50})
	require.NoError(t, err)
	assert.Len(t, res.Zones, zoning.DefaultZoneCount)

	_, err = z.ZoneFarm(context.Background(), ZoneRequest{Latitude: -15, Longitude: -47, Hectares: 50, K: -1})
	assert.ErrorIs(t, err, zoning.ErrInvalidK)

	_, err = z.ZoneFarm(context.Background(), ZoneRequest{Latitude: -15, Longitude: -47, Hectares: 50, K: 401})
	assert.ErrorIs(t, err, zoning.ErrInsufficientSamples)

	_, err = z.ZoneFarm(context.Background(), ZoneRequest{Latitude: 95, Longitude: -47, Hectares: 50})
	assert.Error(t, err)
}

func TestZoneFarmIsReproducible(t *testing.T) {
	z := NewZoner(nil, nil)
	req := ZoneRequest{Latitude: -15, Longitude: -47, Hectares: 100, K: 4}

	first, err := z.ZoneFarm(context.Background(), req)
	require.NoError(t, err)
	second, err := z.ZoneFarm(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Zones, second.Zones)
	assert.Equal(t, "Zone 1", first.Zones[0].Name)
}

func TestBackfill(t *testing.T) {
	p := farmProvider(1000, 5000, celsiusDN(30))
	a := testAnalyzer(p, nil)
	existing := &memReadings{list: []storage.Reading{
		{FarmID: "farm-1", Date: time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC)},
	}}
	a.Readings = existing

	outcomes, err := a.Backfill(context.Background(),
		FarmRequest{FarmID: "farm-1", Latitude: -15, Longitude: -47, Hectares: 100},
		BackfillOptions{Months: 3, Existing: existing})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "2023-10-31", outcomes[0].Window.End.Format(imagery.DateLayout))
	assert.Equal(t, "2023-11-30", outcomes[1].Window.End.Format(imagery.DateLayout))
	assert.Equal(t, "2023-12-31", outcomes[2].Window.End.Format(imagery.DateLayout))

	assert.False(t, outcomes[0].Skipped)
	assert.True(t, outcomes[1].Skipped)
	assert.Nil(t, outcomes[1].Result)

	// The fake scene is dated mid-January, outside every backfill window.
	require.NotNil(t, outcomes[2].Result)
	assert.Equal(t, "2023-12-31", outcomes[2].Result.Date)
	assert.Zero(t, outcomes[2].Result.NDVI)
	assert.False(t, math.IsNaN(outcomes[2].Result.RVI))
	assert.Len(t, existing.saved, 2)
}

func TestBuildReport(t *testing.T) {
	zones, err := NewZoner(nil, nil).ZoneFarm(context.Background(), ZoneRequest{Latitude: -15, Longitude: -47, Hectares: 100})
	require.NoError(t, err)
	result := &AnalysisResult{
		Date:   "2024-01-31",
		NDVI:   0.35,
		Alerts: []Alert{{Type: AlertVegetationStress, Message: "low NDVI"}},
	}

	r, err := BuildReport(FarmRequest{FarmID: "farm-1"}, result, zones, testNow)
	require.NoError(t, err)
	assert.Equal(t, "farm-1", r.Farm)
	assert.Equal(t, "ending 2024-01-31", r.Window)
	require.Len(t, r.Metrics, 11)
	assert.Equal(t, "0.350", r.Metrics[0].Value)
	assert.Equal(t, []string{"VEGETATION_STRESS: low NDVI"}, r.Alerts)
	assert.Len(t, r.Zones, 3)
	assert.NotNil(t, r.ZoneMap)
	assert.NotEmpty(t, r.Chart)

	onlyResult, err := BuildReport(FarmRequest{Latitude: -15, Longitude: -47, Start: "2024-01-01", End: "2024-01-31"}, result, nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01/2024-01-31", onlyResult.Window)
	assert.Empty(t, onlyResult.Zones)
	assert.Nil(t, onlyResult.ZoneMap)
}
