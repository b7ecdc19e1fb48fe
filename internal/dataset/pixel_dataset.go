package dataset

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/indices"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/zonal"
)

const (
	DefaultSampleScale = 20.0
	MinRealSamples     = 10

	syntheticSide   = 20
	syntheticCenter = 10
	syntheticSpan   = 0.005
)

type PixelSample struct {
	Latitude  float64 `json:"lat" csv:"latitude"`
	Longitude float64 `json:"lon" csv:"longitude"`
	NDVI      float64 `json:"ndvi" csv:"ndvi"`
	NDWI      float64 `json:"ndwi" csv:"ndwi"`
}

type Source int

const (
	Real Source = iota
	Synthetic
)

func (s Source) String() string {
	if s == Synthetic {
		return "synthetic"
	}
	return "real"
}

// SampleSet is the sampler result. Reason explains why synthetic samples were
// used.
type SampleSet struct {
	Source  Source
	Samples []PixelSample
	Reason  string
}

// SamplePixels reads the optical composite over the field and samples NDVI
// and NDWI on a lattice of scale metres inside it.
func SamplePixels(ctx context.Context, p imagery.Provider, field geometry.Region, window imagery.TimeWindow, scale float64) ([]PixelSample, error) {
	opt, err := indices.ComputeOptical(ctx, p, field, window, scale)
	if err != nil {
		return nil, err
	}

	var samples []PixelSample
	for _, pt := range zonal.Lattice(field, scale) {
		ndvi, ok := opt.NDVI.Sample(pt)
		if !ok {
			continue
		}
		ndwi, ok := opt.NDWI.Sample(pt)
		if !ok {
			continue
		}
		samples = append(samples, PixelSample{Latitude: pt.Lat(), Longitude: pt.Lon(), NDVI: ndvi, NDWI: ndwi})
	}
	return samples, nil
}

// SyntheticPixels builds a 20x20 radial vegetation pattern around lat/lon.
// It always returns exactly 400 samples.
func SyntheticPixels(lat, lon float64, rng *rand.Rand) []PixelSample {
	lats := linspace(lat-syntheticSpan, lat+syntheticSpan, syntheticSide)
	lons := linspace(lon-syntheticSpan, lon+syntheticSpan, syntheticSide)

	samples := make([]PixelSample, 0, syntheticSide*syntheticSide)
	for i, la := range lats {
		for j, lo := range lons {
			d := math.Hypot(float64(i-syntheticCenter), float64(j-syntheticCenter))
			ndvi := math.Min(math.Max(0.8-0.05*d+rng.NormFloat64()*0.05, 0.1), 0.9)
			ndwi := -0.2 + 0.1*ndvi + rng.NormFloat64()*0.02
			samples = append(samples, PixelSample{Latitude: la, Longitude: lo, NDVI: ndvi, NDWI: ndwi})
		}
	}
	return samples
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// CoordinateSeed derives a stable RNG seed from a location.
func CoordinateSeed(lat, lon float64) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%.6f,%.6f", lat, lon)
	return int64(h.Sum64())
}

// Sampler picks real pixels when the provider yields enough of them and
// falls back to the synthetic pattern otherwise.
type Sampler struct {
	Provider imagery.Provider
	Scale    float64
}

func NewSampler(p imagery.Provider) *Sampler {
	return &Sampler{Provider: p, Scale: DefaultSampleScale}
}

func (s *Sampler) Sample(ctx context.Context, lat, lon, hectares float64, window imagery.TimeWindow) SampleSet {
	samples, err := s.realSamples(ctx, lat, lon, hectares, window)
	if err == nil {
		return SampleSet{Source: Real, Samples: samples}
	}

	logger.Log.WithFields(logrus.Fields{
		"lat":    lat,
		"lon":    lon,
		"reason": err,
	}).Info("using synthetic pixel samples")

	rng := rand.New(rand.NewSource(CoordinateSeed(lat, lon)))
	return SampleSet{Source: Synthetic, Samples: SyntheticPixels(lat, lon, rng), Reason: err.Error()}
}

func (s *Sampler) realSamples(ctx context.Context, lat, lon, hectares float64, window imagery.TimeWindow) ([]PixelSample, error) {
	if s.Provider == nil {
		return nil, imagery.ErrNoProvider
	}
	regions, err := geometry.Size(lat, lon, hectares)
	if err != nil {
		return nil, err
	}
	scale := s.Scale
	if scale <= 0 {
		scale = DefaultSampleScale
	}

	samples, err := SamplePixels(ctx, s.Provider, regions.Field, window, scale)
	if err != nil {
		return nil, err
	}
	if err := acceptReal(samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// acceptReal requires more than MinRealSamples valid pixels.
func acceptReal(samples []PixelSample) error {
	if len(samples) <= MinRealSamples {
		return fmt.Errorf("only %d valid pixels in field", len(samples))
	}
	return nil
}
