package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/dataset"
	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
)

type ZoneRequest struct {
	Latitude  float64
	Longitude float64
	Hectares  float64
	// K defaults to zoning.DefaultZoneCount when zero.
	K     int
	Start string
	End   string
}

// ZoneResult keeps the samples next to the zones so exports can label them.
type ZoneResult struct {
	Zones   []zoning.Zone
	Samples dataset.SampleSet
}

type Zoner struct {
	Sampler *dataset.Sampler
	Engine  *zoning.Engine
	Now     func() time.Time
}

func NewZoner(sampler *dataset.Sampler, engine *zoning.Engine) *Zoner {
	if engine == nil {
		engine = zoning.NewEngine(nil)
	}
	return &Zoner{Sampler: sampler, Engine: engine, Now: time.Now}
}

func (z *Zoner) ZoneFarm(ctx context.Context, req ZoneRequest) (*ZoneResult, error) {
	k := req.K
	if k == 0 {
		k = zoning.DefaultZoneCount
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", zoning.ErrInvalidK, k)
	}
	if _, err := geometry.Size(req.Latitude, req.Longitude, req.Hectares); err != nil {
		return nil, err
	}

	now := time.Now
	if z.Now != nil {
		now = z.Now
	}
	window, err := imagery.ParseWindow(req.Start, req.End, now())
	if err != nil {
		return nil, err
	}

	sampler := z.Sampler
	if sampler == nil {
		sampler = dataset.NewSampler(nil)
	}
	set := sampler.Sample(ctx, req.Latitude, req.Longitude, req.Hectares, window)

	zones, err := z.Engine.Zones(ctx, set.Samples, k)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{
		"lat":     req.Latitude,
		"lon":     req.Longitude,
		"k":       k,
		"samples": len(set.Samples),
		"source":  set.Source,
	}).Info("zoned farm")
	return &ZoneResult{Zones: zones, Samples: set}, nil
}

// Labels returns the zone id of every sample, matching samples by
// coordinate.
func (r *ZoneResult) Labels() []int {
	byCoord := map[zoning.Coordinate]int{}
	for _, z := range r.Zones {
		for _, c := range z.Coordinates {
			byCoord[c] = z.ID
		}
	}
	labels := make([]int, len(r.Samples.Samples))
	for i, s := range r.Samples.Samples {
		id, ok := byCoord[zoning.Coordinate{Lat: s.Latitude, Lon: s.Longitude}]
		if !ok {
			id = -1
		}
		labels[i] = id
	}
	return labels
}
