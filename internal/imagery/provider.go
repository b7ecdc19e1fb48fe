package imagery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

// ErrNoScenes means the provider has nothing usable for the request.
var ErrNoScenes = errors.New("no scenes available")

var ErrNoProvider = errors.New("no imagery provider configured")

// Collection identifies a provider data collection. Landsat 8 and 9 share a
// data type and are told apart by platform.
type Collection struct {
	Name     string
	Type     string
	Platform string
}

var (
	Sentinel2L2A  = Collection{Name: "Sentinel-2 L2A", Type: "sentinel-2-l2a"}
	Sentinel1GRD  = Collection{Name: "Sentinel-1 GRD", Type: "sentinel-1-grd"}
	Sentinel3OLCI = Collection{Name: "Sentinel-3 OLCI", Type: "sentinel-3-olci"}
	Landsat9L2    = Collection{Name: "Landsat 9 L2", Type: "landsat-ot-l2", Platform: "LANDSAT_9"}
	Landsat8L2    = Collection{Name: "Landsat 8 L2", Type: "landsat-ot-l2", Platform: "LANDSAT_8"}
)

// Band is a requested band and the units the provider should deliver it in.
type Band struct {
	Name  string
	Units string
}

type SceneRequest struct {
	Collection Collection
	Bands      []Band
	Bound      orb.Bound
	Window     TimeWindow
	// Resolution is the output pixel size in metres.
	Resolution float64
}

func (r SceneRequest) BandNames() []string {
	names := make([]string, len(r.Bands))
	for i, b := range r.Bands {
		names[i] = b.Name
	}
	return names
}

type SceneMeta struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	CloudCover     float64   `json:"cloud_cover"`
	HasCloudCover  bool      `json:"has_cloud_cover"`
	Platform       string    `json:"platform"`
	Polarizations  []string  `json:"polarizations,omitempty"`
	InstrumentMode string    `json:"instrument_mode,omitempty"`
}

func (m SceneMeta) HasPolarization(p string) bool {
	for _, v := range m.Polarizations {
		if v == p {
			return true
		}
	}
	return false
}

// Scene is one acquisition materialized as per-band grids on a common shape.
type Scene struct {
	SceneMeta
	Bands map[string]*raster.Grid
}

// Provider is the imagery back end.
type Provider interface {
	Search(ctx context.Context, req SceneRequest) ([]SceneMeta, error)
	Fetch(ctx context.Context, req SceneRequest, meta SceneMeta) (*Scene, error)
}

// FetchAll materializes the given scenes using a worker pool. Output keeps
// the order of metas; scenes that fail to fetch are logged and skipped.
func FetchAll(ctx context.Context, p Provider, req SceneRequest, metas []SceneMeta, workers int) ([]*Scene, error) {
	if len(metas) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Collection.Name, ErrNoScenes)
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]*Scene, len(metas))
	errs := make([]error, len(metas))
	var mu sync.Mutex

	wp := workerpool.New(workers)
	for i, meta := range metas {
		i, meta := i, meta
		wp.Submit(func() {
			if ctx.Err() != nil {
				mu.Lock()
				errs[i] = ctx.Err()
				mu.Unlock()
				return
			}
			scene, err := p.Fetch(ctx, req, meta)
			mu.Lock()
			results[i], errs[i] = scene, err
			mu.Unlock()
		})
	}
	wp.StopWait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scenes := make([]*Scene, 0, len(metas))
	var lastErr error
	for i, scene := range results {
		if errs[i] != nil {
			lastErr = errs[i]
			logger.Log.WithFields(logrus.Fields{
				"collection": req.Collection.Name,
				"scene":      metas[i].ID,
				"error":      errs[i],
			}).Warn("skipping scene")
			continue
		}
		if scene != nil {
			scenes = append(scenes, scene)
		}
	}
	if len(scenes) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("fetch %s scenes: %w", req.Collection.Name, lastErr)
		}
		return nil, fmt.Errorf("%s: %w", req.Collection.Name, ErrNoScenes)
	}
	return scenes, nil
}

// Stack collects one band from every scene.
func Stack(scenes []*Scene, band string) []*raster.Grid {
	grids := make([]*raster.Grid, 0, len(scenes))
	for _, s := range scenes {
		if g, ok := s.Bands[band]; ok && g != nil {
			grids = append(grids, g)
		}
	}
	return grids
}
