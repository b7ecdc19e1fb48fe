package indices

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

// FetchWorkers bounds concurrent scene downloads per calculator.
var FetchWorkers = 4

func newRequest(c imagery.Collection, bands []imagery.Band, region geometry.Region, window imagery.TimeWindow, resolution float64) imagery.SceneRequest {
	return imagery.SceneRequest{
		Collection: c,
		Bands:      bands,
		Bound:      region.Bound(),
		Window:     window,
		Resolution: resolution,
	}
}

// collect searches, filters and fetches the scenes of one collection.
func collect(ctx context.Context, p imagery.Provider, req imagery.SceneRequest, keep func(imagery.SceneMeta) bool) ([]*imagery.Scene, error) {
	metas, err := p.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Collection.Name, err)
	}

	kept := make([]imagery.SceneMeta, 0, len(metas))
	for _, m := range metas {
		if keep == nil || keep(m) {
			kept = append(kept, m)
		}
	}
	logger.Log.WithFields(logrus.Fields{
		"collection": req.Collection.Name,
		"found":      len(metas),
		"kept":       len(kept),
		"window":     req.Window.String(),
	}).Debug("scene search")

	if len(kept) == 0 {
		return nil, fmt.Errorf("%s in %s: %w", req.Collection.Name, req.Window, imagery.ErrNoScenes)
	}
	return imagery.FetchAll(ctx, p, req, kept, FetchWorkers)
}

func cloudBelow(limit float64) func(imagery.SceneMeta) bool {
	return func(m imagery.SceneMeta) bool {
		return !m.HasCloudCover || m.CloudCover < limit
	}
}

func band(s *imagery.Scene, name string) (*raster.Grid, error) {
	g, ok := s.Bands[name]
	if !ok || g == nil {
		return nil, fmt.Errorf("scene %s is missing band %s", s.ID, name)
	}
	return g, nil
}

func composite(scenes []*imagery.Scene, names []string, reduce func([]*raster.Grid) (*raster.Grid, error)) (raster.Composite, error) {
	c := raster.Composite{Bands: make(map[string]*raster.Grid, len(names)), Scenes: len(scenes)}
	for _, name := range names {
		stack := imagery.Stack(scenes, name)
		if len(stack) == 0 {
			return raster.Composite{}, fmt.Errorf("band %s: %w", name, imagery.ErrNoScenes)
		}
		g, err := reduce(stack)
		if err != nil {
			return raster.Composite{}, fmt.Errorf("composite band %s: %w", name, err)
		}
		c.Bands[name] = g
	}
	return c, nil
}
