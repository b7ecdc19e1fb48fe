// Package imagerytest provides an in-memory imagery.Provider for tests.
package imagerytest

import (
	"context"
	"sync"

	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

// GridSize is the side of the uniform grids the fake returns.
const GridSize = 16

// Scene is a canned scene. Values become uniform grids over the requested
// bound; Grids, when set, are returned as-is.
type Scene struct {
	Meta   imagery.SceneMeta
	Values map[string]float64
	Grids  map[string]*raster.Grid
}

type Provider struct {
	mu        sync.Mutex
	scenes    map[string][]Scene
	searchErr map[string]error
	fetchErr  map[string]error
	Requests  []imagery.SceneRequest
}

func NewProvider() *Provider {
	return &Provider{
		scenes:    map[string][]Scene{},
		searchErr: map[string]error{},
		fetchErr:  map[string]error{},
	}
}

func key(c imagery.Collection) string {
	return c.Type + "/" + c.Platform
}

func (p *Provider) AddScene(c imagery.Collection, s Scene) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scenes[key(c)] = append(p.scenes[key(c)], s)
	return p
}

func (p *Provider) FailSearch(c imagery.Collection, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchErr[key(c)] = err
	return p
}

func (p *Provider) FailFetch(c imagery.Collection, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchErr[key(c)] = err
	return p
}

// RequestsFor returns the recorded search requests for a collection.
func (p *Provider) RequestsFor(c imagery.Collection) []imagery.SceneRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []imagery.SceneRequest
	for _, r := range p.Requests {
		if key(r.Collection) == key(c) {
			out = append(out, r)
		}
	}
	return out
}

func (p *Provider) Search(ctx context.Context, req imagery.SceneRequest) ([]imagery.SceneMeta, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if err := p.searchErr[key(req.Collection)]; err != nil {
		return nil, err
	}
	var metas []imagery.SceneMeta
	for _, s := range p.scenes[key(req.Collection)] {
		if s.Meta.Date.IsZero() || req.Window.Contains(s.Meta.Date) {
			metas = append(metas, s.Meta)
		}
	}
	return metas, nil
}

func (p *Provider) Fetch(ctx context.Context, req imagery.SceneRequest, meta imagery.SceneMeta) (*imagery.Scene, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fetchErr[key(req.Collection)]; err != nil {
		return nil, err
	}
	for _, s := range p.scenes[key(req.Collection)] {
		if s.Meta.ID != meta.ID {
			continue
		}
		bands := make(map[string]*raster.Grid, len(req.Bands))
		for _, b := range req.Bands {
			if g, ok := s.Grids[b.Name]; ok {
				bands[b.Name] = g
				continue
			}
			v, ok := s.Values[b.Name]
			if !ok {
				continue
			}
			bands[b.Name] = Uniform(req, v)
		}
		return &imagery.Scene{SceneMeta: meta, Bands: bands}, nil
	}
	return nil, imagery.ErrNoScenes
}

// Uniform returns a GridSize square grid over the request bound filled with v.
func Uniform(req imagery.SceneRequest, v float64) *raster.Grid {
	g := raster.New(GridSize, GridSize, req.Bound)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}
