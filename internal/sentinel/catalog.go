package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/utils"
)

const (
	catalogPageSize = 100
	catalogMaxPages = 20
)

type catalogSearch struct {
	BBox        [4]float64 `json:"bbox"`
	Datetime    string     `json:"datetime"`
	Collections []string   `json:"collections"`
	Limit       int        `json:"limit"`
	Next        int        `json:"next,omitempty"`
}

type catalogPage struct {
	Features []catalogFeature `json:"features"`
	Context  struct {
		Next     int `json:"next"`
		Returned int `json:"returned"`
	} `json:"context"`
}

type catalogFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Datetime       time.Time `json:"datetime"`
		CloudCover     *float64  `json:"eo:cloud_cover"`
		Platform       string    `json:"platform"`
		InstrumentMode string    `json:"sar:instrument_mode"`
		Polarizations  []string  `json:"sar:polarizations"`
		S1Polarization string    `json:"s1:polarization"`
	} `json:"properties"`
}

// Search lists the acquisition days of a collection over the request bound.
// Tiles acquired on the same day are merged into one scene because the
// Process API mosaics them anyway.
func (c *Client) Search(ctx context.Context, req imagery.SceneRequest) ([]imagery.SceneMeta, error) {
	var key string
	if c.catalog != nil {
		key = c.catalog.GenerateKey(req.Collection.Type, req.Collection.Platform, req.Bound, req.Window.String())
		if metas, ok := c.catalog.Get(key); ok {
			return metas, nil
		}
	}

	search := catalogSearch{
		BBox:        [4]float64{req.Bound.Min.Lon(), req.Bound.Min.Lat(), req.Bound.Max.Lon(), req.Bound.Max.Lat()},
		Datetime:    req.Window.Start.UTC().Format(time.RFC3339) + "/" + req.Window.End.UTC().Format(time.RFC3339),
		Collections: []string{req.Collection.Type},
		Limit:       catalogPageSize,
	}

	var features []catalogFeature
	for page := 0; page < catalogMaxPages; page++ {
		body, err := json.Marshal(search)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog search: %w", err)
		}
		content, err := c.post(ctx, c.cfg.CatalogURL, body, "application/geo+json")
		if err != nil {
			return nil, fmt.Errorf("catalog search %s: %w", req.Collection.Name, err)
		}
		var p catalogPage
		if err := json.Unmarshal(content, &p); err != nil {
			return nil, fmt.Errorf("failed to decode catalog page: %w", err)
		}
		features = append(features, p.Features...)
		if p.Context.Next == 0 || len(p.Features) == 0 {
			break
		}
		search.Next = p.Context.Next
	}

	metas := groupByDay(features, req.Collection.Platform)
	logger.Log.WithFields(logrus.Fields{
		"collection": req.Collection.Name,
		"features":   len(features),
		"scenes":     len(metas),
	}).Debug("catalog search")

	if c.catalog != nil {
		if err := c.catalog.Set(key, metas); err != nil {
			logger.Log.WithError(err).Warn("failed to cache catalog search")
		}
	}
	return metas, nil
}

// groupByDay merges features per UTC acquisition day, keeping only those of
// platform when set. Cloud cover is averaged over the day's tiles.
func groupByDay(features []catalogFeature, platform string) []imagery.SceneMeta {
	type day struct {
		meta   imagery.SceneMeta
		clouds []float64
	}
	days := map[time.Time]*day{}
	for _, f := range features {
		p := f.Properties
		if platform != "" && !strings.EqualFold(p.Platform, platform) {
			continue
		}
		at := p.Datetime.UTC()
		key := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		d, ok := days[key]
		if !ok {
			d = &day{meta: imagery.SceneMeta{
				ID:             key.Format(imagery.DateLayout),
				Date:           p.Datetime.UTC(),
				Platform:       p.Platform,
				InstrumentMode: p.InstrumentMode,
				Polarizations:  polarizations(p.Polarizations, p.S1Polarization),
			}}
			days[key] = d
		}
		if p.CloudCover != nil {
			d.clouds = append(d.clouds, *p.CloudCover)
		}
	}

	metas := make([]imagery.SceneMeta, 0, len(days))
	for _, key := range utils.GetSortedKeys(days, true) {
		d := days[key]
		if mean, err := stats.Mean(d.clouds); err == nil {
			d.meta.CloudCover = mean
			d.meta.HasCloudCover = true
		}
		metas = append(metas, d.meta)
	}
	return metas
}

// polarizations prefers the STAC list and falls back to the Sentinel-1
// polarization code (DV, SV, DH, SH).
func polarizations(list []string, code string) []string {
	if len(list) > 0 {
		return list
	}
	switch strings.ToUpper(code) {
	case "DV":
		return []string{"VV", "VH"}
	case "SV":
		return []string{"VV"}
	case "DH":
		return []string{"HH", "HV"}
	case "SH":
		return []string{"HH"}
	}
	return nil
}
