package output

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/yvy-orbital/yvy-field-service/internal/dataset"
	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
)

func zoneChart(samples []dataset.PixelSample, labels []int, zones []zoning.Zone) (*plot.Plot, error) {
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	p := plot.New()
	p.Title.Text = "Productivity zones"
	p.X.Label.Text = "NDVI"
	p.Y.Label.Text = "NDWI"
	p.Add(plotter.NewGrid())

	for _, z := range zones {
		pts := plotter.XYs{}
		for i, s := range samples {
			if i < len(labels) && labels[i] == z.ID {
				pts = append(pts, plotter.XY{X: s.NDVI, Y: s.NDWI})
			}
		}
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create scatter for %s: %w", z.Name, err)
		}
		sc.GlyphStyle.Color = ParseHexColor(z.Color)
		sc.GlyphStyle.Radius = vg.Points(2.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("%s (%.0f%%)", z.Name, z.AreaPercentage*100), sc)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// ZoneChartPNG plots NDVI against NDWI for every labelled sample, one series
// per zone.
func ZoneChartPNG(samples []dataset.PixelSample, labels []int, zones []zoning.Zone) ([]byte, error) {
	p, err := zoneChart(samples, labels, zones)
	if err != nil {
		return nil, err
	}
	writer, err := p.WriterTo(vg.Points(600), vg.Points(400), "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func SaveZoneChart(samples []dataset.PixelSample, labels []int, zones []zoning.Zone, path string) error {
	p, err := zoneChart(samples, labels, zones)
	if err != nil {
		return err
	}
	return p.Save(vg.Points(600), vg.Points(400), path)
}
