package output

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/fogleman/gg"
	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
)

const (
	DefaultZoneMapWidth = 600

	legendBox     = 15
	legendSpacing = 20
	legendPadding = 10
)

var ErrNoZones = errors.New("no zones provided")

// lattice maps sample coordinates onto integer cells. Samples come from a
// regular grid so the smallest spacing between distinct values is the step.
type lattice struct {
	minLat, maxLat, minLon float64
	latStep, lonStep       float64
	width, height          int
}

func newLattice(zones []zoning.Zone) (lattice, error) {
	var lats, lons []float64
	for _, z := range zones {
		for _, c := range z.Coordinates {
			lats = append(lats, c.Lat)
			lons = append(lons, c.Lon)
		}
	}
	if len(lats) == 0 {
		return lattice{}, fmt.Errorf("zones without coordinates: %w", ErrNoZones)
	}
	l := lattice{}
	l.minLat, l.maxLat, l.latStep = span(lats)
	l.minLon, _, l.lonStep = span(lons)
	l.height = l.row(l.minLat) + 1
	l.width = l.col(maxOf(lons)) + 1
	return l, nil
}

func (l lattice) col(lon float64) int {
	if l.lonStep == 0 {
		return 0
	}
	return int(math.Round((lon - l.minLon) / l.lonStep))
}

// row counts from the north edge.
func (l lattice) row(lat float64) int {
	if l.latStep == 0 {
		return 0
	}
	return int(math.Round((l.maxLat - lat) / l.latStep))
}

func span(values []float64) (lo, hi, step float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lo, hi = sorted[0], sorted[len(sorted)-1]
	for i := 1; i < len(sorted); i++ {
		d := sorted[i] - sorted[i-1]
		if d > 1e-9 && (step == 0 || d < step) {
			step = d
		}
	}
	return lo, hi, step
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	return m
}

// ParseHexColor parses "#rrggbb". Anything else is mid gray.
func ParseHexColor(hex string) color.RGBA {
	c := color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	if len(hex) != 7 || hex[0] != '#' {
		return c
	}
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	}
	return c
}

// RenderZoneMap paints every zone coordinate as one lattice cell, upscales
// the result to width pixels and appends a legend with zone names and shares.
func RenderZoneMap(zones []zoning.Zone, width int) (image.Image, error) {
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	if width <= 0 {
		width = DefaultZoneMapWidth
	}
	l, err := newLattice(zones)
	if err != nil {
		return nil, err
	}

	cells := image.NewRGBA(image.Rect(0, 0, l.width, l.height))
	for _, z := range zones {
		c := ParseHexColor(z.Color)
		for _, p := range z.Coordinates {
			cells.Set(l.col(p.Lon), l.row(p.Lat), c)
		}
	}
	mapImg := resize.Resize(uint(width), 0, cells, resize.NearestNeighbor)
	mapHeight := mapImg.Bounds().Dy()

	legendHeight := 2*legendPadding + len(zones)*legendSpacing
	dc := gg.NewContext(width, mapHeight+legendHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(mapImg, 0, 0)

	for i, z := range zones {
		x := float64(legendPadding)
		y := float64(mapHeight + legendPadding + i*legendSpacing)

		dc.SetColor(ParseHexColor(z.Color))
		dc.DrawRectangle(x, y, legendBox, legendBox)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.DrawRectangle(x, y, legendBox, legendBox)
		dc.SetLineWidth(1)
		dc.Stroke()

		label := fmt.Sprintf("%s: %.0f%% (NDVI %.2f)", z.Name, z.AreaPercentage*100, z.NDVIAvg)
		dc.DrawStringAnchored(label, x+legendBox+5, y+legendBox/2, 0, 0.5)
	}
	return dc.Image(), nil
}

// SaveZoneMap renders the zone map and writes it as JPEG to path.
func SaveZoneMap(zones []zoning.Zone, width int, path string) error {
	img, err := RenderZoneMap(zones, width)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{
		"path":  path,
		"zones": len(zones),
		"size":  fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()),
	}).Info("zone map saved")
	return nil
}
