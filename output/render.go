package output

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"

	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/raster"
)

const (
	DefaultThumbnailSize = 600

	trueColorMax = 0.3
	thermalSpan  = 3.0
)

var ErrNothingToRender = errors.New("nothing to render")

// ThermalPalette runs blue, cyan, green, yellow, red.
var ThermalPalette = []color.RGBA{
	{R: 0x00, G: 0x00, B: 0xff, A: 0xff},
	{R: 0x00, G: 0xff, B: 0xff, A: 0xff},
	{R: 0x00, G: 0xff, B: 0x00, A: 0xff},
	{R: 0xff, G: 0xff, B: 0x00, A: 0xff},
	{R: 0xff, G: 0x00, B: 0x00, A: 0xff},
}

// ThumbnailSize returns the output dimensions for region: the longer side is
// size pixels and the aspect ratio follows the ground extent.
func ThumbnailSize(region geometry.Region, size int) (int, int, error) {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	w, h := region.Extent()
	if !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return 0, 0, fmt.Errorf("region extent %.1fx%.1f m: %w", w, h, ErrNothingToRender)
	}
	if w >= h {
		return size, max(1, int(math.Round(float64(size)*h/w))), nil
	}
	return max(1, int(math.Round(float64(size)*w/h))), size, nil
}

// RenderTrueColor draws B04/B03/B02 stretched linearly over [0, 0.3].
func RenderTrueColor(c raster.Composite, region geometry.Region, size int) (image.Image, error) {
	red, okR := c.Band("B04")
	green, okG := c.Band("B03")
	blue, okB := c.Band("B02")
	if !okR || !okG || !okB || red.Empty() {
		return nil, fmt.Errorf("true color: %w", ErrNothingToRender)
	}

	return rasterize(region, size, func(p orb.Point) (color.Color, bool) {
		r, ok1 := red.Sample(p)
		g, ok2 := green.Sample(p)
		b, ok3 := blue.Sample(p)
		if !ok1 || !ok2 || !ok3 {
			return nil, false
		}
		return color.RGBA{R: stretch(r, 0, trueColorMax), G: stretch(g, 0, trueColorMax), B: stretch(b, 0, trueColorMax), A: 0xff}, true
	})
}

// RenderThermal colours lst over [mean-3, mean+3] with ThermalPalette.
func RenderThermal(lst *raster.Grid, region geometry.Region, mean float64, size int) (image.Image, error) {
	if lst.Empty() || math.IsNaN(mean) {
		return nil, fmt.Errorf("thermal: %w", ErrNothingToRender)
	}
	lo, hi := mean-thermalSpan, mean+thermalSpan

	return rasterize(region, size, func(p orb.Point) (color.Color, bool) {
		v, ok := lst.Sample(p)
		if !ok {
			return nil, false
		}
		return Ramp(ThermalPalette, (v-lo)/(hi-lo)), true
	})
}

func rasterize(region geometry.Region, size int, pixel func(orb.Point) (color.Color, bool)) (image.Image, error) {
	width, height, err := ThumbnailSize(region, size)
	if err != nil {
		return nil, err
	}
	b := region.Bound()
	dLon := (b.Max.Lon() - b.Min.Lon()) / float64(width)
	dLat := (b.Max.Lat() - b.Min.Lat()) / float64(height)

	dc := gg.NewContext(width, height)
	drawn := 0
	for y := 0; y < height; y++ {
		lat := b.Max.Lat() - (float64(y)+0.5)*dLat
		for x := 0; x < width; x++ {
			c, ok := pixel(orb.Point{b.Min.Lon() + (float64(x)+0.5)*dLon, lat})
			if !ok {
				continue
			}
			dc.SetColor(c)
			dc.SetPixel(x, y)
			drawn++
		}
	}
	if drawn == 0 {
		return nil, fmt.Errorf("no valid pixels: %w", ErrNothingToRender)
	}
	return dc.Image(), nil
}

func stretch(v, lo, hi float64) uint8 {
	t := (v - lo) / (hi - lo)
	return uint8(math.Round(clamp01(t) * 255))
}

// Ramp interpolates linearly between evenly spaced palette stops; t is
// clamped to [0, 1].
func Ramp(palette []color.RGBA, t float64) color.RGBA {
	t = clamp01(t)
	if math.IsNaN(t) || len(palette) == 1 {
		return palette[0]
	}
	pos := t * float64(len(palette)-1)
	i := int(math.Floor(pos))
	if i >= len(palette)-1 {
		return palette[len(palette)-1]
	}
	f := pos - float64(i)
	a, b := palette[i], palette[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xff}
}

func clamp01(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}
