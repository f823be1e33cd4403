// Package sprite generates radial-gradient point-light sprites and keeps them
// in a bounded cache.
package sprite

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Spikes describes diffraction spikes baked into a sprite. Zero Gain disables them.
type Spikes struct {
	Gain  float64
	Angle float64 // degrees
}

// Sprite is a premultiplied square image plus the factor by which it extends
// beyond the nominal particle size.
type Sprite struct {
	Img    *image.RGBA
	Extent float64
}

type stop struct {
	offset float64
	color  colorful.Color
	alpha  float64
}

var white = colorful.Color{R: 1, G: 1, B: 1}

// midStop places the colored stop relative to the edge radius.
const midStop = 0.25

// EdgeStop returns the normalized radius of the transparent edge. Negative
// feathering pulls it inward for a sharper falloff.
func EdgeStop(feathering float64) float64 {
	if feathering >= 0 {
		return 1
	}
	return math.Max(0.1, 1+0.3*feathering)
}

// Extent returns how far the sprite reaches relative to the base size. Only
// non-negative feathering grows a glow, up to twice the base size.
func Extent(feathering float64) float64 {
	if feathering <= 0 {
		return 1
	}
	return 1 + math.Min(feathering, 3)/3
}

func parseColor(hex string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return white
	}
	return c
}

// Generate renders a sprite for color and feathering with baseSize pixels per
// nominal diameter.
func Generate(hex string, feathering float64, spikes Spikes, baseSize int) *Sprite {
	if baseSize < 4 {
		baseSize = 4
	}
	extent := Extent(feathering)
	size := int(math.Ceil(float64(baseSize) * extent))
	if size%2 != 0 {
		size++
	}

	col := parseColor(hex)
	edge := EdgeStop(feathering)
	stops := []stop{
		{offset: 0, color: white, alpha: 1},
		{offset: edge * midStop, color: col, alpha: 0.8},
		{offset: edge, color: col, alpha: 0},
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	half := float64(size) / 2
	theta := spikes.Angle * math.Pi / 180
	cosT, sinT := math.Cos(theta), math.Sin(theta)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := (float64(x) + 0.5 - half) / half
			dy := (float64(y) + 0.5 - half) / half
			c, a := sample(stops, math.Hypot(dx, dy))

			if spikes.Gain > 0 {
				// two perpendicular spikes through the centre
				u := dx*cosT + dy*sinT
				v := -dx*sinT + dy*cosT
				s := spikeIntensity(u, v) + spikeIntensity(v, u)
				s *= spikes.Gain * 0.5
				if s > 0 {
					c = c.BlendRgb(white, math.Min(1, s))
					a = math.Min(1, a+s)
				}
			}

			o := img.PixOffset(x, y)
			r, g, b := c.Clamped().RGB255()
			img.Pix[o+0] = uint8(float64(r) * a)
			img.Pix[o+1] = uint8(float64(g) * a)
			img.Pix[o+2] = uint8(float64(b) * a)
			img.Pix[o+3] = uint8(255 * a)
		}
	}

	return &Sprite{Img: img, Extent: extent}
}

// spikeIntensity is a thin line along u fading towards the sprite edge.
func spikeIntensity(u, v float64) float64 {
	along := 1 - math.Abs(u)
	if along <= 0 {
		return 0
	}
	const width = 0.04
	return along * math.Exp(-(v*v)/(width*width))
}

func sample(stops []stop, t float64) (colorful.Color, float64) {
	if t <= stops[0].offset {
		return stops[0].color, stops[0].alpha
	}
	for i := 1; i < len(stops); i++ {
		if t <= stops[i].offset {
			a, b := stops[i-1], stops[i]
			span := b.offset - a.offset
			k := 0.0
			if span > 0 {
				k = (t - a.offset) / span
			}
			return a.color.BlendRgb(b.color, k), a.alpha + (b.alpha-a.alpha)*k
		}
	}
	last := stops[len(stops)-1]
	return last.color, last.alpha
}
