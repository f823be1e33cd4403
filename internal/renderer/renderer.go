// Package renderer composites the rotated, zoomed background and the parallax
// particle field into one RGBA frame.
package renderer

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/particle"
	"github.com/ivlev/stellarfield/internal/sprite"
)

const (
	DefaultDepthGain = 2.0
	// sizes below this are not worth a blit
	SizeEpsilon = 0.5
	CullMargin  = 4
	// spike angle when only the gain is configured
	DefaultSpikeAngle = 45.0
)

var referenceDiagonal = math.Hypot(1920, 1080)

// ResolutionScale normalizes particle sizes to a 1920x1080 reference.
func ResolutionScale(w, h int) float64 {
	return math.Hypot(float64(w), float64(h)) / referenceDiagonal
}

// Scene is everything one frame needs besides progress.
type Scene struct {
	Particles  []particle.Particle
	Animation  config.AnimationConfig
	Particle   config.ParticleConfig
	Origin     config.ZoomOrigin
	Background image.Image
}

type Options struct {
	// Interactive draws the zoom-origin crosshair. Never set while capturing.
	Interactive bool
}

// Stats counts what happened to the particles of one frame.
type Stats struct {
	Drawn  int
	Culled int
}

type Engine struct {
	Sprites   *sprite.Cache
	DepthGain float64
	Interp    draw.Interpolator
}

func NewEngine(cache *sprite.Cache) *Engine {
	if cache == nil {
		cache = sprite.NewCache(sprite.DefaultMaxEntries, sprite.DefaultBaseSize)
	}
	return &Engine{Sprites: cache, DepthGain: DefaultDepthGain, Interp: draw.BiLinear}
}

// Render draws scene at progress into surface, replacing its contents.
func (e *Engine) Render(surface *image.RGBA, progress float64, sc Scene, opts Options) Stats {
	fillBlack(surface)

	b := surface.Bounds()
	w, h := b.Dx(), b.Dy()
	var lay Layout
	if sc.Background != nil {
		bb := sc.Background.Bounds()
		lay = FitLayout(w, h, bb.Dx(), bb.Dy())
	} else {
		lay = FitLayout(w, h, 0, 0)
	}

	frame := FrameAt(progress, sc.Animation)
	proj := NewProjection(w, h, lay, frame, sc.Animation, sc.Origin, e.DepthGain)

	if sc.Background != nil && !sc.Background.Bounds().Empty() {
		e.Interp.Transform(surface, proj.BackgroundTransform(sc.Background.Bounds()), sc.Background, sc.Background.Bounds(), draw.Over, nil)
	}

	st := e.drawParticles(surface, proj, sc)

	if opts.Interactive {
		ox, oy := proj.Origin()
		drawCrosshair(surface, ox, oy)
	}
	return st
}

func (e *Engine) drawParticles(surface *image.RGBA, proj Projection, sc Scene) Stats {
	var st Stats
	b := surface.Bounds()
	pc := sc.Particle
	res := ResolutionScale(b.Dx(), b.Dy())
	// brighter particles bloom a little
	bloom := 1 + 0.25*math.Max(0, pc.Brightness-1)

	for _, p := range sc.Particles {
		color := p.Color
		if color == "" {
			color = pc.Color
		}
		spr := e.Sprites.Get(color, pc.Feathering, spikesFor(pc, p))

		size := pc.BaseSize * p.Scale * res * bloom * spr.Extent
		if size < SizeEpsilon {
			st.Culled++
			continue
		}
		x, y := proj.Particle(p)
		half := size/2 + CullMargin
		if x+half < float64(b.Min.X) || x-half > float64(b.Max.X) ||
			y+half < float64(b.Min.Y) || y-half > float64(b.Max.Y) {
			st.Culled++
			continue
		}
		gain := p.AlphaOr(1) * pc.Brightness
		if gain <= 0 {
			st.Culled++
			continue
		}
		blitScreen(surface, spr.Img, x, y, size, gain)
		st.Drawn++
	}
	return st
}

func spikesFor(pc config.ParticleConfig, p particle.Particle) sprite.Spikes {
	if pc.SpikeGain == nil || *pc.SpikeGain <= 0 {
		return sprite.Spikes{}
	}
	if pc.SpikeThreshold != nil && p.Scale < *pc.SpikeThreshold {
		return sprite.Spikes{}
	}
	angle := DefaultSpikeAngle
	if pc.SpikeAngle != nil {
		angle = *pc.SpikeAngle
	}
	return sprite.Spikes{Gain: *pc.SpikeGain, Angle: angle}
}

func fillBlack(img *image.RGBA) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = 0, 0, 0, 255
	}
}

// blitScreen draws src centred at (cx,cy) scaled to size pixels using the
// screen operator: d + s - d*s/255. Sampling is nearest neighbour.
func blitScreen(dst, src *image.RGBA, cx, cy, size, gain float64) {
	db := dst.Bounds()
	sw := src.Bounds().Dx()
	sh := src.Bounds().Dy()
	if sw == 0 || sh == 0 {
		return
	}
	left, top := cx-size/2, cy-size/2
	x0 := max(int(math.Floor(left)), db.Min.X)
	y0 := max(int(math.Floor(top)), db.Min.Y)
	x1 := min(int(math.Ceil(left+size)), db.Max.X)
	y1 := min(int(math.Ceil(top+size)), db.Max.Y)
	kx := float64(sw) / size
	ky := float64(sh) / size

	for y := y0; y < y1; y++ {
		sy := int((float64(y) + 0.5 - top) * ky)
		if sy < 0 || sy >= sh {
			continue
		}
		for x := x0; x < x1; x++ {
			sx := int((float64(x) + 0.5 - left) * kx)
			if sx < 0 || sx >= sw {
				continue
			}
			so := src.PixOffset(src.Rect.Min.X+sx, src.Rect.Min.Y+sy)
			if src.Pix[so+3] == 0 {
				continue
			}
			do := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				s := math.Min(255, float64(src.Pix[so+c])*gain)
				d := float64(dst.Pix[do+c])
				dst.Pix[do+c] = uint8(math.Round(d + s - d*s/255))
			}
		}
	}
}

const crosshairArm = 10

func drawCrosshair(img *image.RGBA, x, y float64) {
	cx, cy := int(math.Round(x)), int(math.Round(y))
	set := func(px, py int) {
		if !(image.Point{px, py}.In(img.Bounds())) {
			return
		}
		o := img.PixOffset(px, py)
		img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = 255, 64, 64, 255
	}
	for d := -crosshairArm; d <= crosshairArm; d++ {
		set(cx+d, cy)
		set(cx, cy+d)
	}
}
