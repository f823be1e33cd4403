package renderer

import (
	"image"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/particle"
)

// Layout is the rectangle the source image covers on the unscaled surface.
type Layout struct {
	OffX, OffY float64
	W, H       float64
}

// FitLayout fits an imgW x imgH image to cover the surface, centred. Without
// an image the layout is the surface itself.
func FitLayout(surfaceW, surfaceH, imgW, imgH int) Layout {
	sw, sh := float64(surfaceW), float64(surfaceH)
	if imgW <= 0 || imgH <= 0 {
		return Layout{W: sw, H: sh}
	}
	k := math.Max(sw/float64(imgW), sh/float64(imgH))
	w, h := float64(imgW)*k, float64(imgH)*k
	return Layout{OffX: (sw - w) / 2, OffY: (sh - h) / 2, W: w, H: h}
}

// Point maps normalized image coordinates onto the unscaled surface.
func (l Layout) Point(x, y float64) (float64, float64) {
	return l.OffX + x*l.W, l.OffY + y*l.H
}

// Projection maps normalized image coordinates to screen pixels for one frame:
// scale about the zoom origin, then rotation about the surface centre.
type Projection struct {
	Layout       Layout
	Frame        Frame
	InitialScale float64
	DepthGain    float64

	ox, oy   float64
	cx, cy   float64
	cos, sin float64
}

func NewProjection(surfaceW, surfaceH int, lay Layout, frame Frame, anim config.AnimationConfig, origin config.ZoomOrigin, depthGain float64) Projection {
	ox, oy := lay.Point(origin.X, origin.Y)
	return Projection{
		Layout:       lay,
		Frame:        frame,
		InitialScale: anim.InitialScale,
		DepthGain:    depthGain,
		ox:           ox,
		oy:           oy,
		cx:           float64(surfaceW) / 2,
		cy:           float64(surfaceH) / 2,
		cos:          math.Cos(frame.Angle),
		sin:          math.Sin(frame.Angle),
	}
}

// Origin returns the zoom origin on the unrotated surface.
func (p Projection) Origin() (float64, float64) {
	return p.ox, p.oy
}

// ParallaxScale is the scale applied to the origin->particle vector. At z=0 it
// equals the background scale.
func (p Projection) ParallaxScale(z float64) float64 {
	s := p.Frame.Scale
	return s + (s-p.InitialScale)*z*p.DepthGain
}

func (p Projection) place(bx, by, s float64) (float64, float64) {
	qx := p.ox + (bx-p.ox)*s
	qy := p.oy + (by-p.oy)*s
	dx, dy := qx-p.cx, qy-p.cy
	return p.cx + p.cos*dx - p.sin*dy, p.cy + p.sin*dx + p.cos*dy
}

// Background maps a normalized image point through the background transform.
func (p Projection) Background(x, y float64) (float64, float64) {
	bx, by := p.Layout.Point(x, y)
	return p.place(bx, by, p.Frame.Scale)
}

// Particle returns the screen position of pt including its depth parallax.
func (p Projection) Particle(pt particle.Particle) (float64, float64) {
	bx, by := p.Layout.Point(pt.X, pt.Y)
	return p.place(bx, by, p.ParallaxScale(pt.Z))
}

// BackgroundTransform returns the source-to-surface affine matrix for an image
// with the given bounds.
func (p Projection) BackgroundTransform(src image.Rectangle) f64.Aff3 {
	kx := p.Layout.W / float64(src.Dx())
	ky := p.Layout.H / float64(src.Dy())
	fit := f64.Aff3{
		kx, 0, p.Layout.OffX - float64(src.Min.X)*kx,
		0, ky, p.Layout.OffY - float64(src.Min.Y)*ky,
	}
	s := p.Frame.Scale
	zoom := f64.Aff3{
		s, 0, p.ox * (1 - s),
		0, s, p.oy * (1 - s),
	}
	rot := f64.Aff3{
		p.cos, -p.sin, p.cx - p.cos*p.cx + p.sin*p.cy,
		p.sin, p.cos, p.cy - p.sin*p.cx - p.cos*p.cy,
	}
	return mul(rot, mul(zoom, fit))
}

// mul returns a∘b: b is applied first.
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

func apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}
