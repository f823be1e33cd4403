package renderer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/particle"
	"github.com/ivlev/stellarfield/internal/sprite"
)

func anim(final float64) config.AnimationConfig {
	a := config.DefaultAnimation()
	a.InitialScale = 1
	a.FinalScale = final
	a.RotationSpeed = 12
	a.DurationSeconds = 5
	return a
}

func TestZeroDepthLockedToBackground(t *testing.T) {
	src := image.Rect(0, 0, 200, 100)
	for _, final := range []float64{0.5, 1, 1.7, 3} {
		for _, progress := range []float64{0, 0.3, 1} {
			a := anim(final)
			lay := FitLayout(640, 360, src.Dx(), src.Dy())
			proj := NewProjection(640, 360, lay, FrameAt(progress, a), a, config.ZoomOrigin{X: 0.3, Y: 0.6}, DefaultDepthGain)

			p := particle.Particle{X: 0.8, Y: 0.3, Z: 0, Scale: 1}
			px, py := proj.Particle(p)
			bx, by := proj.Background(p.X, p.Y)
			if math.Abs(px-bx) > 1e-9 || math.Abs(py-by) > 1e-9 {
				t.Fatalf("final=%v progress=%v: particle (%f,%f) background (%f,%f)", final, progress, px, py, bx, by)
			}

			// the matrix used to draw the image agrees with the point mapping
			mx, my := apply(proj.BackgroundTransform(src), 0.8*200, 0.3*100)
			if math.Abs(px-mx) > 1e-6 || math.Abs(py-my) > 1e-6 {
				t.Fatalf("final=%v progress=%v: matrix (%f,%f) particle (%f,%f)", final, progress, mx, my, px, py)
			}
		}
	}
}

func TestDepthAddsParallax(t *testing.T) {
	a := anim(2)
	lay := FitLayout(640, 360, 0, 0)
	origin := config.ZoomOrigin{X: 0.5, Y: 0.5}

	at := func(progress, z float64) (float64, float64) {
		proj := NewProjection(640, 360, lay, FrameAt(progress, a), a, origin, DefaultDepthGain)
		return proj.Particle(particle.Particle{X: 0.7, Y: 0.5, Z: z, Scale: 1})
	}

	x0, y0 := at(0, 0)
	x5, y5 := at(0, 5)
	if x0 != x5 || y0 != y5 {
		t.Errorf("no parallax before the zoom starts: (%f,%f) vs (%f,%f)", x0, y0, x5, y5)
	}

	nearX, nearY := at(1, 0)
	farX, farY := at(1, 5)
	near := math.Hypot(nearX-320, nearY-180)
	far := math.Hypot(farX-320, farY-180)
	if far <= near {
		t.Errorf("deep particle should travel further from the origin: near %f far %f", near, far)
	}
}

func TestScaleAtEasing(t *testing.T) {
	a := anim(2)
	if got := ScaleAt(a, 0.5); math.Abs(got-1.5) > 1e-5 {
		t.Errorf("linear midpoint: %f", got)
	}
	if got := ScaleAt(a, 1); math.Abs(got-2) > 1e-5 {
		t.Errorf("end: %f", got)
	}

	a.Easing = "in-out-quad"
	if got := ScaleAt(a, 0.25); got >= 1.25 {
		t.Errorf("ease-in should lag behind linear, got %f", got)
	}
	a.Easing = "bogus"
	if got := ScaleAt(a, 0.25); math.Abs(got-1.25) > 1e-5 {
		t.Errorf("unknown easing falls back to linear, got %f", got)
	}
}

func TestFrameAtRotation(t *testing.T) {
	a := anim(1)
	a.RotationSpeed = 10
	a.DurationSeconds = 9

	f := FrameAt(1, a)
	if math.Abs(f.Angle-90*math.Pi/180) > 1e-9 {
		t.Errorf("cw angle %f", f.Angle)
	}
	a.RotationDirection = config.CCW
	if f := FrameAt(1, a); f.Angle >= 0 {
		t.Errorf("ccw rotation must be negative, got %f", f.Angle)
	}
}

func TestResolutionScale(t *testing.T) {
	if s := ResolutionScale(1920, 1080); math.Abs(s-1) > 1e-12 {
		t.Errorf("reference: %f", s)
	}
	if s := ResolutionScale(3840, 2160); math.Abs(s-2) > 1e-12 {
		t.Errorf("4k should double sizes: %f", s)
	}
}

func scene() Scene {
	pc := config.DefaultParticles()
	pc.BaseSize = 20
	a := anim(1)
	a.RotationSpeed = 0
	return Scene{Animation: a, Particle: pc, Origin: config.ZoomOrigin{X: 0.5, Y: 0.5}}
}

func TestRenderDrawsAndCulls(t *testing.T) {
	e := NewEngine(sprite.NewCache(10, 64))
	surface := image.NewRGBA(image.Rect(0, 0, 480, 270))

	sc := scene()
	sc.Particles = []particle.Particle{{X: 0.5, Y: 0.5, Scale: 1}}
	st := e.Render(surface, 0, sc, Options{})
	if st.Drawn != 1 || st.Culled != 0 {
		t.Fatalf("stats %+v", st)
	}
	if c := surface.RGBAAt(240, 135); c.R < 100 || c.B < 100 {
		t.Errorf("centre should be lit by the particle, got %+v", c)
	}
	if c := surface.RGBAAt(10, 10); c != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("background must stay black, got %+v", c)
	}

	// zoomed far past the edge
	sc.Animation.FinalScale = 5
	sc.Particles = []particle.Particle{{X: 0.99, Y: 0.5, Scale: 1}}
	if st := e.Render(surface, 1, sc, Options{}); st.Culled != 1 || st.Drawn != 0 {
		t.Errorf("off-screen particle should be culled, stats %+v", st)
	}

	// too small to see
	sc.Animation.FinalScale = 1
	sc.Particle.BaseSize = 0.5
	sc.Particles = []particle.Particle{{X: 0.5, Y: 0.5, Scale: 1}}
	if st := e.Render(surface, 0, sc, Options{}); st.Culled != 1 {
		t.Errorf("sub-pixel particle should be skipped, stats %+v", st)
	}
}

func TestCrosshairOnlyInteractive(t *testing.T) {
	e := NewEngine(nil)
	surface := image.NewRGBA(image.Rect(0, 0, 480, 270))
	sc := scene()

	e.Render(surface, 0, sc, Options{Interactive: true})
	if c := surface.RGBAAt(240, 135); c.R != 255 || c.G != 64 {
		t.Errorf("crosshair missing, got %+v", c)
	}
	e.Render(surface, 0, sc, Options{})
	if c := surface.RGBAAt(240, 135); c.R != 0 {
		t.Errorf("capture frames must not show the crosshair, got %+v", c)
	}
}

func TestRenderBackgroundCover(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := 0; i < len(bg.Pix); i += 4 {
		bg.Pix[i], bg.Pix[i+3] = 255, 255
	}
	lay := FitLayout(200, 100, 100, 100)
	if lay.W != 200 || lay.H != 200 || lay.OffY != -50 {
		t.Fatalf("cover layout %+v", lay)
	}

	sc := scene()
	sc.Background = bg
	surface := image.NewRGBA(image.Rect(0, 0, 200, 100))
	NewEngine(nil).Render(surface, 0, sc, Options{})
	if c := surface.RGBAAt(100, 50); c.R < 250 || c.G != 0 {
		t.Errorf("background should fill the frame, got %+v", c)
	}
}
