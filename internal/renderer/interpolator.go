package renderer

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/ivlev/stellarfield/internal/config"
)

var easings = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"in-out-quad":  ease.InOutQuad,
	"in-out-cubic": ease.InOutCubic,
	"in-out-sine":  ease.InOutSine,
	"out-cubic":    ease.OutCubic,
}

func easingFor(name string) ease.TweenFunc {
	if fn, ok := easings[name]; ok {
		return fn
	}
	return ease.Linear
}

// ScaleAt interpolates the background scale from InitialScale to FinalScale.
func ScaleAt(anim config.AnimationConfig, progress float64) float64 {
	progress = clamp01(progress)
	if anim.InitialScale == anim.FinalScale {
		return anim.InitialScale
	}
	tw := gween.New(float32(anim.InitialScale), float32(anim.FinalScale), 1, easingFor(anim.Easing))
	v, _ := tw.Set(float32(progress))
	return float64(v)
}

// Frame is the global transform state at one progress value.
type Frame struct {
	Progress float64
	Elapsed  float64 // seconds
	Angle    float64 // radians, positive = clockwise on screen
	Scale    float64
}

// FrameAt computes elapsed time, rotation angle and background scale.
func FrameAt(progress float64, anim config.AnimationConfig) Frame {
	progress = clamp01(progress)
	elapsed := progress * anim.DurationSeconds
	deg := elapsed * anim.RotationSpeed * anim.RotationDirection.Sign()
	return Frame{
		Progress: progress,
		Elapsed:  elapsed,
		Angle:    deg * math.Pi / 180,
		Scale:    ScaleAt(anim, progress),
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
