package particle

import (
	"math/rand"
	"sort"
	"time"

	"github.com/ivlev/stellarfield/internal/config"
)

const (
	// MinReliableDetections is the count above which detection is trusted.
	MinReliableDetections = 50
	DefaultClusterSize    = 50
	DefaultJitter         = 0.15

	MaxParticlesConstrained = 1500
	MaxParticlesDesktop     = 3500
)

// Resolver picks the particle source for an image: real detections, hotspot
// clusters or procedural noise.
type Resolver struct {
	MinDetections int
	MaxParticles  int
	ClusterSize   int
	Jitter        float64

	rng *rand.Rand
}

// NewResolver creates a resolver. A nil rng is seeded from the clock.
func NewResolver(maxParticles int, rng *rand.Rand) *Resolver {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if maxParticles <= 0 {
		maxParticles = MaxParticlesDesktop
	}
	return &Resolver{
		MinDetections: MinReliableDetections,
		MaxParticles:  maxParticles,
		ClusterSize:   DefaultClusterSize,
		Jitter:        DefaultJitter,
		rng:           rng,
	}
}

// Resolve returns the particles for one input and the mode that produced them.
func (r *Resolver) Resolve(det DetectionResult, hints *Hints, density int) ([]Particle, Mode) {
	if len(det) > r.MinDetections {
		return r.capReal(det), ModeReal
	}
	if !hints.Empty() {
		return r.expandHotspots(hints), ModeAIMap
	}
	return r.procedural(density), ModeProcedural
}

// capReal keeps the largest particles first when det exceeds the device cap.
func (r *Resolver) capReal(det DetectionResult) []Particle {
	out := make([]Particle, len(det))
	copy(out, det)
	if len(out) <= r.MaxParticles {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Scale > out[j].Scale
	})
	return out[:r.MaxParticles]
}

// jitter returns a bell-shaped offset in [-r.Jitter, r.Jitter].
func (r *Resolver) jitter() float64 {
	s := r.rng.Float64() + r.rng.Float64() + r.rng.Float64()
	return (s/3*2 - 1) * r.Jitter
}

func (r *Resolver) expandHotspots(h *Hints) []Particle {
	out := make([]Particle, 0, len(h.Hotspots)*r.ClusterSize)
	for i, hs := range h.Hotspots {
		cx, cy := hs.X/100, hs.Y/100
		color := config.NormalizeHex(h.colorAt(i), "")
		for k := 0; k < r.ClusterSize; k++ {
			x := cx + r.jitter()
			y := cy + r.jitter()
			z := CubedDepth(r.rng)
			scale := 0.5 + r.rng.Float64()
			alpha := 0.5 + r.rng.Float64()*0.5
			if x < 0 || x > 1 || y < 0 || y > 1 {
				continue
			}
			out = append(out, Particle{X: x, Y: y, Z: z, Scale: scale, Alpha: ptr(alpha), Color: color})
		}
	}
	if len(out) > r.MaxParticles {
		out = out[:r.MaxParticles]
	}
	return out
}

func (r *Resolver) procedural(density int) []Particle {
	n := min(max(density, 0), r.MaxParticles)
	out := make([]Particle, n)
	for i := range out {
		out[i] = Particle{
			X:     r.rng.Float64(),
			Y:     r.rng.Float64(),
			Z:     CubedDepth(r.rng),
			Scale: 0.4 + r.rng.Float64()*1.1,
			Alpha: ptr(0.4 + r.rng.Float64()*0.6),
		}
	}
	return out
}
